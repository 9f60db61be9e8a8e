package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultPrompt    ResultType = "prompt"
	ResultWorkspace ResultType = "workspace"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type        ResultType `json:"type"`
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Snippet     string     `json:"snippet"`
	WorkspaceID string     `json:"workspaceId,omitempty"`
	CreatedBy   string     `json:"createdBy,omitempty"`
	Upvotes     int        `json:"upvotes,omitempty"`
}

// Query describes a search request.
type Query struct {
	Text              string
	FilterType        ResultType // empty = all types
	FilterWorkspaceID string
	Limit             int
	Offset            int
}

// Response is the envelope returned by the search endpoints.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// PromptRecord is the data we index for a prompt.
type PromptRecord struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	WorkspaceID string `json:"workspaceId"`
	CreatedBy   string `json:"createdBy"`
	Upvotes     int    `json:"upvotes"`
}

// WorkspaceRecord is the data we index for a workspace.
type WorkspaceRecord struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedBy string `json:"createdBy"`
}
