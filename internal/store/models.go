package store

import "time"

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Workspace struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// WorkspaceSummary is a workspace decorated for listing endpoints.
type WorkspaceSummary struct {
	Workspace
	PromptCount int  `json:"promptCount"`
	IsOwner     bool `json:"isOwner"`
	IsJoined    bool `json:"isJoined"`
}

// Prompt is the root aggregate: authoritative title/body plus the version
// log, the pending-update queue, and the upvote ledger.
type Prompt struct {
	ID             string          `json:"id"`
	Title          string          `json:"title"`
	Body           string          `json:"body"`
	CreatedBy      string          `json:"createdBy"`
	CreatedByName  string          `json:"createdByName,omitempty"`
	WorkspaceID    *string         `json:"workspaceId"`
	Upvotes        int             `json:"upvotes"`
	UpvotedBy      []string        `json:"upvotedBy"`
	Versions       []Version       `json:"versions"`
	PendingUpdates []PendingUpdate `json:"pendingUpdates"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// Version is an immutable snapshot of a prompt's body. Numbers are
// contiguous from 1 and never reused.
type Version struct {
	Version   int       `json:"version"`
	Body      string    `json:"body"`
	EditedBy  string    `json:"editedBy"`
	Timestamp time.Time `json:"timestamp"`
}

// PendingUpdate statuses. A pending update only ever moves
// pending -> approved or pending -> rejected.
const (
	UpdatePending  = "pending"
	UpdateApproved = "approved"
	UpdateRejected = "rejected"
)

type PendingUpdate struct {
	ID              string     `json:"id"`
	PromptID        string     `json:"promptId"`
	SuggestedBody   string     `json:"suggestedBody"`
	SuggestedBy     string     `json:"suggestedBy"`
	SuggestedByName string     `json:"suggestedByName,omitempty"`
	Status          string     `json:"status"`
	ProcessedBy     *string    `json:"processedBy,omitempty"`
	ProcessedAt     *time.Time `json:"processedAt,omitempty"`
	Timestamp       time.Time  `json:"timestamp"`
}

// PendingItem is one row of the flattened owner review queue.
type PendingItem struct {
	PromptID      string    `json:"promptId"`
	PromptTitle   string    `json:"promptTitle"`
	OriginalBody  string    `json:"originalBody"`
	UpdateID      string    `json:"updateId"`
	SuggestedBody string    `json:"suggestedBody"`
	SuggestedBy   string    `json:"suggestedBy"`
	Timestamp     time.Time `json:"timestamp"`
	RequestedBy   *User     `json:"requestedBy"`
}

type Comment struct {
	ID         string    `json:"id"`
	PromptID   string    `json:"promptId"`
	AuthorID   string    `json:"authorId"`
	AuthorName string    `json:"authorName,omitempty"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"createdAt"`
}
