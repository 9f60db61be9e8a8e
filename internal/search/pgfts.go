package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a
// fallback when Meilisearch is unavailable.
type PgFTS struct {
	db *sql.DB
}

func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true. If Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search runs a UNION ALL query across prompts and workspaces using
// plainto_tsquery and ts_rank, with ts_headline for snippets.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	tsQuery := "plainto_tsquery('english', $1)"
	args := []any{q.Text}
	argN := 2

	var subQueries []string

	if q.FilterType == "" || q.FilterType == ResultPrompt {
		promptWhere := "p.fts @@ " + tsQuery
		if q.FilterWorkspaceID != "" {
			promptWhere += fmt.Sprintf(" AND p.workspace_id = $%d", argN)
			args = append(args, q.FilterWorkspaceID)
			argN++
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'prompt'::text AS type, p.id, p.title,
				ts_headline('english', p.body, %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				coalesce(p.workspace_id, '') AS workspace_id, p.created_by, p.upvotes,
				ts_rank(p.fts, %s) AS rank
			FROM prompts p
			WHERE %s`, tsQuery, tsQuery, promptWhere))
	}

	if q.FilterType == "" || q.FilterType == ResultWorkspace {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'workspace'::text AS type, w.id, w.title,
				''::text AS snippet,
				w.id AS workspace_id, w.created_by, 0 AS upvotes,
				ts_rank(w.fts, %s) AS rank
			FROM workspaces w
			WHERE w.fts @@ %s`, tsQuery, tsQuery))
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub",
		strings.Join(subQueries, " UNION ALL "))

	dataSQL := fmt.Sprintf(`SELECT type, id, title, snippet, workspace_id, created_by, upvotes
		FROM (%s) sub
		ORDER BY rank DESC
		LIMIT %d OFFSET %d`,
		strings.Join(subQueries, " UNION ALL "),
		limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var (
			r   Result
			typ string
		)
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet, &r.WorkspaceID, &r.CreatedBy, &r.Upvotes); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		if r.Type == ResultWorkspace {
			r.Upvotes = 0
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("pgfts rows: %w", err)
	}
	return results, total, nil
}

// LoadAllRecords reads every prompt and workspace for bulk reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]PromptRecord, []WorkspaceRecord, error) {
	promptRows, err := p.db.QueryContext(ctx, `
		SELECT id, title, body, coalesce(workspace_id, ''), created_by, upvotes FROM prompts
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load prompts: %w", err)
	}
	defer promptRows.Close()

	var prompts []PromptRecord
	for promptRows.Next() {
		var rec PromptRecord
		if err := promptRows.Scan(&rec.ID, &rec.Title, &rec.Body, &rec.WorkspaceID, &rec.CreatedBy, &rec.Upvotes); err != nil {
			return nil, nil, fmt.Errorf("scan prompt record: %w", err)
		}
		prompts = append(prompts, rec)
	}
	if err := promptRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate prompt records: %w", err)
	}

	workspaceRows, err := p.db.QueryContext(ctx, `SELECT id, title, created_by FROM workspaces`)
	if err != nil {
		return nil, nil, fmt.Errorf("load workspaces: %w", err)
	}
	defer workspaceRows.Close()

	var workspaces []WorkspaceRecord
	for workspaceRows.Next() {
		var rec WorkspaceRecord
		if err := workspaceRows.Scan(&rec.ID, &rec.Title, &rec.CreatedBy); err != nil {
			return nil, nil, fmt.Errorf("scan workspace record: %w", err)
		}
		workspaces = append(workspaces, rec)
	}
	if err := workspaceRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate workspace records: %w", err)
	}
	return prompts, workspaces, nil
}
