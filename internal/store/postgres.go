package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrUpdateProcessed is returned when an approve or reject targets a
// pending update that has already been approved or rejected.
var ErrUpdateProcessed = errors.New("update already processed")

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, password_hash)
		VALUES ($1, $2, $3, $4)
	`, user.ID, user.Name, user.Email, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, created_at, updated_at
		FROM users
		WHERE email=$1
	`, email).Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, created_at, updated_at
		FROM users
		WHERE id=$1
	`, userID).Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) GetUsersByIDs(ctx context.Context, userIDs []string) ([]User, error) {
	if len(userIDs) == 0 {
		return []User{}, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, email, password_hash, created_at, updated_at
		FROM users
		WHERE id = ANY($1)
	`, userIDs)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]User, 0, len(userIDs))
	for rows.Next() {
		var user User
		if err := rows.Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (User, error) {
	const query = `
		SELECT u.id, u.name, u.email, u.password_hash, u.created_at, u.updated_at
		FROM refresh_sessions rs
		JOIN users u ON u.id = rs.user_id
		WHERE rs.token_hash = $1
			AND rs.revoked_at IS NULL
			AND rs.expires_at > NOW()
	`
	var user User
	err := s.db.QueryRowContext(ctx, query, tokenHash).Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// InsertPrompt creates the prompt row together with version 1 so a
// prompt is never observable without its initial version.
func (s *PostgresStore) InsertPrompt(ctx context.Context, prompt Prompt) (Prompt, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO prompts (id, title, body, created_by, workspace_id)
			VALUES ($1, $2, $3, $4, $5)
		`, prompt.ID, prompt.Title, prompt.Body, prompt.CreatedBy, prompt.WorkspaceID); err != nil {
			return fmt.Errorf("insert prompt: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO prompt_versions (prompt_id, version, body, edited_by)
			VALUES ($1, 1, $2, $3)
		`, prompt.ID, prompt.Body, prompt.CreatedBy); err != nil {
			return fmt.Errorf("insert initial version: %w", err)
		}
		return nil
	})
	if err != nil {
		return Prompt{}, err
	}
	return s.GetPrompt(ctx, prompt.ID)
}

func (s *PostgresStore) GetPrompt(ctx context.Context, promptID string) (Prompt, error) {
	var item Prompt
	err := s.db.QueryRowContext(ctx, `
		SELECT p.id, p.title, p.body, p.created_by, u.name, p.workspace_id, p.upvotes, p.created_at, p.updated_at
		FROM prompts p
		JOIN users u ON u.id = p.created_by
		WHERE p.id=$1
	`, promptID).Scan(&item.ID, &item.Title, &item.Body, &item.CreatedBy, &item.CreatedByName, &item.WorkspaceID, &item.Upvotes, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Prompt{}, err
	}
	prompts := []Prompt{item}
	if err := s.attachChildren(ctx, prompts); err != nil {
		return Prompt{}, err
	}
	return prompts[0], nil
}

// ListPrompts returns full aggregates, newest first. A non-nil
// workspaceID restricts the listing to that workspace.
func (s *PostgresStore) ListPrompts(ctx context.Context, workspaceID *string) ([]Prompt, error) {
	const base = `
		SELECT p.id, p.title, p.body, p.created_by, u.name, p.workspace_id, p.upvotes, p.created_at, p.updated_at
		FROM prompts p
		JOIN users u ON u.id = p.created_by
	`
	var (
		rows *sql.Rows
		err  error
	)
	if workspaceID != nil {
		rows, err = s.db.QueryContext(ctx, base+`WHERE p.workspace_id=$1 ORDER BY p.created_at DESC`, *workspaceID)
	} else {
		rows, err = s.db.QueryContext(ctx, base+`ORDER BY p.created_at DESC`)
	}
	if err != nil {
		return nil, fmt.Errorf("list prompts: %w", err)
	}
	defer rows.Close()

	items := make([]Prompt, 0)
	for rows.Next() {
		var item Prompt
		if err := rows.Scan(&item.ID, &item.Title, &item.Body, &item.CreatedBy, &item.CreatedByName, &item.WorkspaceID, &item.Upvotes, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan prompt: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate prompts: %w", err)
	}
	if err := s.attachChildren(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *PostgresStore) attachChildren(ctx context.Context, prompts []Prompt) error {
	if len(prompts) == 0 {
		return nil
	}
	ids := make([]string, 0, len(prompts))
	index := make(map[string]*Prompt, len(prompts))
	for i := range prompts {
		prompts[i].Versions = []Version{}
		prompts[i].PendingUpdates = []PendingUpdate{}
		prompts[i].UpvotedBy = []string{}
		ids = append(ids, prompts[i].ID)
		index[prompts[i].ID] = &prompts[i]
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT prompt_id, version, body, edited_by, created_at
		FROM prompt_versions
		WHERE prompt_id = ANY($1)
		ORDER BY prompt_id, version
	`, ids)
	if err != nil {
		return fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			promptID string
			v        Version
		)
		if err := rows.Scan(&promptID, &v.Version, &v.Body, &v.EditedBy, &v.Timestamp); err != nil {
			return fmt.Errorf("scan version: %w", err)
		}
		if p, ok := index[promptID]; ok {
			p.Versions = append(p.Versions, v)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate versions: %w", err)
	}

	pendingRows, err := s.db.QueryContext(ctx, `
		SELECT pu.id, pu.prompt_id, pu.suggested_body, pu.suggested_by, u.name, pu.status, pu.processed_by, pu.processed_at, pu.created_at
		FROM pending_updates pu
		JOIN users u ON u.id = pu.suggested_by
		WHERE pu.prompt_id = ANY($1)
		ORDER BY pu.prompt_id, pu.seq
	`, ids)
	if err != nil {
		return fmt.Errorf("list pending updates: %w", err)
	}
	defer pendingRows.Close()
	for pendingRows.Next() {
		var pu PendingUpdate
		if err := pendingRows.Scan(&pu.ID, &pu.PromptID, &pu.SuggestedBody, &pu.SuggestedBy, &pu.SuggestedByName, &pu.Status, &pu.ProcessedBy, &pu.ProcessedAt, &pu.Timestamp); err != nil {
			return fmt.Errorf("scan pending update: %w", err)
		}
		if p, ok := index[pu.PromptID]; ok {
			p.PendingUpdates = append(p.PendingUpdates, pu)
		}
	}
	if err := pendingRows.Err(); err != nil {
		return fmt.Errorf("iterate pending updates: %w", err)
	}

	upvoteRows, err := s.db.QueryContext(ctx, `
		SELECT prompt_id, user_id
		FROM prompt_upvotes
		WHERE prompt_id = ANY($1)
		ORDER BY prompt_id, created_at
	`, ids)
	if err != nil {
		return fmt.Errorf("list upvotes: %w", err)
	}
	defer upvoteRows.Close()
	for upvoteRows.Next() {
		var promptID, userID string
		if err := upvoteRows.Scan(&promptID, &userID); err != nil {
			return fmt.Errorf("scan upvote: %w", err)
		}
		if p, ok := index[promptID]; ok {
			p.UpvotedBy = append(p.UpvotedBy, userID)
		}
	}
	if err := upvoteRows.Err(); err != nil {
		return fmt.Errorf("iterate upvotes: %w", err)
	}
	return nil
}

// GetPromptOwner reports the creator of a prompt without loading the
// aggregate.
func (s *PostgresStore) GetPromptOwner(ctx context.Context, promptID string) (string, error) {
	var owner string
	err := s.db.QueryRowContext(ctx, `SELECT created_by FROM prompts WHERE id=$1`, promptID).Scan(&owner)
	if err != nil {
		return "", err
	}
	return owner, nil
}

// AppendVersion replaces the prompt body and records the next version
// number in one transaction. The prompt row lock serializes concurrent
// edits so numbers stay contiguous.
func (s *PostgresStore) AppendVersion(ctx context.Context, promptID, body, editorID string) (Prompt, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var id string
		if err := tx.QueryRowContext(ctx, `SELECT id FROM prompts WHERE id=$1 FOR UPDATE`, promptID).Scan(&id); err != nil {
			return err
		}
		var next int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*)+1 FROM prompt_versions WHERE prompt_id=$1`, promptID).Scan(&next); err != nil {
			return fmt.Errorf("next version: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO prompt_versions (prompt_id, version, body, edited_by)
			VALUES ($1, $2, $3, $4)
		`, promptID, next, body, editorID); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE prompts SET body=$2, updated_at=NOW() WHERE id=$1
		`, promptID, body); err != nil {
			return fmt.Errorf("update prompt body: %w", err)
		}
		return nil
	})
	if err != nil {
		return Prompt{}, err
	}
	return s.GetPrompt(ctx, promptID)
}

func (s *PostgresStore) InsertPendingUpdate(ctx context.Context, update PendingUpdate) (Prompt, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var id string
		if err := tx.QueryRowContext(ctx, `SELECT id FROM prompts WHERE id=$1 FOR UPDATE`, update.PromptID).Scan(&id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO pending_updates (id, prompt_id, suggested_body, suggested_by)
			VALUES ($1, $2, $3, $4)
		`, update.ID, update.PromptID, update.SuggestedBody, update.SuggestedBy); err != nil {
			return fmt.Errorf("insert pending update: %w", err)
		}
		return nil
	})
	if err != nil {
		return Prompt{}, err
	}
	return s.GetPrompt(ctx, update.PromptID)
}

// ApprovePendingUpdate applies a suggestion: the pending update flips to
// approved, the suggested body becomes the authoritative body, and a new
// version is appended, all atomically. Returns ErrUpdateProcessed when
// the update is no longer pending and sql.ErrNoRows when the prompt or
// update does not exist.
func (s *PostgresStore) ApprovePendingUpdate(ctx context.Context, promptID, updateID, approverID string) (Prompt, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var id string
		if err := tx.QueryRowContext(ctx, `SELECT id FROM prompts WHERE id=$1 FOR UPDATE`, promptID).Scan(&id); err != nil {
			return err
		}
		var (
			status        string
			suggestedBody string
			suggestedBy   string
		)
		err := tx.QueryRowContext(ctx, `
			SELECT status, suggested_body, suggested_by
			FROM pending_updates
			WHERE id=$1 AND prompt_id=$2
			FOR UPDATE
		`, updateID, promptID).Scan(&status, &suggestedBody, &suggestedBy)
		if err != nil {
			return err
		}
		if status != UpdatePending {
			return ErrUpdateProcessed
		}

		var next int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*)+1 FROM prompt_versions WHERE prompt_id=$1`, promptID).Scan(&next); err != nil {
			return fmt.Errorf("next version: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO prompt_versions (prompt_id, version, body, edited_by)
			VALUES ($1, $2, $3, $4)
		`, promptID, next, suggestedBody, suggestedBy); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE prompts SET body=$2, updated_at=NOW() WHERE id=$1
		`, promptID, suggestedBody); err != nil {
			return fmt.Errorf("update prompt body: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE pending_updates SET status=$3, processed_by=$2, processed_at=NOW() WHERE id=$1
		`, updateID, approverID, UpdateApproved); err != nil {
			return fmt.Errorf("approve pending update: %w", err)
		}
		return nil
	})
	if err != nil {
		return Prompt{}, err
	}
	return s.GetPrompt(ctx, promptID)
}

// RejectPendingUpdate flips a pending update to rejected. The prompt
// body and version log are untouched.
func (s *PostgresStore) RejectPendingUpdate(ctx context.Context, promptID, updateID, rejecterID string) (Prompt, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var id string
		if err := tx.QueryRowContext(ctx, `SELECT id FROM prompts WHERE id=$1 FOR UPDATE`, promptID).Scan(&id); err != nil {
			return err
		}
		var status string
		err := tx.QueryRowContext(ctx, `
			SELECT status FROM pending_updates WHERE id=$1 AND prompt_id=$2 FOR UPDATE
		`, updateID, promptID).Scan(&status)
		if err != nil {
			return err
		}
		if status != UpdatePending {
			return ErrUpdateProcessed
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE pending_updates SET status=$3, processed_by=$2, processed_at=NOW() WHERE id=$1
		`, updateID, rejecterID, UpdateRejected); err != nil {
			return fmt.Errorf("reject pending update: %w", err)
		}
		return nil
	})
	if err != nil {
		return Prompt{}, err
	}
	return s.GetPrompt(ctx, promptID)
}

// ToggleUpvote adds the user's upvote if absent and removes it if
// present. Returns whether the user holds an upvote afterwards and the
// resulting counter.
func (s *PostgresStore) ToggleUpvote(ctx context.Context, promptID, userID string) (bool, int, error) {
	var (
		hasUpvoted bool
		total      int
	)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var id string
		if err := tx.QueryRowContext(ctx, `SELECT id FROM prompts WHERE id=$1 FOR UPDATE`, promptID).Scan(&id); err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, `
			DELETE FROM prompt_upvotes WHERE prompt_id=$1 AND user_id=$2
		`, promptID, userID)
		if err != nil {
			return fmt.Errorf("delete upvote: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete upvote rows: %w", err)
		}
		if affected > 0 {
			hasUpvoted = false
			err = tx.QueryRowContext(ctx, `
				UPDATE prompts SET upvotes=GREATEST(upvotes-1, 0) WHERE id=$1 RETURNING upvotes
			`, promptID).Scan(&total)
			if err != nil {
				return fmt.Errorf("decrement upvotes: %w", err)
			}
			return nil
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO prompt_upvotes (prompt_id, user_id) VALUES ($1, $2)
		`, promptID, userID); err != nil {
			return fmt.Errorf("insert upvote: %w", err)
		}
		hasUpvoted = true
		err = tx.QueryRowContext(ctx, `
			UPDATE prompts SET upvotes=upvotes+1 WHERE id=$1 RETURNING upvotes
		`, promptID).Scan(&total)
		if err != nil {
			return fmt.Errorf("increment upvotes: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, 0, err
	}
	return hasUpvoted, total, nil
}

// ListPendingForOwner flattens every pending update across the owner's
// prompts into review-queue rows, oldest suggestion first.
func (s *PostgresStore) ListPendingForOwner(ctx context.Context, ownerID string) ([]PendingItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.title, p.body, pu.id, pu.suggested_body, pu.suggested_by, pu.created_at
		FROM pending_updates pu
		JOIN prompts p ON p.id = pu.prompt_id
		WHERE p.created_by=$1 AND pu.status=$2
		ORDER BY pu.seq
	`, ownerID, UpdatePending)
	if err != nil {
		return nil, fmt.Errorf("list pending for owner: %w", err)
	}
	defer rows.Close()

	items := make([]PendingItem, 0)
	for rows.Next() {
		var item PendingItem
		if err := rows.Scan(&item.PromptID, &item.PromptTitle, &item.OriginalBody, &item.UpdateID, &item.SuggestedBody, &item.SuggestedBy, &item.Timestamp); err != nil {
			return nil, fmt.Errorf("scan pending item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending items: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ListUpvotedPromptIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT prompt_id FROM prompt_upvotes WHERE user_id=$1 ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list upvoted prompts: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan upvoted prompt: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate upvoted prompts: %w", err)
	}
	return ids, nil
}

// InsertWorkspace creates the workspace and enrolls the creator as its
// first member.
func (s *PostgresStore) InsertWorkspace(ctx context.Context, workspace Workspace) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO workspaces (id, title, created_by)
			VALUES ($1, $2, $3)
		`, workspace.ID, workspace.Title, workspace.CreatedBy); err != nil {
			return fmt.Errorf("insert workspace: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO workspace_members (workspace_id, user_id)
			VALUES ($1, $2)
		`, workspace.ID, workspace.CreatedBy); err != nil {
			return fmt.Errorf("insert workspace member: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) GetWorkspace(ctx context.Context, workspaceID string) (Workspace, error) {
	var item Workspace
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, created_by, created_at, updated_at
		FROM workspaces
		WHERE id=$1
	`, workspaceID).Scan(&item.ID, &item.Title, &item.CreatedBy, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Workspace{}, err
	}
	return item, nil
}

// ListWorkspaces returns every workspace with its prompt count,
// decorated with the viewer's relationship to it. Most prompts first.
func (s *PostgresStore) ListWorkspaces(ctx context.Context, viewerID string) ([]WorkspaceSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT w.id, w.title, w.created_by, w.created_at, w.updated_at,
			COUNT(DISTINCT p.id) AS prompt_count,
			EXISTS(SELECT 1 FROM workspace_members m WHERE m.workspace_id = w.id AND m.user_id = $1) AS is_joined
		FROM workspaces w
		LEFT JOIN prompts p ON p.workspace_id = w.id
		GROUP BY w.id
		ORDER BY prompt_count DESC, w.created_at DESC
	`, viewerID)
	if err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}
	defer rows.Close()

	items := make([]WorkspaceSummary, 0)
	for rows.Next() {
		var item WorkspaceSummary
		if err := rows.Scan(&item.ID, &item.Title, &item.CreatedBy, &item.CreatedAt, &item.UpdatedAt, &item.PromptCount, &item.IsJoined); err != nil {
			return nil, fmt.Errorf("scan workspace: %w", err)
		}
		item.IsOwner = item.CreatedBy == viewerID
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate workspaces: %w", err)
	}
	return items, nil
}

// ListWorkspacesForMember returns the workspaces the user belongs to.
func (s *PostgresStore) ListWorkspacesForMember(ctx context.Context, userID string) ([]WorkspaceSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT w.id, w.title, w.created_by, w.created_at, w.updated_at,
			COUNT(DISTINCT p.id) AS prompt_count
		FROM workspaces w
		JOIN workspace_members m ON m.workspace_id = w.id AND m.user_id = $1
		LEFT JOIN prompts p ON p.workspace_id = w.id
		GROUP BY w.id
		ORDER BY w.created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list member workspaces: %w", err)
	}
	defer rows.Close()

	items := make([]WorkspaceSummary, 0)
	for rows.Next() {
		var item WorkspaceSummary
		if err := rows.Scan(&item.ID, &item.Title, &item.CreatedBy, &item.CreatedAt, &item.UpdatedAt, &item.PromptCount); err != nil {
			return nil, fmt.Errorf("scan member workspace: %w", err)
		}
		item.IsOwner = item.CreatedBy == userID
		item.IsJoined = true
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate member workspaces: %w", err)
	}
	return items, nil
}

// AddWorkspaceMember enrolls the user. Returns false when the user was
// already a member.
func (s *PostgresStore) AddWorkspaceMember(ctx context.Context, workspaceID, userID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO workspace_members (workspace_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (workspace_id, user_id) DO NOTHING
	`, workspaceID, userID)
	if err != nil {
		return false, fmt.Errorf("add workspace member: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("add workspace member rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) InsertComment(ctx context.Context, comment Comment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO comments (id, prompt_id, author_id, text)
		VALUES ($1, $2, $3, $4)
	`, comment.ID, comment.PromptID, comment.AuthorID, comment.Text)
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListComments(ctx context.Context, promptID string) ([]Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.prompt_id, c.author_id, u.name, c.text, c.created_at
		FROM comments c
		JOIN users u ON u.id = c.author_id
		WHERE c.prompt_id=$1
		ORDER BY c.created_at
	`, promptID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	items := make([]Comment, 0)
	for rows.Next() {
		var item Comment
		if err := rows.Scan(&item.ID, &item.PromptID, &item.AuthorID, &item.AuthorName, &item.Text, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return items, nil
}
