package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"promptcollab/api/internal/auth"
	"promptcollab/api/internal/authpw"
	"promptcollab/api/internal/config"
	"promptcollab/api/internal/metrics"
	"promptcollab/api/internal/search"
	"promptcollab/api/internal/store"
	"promptcollab/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	JTI          string
	ExpiresAt    time.Time
}

type CreatePromptInput struct {
	Title       string  `json:"title"`
	Body        string  `json:"body"`
	WorkspaceID *string `json:"workspaceId"`
}

// PendingReview is the owner's review queue. Total counts every pending
// item even when Items was truncated by a limit.
type PendingReview struct {
	Total int                 `json:"total"`
	Items []store.PendingItem `json:"items"`
}

type dataStore interface {
	CreateUser(context.Context, store.User) error
	GetUserByEmail(context.Context, string) (store.User, error)
	GetUserByID(context.Context, string) (store.User, error)
	GetUsersByIDs(context.Context, []string) ([]store.User, error)

	SaveRefreshSession(context.Context, string, string, time.Time) error
	LookupRefreshSession(context.Context, string) (store.User, error)
	RevokeRefreshSession(context.Context, string) error

	InsertPrompt(context.Context, store.Prompt) (store.Prompt, error)
	GetPrompt(context.Context, string) (store.Prompt, error)
	ListPrompts(context.Context, *string) ([]store.Prompt, error)
	GetPromptOwner(context.Context, string) (string, error)
	AppendVersion(context.Context, string, string, string) (store.Prompt, error)
	InsertPendingUpdate(context.Context, store.PendingUpdate) (store.Prompt, error)
	ApprovePendingUpdate(context.Context, string, string, string) (store.Prompt, error)
	RejectPendingUpdate(context.Context, string, string, string) (store.Prompt, error)
	ToggleUpvote(context.Context, string, string) (bool, int, error)
	ListPendingForOwner(context.Context, string) ([]store.PendingItem, error)
	ListUpvotedPromptIDs(context.Context, string) ([]string, error)

	InsertWorkspace(context.Context, store.Workspace) error
	GetWorkspace(context.Context, string) (store.Workspace, error)
	ListWorkspaces(context.Context, string) ([]store.WorkspaceSummary, error)
	ListWorkspacesForMember(context.Context, string) ([]store.WorkspaceSummary, error)
	AddWorkspaceMember(context.Context, string, string) (bool, error)

	InsertComment(context.Context, store.Comment) error
	ListComments(context.Context, string) ([]store.Comment, error)

	Ping(ctx context.Context) error
}

// sessionStore holds refresh sessions. Redis when configured, the
// refresh_sessions table otherwise.
type sessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (string, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

// pgSessionStore adapts the relational refresh session queries to the
// sessionStore shape.
type pgSessionStore struct {
	store dataStore
}

func (p pgSessionStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	return p.store.SaveRefreshSession(ctx, tokenHash, userID, expiresAt)
}

func (p pgSessionStore) LookupRefreshSession(ctx context.Context, tokenHash string) (string, error) {
	user, err := p.store.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

func (p pgSessionStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	return p.store.RevokeRefreshSession(ctx, tokenHash)
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions sessionStore
	accounts *authpw.Service
	search   *search.Service
	metrics  *metrics.Metrics
	log      zerolog.Logger
}

// New wires the service. sessions may be nil, in which case refresh
// sessions live in Postgres. searchSvc and m may be nil in tests.
func New(cfg config.Config, dataStore dataStore, sessions sessionStore, searchSvc *search.Service, m *metrics.Metrics, log zerolog.Logger) *Service {
	if sessions == nil {
		sessions = pgSessionStore{store: dataStore}
	}
	return &Service{
		cfg:      cfg,
		store:    dataStore,
		sessions: sessions,
		accounts: authpw.NewService(dataStore),
		search:   searchSvc,
		metrics:  m,
		log:      log,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Register creates an account and signs the user in.
func (s *Service) Register(ctx context.Context, name, email, password string) (Session, error) {
	user, err := s.accounts.Register(ctx, name, email, password)
	if err != nil {
		if errors.Is(err, authpw.ErrUserExists) {
			return Session{}, domainError(http.StatusConflict, "USER_EXISTS", "User already exists", nil)
		}
		return Session{}, err
	}
	s.log.Info().Str("user", user.ID).Msg("user registered")
	return s.issueSession(ctx, user)
}

func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	user, err := s.accounts.Authenticate(ctx, email, password)
	if err != nil {
		return Session{}, domainError(http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid credentials", nil)
	}
	return s.issueSession(ctx, user)
}

// Refresh rotates a refresh token and issues a new access token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return Session{}, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Refresh token invalid", nil)
	}
	hash := auth.HashToken(refreshToken)
	userID, err := s.sessions.LookupRefreshSession(ctx, hash)
	if err != nil {
		return Session{}, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Refresh token invalid", nil)
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return Session{}, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Refresh token invalid", nil)
	}
	if err := s.sessions.RevokeRefreshSession(ctx, hash); err != nil {
		s.log.Warn().Err(err).Msg("revoke rotated refresh token")
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if strings.TrimSpace(refreshToken) == "" {
		return nil
	}
	return s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:     token,
		UserID:    claims.Subject,
		UserName:  claims.Name,
		JTI:       claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (s *Service) CurrentUser(ctx context.Context, session Session) (store.User, error) {
	return s.store.GetUserByID(ctx, session.UserID)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	jti := util.NewID("")
	expiresAt := time.Now().Add(s.cfg.AccessTTL)
	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), user.ID, user.Name, jti, expiresAt)
	if err != nil {
		return Session{}, err
	}

	refreshToken := randomToken()
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refreshToken), user.ID, time.Now().Add(s.cfg.RefreshTTL)); err != nil {
		return Session{}, fmt.Errorf("save refresh session: %w", err)
	}

	return Session{
		Token:        token,
		RefreshToken: refreshToken,
		UserID:       user.ID,
		UserName:     user.Name,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func randomToken() string {
	buf := make([]byte, 32)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

// CreatePrompt creates a prompt with its initial version.
func (s *Service) CreatePrompt(ctx context.Context, session Session, input CreatePromptInput) (store.Prompt, error) {
	title := strings.TrimSpace(input.Title)
	body := strings.TrimSpace(input.Body)
	if title == "" || body == "" {
		return store.Prompt{}, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "Title and body are required", nil)
	}

	var workspaceID *string
	if input.WorkspaceID != nil && strings.TrimSpace(*input.WorkspaceID) != "" {
		id := strings.TrimSpace(*input.WorkspaceID)
		if _, err := s.store.GetWorkspace(ctx, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return store.Prompt{}, domainError(http.StatusNotFound, "WORKSPACE_NOT_FOUND", "Workspace not found", nil)
			}
			return store.Prompt{}, err
		}
		workspaceID = &id
	}

	prompt, err := s.store.InsertPrompt(ctx, store.Prompt{
		ID:          util.NewID("pmt"),
		Title:       title,
		Body:        body,
		CreatedBy:   session.UserID,
		WorkspaceID: workspaceID,
	})
	if err != nil {
		return store.Prompt{}, err
	}
	if s.metrics != nil {
		s.metrics.PromptsCreatedTotal.Inc()
	}
	s.indexPrompt(prompt)
	s.log.Info().Str("prompt", prompt.ID).Str("user", session.UserID).Msg("prompt created")
	return prompt, nil
}

func (s *Service) ListPrompts(ctx context.Context) ([]store.Prompt, error) {
	return s.store.ListPrompts(ctx, nil)
}

func (s *Service) GetPrompt(ctx context.Context, promptID string) (store.Prompt, error) {
	if !util.ValidID(promptID, "pmt") {
		return store.Prompt{}, domainError(http.StatusBadRequest, "INVALID_ID", "Invalid prompt ID", nil)
	}
	prompt, err := s.store.GetPrompt(ctx, promptID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Prompt{}, domainError(http.StatusNotFound, "NOT_FOUND", "Prompt not found", nil)
	}
	return prompt, err
}

// RequestUpdate either applies an owner's edit directly or queues a
// collaborator suggestion for review. Pending is nil when the edit was
// applied immediately, otherwise it holds the queued suggestion.
func (s *Service) RequestUpdate(ctx context.Context, session Session, promptID, suggestedBody string) (store.Prompt, *store.PendingUpdate, error) {
	if !util.ValidID(promptID, "pmt") {
		return store.Prompt{}, nil, domainError(http.StatusBadRequest, "INVALID_ID", "Invalid prompt ID", nil)
	}
	suggestedBody = strings.TrimSpace(suggestedBody)
	if suggestedBody == "" {
		return store.Prompt{}, nil, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "Suggested body is required", nil)
	}

	owner, err := s.store.GetPromptOwner(ctx, promptID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Prompt{}, nil, domainError(http.StatusNotFound, "NOT_FOUND", "Prompt not found", nil)
	}
	if err != nil {
		return store.Prompt{}, nil, err
	}

	if owner == session.UserID {
		prompt, err := s.store.AppendVersion(ctx, promptID, suggestedBody, session.UserID)
		if err != nil {
			return store.Prompt{}, nil, err
		}
		if s.metrics != nil {
			s.metrics.VersionsAppendedTotal.Inc()
		}
		s.indexPrompt(prompt)
		return prompt, nil, nil
	}

	updateID := util.NewID("upd")
	prompt, err := s.store.InsertPendingUpdate(ctx, store.PendingUpdate{
		ID:            updateID,
		PromptID:      promptID,
		SuggestedBody: suggestedBody,
		SuggestedBy:   session.UserID,
		Status:        store.UpdatePending,
	})
	if err != nil {
		return store.Prompt{}, nil, err
	}
	pending := &store.PendingUpdate{
		ID:              updateID,
		PromptID:        promptID,
		SuggestedBody:   suggestedBody,
		SuggestedBy:     session.UserID,
		SuggestedByName: session.UserName,
		Status:          store.UpdatePending,
	}
	for i := range prompt.PendingUpdates {
		if prompt.PendingUpdates[i].ID == updateID {
			pending = &prompt.PendingUpdates[i]
			break
		}
	}
	return prompt, pending, nil
}

// ApproveUpdate applies a pending suggestion. Only the prompt owner may
// approve.
func (s *Service) ApproveUpdate(ctx context.Context, session Session, promptID, updateID string) (store.Prompt, error) {
	if !util.ValidID(promptID, "pmt") || !util.ValidID(updateID, "upd") {
		return store.Prompt{}, domainError(http.StatusBadRequest, "INVALID_ID", "Invalid IDs", nil)
	}
	owner, err := s.store.GetPromptOwner(ctx, promptID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Prompt{}, domainError(http.StatusNotFound, "NOT_FOUND", "Prompt not found", nil)
	}
	if err != nil {
		return store.Prompt{}, err
	}
	if owner != session.UserID {
		return store.Prompt{}, domainError(http.StatusForbidden, "FORBIDDEN", "Not authorized to approve updates", nil)
	}

	prompt, err := s.store.ApprovePendingUpdate(ctx, promptID, updateID, session.UserID)
	if errors.Is(err, store.ErrUpdateProcessed) {
		return store.Prompt{}, domainError(http.StatusBadRequest, "INVALID_STATE", "Invalid update request", nil)
	}
	if err != nil {
		return store.Prompt{}, err
	}
	if s.metrics != nil {
		s.metrics.PendingDecisionsTotal.WithLabelValues("approved").Inc()
		s.metrics.VersionsAppendedTotal.Inc()
	}
	s.indexPrompt(prompt)
	s.log.Info().Str("prompt", promptID).Str("update", updateID).Msg("pending update approved")
	return prompt, nil
}

// RejectUpdate discards a pending suggestion. Only the prompt owner may
// reject.
func (s *Service) RejectUpdate(ctx context.Context, session Session, promptID, updateID string) (store.Prompt, error) {
	if !util.ValidID(promptID, "pmt") || !util.ValidID(updateID, "upd") {
		return store.Prompt{}, domainError(http.StatusBadRequest, "INVALID_ID", "Invalid IDs", nil)
	}
	owner, err := s.store.GetPromptOwner(ctx, promptID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Prompt{}, domainError(http.StatusNotFound, "NOT_FOUND", "Prompt not found", nil)
	}
	if err != nil {
		return store.Prompt{}, err
	}
	if owner != session.UserID {
		return store.Prompt{}, domainError(http.StatusForbidden, "FORBIDDEN", "Not authorized to reject updates", nil)
	}

	prompt, err := s.store.RejectPendingUpdate(ctx, promptID, updateID, session.UserID)
	if errors.Is(err, store.ErrUpdateProcessed) {
		return store.Prompt{}, domainError(http.StatusBadRequest, "INVALID_STATE", "Invalid update request", nil)
	}
	if err != nil {
		return store.Prompt{}, err
	}
	if s.metrics != nil {
		s.metrics.PendingDecisionsTotal.WithLabelValues("rejected").Inc()
	}
	s.log.Info().Str("prompt", promptID).Str("update", updateID).Msg("pending update rejected")
	return prompt, nil
}

// PendingUpdates returns the caller's review queue in suggestion order.
// Total reflects the whole queue even when limit truncates Items.
func (s *Service) PendingUpdates(ctx context.Context, session Session, limit int) (PendingReview, error) {
	items, err := s.store.ListPendingForOwner(ctx, session.UserID)
	if err != nil {
		return PendingReview{}, err
	}

	total := len(items)
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}

	seen := make(map[string]struct{})
	var requesterIDs []string
	for _, item := range items {
		if _, ok := seen[item.SuggestedBy]; ok {
			continue
		}
		seen[item.SuggestedBy] = struct{}{}
		requesterIDs = append(requesterIDs, item.SuggestedBy)
	}

	users, err := s.store.GetUsersByIDs(ctx, requesterIDs)
	if err != nil {
		return PendingReview{}, err
	}
	byID := make(map[string]store.User, len(users))
	for _, user := range users {
		byID[user.ID] = user
	}
	for i := range items {
		if user, ok := byID[items[i].SuggestedBy]; ok {
			u := user
			items[i].RequestedBy = &u
		}
	}

	return PendingReview{Total: total, Items: items}, nil
}

// ToggleUpvote flips the caller's upvote on a prompt.
func (s *Service) ToggleUpvote(ctx context.Context, session Session, promptID string) (bool, int, error) {
	if !util.ValidID(promptID, "pmt") {
		return false, 0, domainError(http.StatusBadRequest, "INVALID_ID", "Invalid prompt ID", nil)
	}
	hasUpvoted, upvotes, err := s.store.ToggleUpvote(ctx, promptID, session.UserID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, 0, domainError(http.StatusNotFound, "NOT_FOUND", "Prompt not found", nil)
	}
	if err != nil {
		return false, 0, err
	}
	if s.metrics != nil {
		direction := "removed"
		if hasUpvoted {
			direction = "added"
		}
		s.metrics.UpvoteTogglesTotal.WithLabelValues(direction).Inc()
	}
	return hasUpvoted, upvotes, nil
}

func (s *Service) UpvotedPromptIDs(ctx context.Context, session Session) ([]string, error) {
	return s.store.ListUpvotedPromptIDs(ctx, session.UserID)
}

// CreateWorkspace creates a workspace owned by the caller, who joins it
// immediately.
func (s *Service) CreateWorkspace(ctx context.Context, session Session, title string) (store.Workspace, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return store.Workspace{}, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "Title is required", nil)
	}
	workspace := store.Workspace{
		ID:        util.NewID("wks"),
		Title:     title,
		CreatedBy: session.UserID,
	}
	if err := s.store.InsertWorkspace(ctx, workspace); err != nil {
		return store.Workspace{}, err
	}
	created, err := s.store.GetWorkspace(ctx, workspace.ID)
	if err != nil {
		return store.Workspace{}, err
	}
	if s.search != nil {
		s.search.IndexWorkspace(search.WorkspaceRecord{
			ID:        created.ID,
			Title:     created.Title,
			CreatedBy: created.CreatedBy,
		})
	}
	return created, nil
}

func (s *Service) Workspaces(ctx context.Context, session Session) ([]store.WorkspaceSummary, error) {
	return s.store.ListWorkspaces(ctx, session.UserID)
}

func (s *Service) MyWorkspaces(ctx context.Context, session Session) ([]store.WorkspaceSummary, error) {
	return s.store.ListWorkspacesForMember(ctx, session.UserID)
}

// JoinWorkspace enrolls the caller. The returned flag is false when the
// caller was already a member.
func (s *Service) JoinWorkspace(ctx context.Context, session Session, workspaceID string) (bool, error) {
	if _, err := s.store.GetWorkspace(ctx, workspaceID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, domainError(http.StatusNotFound, "WORKSPACE_NOT_FOUND", "Workspace not found", nil)
		}
		return false, err
	}
	return s.store.AddWorkspaceMember(ctx, workspaceID, session.UserID)
}

func (s *Service) WorkspacePrompts(ctx context.Context, workspaceID string) ([]store.Prompt, error) {
	if _, err := s.store.GetWorkspace(ctx, workspaceID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainError(http.StatusNotFound, "WORKSPACE_NOT_FOUND", "Workspace not found", nil)
		}
		return nil, err
	}
	return s.store.ListPrompts(ctx, &workspaceID)
}

// AddComment attaches a comment to a prompt.
func (s *Service) AddComment(ctx context.Context, session Session, promptID, text string) (store.Comment, error) {
	if !util.ValidID(promptID, "pmt") {
		return store.Comment{}, domainError(http.StatusBadRequest, "INVALID_ID", "Invalid prompt ID", nil)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return store.Comment{}, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "Comment text is required", nil)
	}
	if _, err := s.store.GetPromptOwner(ctx, promptID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Comment{}, domainError(http.StatusNotFound, "NOT_FOUND", "Prompt not found", nil)
		}
		return store.Comment{}, err
	}

	comment := store.Comment{
		ID:       util.NewID("cmt"),
		PromptID: promptID,
		AuthorID: session.UserID,
		Text:     text,
	}
	if err := s.store.InsertComment(ctx, comment); err != nil {
		return store.Comment{}, err
	}
	comment.AuthorName = session.UserName
	comment.CreatedAt = time.Now()
	return comment, nil
}

func (s *Service) Comments(ctx context.Context, promptID string) ([]store.Comment, error) {
	if !util.ValidID(promptID, "pmt") {
		return nil, domainError(http.StatusBadRequest, "INVALID_ID", "Invalid prompt ID", nil)
	}
	if _, err := s.store.GetPromptOwner(ctx, promptID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Prompt not found", nil)
		}
		return nil, err
	}
	return s.store.ListComments(ctx, promptID)
}

func (s *Service) Search(q search.Query) search.Response {
	if s.metrics != nil {
		s.metrics.SearchQueriesTotal.Inc()
	}
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}
	}
	return s.search.Search(q)
}

func (s *Service) indexPrompt(prompt store.Prompt) {
	if s.search == nil {
		return
	}
	workspaceID := ""
	if prompt.WorkspaceID != nil {
		workspaceID = *prompt.WorkspaceID
	}
	s.search.IndexPrompt(search.PromptRecord{
		ID:          prompt.ID,
		Title:       prompt.Title,
		Body:        prompt.Body,
		WorkspaceID: workspaceID,
		CreatedBy:   prompt.CreatedBy,
		Upvotes:     prompt.Upvotes,
	})
}
