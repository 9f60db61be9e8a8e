package store

import (
	"context"
	"errors"
	"os"
	"testing"

	"promptcollab/api/internal/util"
)

// These tests run the transactional prompt operations against a real
// database. They are skipped in short mode and when TEST_DATABASE_URL
// is not set.

func openTestStore(t *testing.T) (*PostgresStore, context.Context) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	databaseURL := os.Getenv("TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := Open(ctx, databaseURL)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := ApplyMigrations(ctx, db, testMigrationsDir()); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return NewPostgresStore(db), ctx
}

func seedUser(t *testing.T, ctx context.Context, s *PostgresStore, name string) User {
	t.Helper()
	user := User{
		ID:           util.NewID("usr"),
		Name:         name,
		Email:        util.NewID("") + "@example.com",
		PasswordHash: "x",
	}
	if err := s.CreateUser(ctx, user); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(context.Background(), `DELETE FROM users WHERE id=$1`, user.ID)
	})
	return user
}

func seedPrompt(t *testing.T, ctx context.Context, s *PostgresStore, creator User) Prompt {
	t.Helper()
	prompt, err := s.InsertPrompt(ctx, Prompt{
		ID:        util.NewID("pmt"),
		Title:     "Summarize",
		Body:      "v1 text",
		CreatedBy: creator.ID,
	})
	if err != nil {
		t.Fatalf("seed prompt: %v", err)
	}
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(context.Background(), `DELETE FROM prompts WHERE id=$1`, prompt.ID)
	})
	return prompt
}

func TestAppendVersionNumbersAreContiguous(t *testing.T) {
	s, ctx := openTestStore(t)
	owner := seedUser(t, ctx, s, "Riley")
	prompt := seedPrompt(t, ctx, s, owner)

	for _, body := range []string{"v2 text", "v3 text"} {
		if _, err := s.AppendVersion(ctx, prompt.ID, body, owner.ID); err != nil {
			t.Fatalf("AppendVersion(%q): %v", body, err)
		}
	}

	got, err := s.GetPrompt(ctx, prompt.ID)
	if err != nil {
		t.Fatalf("GetPrompt: %v", err)
	}
	if len(got.Versions) != 3 {
		t.Fatalf("expected 3 versions, got %d", len(got.Versions))
	}
	for i, v := range got.Versions {
		if v.Version != i+1 {
			t.Errorf("version at index %d numbered %d", i, v.Version)
		}
	}
	last := got.Versions[len(got.Versions)-1]
	if got.Body != last.Body || got.Body != "v3 text" {
		t.Errorf("body %q must equal latest version body %q", got.Body, last.Body)
	}
}

func TestApprovePendingUpdateFlow(t *testing.T) {
	s, ctx := openTestStore(t)
	owner := seedUser(t, ctx, s, "Riley")
	collaborator := seedUser(t, ctx, s, "Casey")
	prompt := seedPrompt(t, ctx, s, owner)

	updateID := util.NewID("upd")
	if _, err := s.InsertPendingUpdate(ctx, PendingUpdate{
		ID:            updateID,
		PromptID:      prompt.ID,
		SuggestedBody: "v2 text",
		SuggestedBy:   collaborator.ID,
	}); err != nil {
		t.Fatalf("InsertPendingUpdate: %v", err)
	}

	got, err := s.ApprovePendingUpdate(ctx, prompt.ID, updateID, owner.ID)
	if err != nil {
		t.Fatalf("ApprovePendingUpdate: %v", err)
	}
	if got.Body != "v2 text" {
		t.Errorf("expected body replaced, got %q", got.Body)
	}
	if len(got.Versions) != 2 {
		t.Fatalf("expected 2 versions, got %d", len(got.Versions))
	}
	if got.Versions[1].Version != 2 || got.Versions[1].EditedBy != collaborator.ID {
		t.Errorf("unexpected appended version %+v", got.Versions[1])
	}
	if len(got.PendingUpdates) != 1 {
		t.Fatalf("expected 1 pending update, got %d", len(got.PendingUpdates))
	}
	pu := got.PendingUpdates[0]
	if pu.Status != UpdateApproved {
		t.Errorf("expected approved status, got %q", pu.Status)
	}
	if pu.ProcessedBy == nil || *pu.ProcessedBy != owner.ID || pu.ProcessedAt == nil {
		t.Errorf("expected processedBy/processedAt recorded, got %+v", pu)
	}

	// The decision is terminal: neither a second approve nor a reject
	// may touch the update again.
	if _, err := s.ApprovePendingUpdate(ctx, prompt.ID, updateID, owner.ID); !errors.Is(err, ErrUpdateProcessed) {
		t.Fatalf("expected ErrUpdateProcessed on re-approve, got %v", err)
	}
	if _, err := s.RejectPendingUpdate(ctx, prompt.ID, updateID, owner.ID); !errors.Is(err, ErrUpdateProcessed) {
		t.Fatalf("expected ErrUpdateProcessed on reject after approve, got %v", err)
	}
	after, err := s.GetPrompt(ctx, prompt.ID)
	if err != nil {
		t.Fatalf("GetPrompt: %v", err)
	}
	if len(after.Versions) != 2 || after.Body != "v2 text" {
		t.Errorf("failed decision must not change the prompt, got %d versions body %q", len(after.Versions), after.Body)
	}
}

func TestRejectPendingUpdateLeavesBody(t *testing.T) {
	s, ctx := openTestStore(t)
	owner := seedUser(t, ctx, s, "Riley")
	collaborator := seedUser(t, ctx, s, "Casey")
	prompt := seedPrompt(t, ctx, s, owner)

	updateID := util.NewID("upd")
	if _, err := s.InsertPendingUpdate(ctx, PendingUpdate{
		ID:            updateID,
		PromptID:      prompt.ID,
		SuggestedBody: "v2 text",
		SuggestedBy:   collaborator.ID,
	}); err != nil {
		t.Fatalf("InsertPendingUpdate: %v", err)
	}

	got, err := s.RejectPendingUpdate(ctx, prompt.ID, updateID, owner.ID)
	if err != nil {
		t.Fatalf("RejectPendingUpdate: %v", err)
	}
	if got.Body != "v1 text" || len(got.Versions) != 1 {
		t.Errorf("reject must not touch body or versions, got body %q with %d versions", got.Body, len(got.Versions))
	}
	if got.PendingUpdates[0].Status != UpdateRejected {
		t.Errorf("expected rejected status, got %q", got.PendingUpdates[0].Status)
	}

	if _, err := s.ApprovePendingUpdate(ctx, prompt.ID, updateID, owner.ID); !errors.Is(err, ErrUpdateProcessed) {
		t.Fatalf("expected ErrUpdateProcessed on approve after reject, got %v", err)
	}
}

func TestToggleUpvotePairIsIdempotent(t *testing.T) {
	s, ctx := openTestStore(t)
	owner := seedUser(t, ctx, s, "Riley")
	voter := seedUser(t, ctx, s, "Casey")
	prompt := seedPrompt(t, ctx, s, owner)

	hasUpvoted, total, err := s.ToggleUpvote(ctx, prompt.ID, voter.ID)
	if err != nil {
		t.Fatalf("first toggle: %v", err)
	}
	if !hasUpvoted || total != 1 {
		t.Errorf("expected hasUpvoted=true total=1, got %v %d", hasUpvoted, total)
	}

	hasUpvoted, total, err = s.ToggleUpvote(ctx, prompt.ID, voter.ID)
	if err != nil {
		t.Fatalf("second toggle: %v", err)
	}
	if hasUpvoted || total != 0 {
		t.Errorf("expected hasUpvoted=false total=0, got %v %d", hasUpvoted, total)
	}

	// Counter and ledger stay in lockstep.
	got, err := s.GetPrompt(ctx, prompt.ID)
	if err != nil {
		t.Fatalf("GetPrompt: %v", err)
	}
	if got.Upvotes != len(got.UpvotedBy) || got.Upvotes != 0 {
		t.Errorf("counter %d out of step with ledger %d", got.Upvotes, len(got.UpvotedBy))
	}
}
