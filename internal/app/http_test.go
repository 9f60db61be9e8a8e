package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"promptcollab/api/internal/store"
	"promptcollab/api/internal/util"
)

func newTestHandler(t *testing.T, fake *fakeStore) (http.Handler, *Service) {
	t.Helper()
	service := newTestService(fake)
	server := NewHTTPServer(service, "*", nil, zerolog.Nop())
	return server.Handler(), service
}

func tokenFor(t *testing.T, service *Service, userID, name string) string {
	t.Helper()
	session, err := service.issueSession(context.Background(), store.User{ID: userID, Name: name})
	if err != nil {
		t.Fatalf("issueSession: %v", err)
	}
	return session.Token
}

func doRequest(t *testing.T, handler http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	return recorder
}

func decodeResponse(t *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response %q: %v", recorder.Body.String(), err)
	}
	return payload
}

func TestHealthEndpoint(t *testing.T) {
	handler, _ := newTestHandler(t, &fakeStore{})

	recorder := doRequest(t, handler, http.MethodGet, "/api/health", "", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	payload := decodeResponse(t, recorder)
	if payload["ok"] != true {
		t.Errorf("expected ok=true, got %v", payload)
	}
}

func TestPromptListingIsPublic(t *testing.T) {
	handler, _ := newTestHandler(t, &fakeStore{})

	recorder := doRequest(t, handler, http.MethodGet, "/api/prompts", "", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200 without a session, got %d", recorder.Code)
	}
}

func TestPromptsRequireSession(t *testing.T) {
	handler, _ := newTestHandler(t, &fakeStore{})

	recorder := doRequest(t, handler, http.MethodGet, "/api/prompts/upvoted/me", "", nil)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", recorder.Code)
	}

	recorder = doRequest(t, handler, http.MethodGet, "/api/prompts/upvoted/me", "garbage-token", nil)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", recorder.Code)
	}
}

func TestGetPromptInvalidIDResponse(t *testing.T) {
	handler, service := newTestHandler(t, &fakeStore{})
	token := tokenFor(t, service, util.NewID("usr"), "Riley")

	recorder := doRequest(t, handler, http.MethodGet, "/api/prompts/nonsense", token, nil)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
	payload := decodeResponse(t, recorder)
	if payload["message"] != "Invalid prompt ID" {
		t.Errorf("unexpected error message %v", payload["message"])
	}
}

func TestUpvoteEndpointMessages(t *testing.T) {
	promptID := util.NewID("pmt")
	userID := util.NewID("usr")
	upvoters := map[string]struct{}{}
	fake := &fakeStore{
		toggleUpvoteFn: func(_ context.Context, _, uid string) (bool, int, error) {
			if _, ok := upvoters[uid]; ok {
				delete(upvoters, uid)
				return false, len(upvoters), nil
			}
			upvoters[uid] = struct{}{}
			return true, len(upvoters), nil
		},
	}
	handler, service := newTestHandler(t, fake)
	token := tokenFor(t, service, userID, "Riley")
	path := "/api/prompts/" + promptID + "/upvote"

	recorder := doRequest(t, handler, http.MethodPut, path, token, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	payload := decodeResponse(t, recorder)
	if payload["message"] != "Upvoted" || payload["hasUpvoted"] != true {
		t.Errorf("unexpected first toggle payload %v", payload)
	}

	recorder = doRequest(t, handler, http.MethodPut, path, token, nil)
	payload = decodeResponse(t, recorder)
	if payload["message"] != "Upvote removed" || payload["hasUpvoted"] != false {
		t.Errorf("unexpected second toggle payload %v", payload)
	}
	if payload["upvotes"] != float64(0) {
		t.Errorf("expected upvotes back to 0, got %v", payload["upvotes"])
	}
	if payload["promptId"] != promptID {
		t.Errorf("expected promptId %q echoed, got %v", promptID, payload["promptId"])
	}
}

func TestApproveEndpointForbidden(t *testing.T) {
	ownerID := util.NewID("usr")
	fake := &fakeStore{
		getPromptOwnerFn: func(context.Context, string) (string, error) {
			return ownerID, nil
		},
	}
	handler, service := newTestHandler(t, fake)
	token := tokenFor(t, service, util.NewID("usr"), "Casey")

	path := "/api/prompts/" + util.NewID("pmt") + "/approve/" + util.NewID("upd")
	recorder := doRequest(t, handler, http.MethodPut, path, token, nil)
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", recorder.Code)
	}
	payload := decodeResponse(t, recorder)
	if payload["message"] != "Not authorized to approve updates" {
		t.Errorf("unexpected error message %v", payload["message"])
	}
}

func TestApproveEndpointSuccess(t *testing.T) {
	ownerID := util.NewID("usr")
	promptID := util.NewID("pmt")
	updateID := util.NewID("upd")
	fake := &fakeStore{
		getPromptOwnerFn: func(context.Context, string) (string, error) {
			return ownerID, nil
		},
		approvePendingFn: func(_ context.Context, pid, uid, _ string) (store.Prompt, error) {
			return store.Prompt{
				ID:   pid,
				Body: "v2 text",
				Versions: []store.Version{
					{Version: 1, Body: "v1 text"},
					{Version: 2, Body: "v2 text"},
				},
				PendingUpdates: []store.PendingUpdate{{ID: uid, Status: store.UpdateApproved}},
			}, nil
		},
	}
	handler, service := newTestHandler(t, fake)
	token := tokenFor(t, service, ownerID, "Riley")

	path := "/api/prompts/" + promptID + "/approve/" + updateID
	recorder := doRequest(t, handler, http.MethodPut, path, token, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	payload := decodeResponse(t, recorder)
	if payload["message"] != "Prompt update approved and applied" {
		t.Errorf("unexpected message %v", payload["message"])
	}
	updatedPrompt, ok := payload["updatedPrompt"].(map[string]any)
	if !ok {
		t.Fatalf("expected updatedPrompt object, got %v", payload["updatedPrompt"])
	}
	if updatedPrompt["body"] != "v2 text" {
		t.Errorf("expected approved body, got %v", updatedPrompt["body"])
	}
}

func TestRejectEndpointSuccess(t *testing.T) {
	ownerID := util.NewID("usr")
	promptID := util.NewID("pmt")
	updateID := util.NewID("upd")
	fake := &fakeStore{
		getPromptOwnerFn: func(context.Context, string) (string, error) {
			return ownerID, nil
		},
		rejectPendingFn: func(_ context.Context, pid, uid, _ string) (store.Prompt, error) {
			return store.Prompt{
				ID:             pid,
				Body:           "v1 text",
				PendingUpdates: []store.PendingUpdate{{ID: uid, Status: store.UpdateRejected}},
			}, nil
		},
	}
	handler, service := newTestHandler(t, fake)
	token := tokenFor(t, service, ownerID, "Riley")

	path := "/api/prompts/" + promptID + "/reject/" + updateID
	recorder := doRequest(t, handler, http.MethodPut, path, token, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	payload := decodeResponse(t, recorder)
	if payload["message"] != "Prompt update rejected" {
		t.Errorf("unexpected message %v", payload["message"])
	}
	if payload["promptId"] != promptID || payload["updateId"] != updateID {
		t.Errorf("expected ids echoed, got %v", payload)
	}
}

func TestRequestUpdateEndpointMessages(t *testing.T) {
	ownerID := util.NewID("usr")
	promptID := util.NewID("pmt")
	fake := &fakeStore{
		getPromptOwnerFn: func(context.Context, string) (string, error) {
			return ownerID, nil
		},
		appendVersionFn: func(_ context.Context, id, body, _ string) (store.Prompt, error) {
			return store.Prompt{ID: id, Body: body}, nil
		},
		insertPendingFn: func(_ context.Context, update store.PendingUpdate) (store.Prompt, error) {
			return store.Prompt{ID: update.PromptID, PendingUpdates: []store.PendingUpdate{update}}, nil
		},
	}
	handler, service := newTestHandler(t, fake)
	path := "/api/prompts/" + promptID + "/request-update"
	body := map[string]string{"suggestedBody": "Improved body"}

	ownerToken := tokenFor(t, service, ownerID, "Riley")
	recorder := doRequest(t, handler, http.MethodPost, path, ownerToken, body)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200 for owner edit, got %d", recorder.Code)
	}
	payload := decodeResponse(t, recorder)
	if payload["message"] != "Prompt updated successfully by owner" {
		t.Errorf("unexpected owner message %v", payload["message"])
	}
	updatedPrompt, ok := payload["updatedPrompt"].(map[string]any)
	if !ok {
		t.Fatalf("expected updatedPrompt object, got %v", payload["updatedPrompt"])
	}
	if updatedPrompt["body"] != "Improved body" {
		t.Errorf("expected updated body, got %v", updatedPrompt["body"])
	}

	collaboratorToken := tokenFor(t, service, util.NewID("usr"), "Casey")
	recorder = doRequest(t, handler, http.MethodPost, path, collaboratorToken, body)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected 201 for queued suggestion, got %d", recorder.Code)
	}
	payload = decodeResponse(t, recorder)
	if payload["message"] != "Update request submitted successfully" {
		t.Errorf("unexpected collaborator message %v", payload["message"])
	}
	if payload["promptId"] != promptID {
		t.Errorf("expected promptId %q echoed, got %v", promptID, payload["promptId"])
	}
	pendingUpdate, ok := payload["pendingUpdate"].(map[string]any)
	if !ok {
		t.Fatalf("expected pendingUpdate object, got %v", payload["pendingUpdate"])
	}
	if pendingUpdate["status"] != "pending" {
		t.Errorf("expected pending status, got %v", pendingUpdate["status"])
	}
}

func TestPendingUpdatesLimitValidation(t *testing.T) {
	handler, service := newTestHandler(t, &fakeStore{})
	token := tokenFor(t, service, util.NewID("usr"), "Riley")

	recorder := doRequest(t, handler, http.MethodGet, "/api/prompts/pending?limit=abc", token, nil)
	if recorder.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", recorder.Code)
	}
}

func TestJoinWorkspaceMessages(t *testing.T) {
	workspaceID := util.NewID("wks")
	members := map[string]struct{}{}
	fake := &fakeStore{
		getWorkspaceFn: func(context.Context, string) (store.Workspace, error) {
			return store.Workspace{ID: workspaceID}, nil
		},
		addMemberFn: func(_ context.Context, _, userID string) (bool, error) {
			if _, ok := members[userID]; ok {
				return false, nil
			}
			members[userID] = struct{}{}
			return true, nil
		},
	}
	handler, service := newTestHandler(t, fake)
	token := tokenFor(t, service, util.NewID("usr"), "Riley")
	path := "/api/workspaces/" + workspaceID + "/join"

	recorder := doRequest(t, handler, http.MethodPost, path, token, nil)
	payload := decodeResponse(t, recorder)
	if payload["message"] != "Successfully joined workspace" {
		t.Errorf("unexpected first join message %v", payload["message"])
	}

	recorder = doRequest(t, handler, http.MethodPost, path, token, nil)
	payload = decodeResponse(t, recorder)
	if payload["message"] != "Already a member of this workspace" {
		t.Errorf("unexpected repeat join message %v", payload["message"])
	}
}

func TestRegisterEndpointValidation(t *testing.T) {
	handler, _ := newTestHandler(t, &fakeStore{})

	recorder := doRequest(t, handler, http.MethodPost, "/api/users/register", "", map[string]string{"name": "Riley"})
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
}

func TestCreatePromptEndpoint(t *testing.T) {
	fake := &fakeStore{
		insertPromptFn: func(_ context.Context, prompt store.Prompt) (store.Prompt, error) {
			prompt.Versions = []store.Version{{Version: 1, Body: prompt.Body, EditedBy: prompt.CreatedBy}}
			return prompt, nil
		},
	}
	handler, service := newTestHandler(t, fake)
	token := tokenFor(t, service, util.NewID("usr"), "Riley")

	recorder := doRequest(t, handler, http.MethodPost, "/api/prompts", token, map[string]string{
		"title": "Summarize",
		"body":  "Summarize the following text.",
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", recorder.Code, recorder.Body.String())
	}
	payload := decodeResponse(t, recorder)
	if payload["title"] != "Summarize" {
		t.Errorf("unexpected prompt payload %v", payload)
	}
}
