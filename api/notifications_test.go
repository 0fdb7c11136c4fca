package main

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/harlequingg/taskmanager-api/internal/notify"
)

func TestListNotificationsNewestFirst(t *testing.T) {
	env := newTestEnv(t)
	aliceID, alice := env.register(t, "Alice", "alice@example.com")
	bobID, _ := env.register(t, "Bob", "bob@example.com")

	env.store.addNotification(aliceID, 1)
	env.store.addNotification(bobID, 2)
	latest := env.store.addNotification(aliceID, 3)

	rr, body := env.do(t, http.MethodGet, "/api/v1/notifications", alice, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	list := body["data"].([]any)
	if len(list) != 2 {
		t.Fatalf("expected only Alice's 2 notifications, got %d", len(list))
	}
	if int64(list[0].(map[string]any)["id"].(float64)) != latest.ID {
		t.Fatalf("expected newest notification first")
	}

	rr, body = env.do(t, http.MethodGet, "/api/v1/notifications?limit=1", alice, nil)
	if rr.Code != http.StatusOK || len(body["data"].([]any)) != 1 {
		t.Fatalf("expected limit to apply, got %d %v", rr.Code, body)
	}

	for _, limit := range []string{"0", "abc", "101"} {
		rr, _ = env.do(t, http.MethodGet, "/api/v1/notifications?limit="+limit, alice, nil)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("limit=%s: expected 400, got %d", limit, rr.Code)
		}
	}
}

func TestMarkNotificationRead(t *testing.T) {
	env := newTestEnv(t)
	aliceID, alice := env.register(t, "Alice", "alice@example.com")
	_, bob := env.register(t, "Bob", "bob@example.com")

	n := env.store.addNotification(aliceID, 1)
	path := fmt.Sprintf("/api/v1/notifications/%d/read", n.ID)

	rr, _ := env.do(t, http.MethodPatch, path, bob, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for another user's notification, got %d", rr.Code)
	}

	rr, body := env.do(t, http.MethodPatch, path, alice, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if body["data"].(map[string]any)["read"] != true {
		t.Fatalf("expected notification to be read")
	}

	rr, _ = env.do(t, http.MethodPatch, "/api/v1/notifications/9999/read", alice, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing notification, got %d", rr.Code)
	}
}

func TestMarkAllNotificationsReadIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	aliceID, alice := env.register(t, "Alice", "alice@example.com")
	env.store.addNotification(aliceID, 1)
	env.store.addNotification(aliceID, 2)

	_, body := env.do(t, http.MethodPatch, "/api/v1/notifications/read-all", alice, nil)
	if got := body["meta"].(map[string]any)["updated"]; got != float64(2) {
		t.Fatalf("expected 2 updated, got %v", got)
	}

	rr, body := env.do(t, http.MethodPatch, "/api/v1/notifications/read-all", alice, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 on repeat, got %d", rr.Code)
	}
	if got := body["meta"].(map[string]any)["updated"]; got != float64(0) {
		t.Fatalf("expected 0 updated on repeat, got %v", got)
	}
}

func TestNotificationScanRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	id, token := env.register(t, "Alice", "alice@example.com")

	rr, _ := env.do(t, http.MethodPost, "/api/v1/notifications/scan", token, nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", rr.Code)
	}
	if len(env.scheduler.runs) != 0 {
		t.Fatalf("scan must not run for non-admin")
	}

	env.makeAdmin(t, id)
	rr, _ = env.do(t, http.MethodPost, "/api/v1/notifications/scan", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d", rr.Code)
	}
	if len(env.scheduler.runs) != 1 || env.scheduler.runs[0] != jobDueDateScan {
		t.Fatalf("expected one run of %s, got %v", jobDueDateScan, env.scheduler.runs)
	}

	env.scheduler.err = notify.ErrJobRunning
	rr, _ = env.do(t, http.MethodPost, "/api/v1/notifications/scan", token, nil)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 while a scan is running, got %d", rr.Code)
	}
}
