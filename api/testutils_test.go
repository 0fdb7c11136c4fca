package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/harlequingg/taskmanager-api/internal/data"
	"github.com/harlequingg/taskmanager-api/internal/notify"
)

type fakeStorage struct {
	mu            sync.Mutex
	users         map[int64]data.User
	tasks         map[int64]data.Task
	notifications []data.Notification
	nextID        int64

	updateUserErr error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		users: make(map[int64]data.User),
		tasks: make(map[int64]data.Task),
	}
}

func (f *fakeStorage) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeStorage) GetUserByEmail(ctx context.Context, email string) (*data.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	email = data.NormalizeEmail(email)
	for _, u := range f.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, nil
}

func (f *fakeStorage) GetUserByID(ctx context.Context, id int64) (*data.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (f *fakeStorage) GetUserByResetToken(ctx context.Context, tokenHash string, now time.Time) (*data.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ResetPasswordToken != nil && *u.ResetPasswordToken == tokenHash &&
			u.ResetPasswordExpire != nil && u.ResetPasswordExpire.After(now) {
			return &u, nil
		}
	}
	return nil, nil
}

func (f *fakeStorage) InsertUser(ctx context.Context, u *data.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u.Email = data.NormalizeEmail(u.Email)
	for _, existing := range f.users {
		if existing.Email == u.Email {
			return data.ErrDuplicateEmail
		}
	}
	u.ID = f.id()
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	u.Version = 1
	f.users[u.ID] = *u
	return nil
}

func (f *fakeStorage) UpdateUser(ctx context.Context, u *data.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateUserErr != nil {
		return f.updateUserErr
	}
	existing, ok := f.users[u.ID]
	if !ok || existing.Version != u.Version {
		return data.ErrEditConflict
	}
	u.Email = data.NormalizeEmail(u.Email)
	for id, other := range f.users {
		if id != u.ID && other.Email == u.Email {
			return data.ErrDuplicateEmail
		}
	}
	u.Version++
	u.UpdatedAt = time.Now()
	f.users[u.ID] = *u
	return nil
}

func (f *fakeStorage) InsertTask(ctx context.Context, t *data.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t.ID = f.id()
	t.CreatedAt = time.Now().Add(time.Duration(t.ID) * time.Millisecond)
	t.UpdatedAt = t.CreatedAt
	t.Version = 1
	f.tasks[t.ID] = *t
	return nil
}

func (f *fakeStorage) GetTaskForUser(ctx context.Context, id, userID int64) (*data.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	if !ok || t.UserID != userID {
		return nil, nil
	}
	return &t, nil
}

func (f *fakeStorage) ListTasksForUser(ctx context.Context, userID int64, filter data.TaskFilter) ([]data.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []data.Task
	q := strings.ToLower(filter.Query)
	for _, t := range f.tasks {
		if t.UserID != userID {
			continue
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if filter.Priority != "" && t.Priority != filter.Priority {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(t.Title), q) && !strings.Contains(strings.ToLower(t.Description), q) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeStorage) UpdateTask(ctx context.Context, t *data.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.tasks[t.ID]
	if !ok || existing.UserID != t.UserID || existing.Version != t.Version {
		return data.ErrEditConflict
	}
	t.Version++
	t.UpdatedAt = time.Now()
	f.tasks[t.ID] = *t
	return nil
}

func (f *fakeStorage) DeleteTaskForUser(ctx context.Context, id, userID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	if !ok || t.UserID != userID {
		return false, nil
	}
	delete(f.tasks, id)
	return true, nil
}

func (f *fakeStorage) TaskStatsForUser(ctx context.Context, userID int64) (data.TaskStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var s data.TaskStats
	for _, t := range f.tasks {
		if t.UserID != userID {
			continue
		}
		s.Total++
		switch t.Status {
		case data.TaskStatusPending:
			s.Pending++
		case data.TaskStatusInProgress:
			s.InProgress++
		case data.TaskStatusCompleted:
			s.Completed++
		}
	}
	return s, nil
}

func (f *fakeStorage) ListNotificationsForUser(ctx context.Context, userID int64, limit int) ([]data.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []data.Notification
	for i := len(f.notifications) - 1; i >= 0 && len(out) < limit; i-- {
		if f.notifications[i].UserID == userID {
			out = append(out, f.notifications[i])
		}
	}
	return out, nil
}

func (f *fakeStorage) MarkNotificationRead(ctx context.Context, id, userID int64) (*data.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.notifications {
		n := &f.notifications[i]
		if n.ID == id && n.UserID == userID {
			n.Read = true
			out := *n
			return &out, nil
		}
	}
	return nil, nil
}

func (f *fakeStorage) MarkAllNotificationsRead(ctx context.Context, userID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var updated int64
	for i := range f.notifications {
		n := &f.notifications[i]
		if n.UserID == userID && !n.Read {
			n.Read = true
			updated++
		}
	}
	return updated, nil
}

func (f *fakeStorage) addNotification(userID, taskID int64) data.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := data.Notification{
		ID:           f.id(),
		CreatedAt:    time.Now(),
		UserID:       userID,
		TaskID:       taskID,
		Type:         data.NotificationDueSoon,
		Title:        "Task Due Soon",
		Message:      "Task is due within 24 hours",
		Priority:     data.NotificationPriorityNormal,
		ScheduledFor: time.Now(),
	}
	f.notifications = append(f.notifications, n)
	return n
}

type sentMail struct {
	recipient string
	template  string
	data      map[string]any
}

type fakeMailer struct {
	err  error
	sent []sentMail
}

func (m *fakeMailer) Send(recipient, templateFile string, td any) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{recipient, templateFile, td.(map[string]any)})
	return nil
}

type fakeScheduler struct {
	err  error
	runs []string
}

func (s *fakeScheduler) RunNow(ctx context.Context, name string) error {
	s.runs = append(s.runs, name)
	return s.err
}

var _ jobRunner = (*notify.Scheduler)(nil)

type testEnv struct {
	app       *application
	store     *fakeStorage
	mailer    *fakeMailer
	scheduler *fakeScheduler
	handler   http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	var cfg config
	cfg.env = "testing"
	cfg.frontendURL = "http://frontend.test"
	cfg.jwt.secret = "test-secret"
	cfg.jwt.ttl = time.Hour
	cfg.cors.trustedOrigins = []string{"http://frontend.test"}

	env := &testEnv{
		store:     newFakeStorage(),
		mailer:    &fakeMailer{},
		scheduler: &fakeScheduler{},
	}
	env.app = &application{
		config:    cfg,
		logger:    logger,
		storage:   env.store,
		mailer:    env.mailer,
		scheduler: env.scheduler,
	}
	env.handler = env.app.routes()
	return env
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var rdr io.Reader
	if body != nil {
		js, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rdr = bytes.NewReader(js)
	}
	req := httptest.NewRequest(method, path, rdr)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)

	var decoded map[string]any
	if rr.Body.Len() > 0 && strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rr.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("decode response %q: %v", rr.Body.String(), err)
		}
	}
	return rr, decoded
}

// register creates a user through the API and returns its ID and token.
func (e *testEnv) register(t *testing.T, name, email string) (int64, string) {
	t.Helper()
	rr, body := e.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name": name, "email": email, "password": "secret123",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("register %s: expected 201, got %d: %s", email, rr.Code, rr.Body.String())
	}
	user := body["data"].(map[string]any)
	return int64(user["id"].(float64)), body["token"].(string)
}

func (e *testEnv) makeAdmin(t *testing.T, id int64) {
	t.Helper()
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	u := e.store.users[id]
	u.IsAdmin = true
	e.store.users[id] = u
}

var errSMTPDown = errors.New("smtp: connection refused")
