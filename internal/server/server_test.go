package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"conciera/internal/db"
	"conciera/internal/domain"
	"conciera/internal/events"
	"conciera/internal/migrate"
	"conciera/internal/repo"
	"conciera/internal/server"
	"conciera/internal/taskstore"
	"conciera/internal/workflow"
)

var fixedNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

type testAPI struct {
	Handler http.Handler
	Repo    repo.Repo
	Ctx     context.Context
}

func newTestAPI(t *testing.T) testAPI {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	ctx := context.Background()
	r := repo.Repo{DB: conn}
	created := fixedNow.Format(time.RFC3339)

	seed := func(err error) {
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	seed(r.InsertZone(ctx, domain.Zone{ID: "zone-1", Name: "Centre", CreatedAt: created}))
	seed(r.InsertResidence(ctx, domain.Residence{ID: "res-1", Name: "Les Pins", ShortCode: "LP", ZoneID: "zone-1"}, created))
	seed(r.InsertApartment(ctx, domain.Apartment{ID: "apt-1", Name: "LP-101", ShortCode: "101", ResidenceID: "res-1"}, created))
	seed(r.InsertUser(ctx, domain.User{ID: "user-agent", AuthID: "auth-agent", FirstName: "Marie", Role: "agent", Active: true, ZoneIDs: []string{"zone-1"}, CreatedAt: created}))
	seed(r.InsertUser(ctx, domain.User{ID: "user-admin", AuthID: "auth-admin", FirstName: "Claire", Role: "admin", Active: true, ZoneIDs: []string{"zone-1"}, CreatedAt: created}))

	taskType, err := r.GetTaskTypeByCode(ctx, "sortie")
	if err != nil {
		t.Fatalf("task type: %v", err)
	}
	status, err := r.GetValidationStatusByCode(ctx, domain.StatusToDo)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	seed(r.InsertTask(ctx, domain.Task{
		ID: "task-1", DueDate: "2025-03-14", AgentID: "user-agent", ApartmentID: "apt-1",
		TypeID: taskType.ID, StatusID: status.ID, CreatedAt: created, UpdatedAt: created,
	}))

	ev := events.Writer{DB: conn, Now: func() time.Time { return fixedNow }}
	handler, err := server.New(server.Config{
		Repo: r,
		Engine: func(tasks *taskstore.Store) *workflow.Engine {
			eng := workflow.NewEngine(r, tasks, ev, zerolog.Nop())
			eng.Now = func() time.Time { return fixedNow }
			return eng
		},
		Events: ev,
		Auth:   server.AuthConfig{AllowLegacyAuthHeader: true, Logger: zerolog.Nop()},
		Logger: zerolog.Nop(),
		Now:    func() time.Time { return fixedNow },
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return testAPI{Handler: handler, Repo: r, Ctx: ctx}
}

func (a testAPI) do(t *testing.T, method, path, authID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authID != "" {
		req.Header.Set("X-Auth-Id", authID)
	}
	rec := httptest.NewRecorder()
	a.Handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealthRequiresNoAuth(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(t, http.MethodGet, "/v0/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestMissingAuthRejected(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(t, http.MethodGet, "/v0/tasks", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decode[struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}](t, rec)
	if body.Error.Code != "unauthorized" {
		t.Fatalf("code = %q", body.Error.Code)
	}
}

func TestMe(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(t, http.MethodGet, "/v0/me", "auth-agent", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	u := decode[server.UserResponse](t, rec)
	if u.FirstName != "Marie" || u.Role != "agent" {
		t.Fatalf("unexpected user: %+v", u)
	}

	rec = api.do(t, http.MethodGet, "/v0/me", "auth-nobody", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unknown identity: status = %d", rec.Code)
	}
}

func TestListTasks(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(t, http.MethodGet, "/v0/tasks?date=2025-03-14", "auth-agent", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	body := decode[struct {
		Items []server.TaskResponse `json:"items"`
	}](t, rec)
	if len(body.Items) != 1 {
		t.Fatalf("items = %d", len(body.Items))
	}
	task := body.Items[0]
	if task.StatusLabel != "À faire" || task.TypeBadge != "S" || task.Apartment != "LP-101" {
		t.Fatalf("unexpected task: %+v", task)
	}
	if task.ReadOnly {
		t.Fatal("fresh task must be editable")
	}

	rec = api.do(t, http.MethodGet, "/v0/tasks?date=2025-03-20", "auth-agent", nil)
	body = decode[struct {
		Items []server.TaskResponse `json:"items"`
	}](t, rec)
	if len(body.Items) != 0 {
		t.Fatalf("wrong-day items = %d", len(body.Items))
	}
}

func TestVerificationProblemFlow(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(t, http.MethodPost, "/v0/tasks/task-1/verification", "auth-agent", server.VerificationRequest{
		StartTime: "09:00",
		EndTime:   "10:30",
		Comment:   "Fuite sous l'évier",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	task := decode[server.TaskResponse](t, rec)
	if task.StatusCode != domain.StatusProblem || !task.Problem {
		t.Fatalf("task = %+v", task)
	}
	if task.Duration != "1h30" {
		t.Fatalf("duration = %q", task.Duration)
	}

	// the zone admin got an urgent message
	rec = api.do(t, http.MethodGet, "/v0/messages", "auth-admin", nil)
	inbox := decode[struct {
		Items       []server.MessageResponse `json:"items"`
		UnreadCount int                      `json:"unread_count"`
	}](t, rec)
	if inbox.UnreadCount != 1 || len(inbox.Items) != 1 {
		t.Fatalf("inbox = %+v", inbox)
	}
	msg := inbox.Items[0]
	if msg.Priority != domain.PriorityUrgent {
		t.Fatalf("priority = %q", msg.Priority)
	}

	// banner surfaces it until dismissed; dismissal keeps it unread
	rec = api.do(t, http.MethodGet, "/v0/banner", "auth-admin", nil)
	bannerBody := decode[struct {
		Message *server.MessageResponse `json:"message"`
	}](t, rec)
	if bannerBody.Message == nil || bannerBody.Message.ID != msg.ID {
		t.Fatalf("banner = %+v", bannerBody)
	}
	rec = api.do(t, http.MethodPost, "/v0/banner/"+msg.ID+"/dismiss", "auth-admin", nil)
	if rec.Code != http.StatusOK && rec.Code != http.StatusNoContent {
		t.Fatalf("dismiss status = %d", rec.Code)
	}
	rec = api.do(t, http.MethodGet, "/v0/banner", "auth-admin", nil)
	bannerBody = decode[struct {
		Message *server.MessageResponse `json:"message"`
	}](t, rec)
	if bannerBody.Message != nil {
		t.Fatalf("banner after dismiss = %+v", bannerBody.Message)
	}
	rec = api.do(t, http.MethodGet, "/v0/messages", "auth-admin", nil)
	inbox = decode[struct {
		Items       []server.MessageResponse `json:"items"`
		UnreadCount int                      `json:"unread_count"`
	}](t, rec)
	if inbox.UnreadCount != 1 {
		t.Fatalf("dismiss must not mark read, unread = %d", inbox.UnreadCount)
	}
}

func TestMessageLifecycle(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(t, http.MethodPost, "/v0/messages", "auth-admin", server.ComposeMessageRequest{
		RecipientID: "user-agent",
		Body:        "Pensez au linge",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("compose status = %d: %s", rec.Code, rec.Body.String())
	}
	sent := decode[server.MessageResponse](t, rec)
	if sent.Priority != domain.PriorityNormal {
		t.Fatalf("default priority = %q", sent.Priority)
	}

	rec = api.do(t, http.MethodPost, "/v0/messages/"+sent.ID+"/read", "auth-agent", nil)
	inbox := decode[struct {
		UnreadCount int `json:"unread_count"`
	}](t, rec)
	if inbox.UnreadCount != 0 {
		t.Fatalf("unread after read = %d", inbox.UnreadCount)
	}

	rec = api.do(t, http.MethodPost, "/v0/messages/nope/read", "auth-agent", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown message read status = %d", rec.Code)
	}

	rec = api.do(t, http.MethodPost, "/v0/messages/"+sent.ID+"/archive", "auth-agent", nil)
	archived := decode[struct {
		Items []server.MessageResponse `json:"items"`
	}](t, rec)
	if len(archived.Items) != 0 {
		t.Fatalf("inbox after archive = %d items", len(archived.Items))
	}

	rec = api.do(t, http.MethodDelete, "/v0/messages/"+sent.ID, "auth-agent", nil)
	if rec.Code != http.StatusNoContent && rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if _, err := api.Repo.GetMessage(api.Ctx, sent.ID); err == nil {
		t.Fatal("message still present after delete")
	}
}

func TestPatchValidatedTaskRejected(t *testing.T) {
	api := newTestAPI(t)
	status, err := api.Repo.GetValidationStatusByCode(api.Ctx, domain.StatusConciergeValidated)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	err = api.Repo.UpdateTask(api.Ctx, "task-1", repo.TaskPatch{
		StatusID:  &status.ID,
		UpdatedAt: fixedNow.Format(time.RFC3339),
	})
	if err != nil {
		t.Fatalf("set status: %v", err)
	}
	comment := "tard"
	rec := api.do(t, http.MethodPatch, "/v0/tasks/task-1", "auth-agent", map[string]any{"comment": comment})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
}
