package repos

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/contrimap/contrimap/internal/analysis"
	"github.com/contrimap/contrimap/internal/db"
	"github.com/contrimap/contrimap/internal/github"
	"github.com/contrimap/contrimap/internal/queue"
)

// recordingQueue captures enqueued jobs instead of running them.
type recordingQueue struct {
	jobs []queue.Job
	err  error
}

func (q *recordingQueue) Enqueue(_ context.Context, job queue.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *recordingQueue) Consume(ctx context.Context, _ queue.Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

func (q *recordingQueue) Close() error { return nil }

type fakeIssueLister struct {
	issues []github.Issue
	err    error
}

func (f *fakeIssueLister) GetBeginnerIssues(_ context.Context, _, _ string) ([]github.Issue, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.issues, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Cached  bool            `json:"cached"`
}

func setupRoutes(t *testing.T) (*chi.Mux, *analysis.Store, *recordingQueue, *fakeIssueLister) {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	store := analysis.NewStore(database)
	jobs := &recordingQueue{}
	issues := &fakeIssueLister{}

	r := chi.NewRouter()
	RegisterRoutes(r, store, jobs, issues)
	return r, store, jobs, issues
}

func doRequest(t *testing.T, r http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decoding envelope from %q: %v", w.Body.String(), err)
	}
	return w, env
}

func TestAnalyzeNewRepository(t *testing.T) {
	r, _, jobs, _ := setupRoutes(t)

	w, env := doRequest(t, r, http.MethodPost, "/api/repos/analyze",
		`{"repoUrl": "https://github.com/acme/widgets"}`)
	if w.Code != http.StatusOK || !env.Success {
		t.Fatalf("status = %d, message = %q", w.Code, env.Message)
	}

	var payload struct {
		AnalysisID string `json:"analysisId"`
		Status     string `json:"status"`
	}
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		t.Fatalf("decoding data: %v", err)
	}
	if payload.AnalysisID == "" {
		t.Error("analysisId missing")
	}
	if payload.Status != "processing" {
		t.Errorf("status = %q, want processing", payload.Status)
	}

	if len(jobs.jobs) != 1 {
		t.Fatalf("len(jobs) = %d, want 1", len(jobs.jobs))
	}
	if jobs.jobs[0].Owner != "acme" || jobs.jobs[0].Name != "widgets" {
		t.Errorf("job = %+v", jobs.jobs[0])
	}
}

func TestAnalyzeRequiresValidURL(t *testing.T) {
	r, _, jobs, _ := setupRoutes(t)

	w, _ := doRequest(t, r, http.MethodPost, "/api/repos/analyze", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing URL: status = %d, want 400", w.Code)
	}

	w, _ = doRequest(t, r, http.MethodPost, "/api/repos/analyze",
		`{"repoUrl": "https://gitlab.com/acme/widgets"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("non-github URL: status = %d, want 400", w.Code)
	}

	if len(jobs.jobs) != 0 {
		t.Errorf("invalid requests enqueued %d jobs", len(jobs.jobs))
	}
}

func TestAnalyzeCompletedReturnsCachedRecord(t *testing.T) {
	r, store, jobs, _ := setupRoutes(t)
	ctx := context.Background()

	rec, err := store.Create(ctx, "https://github.com/acme/widgets", "acme", "widgets")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	rec.Status = analysis.StatusCompleted
	if err := store.Update(ctx, rec); err != nil {
		t.Fatalf("Update: %v", err)
	}

	w, env := doRequest(t, r, http.MethodPost, "/api/repos/analyze",
		`{"repoUrl": "https://github.com/acme/widgets"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !env.Cached {
		t.Error("completed record should come back with cached=true")
	}

	var got analysis.Record
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatalf("decoding record: %v", err)
	}
	if got.FullName != "acme/widgets" {
		t.Errorf("FullName = %q", got.FullName)
	}
	if len(jobs.jobs) != 0 {
		t.Errorf("completed record re-enqueued %d jobs", len(jobs.jobs))
	}
}

func TestAnalyzeInFlightDoesNotReEnqueue(t *testing.T) {
	r, store, jobs, _ := setupRoutes(t)

	if _, err := store.Create(context.Background(), "https://github.com/acme/widgets", "acme", "widgets"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	w, env := doRequest(t, r, http.MethodPost, "/api/repos/analyze",
		`{"repoUrl": "https://github.com/acme/widgets"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, message = %q", w.Code, env.Message)
	}
	if len(jobs.jobs) != 0 {
		t.Errorf("in-flight record enqueued %d jobs", len(jobs.jobs))
	}
}

func TestAnalyzeFailedRecordReruns(t *testing.T) {
	r, store, jobs, _ := setupRoutes(t)
	ctx := context.Background()

	rec, err := store.Create(ctx, "https://github.com/acme/widgets", "acme", "widgets")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.SetFailed(ctx, rec.ID, "boom"); err != nil {
		t.Fatalf("SetFailed: %v", err)
	}

	w, _ := doRequest(t, r, http.MethodPost, "/api/repos/analyze",
		`{"repoUrl": "https://github.com/acme/widgets"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if len(jobs.jobs) != 1 {
		t.Fatalf("failed record should re-enqueue, got %d jobs", len(jobs.jobs))
	}
	if jobs.jobs[0].AnalysisID != rec.ID {
		t.Error("rerun should reuse the existing record id")
	}

	got, _ := store.GetByID(ctx, rec.ID)
	if got.Status != analysis.StatusProcessing {
		t.Errorf("Status = %q, want processing", got.Status)
	}
}

func TestAnalyzeEnqueueFailureMarksFailed(t *testing.T) {
	r, store, jobs, _ := setupRoutes(t)
	jobs.err = errors.New("broker down")

	w, env := doRequest(t, r, http.MethodPost, "/api/repos/analyze",
		`{"repoUrl": "https://github.com/acme/widgets"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if env.Success {
		t.Error("failure envelope should have success=false")
	}

	rec, _ := store.GetByURL(context.Background(), "https://github.com/acme/widgets")
	if rec == nil || rec.Status != analysis.StatusFailed {
		t.Errorf("record = %+v, want failed", rec)
	}
}

func TestStatusRoute(t *testing.T) {
	r, store, _, _ := setupRoutes(t)
	ctx := context.Background()

	rec, err := store.Create(ctx, "https://github.com/acme/widgets", "acme", "widgets")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	w, env := doRequest(t, r, http.MethodGet, "/api/repos/analysis/"+rec.ID+"/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var payload struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		t.Fatalf("decoding data: %v", err)
	}
	if payload.Status != "processing" {
		t.Errorf("status = %q", payload.Status)
	}

	w, _ = doRequest(t, r, http.MethodGet, "/api/repos/analysis/unknown-id/status", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown id: status = %d, want 404", w.Code)
	}
}

func TestGetRecordRoute(t *testing.T) {
	r, store, _, _ := setupRoutes(t)

	if _, err := store.Create(context.Background(), "https://github.com/acme/widgets", "acme", "widgets"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	w, env := doRequest(t, r, http.MethodGet, "/api/repos/acme/widgets", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var got analysis.Record
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatalf("decoding record: %v", err)
	}
	if got.Owner != "acme" || got.Name != "widgets" {
		t.Errorf("record = %+v", got)
	}

	w, _ = doRequest(t, r, http.MethodGet, "/api/repos/nobody/nothing", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown repo: status = %d, want 404", w.Code)
	}
}

func TestBeginnerIssuesRoute(t *testing.T) {
	r, _, _, issues := setupRoutes(t)
	issues.issues = []github.Issue{
		{Number: 7, Title: "Fix the crash", Labels: []string{"good first issue"}},
	}

	w, env := doRequest(t, r, http.MethodGet, "/api/repos/acme/widgets/issues/beginner", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var got []github.Issue
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatalf("decoding issues: %v", err)
	}
	if len(got) != 1 || got[0].Number != 7 {
		t.Errorf("issues = %+v", got)
	}
}

func TestSearchRoute(t *testing.T) {
	r, store, _, _ := setupRoutes(t)
	ctx := context.Background()

	rec, err := store.Create(ctx, "https://github.com/acme/widgets", "acme", "widgets")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	rec.Status = analysis.StatusCompleted
	if err := store.Update(ctx, rec); err != nil {
		t.Fatalf("Update: %v", err)
	}

	w, env := doRequest(t, r, http.MethodGet, "/api/repos/search?query=widget", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var got []analysis.Record
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatalf("decoding records: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("len(results) = %d, want 1", len(got))
	}

	w, _ = doRequest(t, r, http.MethodGet, "/api/repos/search", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing query: status = %d, want 400", w.Code)
	}
}
