package server_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/raysh454/clipper/internal/app"
	"github.com/raysh454/clipper/internal/registry"
	"github.com/raysh454/clipper/internal/server"
	"github.com/raysh454/clipper/internal/testutil"
	"github.com/raysh454/clipper/internal/ytdlp"
)

type handleFunc = func(context.Context, []string, func(string)) (*ytdlp.Result, error)

func newTestServer(t *testing.T, handle handleFunc) (*server.Server, *app.Config) {
	t.Helper()

	appCfg := app.DefaultConfig()
	appCfg.StorageRoot = t.TempDir()

	cfg := server.Config{
		ListenAddr: ":0",
		AppConfig:  appCfg,
		Logger:     &testutil.DummyLogger{},
		Runner:     &testutil.FakeRunner{Handle: handle},
	}

	s, err := server.NewServer(cfg)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, appCfg
}

func doJSON(t *testing.T, s http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON response: %v (body: %s)", err, rec.Body.String())
	}
}

func downloadDirEmpty(t *testing.T, cfg *app.Config) {
	t.Helper()
	entries, err := os.ReadDir(cfg.DownloadDir)
	if err != nil && !os.IsNotExist(err) {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("download dir not empty: %d entries", len(entries))
	}
}

// ─── CORS / health ─────────────────────────────────────────────────────

func TestServer_CORS_HeaderPresent(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, nil)

	rec := doJSON(t, s, "GET", "/api/cookies-status", "")

	if origin := rec.Header().Get("Access-Control-Allow-Origin"); origin != "*" {
		t.Errorf("expected CORS origin *, got %q", origin)
	}
	if exposed := rec.Header().Get("Access-Control-Expose-Headers"); !strings.Contains(exposed, "Content-Disposition") {
		t.Errorf("Content-Disposition not exposed: %q", exposed)
	}
}

func TestServer_OptionsPreflight(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, nil)

	rec := doJSON(t, s, "OPTIONS", "/api/clip", "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204 for OPTIONS, got %d", rec.Code)
	}
	if methods := rec.Header().Get("Access-Control-Allow-Methods"); methods != "POST" {
		t.Errorf("Allow-Methods = %q", methods)
	}
}

func TestServer_Health(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, nil)

	rec := doJSON(t, s, "GET", "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := rec.Body.String(); body != "Clipper Service Ready" {
		t.Errorf("body = %q", body)
	}
}

// ─── Clip ──────────────────────────────────────────────────────────────

func TestServer_Clip_StreamsFileAndCleansUp(t *testing.T) {
	t.Parallel()
	s, cfg := newTestServer(t, testutil.FakeTool("My Clip", 600))

	rec := doJSON(t, s, "POST", "/api/clip", `{"url":"https://www.youtube.com/watch?v=abc&list=PL1","startTime":"0:05","endTime":15}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Body.String(); got != "fake mp4 data" {
		t.Errorf("body = %q", got)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "video/mp4" {
		t.Errorf("Content-Type = %q", ct)
	}

	jobID := rec.Header().Get("X-Job-ID")
	if _, err := uuid.Parse(jobID); err != nil {
		t.Fatalf("X-Job-ID %q is not a UUID", jobID)
	}
	cd := rec.Header().Get("Content-Disposition")
	if !strings.HasPrefix(cd, "attachment") || !strings.Contains(cd, jobID+"_My Clip.mp4") {
		t.Errorf("Content-Disposition = %q", cd)
	}

	downloadDirEmpty(t, cfg)
}

func TestServer_Clip_ValidationErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{"missing url", `{"startTime":"0","endTime":"10"}`, "URL is required"},
		{"empty body", ``, "URL is required"},
		{"invalid json", `{nope`, "invalid JSON"},
		{"too long", `{"url":"https://example.com/v","startTime":"0","endTime":"25:00"}`, "Clip too long (25m). Max allowed is 20 minutes."},
		{"inverted", `{"url":"https://example.com/v","startTime":"1:00","endTime":"0:30"}`, "Invalid start or end time."},
		{"garbage time", `{"url":"https://example.com/v","startTime":"soon","endTime":"0:30"}`, "Invalid start or end time."},
		{"beyond duration", `{"url":"https://example.com/v","startTime":"15:00","endTime":"16:00"}`, "Start time is beyond video duration."},
		{"bad job id", `{"url":"https://example.com/v","jobId":"42"}`, "job id must be a UUID"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s, _ := newTestServer(t, testutil.FakeTool("Demo", 600))

			rec := doJSON(t, s, "POST", "/api/clip", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
			var resp server.ErrorResponse
			decodeJSON(t, rec, &resp)
			if resp.Error != tt.wantMsg {
				t.Errorf("error = %q, want %q", resp.Error, tt.wantMsg)
			}
		})
	}
}

func TestServer_Clip_ToolFailure(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, func(ctx context.Context, args []string, onLine func(string)) (*ytdlp.Result, error) {
		return &ytdlp.Result{ExitCode: 1, Stderr: "ERROR: Sign in to confirm your age"}, nil
	})

	rec := doJSON(t, s, "POST", "/api/clip", `{"url":"https://example.com/v","startTime":"0","endTime":"10"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var resp server.VideoErrorResponse
	decodeJSON(t, rec, &resp)
	if resp.Error != "Video is age-restricted." {
		t.Errorf("error = %q", resp.Error)
	}
	if !strings.Contains(resp.Details, "Sign in to confirm") {
		t.Errorf("details = %q", resp.Details)
	}
}

func TestServer_Clip_ToolMissing(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, func(ctx context.Context, args []string, onLine func(string)) (*ytdlp.Result, error) {
		return nil, ytdlp.ErrNotInstalled
	})

	rec := doJSON(t, s, "POST", "/api/clip", `{"url":"https://example.com/v"}`)
	var resp server.VideoErrorResponse
	decodeJSON(t, rec, &resp)
	if rec.Code != http.StatusInternalServerError || resp.Error != "Video tool is not installed on the server." {
		t.Errorf("got %d %+v", rec.Code, resp)
	}
}

func TestServer_Clip_ReusedJobIDConflicts(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, testutil.FakeTool("Demo", 600))

	body := `{"url":"https://example.com/v","startTime":"0","endTime":"10","jobId":"` + uuid.New().String() + `"}`
	if rec := doJSON(t, s, "POST", "/api/clip", body); rec.Code != http.StatusOK {
		t.Fatalf("first clip: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	rec := doJSON(t, s, "POST", "/api/clip", body)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestServer_Clip_BodyTooLarge(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, testutil.FakeTool("Demo", 600))

	body := `{"url":"https://example.com/v?pad=` + strings.Repeat("a", 128<<10) + `"}`
	rec := doJSON(t, s, "POST", "/api/clip", body)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d: %s", rec.Code, rec.Body.String())
	}
}

// ─── Cookies ───────────────────────────────────────────────────────────

func TestServer_Cookies_StatusAndUpdate(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, nil)

	var before map[string]any
	rec := doJSON(t, s, "GET", "/api/cookies-status", "")
	decodeJSON(t, rec, &before)
	if before["exists"] != false || before["hasContent"] != false {
		t.Errorf("initial status = %v", before)
	}

	content := "# Netscape HTTP Cookie File\\n.youtube.com\\tTRUE\\t/\\tTRUE\\t0\\tSID\\tabc\\n"
	rec = doJSON(t, s, "POST", "/api/update-cookies", `{"cookies":"`+content+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var upd server.UpdateCookiesResponse
	decodeJSON(t, rec, &upd)
	if !upd.Success || !strings.Contains(upd.Message, "success") {
		t.Errorf("update response = %+v", upd)
	}

	var after map[string]any
	rec = doJSON(t, s, "GET", "/api/cookies-status", "")
	decodeJSON(t, rec, &after)
	if after["exists"] != true || after["hasContent"] != true {
		t.Errorf("status after update = %v", after)
	}
	if size, _ := after["size"].(float64); size <= 0 {
		t.Errorf("size = %v", after["size"])
	}
	if after["lastModified"] == nil {
		t.Errorf("lastModified missing")
	}
}

func TestServer_Cookies_UpdateRejectsEmpty(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, nil)

	for _, body := range []string{`{"cookies":""}`, `{"cookies":"   \n"}`, `{}`} {
		rec := doJSON(t, s, "POST", "/api/update-cookies", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", body, rec.Code)
		}
	}
}

func TestServer_Cookies_UpdateSizeLimit(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, nil)

	large := strings.Repeat("x", 1<<20)
	if rec := doJSON(t, s, "POST", "/api/update-cookies", `{"cookies":"`+large+`"}`); rec.Code != http.StatusOK {
		t.Errorf("1 MiB cookies: expected 200, got %d", rec.Code)
	}

	huge := strings.Repeat("x", 5<<20)
	if rec := doJSON(t, s, "POST", "/api/update-cookies", `{"cookies":"`+huge+`"}`); rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("5 MiB cookies: expected 413, got %d", rec.Code)
	}
}

// ─── Jobs ──────────────────────────────────────────────────────────────

func TestServer_Jobs_ListedAfterClip(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, testutil.FakeTool("Demo", 600))

	rec := doJSON(t, s, "GET", "/api/jobs", "")
	var jobs []server.JobResponse
	decodeJSON(t, rec, &jobs)
	if len(jobs) != 0 {
		t.Fatalf("expected no jobs, got %d", len(jobs))
	}

	rec = doJSON(t, s, "POST", "/api/clip", `{"url":"https://example.com/v","startTime":"0","endTime":"10"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("clip: %d %s", rec.Code, rec.Body.String())
	}
	jobID := rec.Header().Get("X-Job-ID")

	rec = doJSON(t, s, "GET", "/api/jobs?limit=10", "")
	decodeJSON(t, rec, &jobs)
	if len(jobs) != 1 || jobs[0].ID != jobID || jobs[0].Status != registry.JobDone || jobs[0].Active {
		t.Fatalf("jobs = %+v", jobs)
	}

	rec = doJSON(t, s, "GET", "/api/jobs/"+jobID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var job server.JobResponse
	decodeJSON(t, rec, &job)
	if job.Title != "Demo" || job.EndSec != 10 {
		t.Errorf("job = %+v", job)
	}
}

func TestServer_GetJob_NotFound(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, nil)

	rec := doJSON(t, s, "GET", "/api/jobs/nonexistent", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestServer_CancelJob_NotRunning(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, nil)

	rec := doJSON(t, s, "DELETE", "/api/jobs/nonexistent", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

// ─── WebSocket ─────────────────────────────────────────────────────────

func wsURL(ts *httptest.Server, jobID string) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/jobs/" + jobID
}

func TestServer_JobWS_StreamsLiveJob(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	tool := testutil.FakeTool("Demo", 600)
	s, _ := newTestServer(t, func(ctx context.Context, args []string, onLine func(string)) (*ytdlp.Result, error) {
		if !testutil.HasArg(args, "--dump-json") {
			<-release
		}
		return tool(ctx, args, onLine)
	})
	ts := httptest.NewServer(s)
	defer ts.Close()

	jobID := uuid.New().String()
	clipDone := make(chan int, 1)
	go func() {
		resp, err := http.Post(ts.URL+"/api/clip", "application/json",
			strings.NewReader(`{"url":"https://example.com/v","startTime":"0","endTime":"10","jobId":"`+jobID+`"}`))
		if err != nil {
			clipDone <- 0
			return
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		clipDone <- resp.StatusCode
	}()

	deadline := time.Now().Add(2 * time.Second)
	for s.Orchestrator().GetJob(jobID) == nil {
		if time.Now().After(deadline) {
			t.Fatal("job never became active")
		}
		time.Sleep(5 * time.Millisecond)
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, jobID), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var first app.JobEvent
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read first event: %v", err)
	}
	if first.JobID != jobID || first.Type != app.JobEventStatus {
		t.Errorf("first event = %+v", first)
	}
	close(release)

	var last app.JobEvent
	for {
		var ev app.JobEvent
		if err := conn.ReadJSON(&ev); err != nil {
			break
		}
		last = ev
	}
	if last.Type != app.JobEventResult || last.Status != registry.JobDone {
		t.Errorf("last event = %+v", last)
	}

	if code := <-clipDone; code != http.StatusOK {
		t.Errorf("clip status = %d", code)
	}
}

func TestServer_JobWS_FinishedJobFromLedger(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, testutil.FakeTool("Demo", 600))
	ts := httptest.NewServer(s)
	defer ts.Close()

	rec := doJSON(t, s, "POST", "/api/clip", `{"url":"https://example.com/v","endTime":"5"}`)
	jobID := rec.Header().Get("X-Job-ID")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, jobID), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var ev app.JobEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read: %v", err)
	}
	if ev.JobID != jobID || ev.Status != registry.JobDone || ev.FileName == "" {
		t.Errorf("event = %+v", ev)
	}
}

func TestServer_JobWS_UnknownJob(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, nil)
	ts := httptest.NewServer(s)
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, uuid.New().String()), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var resp server.ErrorResponse
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("read: %v", err)
	}
	if resp.Error != "job not found" {
		t.Errorf("error = %q", resp.Error)
	}
}

// ─── Static / docs ─────────────────────────────────────────────────────

func TestServer_StaticDirWithIndexFallback(t *testing.T) {
	t.Parallel()

	static := t.TempDir()
	if err := os.WriteFile(filepath.Join(static, "index.html"), []byte("<html>app</html>"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(static, "app.js"), []byte("console.log(1)"), 0o644); err != nil {
		t.Fatal(err)
	}

	appCfg := app.DefaultConfig()
	appCfg.StorageRoot = t.TempDir()
	s, err := server.NewServer(server.Config{
		AppConfig: appCfg,
		StaticDir: static,
		Logger:    &testutil.DummyLogger{},
		Runner:    &testutil.FakeRunner{},
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	defer s.Close()

	rec := doJSON(t, s, "GET", "/app.js", "")
	if !strings.Contains(rec.Body.String(), "console.log") {
		t.Errorf("asset not served: %q", rec.Body.String())
	}
	rec = doJSON(t, s, "GET", "/cookies", "")
	if !strings.Contains(rec.Body.String(), "<html>app</html>") {
		t.Errorf("index fallback not served: %q", rec.Body.String())
	}
	rec = doJSON(t, s, "GET", "/health", "")
	if rec.Body.String() != "Clipper Service Ready" {
		t.Errorf("API route shadowed by static handler")
	}
}

func TestServer_SwaggerDoc(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, nil)

	rec := doJSON(t, s, "GET", "/swagger/doc.json", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "/api/clip") {
		t.Errorf("doc.json does not describe /api/clip")
	}
}
