package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/raysh454/clipper/internal/testutil"
	"github.com/raysh454/clipper/internal/ytdlp"
)

type harness struct {
	root   string
	env    string
	runner *testutil.FakeRunner
	stdin  *bytes.Buffer
}

func newHarness(t *testing.T, handle func(context.Context, []string, func(string)) (*ytdlp.Result, error)) *harness {
	t.Helper()
	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	if err := os.WriteFile(envFile, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	return &harness{
		root:   filepath.Join(dir, "data"),
		env:    envFile,
		runner: &testutil.FakeRunner{Handle: handle},
		stdin:  &bytes.Buffer{},
	}
}

func (h *harness) run(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand(Options{
		Runner: h.runner,
		Logger: &testutil.DummyLogger{},
		Stdin:  h.stdin,
	})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--env-file", h.env, "--storage-root", h.root}, args...))
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestClipCommand_SavesFile(t *testing.T) {
	t.Parallel()
	h := newHarness(t, testutil.FakeTool("Demo", 600))
	dest := filepath.Join(t.TempDir(), "out.mp4")

	out, err := h.run(t, context.Background(), "clip", "https://youtu.be/abc", "--start", "0:30", "--end", "1:00", "--out", dest)
	if err != nil {
		t.Fatalf("clip: %v\n%s", err, out)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if string(data) != "fake mp4 data" {
		t.Errorf("content = %q", data)
	}
	if !strings.Contains(out, "Saved "+dest+" (0:00:30-0:01:00") {
		t.Errorf("output = %q", out)
	}

	entries, _ := os.ReadDir(filepath.Join(h.root, "downloads"))
	if len(entries) != 0 {
		t.Errorf("download dir not cleaned: %d entries", len(entries))
	}
}

func TestClipCommand_OutputDirectoryKeepsTitle(t *testing.T) {
	t.Parallel()
	h := newHarness(t, testutil.FakeTool("Demo", 600))
	dir := t.TempDir()

	if out, err := h.run(t, context.Background(), "clip", "https://youtu.be/abc", "--end", "10", "--out", dir, "--progress"); err != nil {
		t.Fatalf("clip: %v\n%s", err, out)
	}
	if _, err := os.Stat(filepath.Join(dir, "Demo.mp4")); err != nil {
		t.Errorf("expected Demo.mp4 in output dir: %v", err)
	}
}

func TestClipCommand_ValidationError(t *testing.T) {
	t.Parallel()
	h := newHarness(t, testutil.FakeTool("Demo", 3600))

	_, err := h.run(t, context.Background(), "clip", "https://youtu.be/abc", "--start", "0", "--end", "45:00")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "Clip too long (45m). Max allowed is 20 minutes.") {
		t.Errorf("error = %v", err)
	}
}

func TestClipCommand_RequiresURL(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	if _, err := h.run(t, context.Background(), "clip"); err == nil {
		t.Fatal("expected argument error")
	}
}

func TestCookiesCommands(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	out, err := h.run(t, context.Background(), "cookies", "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, `"exists": false`) {
		t.Errorf("initial status = %s", out)
	}

	src := filepath.Join(t.TempDir(), "cookies.txt")
	if err := os.WriteFile(src, []byte("# Netscape HTTP Cookie File\n.example.com\tTRUE\t/\tFALSE\t0\tk\tv\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	out, err = h.run(t, context.Background(), "cookies", "set", "--file", src)
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	if !strings.Contains(out, "Cookies updated successfully") {
		t.Errorf("set output = %q", out)
	}

	out, err = h.run(t, context.Background(), "cookies", "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, `"exists": true`) || !strings.Contains(out, `"hasContent": true`) {
		t.Errorf("status after set = %s", out)
	}
}

func TestCookiesSet_FromStdinRejectsBlank(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.stdin.WriteString("  \n")

	if _, err := h.run(t, context.Background(), "cookies", "set", "--file", "-"); err == nil {
		t.Fatal("expected blank cookies to be rejected")
	}
}

func TestJobsList(t *testing.T) {
	t.Parallel()
	h := newHarness(t, testutil.FakeTool("Listed Video", 600))

	out, err := h.run(t, context.Background(), "jobs", "list")
	if err != nil {
		t.Fatalf("jobs list: %v", err)
	}
	if !strings.Contains(out, "No jobs recorded.") {
		t.Errorf("empty ledger output = %q", out)
	}

	if _, err := h.run(t, context.Background(), "clip", "https://youtu.be/abc", "--end", "5", "--out", t.TempDir()); err != nil {
		t.Fatalf("clip: %v", err)
	}

	out, err = h.run(t, context.Background(), "jobs", "list", "--limit", "5")
	if err != nil {
		t.Fatalf("jobs list: %v", err)
	}
	if !strings.Contains(out, "done") || !strings.Contains(out, "Listed Video") {
		t.Errorf("jobs list output = %q", out)
	}

	out, err = h.run(t, context.Background(), "jobs", "list", "--json")
	if err != nil {
		t.Fatalf("jobs list --json: %v", err)
	}
	if !strings.Contains(out, `"status": "done"`) {
		t.Errorf("json output = %q", out)
	}
}

func TestVersionCommand(t *testing.T) {
	t.Parallel()
	h := newHarness(t, func(ctx context.Context, args []string, onLine func(string)) (*ytdlp.Result, error) {
		if testutil.HasArg(args, "--version") {
			return &ytdlp.Result{Stdout: "2025.06.30\n"}, nil
		}
		return &ytdlp.Result{ExitCode: 2}, nil
	})

	out, err := h.run(t, context.Background(), "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, "clipper "+Version) || !strings.Contains(out, "yt-dlp 2025.06.30") {
		t.Errorf("output = %q", out)
	}
}

func TestVersionCommand_ToolMissing(t *testing.T) {
	t.Parallel()
	h := newHarness(t, func(ctx context.Context, args []string, onLine func(string)) (*ytdlp.Result, error) {
		return nil, ytdlp.ErrNotInstalled
	})

	out, err := h.run(t, context.Background(), "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, "yt-dlp not found") {
		t.Errorf("output = %q", out)
	}
}

func TestServeCommand_StopsOnCancel(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := h.run(t, ctx, "serve", "--addr", "127.0.0.1:0", "--shutdown-timeout", "1s")
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop after context cancellation")
	}
}
