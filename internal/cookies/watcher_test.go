package cookies_test

import (
	"os"
	"testing"
	"time"

	"github.com/raysh454/clipper/internal/cookies"
	"github.com/raysh454/clipper/internal/testutil"
)

func TestWatcher_ExternalEditRefreshesStatus(t *testing.T) {
	t.Parallel()
	s := newStore(t)
	w, err := cookies.NewWatcher(s, &testutil.DummyLogger{})
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	st, err := s.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Exists {
		t.Fatalf("expected no file yet, got %+v", st)
	}

	if err := os.WriteFile(s.Path(), []byte(sampleCookies), 0o600); err != nil {
		t.Fatal(err)
	}

	select {
	case <-w.Changes():
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change notification")
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		st, err = s.Status()
		if err != nil {
			t.Fatalf("Status: %v", err)
		}
		if st.Exists && st.Size == int64(len(sampleCookies)) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("status never reflected external edit: %+v", st)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestWatcher_CloseIsIdempotent(t *testing.T) {
	t.Parallel()
	s := newStore(t)
	w, err := cookies.NewWatcher(s, &testutil.DummyLogger{})
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	_ = w.Close()
	_ = w.Close()
}
