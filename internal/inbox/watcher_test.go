package inbox

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/fehu/internal/formservice"
	"github.com/starford/fehu/internal/testutil"
)

func inboxTestEnv(t *testing.T) (string, *formservice.Service) {
	t.Helper()
	db := testutil.TestDB(t)
	_, uploads := testutil.TestUploads(t)
	svc := formservice.NewService(db, uploads, nil)
	return t.TempDir(), svc
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestInbox_DroppedFileRegistered(t *testing.T) {
	dir, svc := inboxTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, svc, dir, testLogger())
	time.Sleep(100 * time.Millisecond)

	path := filepath.Join(dir, "signups.csv")
	_ = os.WriteFile(path, []byte("Name,Email\nAnn,a@x.com\n"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		forms, _ := svc.ListForms(ctx)
		return len(forms) == 1
	}, "dropped file not registered as a form")

	forms, err := svc.ListForms(ctx)
	if err != nil || len(forms) != 1 {
		t.Fatalf("forms = %v, err = %v", forms, err)
	}
	if forms[0].Title != "signups" {
		t.Errorf("title = %q, want %q", forms[0].Title, "signups")
	}
	if len(forms[0].Fields) != 2 {
		t.Errorf("fields = %+v", forms[0].Fields)
	}

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		_, statErr := os.Stat(path)
		return os.IsNotExist(statErr)
	}, "processed file should be removed from inbox")
}

func TestInbox_ExistingFilePickedUpOnStart(t *testing.T) {
	dir, svc := inboxTestEnv(t)

	_ = os.WriteFile(filepath.Join(dir, "backlog.csv"), []byte("Item\nfirst\n"), 0o644)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, svc, dir, testLogger())

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		forms, _ := svc.ListForms(ctx)
		return len(forms) == 1
	}, "pre-existing inbox file not registered")
}

func TestInbox_BadFileRejected(t *testing.T) {
	dir, svc := inboxTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, svc, dir, testLogger())
	time.Sleep(100 * time.Millisecond)

	path := filepath.Join(dir, "dupes.csv")
	_ = os.WriteFile(path, []byte("Name,name\n"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		_, statErr := os.Stat(path + ".rejected")
		return statErr == nil
	}, "bad file should be renamed with .rejected suffix")

	forms, _ := svc.ListForms(ctx)
	if len(forms) != 0 {
		t.Errorf("bad file must not register a form, got %d", len(forms))
	}
}

func TestInbox_IgnoresUnrelatedFiles(t *testing.T) {
	dir, svc := inboxTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, svc, dir, testLogger())
	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0o644)
	_ = os.WriteFile(filepath.Join(dir, ".hidden.csv"), []byte("A\n1\n"), 0o644)

	// Give the watcher time to (incorrectly) pick anything up.
	time.Sleep(settleDelay + 2*sweepEvery + 200*time.Millisecond)

	forms, _ := svc.ListForms(ctx)
	if len(forms) != 0 {
		t.Errorf("unrelated files registered %d forms", len(forms))
	}
	if _, err := os.Stat(filepath.Join(dir, "notes.txt")); err != nil {
		t.Error("unrelated file should be left alone")
	}
}
