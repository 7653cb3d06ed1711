package flightrecorder_test

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/myrjola/kuntoapp/internal/flightrecorder"
	"github.com/myrjola/kuntoapp/internal/testhelpers"
)

func TestRecorder_CaptureSlow(t *testing.T) {
	traceDir := t.TempDir()
	logger := testhelpers.NewLogger(testhelpers.NewWriter(t))

	recorder, err := flightrecorder.New(traceDir, logger)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if err = recorder.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer recorder.Stop()

	recorder.CaptureSlow(ctx, "generate", 3*time.Second)
	// A second capture inside the cooldown window is dropped.
	recorder.CaptureSlow(ctx, "generate", 3*time.Second)

	entries, err := os.ReadDir(traceDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("trace files = %d, want exactly 1", len(entries))
	}
	name := entries[0].Name()
	if !strings.HasPrefix(name, "generate-") || !strings.HasSuffix(name, ".trace") {
		t.Errorf("unexpected trace filename %q", name)
	}
}

func TestRecorder_rejectsFilePath(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/not-a-dir"
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := flightrecorder.New(path, testhelpers.NewLogger(testhelpers.NewWriter(t)))
	if err == nil {
		t.Fatal("New accepted a regular file as traces directory")
	}
}
