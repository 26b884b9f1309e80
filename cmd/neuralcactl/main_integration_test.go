//go:build sqlite

package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunCommandSQLitePersistsAcrossInvocations(t *testing.T) {
	origWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	workdir := t.TempDir()
	if err := os.Chdir(workdir); err != nil {
		t.Fatalf("chdir tempdir: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Chdir(origWD)
	})

	ctx := context.Background()
	dbPath := filepath.Join(workdir, "neuralca.db")
	store := []string{"--store", "sqlite", "--db-path", dbPath}

	if err := run(ctx, append([]string{"init"}, store...)); err != nil {
		t.Fatalf("init: %v", err)
	}
	args := append([]string{"run", "--run-id", "sql-run", "--height", "6", "--width", "6", "--channels", "5", "--steps", "3", "--all-steps", "--f16"}, store...)
	if _, err := captureStdout(func() error { return run(ctx, args) }); err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("expected sqlite db at %s: %v", dbPath, err)
	}

	out, err := captureStdout(func() error { return run(ctx, append([]string{"runs"}, store...)) })
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if !strings.Contains(out, "run_id=sql-run") {
		t.Fatalf("expected run in listing: %q", out)
	}

	out, err = captureStdout(func() error { return run(ctx, append([]string{"show", "--latest", "--stats"}, store...)) })
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if !strings.Contains(out, "trajectory=4") || !strings.Contains(out, "step=3") {
		t.Fatalf("unexpected show output: %q", out)
	}

	if _, err := captureStdout(func() error { return run(ctx, append([]string{"export", "--run-id", "sql-run"}, store...)) }); err != nil {
		t.Fatalf("export: %v", err)
	}
	for _, file := range []string{"run.json", "states.csv"} {
		path := filepath.Join("exports", "sql-run", file)
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected artifact %s: %v", path, err)
		}
	}

	if _, err := captureStdout(func() error { return run(ctx, append([]string{"delete", "--run-id", "sql-run"}, store...)) }); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := run(ctx, append([]string{"show", "--run-id", "sql-run"}, store...)); err == nil {
		t.Fatal("expected deleted run to be gone")
	}

	if err := run(ctx, append([]string{"reset"}, store...)); err != nil {
		t.Fatalf("reset: %v", err)
	}
	out, err = captureStdout(func() error { return run(ctx, append([]string{"runs"}, store...)) })
	if err != nil {
		t.Fatalf("runs after reset: %v", err)
	}
	if !strings.Contains(out, "no runs found") {
		t.Fatalf("expected empty listing after reset: %q", out)
	}
}
