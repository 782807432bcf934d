package cleanup

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestRunDryRunDoesNotMutate(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "victim.bin")
	mustWrite(t, target, "data")

	e := New(filepath.Join(dir, "trash"))
	report := e.Run(context.Background(), Request{Paths: []string{target}, DryRun: true})

	if len(report.Deleted) != 1 || report.Deleted[0] != target {
		t.Errorf("Deleted = %v, want [%s]", report.Deleted, target)
	}
	if report.Results[0].Reason != "dry run" {
		t.Errorf("reason = %q", report.Results[0].Reason)
	}
	if _, err := os.Stat(target); err != nil {
		t.Errorf("dry run mutated the filesystem: %v", err)
	}
}

func TestRunPermanentRemoval(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "build")
	mustWrite(t, filepath.Join(target, "out.o"), "obj")
	sibling := filepath.Join(dir, "src.go")
	mustWrite(t, sibling, "package main")

	e := New(filepath.Join(dir, "trash"))
	report := e.Run(context.Background(), Request{Paths: []string{target}})

	if len(report.Deleted) != 1 {
		t.Fatalf("Deleted = %v", report.Deleted)
	}
	if _, err := os.Lstat(target); !os.IsNotExist(err) {
		t.Error("target still exists after permanent removal")
	}
	if _, err := os.Stat(sibling); err != nil {
		t.Errorf("sibling touched: %v", err)
	}
}

func TestRunIndependentOutcomes(t *testing.T) {
	dir := t.TempDir()
	exists := filepath.Join(dir, "exists.bin")
	mustWrite(t, exists, "x")
	missing := filepath.Join(dir, "missing.bin")

	e := New(filepath.Join(dir, "trash"))
	report := e.Run(context.Background(), Request{Paths: []string{missing, exists}})

	if len(report.Skipped) != 1 || report.Skipped[0] != missing {
		t.Errorf("Skipped = %v, want [%s]", report.Skipped, missing)
	}
	if len(report.Deleted) != 1 || report.Deleted[0] != exists {
		t.Errorf("Deleted = %v, want [%s]", report.Deleted, exists)
	}
	if len(report.Errors) != 0 {
		t.Errorf("Errors = %v", report.Errors)
	}
	if len(report.Results) != 2 || report.Results[0].Path != missing {
		t.Errorf("Results must preserve request order: %v", report.Results)
	}
}

func TestRunTrashWritesSidecar(t *testing.T) {
	dir := t.TempDir()
	trashDir := filepath.Join(dir, "trash")
	target := filepath.Join(dir, "node_modules")
	mustWrite(t, filepath.Join(target, "pkg", "index.js"), "module.exports = {}")

	e := New(trashDir)
	report := e.Run(context.Background(), Request{Paths: []string{target}, Trash: true})

	if len(report.Deleted) != 1 {
		t.Fatalf("report = %+v", report)
	}
	if _, err := os.Lstat(target); !os.IsNotExist(err) {
		t.Error("target still at original location")
	}

	entries, err := os.ReadDir(trashDir)
	if err != nil {
		t.Fatalf("reading trash dir: %v", err)
	}
	var moved, sidecar string
	for _, entry := range entries {
		if filepath.Ext(entry.Name()) == ".json" {
			sidecar = filepath.Join(trashDir, entry.Name())
		} else {
			moved = filepath.Join(trashDir, entry.Name())
		}
	}
	if moved == "" || sidecar == "" {
		t.Fatalf("trash contents = %v, want moved entry plus sidecar", entries)
	}

	if _, err := os.Stat(filepath.Join(moved, "pkg", "index.js")); err != nil {
		t.Errorf("moved tree incomplete: %v", err)
	}

	raw, err := os.ReadFile(sidecar)
	if err != nil {
		t.Fatalf("reading sidecar: %v", err)
	}
	var item trashItem
	if err := json.Unmarshal(raw, &item); err != nil {
		t.Fatalf("decoding sidecar: %v", err)
	}
	if item.OrigPath != target || !item.IsDir {
		t.Errorf("sidecar = %+v", item)
	}
}

func TestRunTrashMixedBatch(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "a")
	mustWrite(t, filepath.Join(target, "f.txt"), "x")
	missing := filepath.Join(dir, "missing")

	trashDir := filepath.Join(dir, "trash")
	e := New(trashDir)
	report := e.Run(context.Background(), Request{Paths: []string{target, missing}, Trash: true})

	if len(report.Deleted) != 1 || report.Deleted[0] != target {
		t.Errorf("Deleted = %v, want [%s]", report.Deleted, target)
	}
	if len(report.Skipped) != 1 || report.Skipped[0] != missing {
		t.Errorf("Skipped = %v, want [%s]", report.Skipped, missing)
	}
	if len(report.Errors) != 0 {
		t.Errorf("Errors = %v, want none", report.Errors)
	}

	if _, err := os.Lstat(target); !os.IsNotExist(err) {
		t.Error("target still at original location")
	}
	entries, err := os.ReadDir(trashDir)
	if err != nil || len(entries) == 0 {
		t.Errorf("trash dir = %v, %v; want the moved entry", entries, err)
	}
}

func TestRunCancelledSkipsRemaining(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.bin")
	b := filepath.Join(dir, "b.bin")
	mustWrite(t, a, "a")
	mustWrite(t, b, "b")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := New(filepath.Join(dir, "trash"))
	report := e.Run(ctx, Request{Paths: []string{a, b}})

	if len(report.Skipped) != 2 {
		t.Fatalf("Skipped = %v, want both paths", report.Skipped)
	}
	for _, res := range report.Results {
		if res.Reason != "cancelled" {
			t.Errorf("reason = %q", res.Reason)
		}
	}
	if _, err := os.Stat(a); err != nil {
		t.Errorf("cancelled run mutated the filesystem: %v", err)
	}
}

func TestTrashDestUnique(t *testing.T) {
	dir := t.TempDir()
	e := New(dir)

	first := e.trashDest("dup")
	mustWrite(t, first, "x")
	second := e.trashDest("dup")
	if first == second {
		t.Errorf("trashDest reused %s", first)
	}
}

func TestCopyTreePreservesSymlinks(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	mustWrite(t, filepath.Join(src, "real.txt"), "content")
	if err := os.Symlink("real.txt", filepath.Join(src, "link")); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	dst := filepath.Join(dir, "dst")
	if err := copyTree(src, dst); err != nil {
		t.Fatalf("copyTree: %v", err)
	}

	target, err := os.Readlink(filepath.Join(dst, "link"))
	if err != nil {
		t.Fatalf("readlink: %v", err)
	}
	if target != "real.txt" {
		t.Errorf("link target = %q, want real.txt", target)
	}
	data, err := os.ReadFile(filepath.Join(dst, "real.txt"))
	if err != nil || string(data) != "content" {
		t.Errorf("copied file = %q, %v", data, err)
	}
}
