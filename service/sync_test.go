package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const exampleDoc = "# Greeter\n\n```{.python #main file=out.py}\nprint(<<greeting>>)\n```\n\nThe greeting:\n\n```{.python #greeting}\n\"hi\"\n```\n"

func newProject(t *testing.T, docs map[string]string) (*Service, string) {
	t.Helper()
	dir := t.TempDir()
	for name, content := range docs {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("writing %s failed: %v", name, err)
		}
	}
	config := &Config{
		State:      StateConfig{DSN: filepath.Join(dir, ".entangle.db")},
		Documents:  []string{dir},
		TargetRoot: dir,
	}
	svc, err := New(config)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })
	return svc, dir
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s failed: %v", path, err)
	}
	return string(data)
}

func TestService_Tangle(t *testing.T) {
	ctx := context.Background()
	svc, dir := newProject(t, map[string]string{"greeter.md": exampleDoc})

	report, err := svc.Tangle(ctx, TangleRequest{})
	if err != nil {
		t.Fatalf("Tangle failed: %v", err)
	}
	if err := report.Err(); err != nil {
		t.Fatalf("pass reported failure: %v", err)
	}
	if actual := readFile(t, filepath.Join(dir, "out.py")); actual != "print(\"hi\")\n" {
		t.Errorf("unexpected target content %q", actual)
	}
	if written := report.Written(); len(written) != 1 {
		t.Errorf("expected one written target, got %v", written)
	}
}

func TestService_SyncFixedPoint(t *testing.T) {
	ctx := context.Background()
	svc, _ := newProject(t, map[string]string{"greeter.md": exampleDoc})

	first, err := svc.Sync(ctx, SyncRequest{})
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if len(first.Written()) != 1 {
		t.Fatalf("expected the first pass to write the target, got %v", first.Written())
	}
	// A pass over unchanged state writes nothing and applies nothing.
	second, err := svc.Sync(ctx, SyncRequest{})
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if len(second.Written()) != 0 {
		t.Errorf("expected a fixed point, got writes %v", second.Written())
	}
	for _, doc := range second.Documents {
		if doc.Applied != 0 {
			t.Errorf("expected no document edits, got %d", doc.Applied)
		}
	}
}

func TestService_SyncStitchesTargetEdit(t *testing.T) {
	ctx := context.Background()
	svc, dir := newProject(t, map[string]string{"greeter.md": exampleDoc})
	if _, err := svc.Sync(ctx, SyncRequest{}); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	target := filepath.Join(dir, "out.py")
	if err := os.WriteFile(target, []byte("print(\"hello\")\n"), 0o644); err != nil {
		t.Fatalf("editing target failed: %v", err)
	}
	report, err := svc.Sync(ctx, SyncRequest{})
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if conflicts := report.Conflicts(); len(conflicts) != 0 {
		t.Fatalf("unexpected conflicts %v", conflicts)
	}
	doc := readFile(t, filepath.Join(dir, "greeter.md"))
	if !strings.Contains(doc, "```{.python #greeting}\n\"hello\"\n```") {
		t.Errorf("expected the edit to land in the greeting block, got:\n%s", doc)
	}
	if !strings.Contains(doc, "print(<<greeting>>)") {
		t.Errorf("reference marker must survive stitching, got:\n%s", doc)
	}
	if !strings.Contains(doc, "The greeting:") {
		t.Errorf("prose must survive stitching, got:\n%s", doc)
	}
	if actual := readFile(t, target); actual != "print(\"hello\")\n" {
		t.Errorf("re-tangle must preserve the edited content, got %q", actual)
	}

	// The new state is a fixed point.
	again, err := svc.Sync(ctx, SyncRequest{})
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if len(again.Written()) != 0 {
		t.Errorf("expected a fixed point after stitching, got writes %v", again.Written())
	}
}

func TestService_SyncTanglesDocumentEdit(t *testing.T) {
	ctx := context.Background()
	svc, dir := newProject(t, map[string]string{"greeter.md": exampleDoc})
	if _, err := svc.Sync(ctx, SyncRequest{}); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	edited := strings.Replace(exampleDoc, "\"hi\"", "\"bonjour\"", 1)
	if err := os.WriteFile(filepath.Join(dir, "greeter.md"), []byte(edited), 0o644); err != nil {
		t.Fatalf("editing document failed: %v", err)
	}
	report, err := svc.Sync(ctx, SyncRequest{})
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if conflicts := report.Conflicts(); len(conflicts) != 0 {
		t.Fatalf("unexpected conflicts %v", conflicts)
	}
	if actual := readFile(t, filepath.Join(dir, "out.py")); actual != "print(\"bonjour\")\n" {
		t.Errorf("expected re-tangled target, got %q", actual)
	}
}

func TestService_SyncConflict(t *testing.T) {
	ctx := context.Background()
	svc, dir := newProject(t, map[string]string{"greeter.md": exampleDoc})
	if _, err := svc.Sync(ctx, SyncRequest{}); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	edited := strings.Replace(exampleDoc, "\"hi\"", "\"doc\"", 1)
	if err := os.WriteFile(filepath.Join(dir, "greeter.md"), []byte(edited), 0o644); err != nil {
		t.Fatalf("editing document failed: %v", err)
	}
	target := filepath.Join(dir, "out.py")
	if err := os.WriteFile(target, []byte("print(\"disk\")\n"), 0o644); err != nil {
		t.Fatalf("editing target failed: %v", err)
	}

	report, err := svc.Sync(ctx, SyncRequest{})
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	conflicts := report.Conflicts()
	if len(conflicts) != 1 || conflicts[0].Block.Name != "greeting" {
		t.Fatalf("expected a conflict on greeting, got %v", conflicts)
	}
	// Both copies stay untouched.
	if doc := readFile(t, filepath.Join(dir, "greeter.md")); !strings.Contains(doc, "\"doc\"") {
		t.Errorf("document side must keep its change, got:\n%s", doc)
	}
	if actual := readFile(t, target); actual != "print(\"disk\")\n" {
		t.Errorf("tangled side must keep its change, got %q", actual)
	}

	// The conflict persists until one side is resolved.
	again, err := svc.Sync(ctx, SyncRequest{})
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if len(again.Conflicts()) != 1 {
		t.Errorf("expected the conflict to persist, got %v", again.Conflicts())
	}
}

func TestService_SyncConflictFreezesSharedTargets(t *testing.T) {
	ctx := context.Background()
	sharedDoc := "```{.python #one file=t1.py}\nprint(<<shared>>)\n```\n\n```{.python #two file=t2.py}\nlog(<<shared>>)\n```\n\n```{.python #shared}\n\"base\"\n```\n"
	svc, dir := newProject(t, map[string]string{"shared.md": sharedDoc})
	if _, err := svc.Sync(ctx, SyncRequest{}); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if actual := readFile(t, filepath.Join(dir, "t2.py")); actual != "log(\"base\")\n" {
		t.Fatalf("unexpected initial tangle %q", actual)
	}

	edited := strings.Replace(sharedDoc, "\"base\"", "\"docside\"", 1)
	if err := os.WriteFile(filepath.Join(dir, "shared.md"), []byte(edited), 0o644); err != nil {
		t.Fatalf("editing document failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "t1.py"), []byte("print(\"disk\")\n"), 0o644); err != nil {
		t.Fatalf("editing target failed: %v", err)
	}

	report, err := svc.Sync(ctx, SyncRequest{})
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	conflicts := report.Conflicts()
	if len(conflicts) != 1 || conflicts[0].Block.Name != "shared" {
		t.Fatalf("expected a conflict on shared, got %v", conflicts)
	}
	// Every target expanding the conflicted block stays frozen, including
	// the one that saw no edit.
	if actual := readFile(t, filepath.Join(dir, "t1.py")); actual != "print(\"disk\")\n" {
		t.Errorf("edited target must keep its change, got %q", actual)
	}
	if actual := readFile(t, filepath.Join(dir, "t2.py")); actual != "log(\"base\")\n" {
		t.Errorf("unedited target must not be rewritten while the conflict is open, got %q", actual)
	}

	again, err := svc.Sync(ctx, SyncRequest{})
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if len(again.Conflicts()) != 1 {
		t.Errorf("expected the conflict to persist, got %v", again.Conflicts())
	}
	if actual := readFile(t, filepath.Join(dir, "t2.py")); actual != "log(\"base\")\n" {
		t.Errorf("frozen target must survive repeated passes, got %q", actual)
	}
}

func TestService_UntrackedTargetProtected(t *testing.T) {
	ctx := context.Background()
	svc, dir := newProject(t, map[string]string{"greeter.md": exampleDoc})
	precious := filepath.Join(dir, "out.py")
	if err := os.WriteFile(precious, []byte("# handwritten\n"), 0o644); err != nil {
		t.Fatalf("seeding target failed: %v", err)
	}

	report, err := svc.Tangle(ctx, TangleRequest{})
	if err != nil {
		t.Fatalf("Tangle failed: %v", err)
	}
	held := false
	for _, doc := range report.Documents {
		for _, target := range doc.Targets {
			if target.Held {
				held = true
			}
		}
	}
	if !held {
		t.Fatalf("expected the untracked target to be held")
	}
	if actual := readFile(t, precious); actual != "# handwritten\n" {
		t.Errorf("untracked file must not be overwritten, got %q", actual)
	}

	forced, err := svc.Tangle(ctx, TangleRequest{Force: true})
	if err != nil {
		t.Fatalf("Tangle failed: %v", err)
	}
	if len(forced.Written()) != 1 {
		t.Errorf("expected force to overwrite, got %v", forced.Written())
	}
	if actual := readFile(t, precious); actual != "print(\"hi\")\n" {
		t.Errorf("expected forced tangle output, got %q", actual)
	}
}

func TestService_StitchOneWay(t *testing.T) {
	ctx := context.Background()
	svc, dir := newProject(t, map[string]string{"greeter.md": exampleDoc})
	if _, err := svc.Tangle(ctx, TangleRequest{}); err != nil {
		t.Fatalf("Tangle failed: %v", err)
	}
	target := filepath.Join(dir, "out.py")
	if err := os.WriteFile(target, []byte("print(\"hello\")\n"), 0o644); err != nil {
		t.Fatalf("editing target failed: %v", err)
	}
	report, err := svc.Stitch(ctx, StitchRequest{})
	if err != nil {
		t.Fatalf("Stitch failed: %v", err)
	}
	if err := report.Err(); err != nil {
		t.Fatalf("pass reported failure: %v", err)
	}
	doc := readFile(t, filepath.Join(dir, "greeter.md"))
	if !strings.Contains(doc, "\"hello\"") {
		t.Errorf("expected stitched document, got:\n%s", doc)
	}
	// One-way stitch leaves the target as the user left it.
	if actual := readFile(t, target); actual != "print(\"hello\")\n" {
		t.Errorf("stitch must not rewrite targets, got %q", actual)
	}
}

func TestService_PendingDocuments(t *testing.T) {
	ctx := context.Background()
	svc, dir := newProject(t, map[string]string{"greeter.md": exampleDoc})
	if _, err := svc.Sync(ctx, SyncRequest{}); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	docs, pending, err := svc.PendingDocuments(ctx)
	if err != nil || pending || docs != nil {
		t.Fatalf("expected no pending work, got %v %v %v", docs, pending, err)
	}

	svc.OnFileChanged(filepath.Join(dir, "out.py"))
	docs, pending, err = svc.PendingDocuments(ctx)
	if err != nil {
		t.Fatalf("PendingDocuments failed: %v", err)
	}
	if !pending {
		t.Fatalf("expected pending work")
	}
	if len(docs) != 1 || docs[0] != filepath.Join(dir, "greeter.md") {
		t.Errorf("expected the target's owning document, got %v", docs)
	}
}
