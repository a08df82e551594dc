package tangle

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/viant/entangle/document"
	"github.com/viant/entangle/graph"
	"github.com/viant/entangle/parser"
)

func expand(t *testing.T, data, node string) *Result {
	t.Helper()
	doc, err := parser.Parse("test.md", []byte(data))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	g, err := graph.Build(doc)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	result, err := Expand(g, node)
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}
	return result
}

const exampleDoc = "```{.python #main file=out.py}\nprint(<<greeting>>)\n```\n\n```{.python #greeting}\n\"hi\"\n```\n"

func TestExpand_Example(t *testing.T) {
	result := expand(t, exampleDoc, "main")
	if string(result.Data) != "print(\"hi\")\n" {
		t.Fatalf("expected tangled output print(\"hi\")\\n, got %q", result.Data)
	}
	expected := []Entry{
		{Start: 0, End: 6, Block: document.BlockID{Name: "main"}, Offset: 0},
		{Start: 6, End: 10, Block: document.BlockID{Name: "greeting"}, Offset: 0},
		{Start: 10, End: 11, Block: document.BlockID{Name: "main"}, Offset: 18},
		{Start: 11, End: 12, Block: document.BlockID{Name: "main"}, Synthetic: true, Text: "\n"},
	}
	if !reflect.DeepEqual(result.Prov.Entries, expected) {
		t.Errorf("unexpected provenance:\n got %+v\nwant %+v", result.Prov.Entries, expected)
	}
	if err := result.Prov.Validate(len(result.Data)); err != nil {
		t.Errorf("provenance invariant violated: %v", err)
	}
}

func TestExpand_Deterministic(t *testing.T) {
	first := expand(t, exampleDoc, "main")
	second := expand(t, exampleDoc, "main")
	if !bytes.Equal(first.Data, second.Data) {
		t.Errorf("expected byte-identical output across runs")
	}
	if !reflect.DeepEqual(first.Prov, second.Prov) {
		t.Errorf("expected identical provenance across runs")
	}
}

func TestExpand_IndentationSynthetic(t *testing.T) {
	data := "```{.py #main file=out.py}\ndef run():\n    <<body>>\n```\n\n```{.py #body}\na = 1\nb = 2\n```\n"
	result := expand(t, data, "main")
	expected := "def run():\n    a = 1\n    b = 2\n"
	if string(result.Data) != expected {
		t.Fatalf("expected %q, got %q", expected, result.Data)
	}
	if err := result.Prov.Validate(len(result.Data)); err != nil {
		t.Fatalf("provenance invariant violated: %v", err)
	}
	synthetic := 0
	for _, entry := range result.Prov.Entries {
		if entry.Synthetic {
			synthetic++
			if entry.Text != string(result.Data[entry.Start:entry.End]) {
				t.Errorf("synthetic entry text %q does not match output %q", entry.Text, result.Data[entry.Start:entry.End])
			}
			if entry.Block.Name != "body" && entry.Block.Name != "main" {
				t.Errorf("synthetic entry attributed to unexpected block %v", entry.Block)
			}
		}
	}
	if synthetic == 0 {
		t.Errorf("expected synthetic indentation entries")
	}
}

func TestExpand_AppendSemantics(t *testing.T) {
	data := "```{.py #main file=out.py}\n<<part>>\n```\n\n```{.py #part}\nfirst\n```\n\n```{.py #part}\nsecond\n```\n"
	result := expand(t, data, "main")
	if string(result.Data) != "first\nsecond\n" {
		t.Fatalf("expected concatenated parts, got %q", result.Data)
	}
	var parts []int
	for _, entry := range result.Prov.Entries {
		if entry.Block.Name == "part" && !entry.Synthetic {
			parts = append(parts, entry.Block.Part)
		}
	}
	if !reflect.DeepEqual(parts, []int{0, 1}) {
		t.Errorf("expected provenance to distinguish block parts, got %v", parts)
	}
}

func TestProvenance_MarshalRoundTrip(t *testing.T) {
	original := expand(t, exampleDoc, "main").Prov
	data, err := original.Marshal()
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	restored := Provenance{}
	if err := restored.Unmarshal(data); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !reflect.DeepEqual(original, restored) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", restored, original)
	}
}

func TestTangler_Write(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	result := expand(t, exampleDoc, "main")
	tangler := New()
	if err := tangler.Write(ctx, root, result); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	actual, err := os.ReadFile(filepath.Join(root, "out.py"))
	if err != nil {
		t.Fatalf("reading target failed: %v", err)
	}
	if string(actual) != "print(\"hi\")\n" {
		t.Errorf("unexpected target content: %q", actual)
	}
	data, err := tangler.Read(ctx, root, "out.py")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !bytes.Equal(data, actual) {
		t.Errorf("Read returned different content")
	}
	missing, err := tangler.Read(ctx, root, "absent.py")
	if err != nil || missing != nil {
		t.Errorf("expected nil content for absent target, got %v %v", missing, err)
	}
}
