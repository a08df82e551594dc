package fingerprint

import (
	"testing"
)

func TestHash(t *testing.T) {
	a, err := Hash([]byte("print(\"hi\")\n"))
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	b, err := Hash([]byte("print(\"hi\")\n"))
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if a != b {
		t.Errorf("expected stable hash, got %v and %v", a, b)
	}
	c, err := Hash([]byte("print(\"hello\")\n"))
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if a == c {
		t.Errorf("expected different content to hash differently")
	}
	empty, err := Hash(nil)
	if err != nil {
		t.Fatalf("Hash failed on empty input: %v", err)
	}
	if empty == a {
		t.Errorf("empty input should not collide with non-empty")
	}
}

func TestMap(t *testing.T) {
	m := NewMap[string, uint64]()
	v := uint64(42)
	m.Set("doc.md", &v)
	got, ok := m.Get("doc.md")
	if !ok || *got != 42 {
		t.Fatalf("expected 42, got %v ok=%v", got, ok)
	}
	data, err := m.Data()
	if err != nil {
		t.Fatalf("Data failed: %v", err)
	}
	restored := NewMap[string, uint64]()
	if err := restored.Load(data); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	got, ok = restored.Get("doc.md")
	if !ok || *got != 42 {
		t.Fatalf("expected restored 42, got %v ok=%v", got, ok)
	}
	if restored.Size() != 1 {
		t.Errorf("expected size 1, got %d", restored.Size())
	}
}

func TestMap_Drain(t *testing.T) {
	m := NewMap[string, bool]()
	marked := true
	m.Set("a.md", &marked)
	m.Set("b.md", &marked)
	keys := m.Drain()
	if len(keys) != 2 {
		t.Fatalf("expected both keys drained, got %v", keys)
	}
	if m.Size() != 0 {
		t.Errorf("expected an empty map after drain, got size %d", m.Size())
	}
	if again := m.Drain(); len(again) != 0 {
		t.Errorf("expected nothing on a second drain, got %v", again)
	}
}
