package archive

import (
	"context"
	"sort"
	"testing"
)

func TestLocalFS_ImplementsStorage(t *testing.T) {
	var _ Storage = (*LocalFS)(nil)
}

func TestNewLocalFS_RequiresPath(t *testing.T) {
	if _, err := NewLocalFS(""); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestLocalFS_WriteRead(t *testing.T) {
	fs, err := NewLocalFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalFS: %v", err)
	}
	ctx := context.Background()

	if err := fs.Write(ctx, "summaries/2024/01/15.json", []byte(`{"v":1}`)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	// overwrite keeps the latest content
	if err := fs.Write(ctx, "summaries/2024/01/15.json", []byte(`{"v":2}`)); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := fs.Read(ctx, "summaries/2024/01/15.json")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != `{"v":2}` {
		t.Errorf("got %q", got)
	}
}

func TestLocalFS_Exists(t *testing.T) {
	fs, _ := NewLocalFS(t.TempDir())
	ctx := context.Background()

	exists, err := fs.Exists(ctx, "nonexistent.json")
	if err != nil || exists {
		t.Errorf("expected false, nil; got %v, %v", exists, err)
	}

	_ = fs.Write(ctx, "exists.json", []byte("{}"))
	exists, _ = fs.Exists(ctx, "exists.json")
	if !exists {
		t.Error("expected true for existing file")
	}
}

func TestLocalFS_List(t *testing.T) {
	fs, _ := NewLocalFS(t.TempDir())
	ctx := context.Background()

	_ = fs.Write(ctx, "summaries/2024/01/02.json", []byte("a"))
	_ = fs.Write(ctx, "summaries/2024/01/03.json", []byte("b"))
	_ = fs.Write(ctx, "summaries/2024/02/01.json", []byte("c"))

	paths, err := fs.List(ctx, "summaries/2024/01")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	sort.Strings(paths)
	want := []string{"summaries/2024/01/02.json", "summaries/2024/01/03.json"}
	if len(paths) != len(want) || paths[0] != want[0] || paths[1] != want[1] {
		t.Errorf("List = %v, want %v", paths, want)
	}

	empty, err := fs.List(ctx, "summaries/2023")
	if err != nil || len(empty) != 0 {
		t.Errorf("missing prefix: got %v, %v", empty, err)
	}
}
