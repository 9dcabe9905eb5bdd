package archive

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestSummaryPath(t *testing.T) {
	loc := time.FixedZone("ICT", 7*3600)
	got := SummaryPath(time.Date(2024, 1, 5, 15, 0, 0, 0, loc))
	if got != "summaries/2024/01/05.json" {
		t.Errorf("SummaryPath = %q", got)
	}
}

func TestOpen(t *testing.T) {
	s, err := Open(Config{})
	if err != nil || s != nil {
		t.Errorf("disabled archive: got %v, %v", s, err)
	}

	s, err = Open(Config{Type: "localfs", Path: t.TempDir()})
	if err != nil {
		t.Fatalf("Open localfs: %v", err)
	}
	if _, ok := s.(*LocalFS); !ok {
		t.Errorf("expected *LocalFS, got %T", s)
	}

	if _, err := Open(Config{Type: "ftp"}); err == nil {
		t.Error("expected error for unknown type")
	}
}

func TestWriteJSON(t *testing.T) {
	fs, _ := NewLocalFS(t.TempDir())
	ctx := context.Background()

	in := map[string]any{"date": "2024-01-05", "closed": 2}
	if err := WriteJSON(ctx, fs, "summaries/2024/01/05.json", in); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	data, err := fs.Read(ctx, "summaries/2024/01/05.json")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["date"] != "2024-01-05" || out["closed"] != float64(2) {
		t.Errorf("round trip = %v", out)
	}
}
