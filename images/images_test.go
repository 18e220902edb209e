package images

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/aluiziolira/go-scrape-games/models"
)

type stubGetter struct {
	data  []byte
	err   error
	calls int
}

func (g *stubGetter) Fetch(_ context.Context, _ string) ([]byte, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return g.data, nil
}

func posterGame(id, posterURL string) *models.Game {
	game := &models.Game{ID: id, Title: "Game " + id, URL: "https://example.test/title/" + id + "/"}
	if posterURL != "" {
		game.PosterURL = &posterURL
	}
	return game
}

func TestMaybeDownloadWritesFile(t *testing.T) {
	dir := t.TempDir()
	getter := &stubGetter{data: []byte("image-bytes")}
	d := New(getter, dir, true)

	name, err := d.MaybeDownload(context.Background(), posterGame("tt0000001", "https://images.example.test/p/tt0000001.jpg"))
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if name != "tt0000001.jpg" {
		t.Fatalf("name=%q, want tt0000001.jpg", name)
	}

	content, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("read published file: %v", err)
	}
	if !bytes.Equal(content, getter.data) {
		t.Fatalf("published content mismatch")
	}
}

func TestMaybeDownloadIdempotent(t *testing.T) {
	dir := t.TempDir()
	getter := &stubGetter{data: []byte("same-bytes")}
	d := New(getter, dir, true)

	game := posterGame("tt0000002", "https://images.example.test/p/tt0000002.png")
	first, err := d.MaybeDownload(context.Background(), game)
	if err != nil {
		t.Fatalf("first download: %v", err)
	}
	second, err := d.MaybeDownload(context.Background(), game)
	if err != nil {
		t.Fatalf("second download: %v", err)
	}
	if first != second {
		t.Fatalf("destinations differ: %q vs %q", first, second)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries=%d, want a single published file", len(entries))
	}
	content, err := os.ReadFile(filepath.Join(dir, first))
	if err != nil {
		t.Fatalf("read published file: %v", err)
	}
	if !bytes.Equal(content, getter.data) {
		t.Fatalf("published content mismatch after re-run")
	}
}

func TestMaybeDownloadDisabledIsNoOp(t *testing.T) {
	dir := t.TempDir()
	getter := &stubGetter{data: []byte("ignored")}
	d := New(getter, dir, false)

	name, err := d.MaybeDownload(context.Background(), posterGame("tt0000003", "https://images.example.test/p/x.jpg"))
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if name != "" {
		t.Fatalf("name=%q, want empty", name)
	}
	if getter.calls != 0 {
		t.Fatalf("getter called %d times, want 0", getter.calls)
	}
}

func TestMaybeDownloadMissingPosterURLIsNoOp(t *testing.T) {
	dir := t.TempDir()
	getter := &stubGetter{data: []byte("ignored")}
	d := New(getter, dir, true)

	name, err := d.MaybeDownload(context.Background(), posterGame("tt0000004", ""))
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if name != "" || getter.calls != 0 {
		t.Fatalf("name=%q calls=%d, want no-op", name, getter.calls)
	}
}

func TestMaybeDownloadFetchFailureLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	getter := &stubGetter{err: errors.New("connection reset")}
	d := New(getter, dir, true)

	name, err := d.MaybeDownload(context.Background(), posterGame("tt0000005", "https://images.example.test/p/tt0000005.jpg"))
	if err == nil {
		t.Fatalf("expected error")
	}
	if name != "" {
		t.Fatalf("name=%q, want empty on failure", name)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("entries=%v, want none", entries)
	}
}

func TestFileNameSanitizesAndKeepsExtension(t *testing.T) {
	d := New(&stubGetter{}, t.TempDir(), true)

	tests := []struct {
		id     string
		poster string
		want   string
	}{
		{id: "tt0000010", poster: "https://images.example.test/p/a.png", want: "tt0000010.png"},
		{id: "tt0000011", poster: "https://images.example.test/p/a", want: "tt0000011.jpg"},
		{id: "", poster: "https://images.example.test/p/a.webp", want: "Game_.webp"},
	}
	for _, tt := range tests {
		game := posterGame(tt.id, tt.poster)
		if got := d.fileName(game); got != tt.want {
			t.Fatalf("fileName(%q)=%q, want %q", tt.id, got, tt.want)
		}
	}
}
