// Package images persists poster images next to the dataset. Downloads are
// idempotent: an item always maps to the same destination file, and a file
// is only ever published through an atomic rename.
package images

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/aluiziolira/go-scrape-games/models"
)

// Getter fetches raw bytes for a URL. Satisfied by scraper.Fetcher.
type Getter interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Downloader resolves a record's poster URL into a file on disk.
type Downloader struct {
	getter  Getter
	dir     string
	enabled bool
}

// New builds a downloader writing into dir. A disabled downloader turns
// every MaybeDownload call into a no-op.
func New(getter Getter, dir string, enabled bool) *Downloader {
	return &Downloader{
		getter:  getter,
		dir:     dir,
		enabled: enabled,
	}
}

// MaybeDownload fetches the record's poster image and publishes it under
// the deterministic destination for the record. It returns the published
// file name, or an empty string when downloading is disabled or the record
// has no poster URL.
func (d *Downloader) MaybeDownload(ctx context.Context, game *models.Game) (string, error) {
	if d == nil || !d.enabled || game == nil || game.PosterURL == nil {
		return "", nil
	}

	data, err := d.getter.Fetch(ctx, *game.PosterURL)
	if err != nil {
		return "", fmt.Errorf("fetch poster: %w", err)
	}

	name := d.fileName(game)
	if err := writeFileAtomic(d.dir, name, data); err != nil {
		return "", fmt.Errorf("write poster %s: %w", name, err)
	}
	return name, nil
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// fileName keys the destination by the record's identifier so re-running
// overwrites the same path instead of accumulating duplicates.
func (d *Downloader) fileName(game *models.Game) string {
	key := game.ID
	if key == "" {
		key = game.Title
	}
	key = unsafeChars.ReplaceAllString(key, "_")
	return key + extFromURL(*game.PosterURL)
}

func extFromURL(rawURL string) string {
	ext := ""
	if u, err := url.Parse(rawURL); err == nil {
		ext = strings.ToLower(path.Ext(u.Path))
	}
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return ext
	default:
		return ".jpg"
	}
}

// writeFileAtomic writes data to a same-directory temp file and renames it
// over the destination, so a failed or interrupted download never leaves a
// truncated file that could pass for a valid image.
func writeFileAtomic(dir, name string, data []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		tmp.Close()
		os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmpName, filepath.Join(dir, name))
}
