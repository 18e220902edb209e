// Package pipeline serializes the collected dataset. Writers stream batches
// in dataset order into a dot-prefixed partial file and publish the final
// file atomically on Close, so an aborted run never leaves a truncated file
// under the final name.
package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/aluiziolira/go-scrape-games/models"
)

// OutputWriter defines the interface for dataset output.
type OutputWriter interface {
	Write(games []*models.Game) error
	// Close flushes buffered records and publishes the final file.
	Close() error
	// Discard drops the partial file without publishing.
	Discard() error
	// Validate checks the published file after Close.
	Validate() error
}

var csvHeader = []string{"id", "rank", "title", "release_date", "countries", "languages", "genres", "companies", "official_sites", "top_cast", "rating", "awards", "nominations", "url", "poster_url", "poster_file"}

// Sub-delimiter for multi-valued cells; distinct from the column comma.
const multiValueSep = "|"

// CSVWriter writes records to CSV.
type CSVWriter struct {
	mu        sync.Mutex
	file      *os.File
	writer    *csv.Writer
	path      string
	tmpPath   string
	published bool
}

// NewCSVWriter initialises a CSV writer and writes the header row into the
// partial file.
func NewCSVWriter(filename string) (*CSVWriter, error) {
	f, tmpPath, err := createPartial(filename)
	if err != nil {
		return nil, err
	}

	writer := csv.NewWriter(f)
	if err := writer.Write(csvHeader); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("flush csv header: %w", err)
	}

	return &CSVWriter{
		file:    f,
		writer:  writer,
		path:    filename,
		tmpPath: tmpPath,
	}, nil
}

// Write appends games to the CSV output.
func (cw *CSVWriter) Write(games []*models.Game) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	for _, game := range games {
		if err := cw.writer.Write(csvRow(game)); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return nil
}

// Close flushes remaining records and publishes the final file.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv writer: %w", err)
	}
	if err := publish(cw.file, cw.tmpPath, cw.path); err != nil {
		return err
	}
	cw.published = true
	return nil
}

// Discard drops the partial file.
func (cw *CSVWriter) Discard() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.published {
		return nil
	}
	cw.file.Close()
	return os.Remove(cw.tmpPath)
}

// Validate ensures the published file exists and is not empty. A header-only
// file is a legitimate empty dataset, not a failure.
func (cw *CSVWriter) Validate() error {
	return validateFile(cw.path)
}

func csvRow(game *models.Game) []string {
	return []string{
		game.ID,
		strconv.Itoa(game.Rank),
		game.Title,
		stringOrEmpty(game.ReleaseDate),
		strings.Join(game.Countries, multiValueSep),
		strings.Join(game.Languages, multiValueSep),
		strings.Join(game.Genres, multiValueSep),
		strings.Join(game.Companies, multiValueSep),
		strings.Join(game.OfficialSites, multiValueSep),
		strings.Join(game.TopCast, multiValueSep),
		ratingOrEmpty(game.Rating),
		intOrEmpty(game.Awards),
		intOrEmpty(game.Nominations),
		game.URL,
		stringOrEmpty(game.PosterURL),
		stringOrEmpty(game.PosterFile),
	}
}

func stringOrEmpty(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func intOrEmpty(value *int) string {
	if value == nil {
		return ""
	}
	return strconv.Itoa(*value)
}

func ratingOrEmpty(value *float64) string {
	if value == nil {
		return ""
	}
	return strconv.FormatFloat(*value, 'f', -1, 64)
}

// JSONWriter writes the dataset as a single JSON array whose objects carry
// explicit nulls for fields that were not collected.
type JSONWriter struct {
	mu        sync.Mutex
	file      *os.File
	writer    *bufio.Writer
	path      string
	tmpPath   string
	count     int
	published bool
}

// NewJSONWriter initialises the JSON writer.
func NewJSONWriter(filename string) (*JSONWriter, error) {
	f, tmpPath, err := createPartial(filename)
	if err != nil {
		return nil, err
	}

	buffer := bufio.NewWriter(f)
	if _, err := buffer.WriteString("["); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("write json prefix: %w", err)
	}

	return &JSONWriter{
		file:    f,
		writer:  buffer,
		path:    filename,
		tmpPath: tmpPath,
	}, nil
}

// Write appends games to the array.
func (jw *JSONWriter) Write(games []*models.Game) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	for _, game := range games {
		encoded, err := json.Marshal(game)
		if err != nil {
			return fmt.Errorf("encode json record: %w", err)
		}
		if jw.count > 0 {
			if _, err := jw.writer.WriteString(","); err != nil {
				return fmt.Errorf("write json separator: %w", err)
			}
		}
		if _, err := jw.writer.WriteString("\n  "); err != nil {
			return fmt.Errorf("write json indent: %w", err)
		}
		if _, err := jw.writer.Write(encoded); err != nil {
			return fmt.Errorf("write json record: %w", err)
		}
		jw.count++
	}

	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return nil
}

// Close terminates the array and publishes the final file.
func (jw *JSONWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	suffix := "]\n"
	if jw.count > 0 {
		suffix = "\n]\n"
	}
	if _, err := jw.writer.WriteString(suffix); err != nil {
		return fmt.Errorf("write json suffix: %w", err)
	}
	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	if err := publish(jw.file, jw.tmpPath, jw.path); err != nil {
		return err
	}
	jw.published = true
	return nil
}

// Discard drops the partial file.
func (jw *JSONWriter) Discard() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if jw.published {
		return nil
	}
	jw.file.Close()
	return os.Remove(jw.tmpPath)
}

// Validate ensures the published file exists and is not empty.
func (jw *JSONWriter) Validate() error {
	return validateFile(jw.path)
}

func createPartial(filename string) (*os.File, string, error) {
	if err := ensureDir(filename); err != nil {
		return nil, "", err
	}

	tmpPath := partialPath(filename)
	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, "", fmt.Errorf("create partial file: %w", err)
	}
	return f, tmpPath, nil
}

// partialPath names the in-progress file next to the final one, dot-prefixed
// so it is never mistaken for a finished dataset.
func partialPath(filename string) string {
	dir, base := filepath.Split(filename)
	return filepath.Join(dir, "."+base+".partial")
}

func publish(f *os.File, tmpPath, path string) error {
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync output file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close output file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("publish output file: %w", err)
	}
	return nil
}

func validateFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat output file: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("output file %q is empty", path)
	}
	return nil
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
