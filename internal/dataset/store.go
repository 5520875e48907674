package dataset

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/gamecatalog/internal/catalog"
	"github.com/JakeFAU/gamecatalog/internal/storage/local"
)

// Format names a serialization shape.
type Format string

const (
	// FormatJSONL writes one record per line.
	FormatJSONL Format = "jsonl"
	// FormatJSON writes a single array of records.
	FormatJSON Format = "json"
)

const maxLineBytes = 16 << 20

// ParseFormat validates a configured format name.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatJSONL:
		return FormatJSONL, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown dataset format %q", s)
	}
}

// Store loads and saves a Dataset at one path.
type Store struct {
	path   string
	format Format
	logger *zap.Logger
}

// NewStore builds a Store. An empty format means FormatJSONL.
func NewStore(path string, format Format, logger *zap.Logger) *Store {
	if format == "" {
		format = FormatJSONL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{path: path, format: format, logger: logger}
}

// Path returns the file the store reads and writes.
func (s *Store) Path() string {
	return s.path
}

// Load reads the dataset. A missing file yields an empty dataset; malformed
// or slug-less entries are skipped. A file that cannot be read at all is
// reported as catalog.ErrDatasetCorrupt.
func (s *Store) Load() (Dataset, error) {
	// #nosec G304 -- the dataset path is operator configuration.
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Dataset{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", catalog.ErrDatasetCorrupt, s.path, err)
	}
	if s.format == FormatJSON {
		return s.loadJSON(data)
	}
	return s.loadJSONL(data)
}

func (s *Store) loadJSONL(data []byte) (Dataset, error) {
	ds := Dataset{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		s.add(ds, line, lineNo)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", catalog.ErrDatasetCorrupt, s.path, err)
	}
	return ds, nil
}

func (s *Store) loadJSON(data []byte) (Dataset, error) {
	ds := Dataset{}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return ds, nil
	}

	var entries []json.RawMessage
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", catalog.ErrDatasetCorrupt, s.path, err)
		}
	case '{':
		var keyed map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &keyed); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", catalog.ErrDatasetCorrupt, s.path, err)
		}
		keys := make([]string, 0, len(keyed))
		for key := range keyed {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			entries = append(entries, keyed[key])
		}
	default:
		return nil, fmt.Errorf("%w: %s: expected array or object", catalog.ErrDatasetCorrupt, s.path)
	}

	for i, entry := range entries {
		s.add(ds, entry, i+1)
	}
	return ds, nil
}

func (s *Store) add(ds Dataset, raw []byte, position int) {
	var rec catalog.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		s.logger.Warn("skipping malformed dataset entry",
			zap.String("path", s.path),
			zap.Int("entry", position),
			zap.Error(err),
		)
		return
	}
	if strings.TrimSpace(rec.Slug) == "" {
		s.logger.Warn("skipping dataset entry without slug",
			zap.String("path", s.path),
			zap.Int("entry", position),
		)
		return
	}
	ds.Upsert(rec)
}

// Save writes ds sorted by slug, replacing the file atomically.
func (s *Store) Save(ds Dataset) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	records := ds.Sorted()
	switch s.format {
	case FormatJSON:
		enc.SetIndent("", "  ")
		if err := enc.Encode(records); err != nil {
			return fmt.Errorf("encode dataset: %w", err)
		}
	default:
		for _, rec := range records {
			if err := enc.Encode(rec); err != nil {
				return fmt.Errorf("encode record %q: %w", rec.Slug, err)
			}
		}
	}

	// #nosec G306 -- the dataset is meant to be shared.
	if err := local.WriteFileAtomic(s.path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("save dataset: %w", err)
	}
	return nil
}
