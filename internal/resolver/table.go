package resolver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/bnema/cosmetic-filters/internal/models"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Table errors. A table failing either check must not be used.
var (
	ErrInvalidTable    = errors.New("invalid rule table")
	ErrIndexOutOfRange = errors.New("deduplication index out of range")
)

// Format of a serialized rule table
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFor picks the table format from a file extension, defaulting to JSON.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Decode reads and validates a rule table.
func Decode(r io.Reader, format Format) (*models.RuleTable, error) {
	var table models.RuleTable

	var dec interface{ Decode(v any) error }
	switch format {
	case FormatYAML:
		dec = yaml.NewDecoder(r)
	default:
		dec = json.NewDecoder(r)
	}

	if err := dec.Decode(&table); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTable, err)
	}
	// The table must be the only value in the blob.
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			err = errors.New("trailing data after table")
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidTable, err)
	}

	if err := Validate(&table); err != nil {
		return nil, err
	}
	return &table, nil
}

// LoadFile reads a rule table from fs.
func LoadFile(fs afero.Fs, path string) (*models.RuleTable, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening rule table: %w", err)
	}
	defer f.Close()

	table, err := Decode(f, FormatFor(path))
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return table, nil
}

// Encode writes a rule table in the given format.
func Encode(w io.Writer, t *models.RuleTable, format Format) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(t); err != nil {
			return fmt.Errorf("encoding rule table: %w", err)
		}
		return enc.Close()
	default:
		if err := json.NewEncoder(w).Encode(t); err != nil {
			return fmt.Errorf("encoding rule table: %w", err)
		}
		return nil
	}
}

// SaveFile writes a rule table to fs, creating parent directories. The
// format follows the file extension.
func SaveFile(fs afero.Fs, path string, t *models.RuleTable) error {
	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	f, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := Encode(f, t, FormatFor(path)); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Validate checks that every integer value is a valid index into the
// deduplicated strings.
func Validate(t *models.RuleTable) error {
	if t == nil {
		return fmt.Errorf("%w: nil table", ErrInvalidTable)
	}

	for _, kind := range models.EntryKinds {
		for key, v := range t.Mapping(kind) {
			idx, ok := v.Index()
			if !ok {
				continue
			}
			if idx >= len(t.DeduplicatedStrings) {
				return fmt.Errorf("%w: %s rule %q points at %d, table has %d strings",
					ErrIndexOutOfRange, kind, key, idx, len(t.DeduplicatedStrings))
			}
		}
	}
	return nil
}
