package compiler

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/afero"
)

// TopDomains is a ranked domain list restricting the lite table
type TopDomains struct {
	set map[string]struct{}
}

// ReadTopDomains reads up to count rows of a "rank,domain" CSV. A
// non-positive count reads everything.
func ReadTopDomains(r io.Reader, count int) (*TopDomains, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	td := &TopDomains{set: make(map[string]struct{})}
	for rows := 0; count <= 0 || rows < count; rows++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading top domains: %w", err)
		}
		if len(record) < 2 {
			return nil, fmt.Errorf("reading top domains: line %d has %d fields, want rank,domain", rows+1, len(record))
		}
		if d := strings.ToLower(strings.TrimSpace(record[1])); d != "" {
			td.set[d] = struct{}{}
		}
	}
	return td, nil
}

// LoadTopDomains reads a top domain CSV from fs
func LoadTopDomains(fs afero.Fs, path string, count int) (*TopDomains, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening top domains: %w", err)
	}
	defer f.Close()
	return ReadTopDomains(f, count)
}

// Contains reports whether domain is in the list
func (t *TopDomains) Contains(domain string) bool {
	_, ok := t.set[strings.ToLower(domain)]
	return ok
}

func (t *TopDomains) Len() int {
	return len(t.set)
}
