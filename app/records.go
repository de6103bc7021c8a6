package app

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/orplan/core/model"
)

// LoadRecords reads a roster of case records from a YAML or JSON file.
func LoadRecords(path string) ([]model.CaseRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return DecodeRecords(f, strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."))
}

// DecodeRecords reads case records from r in the given format.
func DecodeRecords(r io.Reader, format string) ([]model.CaseRecord, error) {
	var recs []model.CaseRecord
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.NewDecoder(r).Decode(&recs); err != nil {
			return nil, fmt.Errorf("decode records: %w", err)
		}
	case "json":
		if err := json.NewDecoder(r).Decode(&recs); err != nil {
			return nil, fmt.Errorf("decode records: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported records format: %s", format)
	}
	return recs, nil
}
