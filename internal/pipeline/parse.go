package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/driftgate/backend/internal/storage"
)

// schemaHeadSize bounds how much of a dataset is read for its schema; a
// header row or first JSON object comfortably fits.
const schemaHeadSize = 64 * 1024

// extractDatasetColumns reads the column names of a stored dataset: the
// header row for CSV, the first object's keys for JSON rows. Formats without
// a cheap schema read (parquet) return no columns, which skips the check.
func extractDatasetColumns(store storage.Store, id, format string) ([]string, error) {
	switch format {
	case "csv":
		return csvHeader(store, id)
	case "json", "jsonl":
		return jsonKeys(store, id)
	default:
		return nil, nil
	}
}

func csvHeader(store storage.Store, id string) ([]string, error) {
	head, err := store.Head(id, schemaHeadSize)
	if err != nil {
		return nil, err
	}

	line := head
	if i := bytes.IndexByte(head, '\n'); i >= 0 {
		line = head[:i]
	}
	line = bytes.TrimRight(line, "\r")
	if len(bytes.TrimSpace(line)) == 0 {
		return nil, fmt.Errorf("empty dataset")
	}

	fields := strings.Split(string(line), ",")
	columns := make([]string, 0, len(fields))
	for _, field := range fields {
		columns = append(columns, strings.TrimSpace(field))
	}
	return columns, nil
}

func jsonKeys(store storage.Store, id string) ([]string, error) {
	head, err := store.Head(id, schemaHeadSize)
	if err != nil {
		return nil, err
	}

	// Either an array of objects or one object per line; read the first
	// object's keys.
	dec := json.NewDecoder(bytes.NewReader(head))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("empty dataset")
	}
	if delim, ok := tok.(json.Delim); ok && delim == '[' {
		if !dec.More() {
			return nil, fmt.Errorf("empty dataset")
		}
	} else if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("dataset is not JSON rows")
	} else {
		dec = json.NewDecoder(bytes.NewReader(head))
	}

	var row map[string]json.RawMessage
	if err := dec.Decode(&row); err != nil {
		return nil, fmt.Errorf("parsing first row: %w", err)
	}

	columns := make([]string, 0, len(row))
	for k := range row {
		columns = append(columns, k)
	}
	return columns, nil
}

// missingFeatures returns the declared input features absent from the
// dataset columns. Either side being unknown skips the check.
func missingFeatures(features, columns []string) []string {
	if len(features) == 0 || len(columns) == 0 {
		return nil
	}

	have := make(map[string]bool, len(columns))
	for _, c := range columns {
		have[strings.ToLower(c)] = true
	}

	var missing []string
	for _, f := range features {
		if !have[strings.ToLower(f)] {
			missing = append(missing, f)
		}
	}
	return missing
}

// modelName strips the extension off an artifact file name.
func modelName(fileName string) string {
	if i := strings.LastIndex(fileName, "."); i > 0 {
		return fileName[:i]
	}
	return fileName
}
