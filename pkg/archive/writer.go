// Package archive persists raw upstream payloads to the output directory
// tree, one pretty-printed JSON file per logical resource.
package archive

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// WriteJSON writes a payload to path as indented JSON, creating parent
// directories as needed. The payload's own key order is preserved
// (json.Indent reformats the raw bytes without re-marshalling), output is
// UTF-8 and newline-terminated, and an existing file is overwritten
// wholesale.
func WriteJSON(path string, raw []byte) error {
	if !json.Valid(raw) {
		return fmt.Errorf("archive: payload for %s is not valid JSON", path)
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return fmt.Errorf("archive: indent payload for %s: %w", path, err)
	}
	buf.WriteByte('\n')

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("archive: create directory for %s: %w", path, err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("archive: write %s: %w", path, err)
	}
	return nil
}

// ReadJSON reads back a previously written payload, validating it parses.
// The fan-out phase uses this to re-load the races listing from disk.
func ReadJSON(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("archive: read %s: %w", path, err)
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("archive: %s does not contain valid JSON", path)
	}
	return raw, nil
}
