package manifest

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads and validates a manifest from the given file path.
//
// The file format is determined by extension: .yaml/.yml for YAML, .json for
// JSON, .jsonl/.ndjson for one item per line. If the extension is
// unrecognized, JSONL is attempted first, then YAML, then JSON.
//
// Returns an error if:
//   - The file cannot be read (not found, permission denied, etc.)
//   - The file content is not valid YAML, JSON, or JSONL
//   - The manifest fails schema validation
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("manifest file not found: %s", path)
		}
		if os.IsPermission(err) {
			return nil, fmt.Errorf("permission denied reading manifest: %s", path)
		}
		return nil, fmt.Errorf("failed to read manifest file: %w", err)
	}

	return LoadFromBytes(data, path)
}

// LoadFromReader reads and validates a manifest from an io.Reader.
//
// The path parameter is used for error messages and format detection.
func LoadFromReader(r io.Reader, path string) (*Manifest, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return LoadFromBytes(data, path)
}

// LoadFromBytes parses and validates a manifest from raw bytes.
//
// Validation runs on the raw data (converted to JSON) before it is decoded
// into the typed struct, so unknown fields are rejected instead of being
// silently dropped.
func LoadFromBytes(data []byte, path string) (*Manifest, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("manifest file is empty")
	}

	jsonData, err := toJSON(data, path)
	if err != nil {
		return nil, err
	}

	if err := ValidateRaw(jsonData); err != nil {
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(jsonData, &m); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	m.ApplyDefaults()
	return &m, nil
}

// toJSON converts the input to a JSON manifest document.
func toJSON(data []byte, path string) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		var raw any
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("invalid JSON in manifest: %w", err)
		}
		return data, nil

	case ".yaml", ".yml":
		return yamlToJSON(data)

	case ".jsonl", ".ndjson":
		return jsonlToJSON(data)

	default:
		if items, err := splitLines(data); err == nil && len(items) > 0 {
			if len(items) > 1 || isBareItem(items[0]) {
				return wrapItems(items)
			}
		}
		jsonData, yamlErr := yamlToJSON(data)
		if yamlErr == nil {
			return jsonData, nil
		}
		var raw any
		if err := json.Unmarshal(data, &raw); err == nil {
			return data, nil
		}
		return nil, fmt.Errorf("failed to parse manifest (tried JSONL, YAML and JSON): %w", yamlErr)
	}
}

// yamlToJSON converts YAML data to JSON.
func yamlToJSON(data []byte) ([]byte, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid YAML in manifest: %w", err)
	}

	jsonData, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to convert manifest to JSON: %w", err)
	}
	return jsonData, nil
}

// jsonlToJSON wraps one item object per line into a version 1 manifest.
func jsonlToJSON(data []byte) ([]byte, error) {
	items, err := splitLines(data)
	if err != nil {
		return nil, err
	}
	return wrapItems(items)
}

// splitLines returns each non-blank line as a JSON value.
func splitLines(data []byte) ([]json.RawMessage, error) {
	var items []json.RawMessage
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		if !json.Valid(text) {
			return nil, fmt.Errorf("invalid JSON on manifest line %d", line)
		}
		items = append(items, append(json.RawMessage(nil), text...))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read manifest lines: %w", err)
	}
	return items, nil
}

func wrapItems(items []json.RawMessage) ([]byte, error) {
	if items == nil {
		items = []json.RawMessage{}
	}
	return json.Marshal(map[string]any{
		"version": Version,
		"items":   items,
	})
}

// isBareItem reports whether a JSON document is a single item rather than
// a manifest.
func isBareItem(jsonData []byte) bool {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(jsonData, &fields); err != nil {
		return false
	}
	_, hasParams := fields["parameters"]
	_, hasItems := fields["items"]
	return hasParams && !hasItems
}
