package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validManifestYAML() string {
	return `version: 1
items:
  - parameters:
      objectPath: https://cdn.example.com/app.js
`
}

func validManifestJSON() string {
	return `{
  "version": 1,
  "items": [
    {"parameters": {"objectPath": "https://cdn.example.com/app.js"}}
  ]
}`
}

func fullManifestYAML() string {
	return `$schema: https://schemas.3leaps.dev/nimbuscdn/v1.0.0/items-manifest.schema.json
version: 1
node:
  name: Purge assets
  endpoint: cdn.ap-southeast-1.aliyuncs.com
items:
  - json:
      host: https://cdn.example.com
    parameters:
      operation: refreshObjectCaches
      objectPath: "={{ $json.host }}/app.js"
      objectType: File
      additionalFields:
        force: true
        ownerId: 42
  - parameters:
      objectPath: https://cdn.example.com/img/
      objectType: Directory
`
}

func validManifestJSONL() string {
	return `{"json": {"n": 1}, "parameters": {"objectPath": "https://cdn.example.com/a.js"}}

{"parameters": {"objectPath": "https://cdn.example.com/dir/", "objectType": "Directory"}}
`
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		filename    string
		wantErr     bool
		errContains string
		validate    func(t *testing.T, m *Manifest)
	}{
		{
			name:     "valid YAML manifest",
			content:  validManifestYAML(),
			filename: "items.yaml",
			validate: func(t *testing.T, m *Manifest) {
				assert.Equal(t, 1, m.Version)
				require.Len(t, m.Items, 1)
				assert.Equal(t, "https://cdn.example.com/app.js", m.Items[0].Parameters["objectPath"])
				// Defaults
				assert.Equal(t, DefaultNodeName, m.Node.Name)
				assert.Equal(t, "refreshObjectCaches", m.Items[0].Parameters["operation"])
				assert.Equal(t, "File", m.Items[0].Parameters["objectType"])
				assert.Equal(t, map[string]any{}, m.Items[0].JSON)
			},
		},
		{
			name:     "valid JSON manifest",
			content:  validManifestJSON(),
			filename: "items.json",
			validate: func(t *testing.T, m *Manifest) {
				assert.Equal(t, 1, m.Version)
				require.Len(t, m.Items, 1)
			},
		},
		{
			name:     "full manifest with all options",
			content:  fullManifestYAML(),
			filename: "full.yml",
			validate: func(t *testing.T, m *Manifest) {
				assert.Equal(t, "https://schemas.3leaps.dev/nimbuscdn/v1.0.0/items-manifest.schema.json", m.Schema)
				assert.Equal(t, "Purge assets", m.Node.Name)
				assert.Equal(t, "cdn.ap-southeast-1.aliyuncs.com", m.Node.Endpoint)
				require.Len(t, m.Items, 2)

				first := m.Items[0]
				assert.Equal(t, "https://cdn.example.com", first.JSON["host"])
				assert.Equal(t, "={{ $json.host }}/app.js", first.Parameters["objectPath"])
				fields := first.Parameters["additionalFields"].(map[string]any)
				assert.Equal(t, true, fields["force"])
				assert.EqualValues(t, 42, fields["ownerId"])

				assert.Equal(t, "Directory", m.Items[1].Parameters["objectType"])
			},
		},
		{
			name:     "JSONL by extension",
			content:  validManifestJSONL(),
			filename: "items.jsonl",
			validate: func(t *testing.T, m *Manifest) {
				require.Len(t, m.Items, 2)
				assert.EqualValues(t, 1, m.Items[0].JSON["n"])
				assert.Equal(t, "Directory", m.Items[1].Parameters["objectType"])
				assert.Equal(t, "File", m.Items[0].Parameters["objectType"])
			},
		},
		{
			name:        "missing items",
			content:     "version: 1\n",
			filename:    "items.yaml",
			wantErr:     true,
			errContains: "items",
		},
		{
			name:        "empty items",
			content:     "version: 1\nitems: []\n",
			filename:    "items.yaml",
			wantErr:     true,
			errContains: "/items",
		},
		{
			name:        "item without parameters",
			content:     "version: 1\nitems:\n  - json: {a: 1}\n",
			filename:    "items.yaml",
			wantErr:     true,
			errContains: "parameters",
		},
		{
			name:        "unsupported version",
			content:     "version: 2\nitems:\n  - parameters: {objectPath: x}\n",
			filename:    "items.yaml",
			wantErr:     true,
			errContains: "/version",
		},
		{
			name:        "unknown top-level field",
			content:     validManifestYAML() + "extra: true\n",
			filename:    "items.yaml",
			wantErr:     true,
			errContains: "extra",
		},
		{
			name:        "unknown item field",
			content:     "version: 1\nitems:\n  - parameters: {objectPath: x}\n    meta: {}\n",
			filename:    "items.yaml",
			wantErr:     true,
			errContains: "meta",
		},
		{
			name:        "invalid YAML",
			content:     "version: 1\nitems: [\n",
			filename:    "items.yaml",
			wantErr:     true,
			errContains: "invalid YAML",
		},
		{
			name:        "invalid JSON",
			content:     `{"version": 1,`,
			filename:    "items.json",
			wantErr:     true,
			errContains: "invalid JSON",
		},
		{
			name:        "invalid JSONL line",
			content:     "{\"parameters\": {}}\nnot json\n",
			filename:    "items.jsonl",
			wantErr:     true,
			errContains: "line 2",
		},
		{
			name:        "empty file",
			content:     "  \n",
			filename:    "items.yaml",
			wantErr:     true,
			errContains: "empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.filename)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			m, err := Load(path)
			if tt.wantErr {
				require.Error(t, err)
				if tt.errContains != "" {
					assert.Contains(t, strings.ToLower(err.Error()), strings.ToLower(tt.errContains),
						"error should contain %q", tt.errContains)
				}
				return
			}
			require.NoError(t, err)
			if tt.validate != nil {
				tt.validate(t, m)
			}
		})
	}
}

func TestLoad_FileErrors(t *testing.T) {
	t.Run("file not found", func(t *testing.T) {
		_, err := Load("/nonexistent/path/items.yaml")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
	})

	t.Run("permission denied", func(t *testing.T) {
		if os.Getuid() == 0 {
			t.Skip("skipping permission test when running as root")
		}

		path := filepath.Join(t.TempDir(), "noperm.yaml")
		require.NoError(t, os.WriteFile(path, []byte(validManifestYAML()), 0o000))
		t.Cleanup(func() {
			_ = os.Chmod(path, 0o644)
		})

		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "permission")
	})
}

func TestLoadFromBytes(t *testing.T) {
	t.Run("auto-detect YAML", func(t *testing.T) {
		m, err := LoadFromBytes([]byte(validManifestYAML()), "")
		require.NoError(t, err)
		assert.Len(t, m.Items, 1)
	})

	t.Run("auto-detect JSON", func(t *testing.T) {
		m, err := LoadFromBytes([]byte(validManifestJSON()), "")
		require.NoError(t, err)
		assert.Len(t, m.Items, 1)
	})

	t.Run("auto-detect single-line JSON manifest", func(t *testing.T) {
		line := `{"version": 1, "items": [{"parameters": {"objectPath": "a"}}]}`
		m, err := LoadFromBytes([]byte(line), "")
		require.NoError(t, err)
		assert.Len(t, m.Items, 1)
	})

	t.Run("auto-detect JSONL", func(t *testing.T) {
		m, err := LoadFromBytes([]byte(validManifestJSONL()), "")
		require.NoError(t, err)
		assert.Len(t, m.Items, 2)
	})

	t.Run("auto-detect single JSONL item", func(t *testing.T) {
		m, err := LoadFromBytes([]byte(`{"parameters": {"objectPath": "a"}}`), "")
		require.NoError(t, err)
		require.Len(t, m.Items, 1)
		assert.Equal(t, "a", m.Items[0].Parameters["objectPath"])
	})

	t.Run("unknown extension", func(t *testing.T) {
		m, err := LoadFromBytes([]byte(validManifestYAML()), "items.txt")
		require.NoError(t, err)
		assert.Len(t, m.Items, 1)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := LoadFromBytes([]byte("version: [1\n"), "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse manifest")
	})
}

func TestLoadFromReader(t *testing.T) {
	m, err := LoadFromReader(strings.NewReader(validManifestYAML()), "items.yaml")
	require.NoError(t, err)
	assert.Len(t, m.Items, 1)
}

func TestApplyDefaults(t *testing.T) {
	t.Run("fills missing values", func(t *testing.T) {
		m := &Manifest{Version: 1, Items: []Item{{}}}
		m.ApplyDefaults()

		assert.Equal(t, DefaultNodeName, m.Node.Name)
		assert.Equal(t, map[string]any{}, m.Items[0].JSON)
		assert.Equal(t, "refreshObjectCaches", m.Items[0].Parameters["operation"])
		assert.Equal(t, "File", m.Items[0].Parameters["objectType"])
	})

	t.Run("keeps explicit values", func(t *testing.T) {
		m := &Manifest{
			Node: NodeConfig{Name: "purge"},
			Items: []Item{{Parameters: map[string]any{
				"operation":  "somethingElse",
				"objectType": "={{ $json.kind }}",
			}}},
		}
		m.ApplyDefaults()

		assert.Equal(t, "purge", m.Node.Name)
		assert.Equal(t, "somethingElse", m.Items[0].Parameters["operation"])
		assert.Equal(t, "={{ $json.kind }}", m.Items[0].Parameters["objectType"])
	})
}

func TestInputData(t *testing.T) {
	m := &Manifest{Items: []Item{
		{JSON: map[string]any{"a": 1}},
		{JSON: map[string]any{"b": 2}},
	}}

	data := m.InputData()
	require.Len(t, data, 2)
	assert.Equal(t, map[string]any{"a": 1}, data[0].JSON)
	assert.Equal(t, map[string]any{"b": 2}, data[1].JSON)
}

func TestValidationErrors(t *testing.T) {
	t.Run("single error", func(t *testing.T) {
		errs := ValidationErrors{{Path: "/version", Message: "required"}}
		assert.Equal(t, "/version: required", errs.Error())
	})

	t.Run("multiple errors", func(t *testing.T) {
		errs := ValidationErrors{
			{Path: "/version", Message: "required"},
			{Path: "/items", Message: "minimum 1 items required"},
		}
		errStr := errs.Error()
		assert.Contains(t, errStr, "2 errors")
		assert.Contains(t, errStr, "/version")
		assert.Contains(t, errStr, "/items")
	})

	t.Run("empty path", func(t *testing.T) {
		errs := ValidationErrors{{Path: "", Message: "root error"}}
		assert.Equal(t, "root error", errs.Error())
	})

	t.Run("unwrap returns ErrValidationFailed", func(t *testing.T) {
		errs := ValidationErrors{{Path: "/x", Message: "bad"}}
		assert.True(t, errors.Is(errs, ErrValidationFailed))
	})
}

func TestValidate(t *testing.T) {
	t.Run("valid manifest passes", func(t *testing.T) {
		m := &Manifest{
			Version: 1,
			Items:   []Item{{Parameters: map[string]any{"objectPath": "a"}}},
		}
		assert.NoError(t, Validate(m))
	})

	t.Run("nil parameters fail", func(t *testing.T) {
		m := &Manifest{Version: 1, Items: []Item{{}}}
		err := Validate(m)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrValidationFailed))
		assert.Contains(t, err.Error(), "/items/0/parameters")
	})

	t.Run("works from arbitrary directory", func(t *testing.T) {
		originalDir, err := os.Getwd()
		require.NoError(t, err)
		require.NoError(t, os.Chdir(t.TempDir()))
		t.Cleanup(func() {
			_ = os.Chdir(originalDir)
		})

		m := &Manifest{Version: 1, Items: []Item{{Parameters: map[string]any{}}}}
		assert.NoError(t, Validate(m), "validation should use the embedded schema")
	})
}
