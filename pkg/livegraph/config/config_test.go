package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestConfig_Accessors verifies typed extraction with defaults.
func TestConfig_Accessors(t *testing.T) {
	cfg := New(map[string]any{
		"name":    "agent",
		"enabled": true,
		"count":   float64(4),
		"ratio":   0.5,
		"tools":   []any{"a", "b"},
		"mixed":   []any{"a", 1},
		"nested":  map[string]any{"depth": 2},
	})

	assert.Equal(t, "agent", cfg.String("name", ""))
	assert.Equal(t, "fallback", cfg.String("count", "fallback"))
	assert.True(t, cfg.Bool("enabled", false))
	assert.Equal(t, 4, cfg.Int("count", 0))
	assert.Equal(t, 7, cfg.Int("ratio", 7))
	assert.Equal(t, []string{"a", "b"}, cfg.StringSlice("tools", nil))
	assert.Nil(t, cfg.StringSlice("mixed", nil))
	assert.Equal(t, 2, cfg.Sub("nested").Int("depth", 0))
	assert.Equal(t, 0, cfg.Sub("name").Len())
	assert.True(t, cfg.Has("name"))
	assert.False(t, cfg.Has("nope"))
}

// TestConfig_NilMap verifies a nil map behaves as empty.
func TestConfig_NilMap(t *testing.T) {
	cfg := New(nil)
	assert.NotNil(t, cfg.Raw())
	assert.Empty(t, cfg.Keys())
	assert.Equal(t, "x", cfg.String("a", "x"))
}

// TestConfig_Without verifies keys are removed from a copy only.
func TestConfig_Without(t *testing.T) {
	raw := map[string]any{"a": 1, "b": 2, "c": 3}
	cfg := New(raw)

	trimmed := cfg.Without("b", "zz")

	assert.Equal(t, []string{"a", "c"}, trimmed.Keys())
	assert.Equal(t, []string{"a", "b", "c"}, cfg.Keys())
	assert.Len(t, raw, 3)
}

type fileShape struct {
	Name  string `json:"name" yaml:"name"`
	Count int    `json:"count" yaml:"count"`
}

// TestDecodeFile verifies extension dispatch and strict decoding.
func TestDecodeFile(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		file    string
		body    string
		want    fileShape
		wantErr string
	}{
		{name: "yaml", file: "g.yaml", body: "name: g\ncount: 2\n", want: fileShape{Name: "g", Count: 2}},
		{name: "yml", file: "g.yml", body: "name: h\n", want: fileShape{Name: "h"}},
		{name: "json", file: "g.json", body: `{"name":"j","count":1}`, want: fileShape{Name: "j", Count: 1}},
		{name: "unknown yaml field", file: "bad.yaml", body: "name: g\nextra: 1\n", wantErr: "parse yaml"},
		{name: "unknown json field", file: "bad.json", body: `{"extra":1}`, wantErr: "parse json"},
		{name: "extension", file: "g.toml", body: "name = 1", wantErr: "unsupported file extension"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0o644))

			var got fileShape
			err := DecodeFile(path, &got)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestDecodeFile_Missing verifies a missing file reports the path.
func TestDecodeFile_Missing(t *testing.T) {
	var out fileShape
	err := DecodeFile(filepath.Join(t.TempDir(), "nope.yaml"), &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope.yaml")
}

// TestFromFile verifies loading a plain config map.
func TestFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model: m\nretries: 3\n"), 0o644))

	cfg, err := FromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "m", cfg.String("model", ""))
	assert.Equal(t, 3, cfg.Int("retries", 0))
}
