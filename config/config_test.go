package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingDefaultFile(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadExplicitMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	data := `
recursive = true
jobs = 4
log_format = "json"

[aggregate]
pattern = "*_ocr.json"
format = "markdown"

[ocr]
languages = ["eng", "deu"]

[parser]
lenient = true
max_stream_length = 1024
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultFile), []byte(data), 0o644))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.True(t, cfg.Recursive)
	assert.False(t, cfg.Overwrite)
	assert.Equal(t, 4, cfg.Jobs)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "*_ocr.json", cfg.Aggregate.Pattern)
	assert.Equal(t, "markdown", cfg.Aggregate.Format)
	assert.Equal(t, Default().Aggregate.Output, cfg.Aggregate.Output)
	assert.Equal(t, []string{"eng", "deu"}, cfg.OCR.Languages)
	assert.True(t, cfg.Parser.Lenient)

	limits := cfg.Parser.Limits()
	assert.EqualValues(t, 1024, limits.MaxStreamLength)
	assert.EqualValues(t, 100*1024*1024, limits.MaxDecompressedSize)
}

func TestDecodeRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"unknown key":   "colour = 1",
		"bad jobs":      "jobs = 0",
		"bad format":    "log_format = \"yaml\"",
		"bad summary":   "[aggregate]\nformat = \"pdf\"",
		"bad limits":    "[parser]\nmax_stream_length = -1",
		"syntax":        "jobs = ",
		"wrong type":    "recursive = \"yes\"",
		"negative verb": "verbosity = -1",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			assert.Error(t, Decode([]byte(data), &cfg))
		})
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Overwrite = true
	cfg.OCR.Languages = []string{"fra"}
	data, err := Encode(cfg)
	require.NoError(t, err)

	var got Config
	require.NoError(t, Decode(data, &got))
	assert.Equal(t, cfg, got)
}
