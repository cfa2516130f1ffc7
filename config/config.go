// Package config loads pdfpages settings from a TOML file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/wudi/pdfpages/aggregate"
	"github.com/wudi/pdfpages/security"
)

// DefaultFile is read from the working directory when no path is given.
const DefaultFile = "pdfpages.toml"

type Config struct {
	Recursive bool   `toml:"recursive"`
	Overwrite bool   `toml:"overwrite"`
	Jobs      int    `toml:"jobs"`
	LogFormat string `toml:"log_format"`
	Verbosity int    `toml:"verbosity"`

	Aggregate Aggregate `toml:"aggregate"`
	OCR       OCR       `toml:"ocr"`
	Parser    Parser    `toml:"parser"`
}

type Aggregate struct {
	InputDir string `toml:"input_dir"`
	Pattern  string `toml:"pattern"`
	Output   string `toml:"output"`
	Summary  string `toml:"summary"`
	Format   string `toml:"format"`
}

type OCR struct {
	Languages []string `toml:"languages"`
}

// Parser controls how input PDFs are read.
type Parser struct {
	// Lenient repairs broken cross-reference data instead of failing.
	Lenient bool `toml:"lenient"`
	// MaxStreamLength and MaxDecompressedSize override the default limits
	// when positive.
	MaxStreamLength     int64 `toml:"max_stream_length"`
	MaxDecompressedSize int64 `toml:"max_decompressed_size"`
}

// Default returns the settings used when no file is present.
func Default() Config {
	return Config{
		Jobs:      1,
		LogFormat: "text",
		Aggregate: Aggregate{
			InputDir: aggregate.DefaultInputDir,
			Pattern:  aggregate.DefaultPattern,
			Output:   aggregate.DefaultOutput,
			Summary:  aggregate.DefaultSummary,
			Format:   aggregate.FormatText,
		},
		OCR: OCR{Languages: []string{"eng"}},
	}
}

// Load reads path on top of Default. An empty path falls back to
// DefaultFile, which may be absent; an explicit path must exist.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := Decode(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Decode parses TOML into cfg, rejecting unknown keys and invalid values.
// Keys absent from data keep their current value.
func Decode(data []byte, cfg *Config) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return fmt.Errorf("unknown config keys:\n%s", strict.String())
		}
		return err
	}
	return cfg.Validate()
}

func (c Config) Validate() error {
	if c.Jobs < 1 {
		return fmt.Errorf("jobs must be at least 1, got %d", c.Jobs)
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log_format %q", c.LogFormat)
	}
	if c.Verbosity < 0 {
		return fmt.Errorf("verbosity must not be negative")
	}
	if _, err := aggregate.SummaryWriter(c.Aggregate.Format); err != nil {
		return err
	}
	if c.Parser.MaxStreamLength < 0 || c.Parser.MaxDecompressedSize < 0 {
		return errors.New("parser limits must not be negative")
	}
	return nil
}

// Limits returns the parse limits with the configured overrides applied.
func (p Parser) Limits() security.Limits {
	l := security.DefaultLimits()
	if p.MaxStreamLength > 0 {
		l.MaxStreamLength = p.MaxStreamLength
	}
	if p.MaxDecompressedSize > 0 {
		l.MaxDecompressedSize = p.MaxDecompressedSize
	}
	return l
}

// Encode renders cfg as TOML.
func Encode(cfg Config) ([]byte, error) {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	enc.SetIndentTables(true)
	if err := enc.Encode(cfg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
