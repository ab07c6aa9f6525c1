package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// FileNames are the config file names looked up by Find, in order.
var FileNames = []string{"birch.toml", "birch.yaml", "birch.yml"}

// Find returns the first config file present in dir, or "" if none exists.
func Find(dir string) string {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// Load reads a config file on top of the defaults.
// A missing file is not an error: the defaults are returned.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
	}

	return Parse(path, data)
}

// Parse decodes config data. The format is chosen from the source's extension.
func Parse(source string, data []byte) (Config, error) {
	cfg := Default()
	defaultPaths := cfg.Plugins.Paths
	cfg.Plugins.Paths = nil

	switch strings.ToLower(filepath.Ext(source)) {
	case ".toml":
		if err := decodeTOML(source, bytes.NewReader(data), &cfg); err != nil {
			return Config{}, err
		}
	case ".yaml", ".yml":
		if err := decodeYAML(source, bytes.NewReader(data), &cfg); err != nil {
			return Config{}, err
		}
	default:
		return Config{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, source)
	}

	if cfg.Plugins.Paths == nil {
		cfg.Plugins.Paths = defaultPaths
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", source, err)
	}
	return cfg, nil
}

func decodeTOML(source string, r io.Reader, cfg *Config) error {
	dec := toml.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		perr := &ParseError{Path: source, Message: err.Error(), Err: err}
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			perr.Line, _ = derr.Position()
		}
		return perr
	}
	return nil
}

func decodeYAML(source string, r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil // empty document
		}
		return &ParseError{Path: source, Message: err.Error(), Err: err}
	}
	return nil
}
