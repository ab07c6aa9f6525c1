package loader

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ManifestFiles are the manifest names looked up in a plugin directory, in order.
var ManifestFiles = []string{"plugin.json", "plugin.toml", "plugin.yaml"}

// DefaultMain is the entry script used when a manifest names none.
const DefaultMain = "init.lua"

// DefaultVersion is the version used when a manifest names none.
const DefaultVersion = "0.0.0"

// Manifest describes a plugin.
type Manifest struct {
	ID          string `json:"id" toml:"id" yaml:"id"`
	Name        string `json:"name" toml:"name" yaml:"name"`
	Version     string `json:"version" toml:"version" yaml:"version"`
	Description string `json:"description" toml:"description" yaml:"description"`
	Author      string `json:"author" toml:"author" yaml:"author"`
	Homepage    string `json:"homepage" toml:"homepage" yaml:"homepage"`

	// Main is the entry script, relative to the plugin directory.
	Main string `json:"main" toml:"main" yaml:"main"`

	// Path to the plugin directory
	dir string
}

// Manifest errors.
var (
	ErrMissingID   = errors.New("manifest: id is required")
	ErrInvalidID   = errors.New("manifest: id must start with a lowercase letter and contain only [a-z0-9.-]")
	ErrInvalidMain = errors.New("manifest: main must be a .lua file inside the plugin directory")
)

// idPattern validates plugin ids.
var idPattern = regexp.MustCompile(`^[a-z][a-z0-9.-]*$`)

// ValidID reports whether id is a valid plugin id.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// LoadManifest reads a manifest file. The format follows the extension.
// An empty id defaults to the name of the directory holding the manifest.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &m)
	case ".toml":
		err = toml.Unmarshal(data, &m)
	case ".yaml", ".yml":
		err = yaml.NewDecoder(bytes.NewReader(data)).Decode(&m)
	default:
		return nil, fmt.Errorf("unsupported manifest format: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", filepath.Base(path), err)
	}

	m.dir = filepath.Dir(path)
	if m.ID == "" {
		m.ID = filepath.Base(m.dir)
	}
	m.applyDefaults()

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// FindManifest returns the first manifest file present in dir, or "".
func FindManifest(dir string) string {
	for _, name := range ManifestFiles {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// NewManifestMinimal creates a manifest for a plugin without a manifest file.
func NewManifestMinimal(id, dir, main string) *Manifest {
	m := &Manifest{ID: id, Main: main, dir: dir}
	m.applyDefaults()
	return m
}

func (m *Manifest) applyDefaults() {
	if m.Main == "" {
		m.Main = DefaultMain
	}
	if m.Version == "" {
		m.Version = DefaultVersion
	}
}

// Validate checks that the manifest is usable.
func (m *Manifest) Validate() error {
	if m.ID == "" {
		return ErrMissingID
	}
	if !ValidID(m.ID) {
		return fmt.Errorf("%w: %q", ErrInvalidID, m.ID)
	}
	if filepath.Ext(m.Main) != ".lua" || filepath.IsAbs(m.Main) ||
		strings.HasPrefix(filepath.Clean(m.Main), "..") {
		return fmt.Errorf("%w: %s", ErrInvalidMain, m.Main)
	}
	return nil
}

// Dir returns the plugin directory.
func (m *Manifest) Dir() string {
	return m.dir
}

// MainPath returns the full path to the entry script.
func (m *Manifest) MainPath() string {
	return filepath.Join(m.dir, m.Main)
}

// DisplayName returns the name, falling back to the id.
func (m *Manifest) DisplayName() string {
	if m.Name != "" {
		return m.Name
	}
	return m.ID
}

// String returns a string representation of the manifest.
func (m *Manifest) String() string {
	return fmt.Sprintf("%s v%s", m.DisplayName(), m.Version)
}
