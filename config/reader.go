package config

import (
	"bytes"
	"encoding/json"
	"io"
	"path/filepath"
	"strings"

	"github.com/a8m/envsubst"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Format is a configuration file encoding.
type Format int

// Supported formats.
const (
	FormatJSON Format = iota
	FormatYAML
)

// FormatFromPath picks the format by file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return 0, errors.Errorf("unsupported config file extension %q, want .json, .yaml or .yml", filepath.Ext(path))
	}
}

// Read loads the file at path, expanding ${VAR} references from the environment. Fields absent
// from the file keep their defaults.
func Read(path string) (*Config, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	buf, err := envsubst.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config %q", path)
	}
	return FromReader(path, bytes.NewReader(buf), format)
}

// FromReader decodes and validates a configuration. originalPath is only used in error messages.
func FromReader(originalPath string, r io.Reader, format Format) (*Config, error) {
	cfg := Default()
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return nil, errors.Wrapf(err, "cannot parse config %q", originalPath)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, errors.Wrapf(err, "cannot parse config %q", originalPath)
		}
	default:
		return nil, errors.Errorf("unknown config format %d", format)
	}
	if err := cfg.Validate("flight"); err != nil {
		return nil, err
	}
	return cfg, nil
}
