// Package config loads the classifier's configuration file: a
// [section] / key = value document whose schema (spec.md §6) happens to
// be valid TOML, so it is decoded with github.com/BurntSushi/toml
// instead of a hand-rolled INI reader, the way
// lookbusy1344-arm_emulator/config/config.go decodes its own config.toml.
//
// Unlike that teacher's config, the classifier's sections and keys are
// not known statically in one fixed Go struct — general/cache_level/
// threshold/bucket_size live under whichever of the four
// method_<name> sections the active classification_method selects — so
// the document is decoded into a generic section/key map and read back
// through Get*OrError accessors, mirroring utils/config.py's
// ConfigParser-backed Config.get_str_or_error/get_int_or_error.
//
// The original's ConfigParser-style .ini files leave string values
// unquoted (measurement_method = cache, relation = lt); TOML requires
// them quoted (measurement_method = "cache", relation = "lt"). A config
// file ported from the original needs its bare-word values quoted
// before it parses here — bare integers need no change.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Config is a decoded classifier configuration file.
type Config struct {
	sections map[string]map[string]interface{}
}

// Load decodes the TOML-compatible config file at path.
func Load(path string) (*Config, error) {
	var raw map[string]map[string]interface{}
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	return &Config{sections: raw}, nil
}

// GetString returns the string value at section/option, or ok=false if
// the section, option, or its type doesn't match.
func (c *Config) GetString(section, option string) (string, bool) {
	v, ok := c.lookup(section, option)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// GetInt returns the integer value at section/option. TOML decodes bare
// integers as int64; both int64 and float64 (in case the value was
// written unquoted as a float) are accepted.
func (c *Config) GetInt(section, option string) (int, bool) {
	v, ok := c.lookup(section, option)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int64:
		return int(n), true
	case int:
		return n, true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// GetStringOrError returns the string value at section/option, or an
// error naming the missing key.
func (c *Config) GetStringOrError(section, option string) (string, error) {
	v, ok := c.GetString(section, option)
	if !ok {
		return "", fmt.Errorf("config: missing configuration option: section=%s, option=%s", section, option)
	}
	return v, nil
}

// GetIntOrError returns the integer value at section/option, or an
// error naming the missing key.
func (c *Config) GetIntOrError(section, option string) (int, error) {
	v, ok := c.GetInt(section, option)
	if !ok {
		return 0, fmt.Errorf("config: missing or non-integer configuration option: section=%s, option=%s", section, option)
	}
	return v, nil
}

func (c *Config) lookup(section, option string) (interface{}, bool) {
	sec, ok := c.sections[section]
	if !ok {
		return nil, false
	}
	v, ok := sec[option]
	return v, ok
}

// SectionGeneral and the Key* constants name the [general] section and
// the keys spec.md §6 lists under it.
const (
	SectionGeneral = "general"

	KeyMeasurementMethod    = "measurement_method"
	KeyClassificationMethod = "classification_method"
	KeyCPUArchitecture      = "cpu_architecture"
)

// Measurement methods named by [general].measurement_method.
const (
	MeasurementCache           = "cache"
	MeasurementTime            = "time"
	MeasurementBranchPredictor = "branch_predictor"
)
