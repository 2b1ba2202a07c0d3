package destination

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Entry is one destinations.yaml map value; OSC and MIDI destinations share
// the struct, with Type selecting which fields apply.
type Entry struct {
	ID             string `yaml:"id"`
	Type           string `yaml:"type"`
	Host           string `yaml:"host,omitempty"`
	Port           int    `yaml:"port,omitempty"`
	Address        string `yaml:"address,omitempty"`
	UseBundle      bool   `yaml:"use_bundle,omitempty"`
	PortName       string `yaml:"port_name,omitempty"`
	DefaultChannel int    `yaml:"default_channel,omitempty"`
}

// Config is the top-level destinations document.
type Config struct {
	Destinations map[string]Entry `yaml:"destinations"`
}

// LoadConfig reads and validates a destinations.yaml/json document. A
// validation failure for one entry does not prevent the rest of the file
// from loading (a bad destination is skipped, not fatal) — the error
// returned here is the aggregate, and the caller (LoopEngine.start) decides
// whether to proceed with the remaining valid entries.
func LoadConfig(path string) (*Config, []error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, []error{fmt.Errorf("read destinations config: %w", err)}
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, []error{fmt.Errorf("parse destinations config: %w", err)}
	}

	var errs []error
	valid := make(map[string]Entry, len(cfg.Destinations))
	for key, entry := range cfg.Destinations {
		if err := validateEntry(key, entry); err != nil {
			errs = append(errs, err)
			continue
		}
		valid[key] = entry
	}
	cfg.Destinations = valid
	return &cfg, errs
}

func validateEntry(key string, e Entry) error {
	if e.ID != key {
		return fmt.Errorf("destination %q: id field %q does not match map key", key, e.ID)
	}
	if !idPattern.MatchString(key) {
		return fmt.Errorf("destination %q: id must match [A-Za-z0-9_-]+", key)
	}
	switch e.Type {
	case "osc":
		if e.Port < 1024 || e.Port > 65535 {
			return fmt.Errorf("destination %q: osc port %d out of range 1024-65535", key, e.Port)
		}
		if len(e.Address) == 0 || e.Address[0] != '/' {
			return fmt.Errorf("destination %q: osc address must start with /", key)
		}
	case "midi":
		if e.DefaultChannel < 0 || e.DefaultChannel > 15 {
			return fmt.Errorf("destination %q: midi default_channel %d out of range 0-15", key, e.DefaultChannel)
		}
		if e.PortName == "" {
			return fmt.Errorf("destination %q: midi port_name required", key)
		}
	default:
		return fmt.Errorf("destination %q: unknown type %q", key, e.Type)
	}
	return nil
}
