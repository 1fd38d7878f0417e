package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/andreyvit/tupledb"
)

type config struct {
	DB               string        `yaml:"db"`
	Backend          string        `yaml:"backend"`
	Ordering         string        `yaml:"ordering"`
	MinFlushInterval time.Duration `yaml:"min_flush_interval"`
	LogLevel         string        `yaml:"log_level"`
	Schema           []string      `yaml:"schema"`
	StrictSchema     bool          `yaml:"strict_schema"`
	Verbose          bool          `yaml:"verbose"`
}

func defaultConfig() config {
	return config{
		DB:       "tupledb.json",
		Backend:  "json",
		Ordering: "global",
		LogLevel: "info",
	}
}

// loadConfig overlays the YAML file at path on top of cfg. A missing file
// is an error only when the path was given explicitly.
func loadConfig(cfg *config, path string, explicit bool) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return nil
		}
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

func (cfg *config) schema() (*tupledb.Schema, error) {
	if len(cfg.Schema) == 0 {
		return nil, nil
	}
	fields := make([]tupledb.Field, 0, len(cfg.Schema))
	for _, s := range cfg.Schema {
		f, err := tupledb.ParseField(s)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return tupledb.NewSchema(fields...)
}

func (cfg *config) options(logger *slog.Logger) (tupledb.Options, error) {
	ordering, err := tupledb.ParseOrdering(cfg.Ordering)
	if err != nil {
		return tupledb.Options{}, err
	}
	return tupledb.Options{
		Logger:           logger,
		Verbose:          cfg.Verbose,
		Ordering:         ordering,
		MinFlushInterval: cfg.MinFlushInterval,
		StrictSchema:     cfg.StrictSchema,
	}, nil
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return l, fmt.Errorf("invalid log level %q", s)
	}
	return l, nil
}

// splitList splits "a,b, c" into trimmed, non-empty items. Commas inside
// JSON brackets, braces or strings do not split, so `tags=["a","b"],name`
// yields two items.
func splitList(s string) []string {
	var out []string
	add := func(item string) {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	depth, start := 0, 0
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[', '{':
			depth++
		case ']', '}':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				add(s[start:i])
				start = i + 1
			}
		}
	}
	add(s[start:])
	return out
}

// parseAssignments turns ["score=5", "name=Alice"] into field values.
func parseAssignments(args []string) (map[string]any, error) {
	fields := make(map[string]any, len(args))
	for _, arg := range args {
		name, raw, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("expected field=value, got %q", arg)
		}
		fields[name] = tupledb.ParseValue(raw)
	}
	return fields, nil
}
