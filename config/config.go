package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dhcgn/mbox-ediscovery/matcher"
)

// MaxTerms is the number of search terms a single run accepts.
const MaxTerms = 3

var ErrConfiguration = errors.New("invalid configuration")

// ConfigurationError reports a configuration problem detected before any I/O.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// Config captures all command-line options required to run an extraction.
type Config struct {
	Root     string
	Terms    []string
	Format   string
	LogLevel string
	LogDir   string
	Progress bool
}

// RegisterFlags attaches all CLI flags to the provided command.
func RegisterFlags(cmd *cobra.Command) error {
	flags := cmd.Flags()
	flags.String("root", "", "Directory scanned recursively for .mbox containers")
	flags.StringArray("term", nil, fmt.Sprintf("Case-insensitive search term, repeat up to %d times", MaxTerms))
	flags.String("format", "original", "Output format: original, pdf, text")
	flags.String("log-level", "info", "Logging level: debug, info, warn, error")
	flags.String("log-dir", "", "Optional directory that receives a copy of the log")
	flags.Bool("progress", false, "Show a progress bar instead of per-container log lines")

	if err := cmd.MarkFlagRequired("root"); err != nil {
		return err
	}

	return nil
}

// LoadConfig converts the parsed Cobra flags into a Config struct with validation.
func LoadConfig(cmd *cobra.Command) (Config, error) {
	flags := cmd.Flags()

	root, err := flags.GetString("root")
	if err != nil {
		return Config{}, err
	}
	terms, err := flags.GetStringArray("term")
	if err != nil {
		return Config{}, err
	}
	format, err := flags.GetString("format")
	if err != nil {
		return Config{}, err
	}
	logLevel, err := flags.GetString("log-level")
	if err != nil {
		return Config{}, err
	}
	logDir, err := flags.GetString("log-dir")
	if err != nil {
		return Config{}, err
	}
	showProgress, err := flags.GetBool("progress")
	if err != nil {
		return Config{}, err
	}

	logLevel = strings.ToLower(logLevel)
	if logLevel == "warning" {
		logLevel = "warn"
	}

	root = strings.TrimSpace(root)
	if root != "" {
		root = filepath.Clean(root)
	}

	cfg := Config{
		Root:     root,
		Terms:    matcher.NormalizeTerms(terms),
		Format:   strings.ToLower(strings.TrimSpace(format)),
		LogLevel: logLevel,
		LogDir:   logDir,
		Progress: showProgress,
	}

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks a Config without touching the filesystem.
func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.Root) == "" {
		return &ConfigurationError{Field: "root", Reason: "a root directory is required"}
	}
	terms := matcher.NormalizeTerms(cfg.Terms)
	if len(terms) == 0 {
		return &ConfigurationError{Field: "term", Reason: "at least one search term is required"}
	}
	if len(terms) > MaxTerms {
		return &ConfigurationError{Field: "term", Reason: fmt.Sprintf("at most %d search terms are supported, got %d", MaxTerms, len(terms))}
	}

	switch cfg.Format {
	case "original", "pdf", "text":
	default:
		return &ConfigurationError{Field: "format", Reason: fmt.Sprintf("unknown output format %q", cfg.Format)}
	}

	switch cfg.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return &ConfigurationError{Field: "log-level", Reason: fmt.Sprintf("invalid log level %q", cfg.LogLevel)}
	}

	return nil
}
