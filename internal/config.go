// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Vault  VaultConfig       `yaml:"vault"`
	SQLite SQLiteConfig      `yaml:"sqlite"`
	Tasks  TasksConfig       `yaml:"tasks"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	return c.Tasks.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
}

// VaultConfig describes the active vault.
type VaultConfig struct {
	// Path is the vault root directory; it is created on startup when
	// missing.
	Path string `yaml:"path"`
	// RootName is the title of the vault root page, used when a colon
	// identifier resolves to the root.
	RootName string `yaml:"root_name"`
	// Watch enables the file watcher for live re-indexing.
	Watch bool `yaml:"watch"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.RootName, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// TasksConfig tunes task queries.
type TasksConfig struct {
	// NonActionableTags lists tags whose tasks are parked and should be
	// hidden from actionable-only results, e.g. "@wait @wt".
	NonActionableTags string `yaml:"non_actionable_tags"`
}

var tagFormRe = regexp.MustCompile(`^@?\w+$`)

// Validate validates the tasks configuration.
func (c *TasksConfig) Validate() error {
	for _, tag := range c.NonActionableTagList() {
		if !tagFormRe.MatchString(tag) {
			return fmt.Errorf("tasks: malformed non-actionable tag %q", tag)
		}
	}
	return nil
}

// NonActionableTagList splits the configured tag string into individual
// tags.
func (c *TasksConfig) NonActionableTagList() []string {
	return strings.Fields(c.NonActionableTags)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
		},
		Vault: VaultConfig{
			Path:     "./vault",
			RootName: "Vault",
			Watch:    true,
		},
		SQLite: SQLiteConfig{
			Path: "./ansuz.db",
		},
		Tasks: TasksConfig{
			NonActionableTags: "@wait @wt",
		},
	}
}
