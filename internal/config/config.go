package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	smerrors "github.com/Aman-CERP/schemamatch/internal/errors"
	"github.com/Aman-CERP/schemamatch/internal/match"
	"github.com/Aman-CERP/schemamatch/internal/similarity"
	"github.com/Aman-CERP/schemamatch/internal/store"
)

// Candidate selection modes for the matcher.
const (
	CandidatesExhaustive = "exhaustive"
	CandidatesHNSW       = "hnsw"
)

// ProjectConfigName is the per-directory configuration file.
const ProjectConfigName = ".schemamatch.yaml"

// Config represents the complete schemamatch configuration.
type Config struct {
	Version   int             `yaml:"version" json:"version"`
	Database  DatabaseConfig  `yaml:"database" json:"database"`
	Catalog   CatalogConfig   `yaml:"catalog" json:"catalog"`
	Matcher   MatcherConfig   `yaml:"matcher" json:"matcher"`
	Keywords  KeywordsConfig  `yaml:"keywords" json:"keywords"`
	Telemetry TelemetryConfig `yaml:"telemetry" json:"telemetry"`
	Server    ServerConfig    `yaml:"server" json:"server"`
}

// DatabaseConfig configures the metadata database.
type DatabaseConfig struct {
	// DSN is a postgres:// URL or a sqlite path (sqlite:// or file:// prefixes allowed).
	DSN            string `yaml:"dsn" json:"dsn"`
	MetadataTable  string `yaml:"metadata_table" json:"metadata_table"`
	ConnectTimeout string `yaml:"connect_timeout" json:"connect_timeout"`
}

// CatalogConfig configures the file catalog used when no DSN is set.
type CatalogConfig struct {
	File     string `yaml:"file" json:"file"`
	Watch    bool   `yaml:"watch" json:"watch"`
	Debounce string `yaml:"debounce" json:"debounce"`
}

// MatcherConfig configures scoring.
type MatcherConfig struct {
	Threshold  float64 `yaml:"threshold" json:"threshold"`
	Similarity string  `yaml:"similarity" json:"similarity"`
	Workers    int     `yaml:"workers" json:"workers"`
	CacheSize  int     `yaml:"cache_size" json:"cache_size"`
	Candidates string  `yaml:"candidates" json:"candidates"`
	CandidateK int     `yaml:"candidate_k" json:"candidate_k"`
}

// KeywordsConfig configures question analysis.
type KeywordsConfig struct {
	Language string `yaml:"language" json:"language"`
	Stem     bool   `yaml:"stem" json:"stem"`
}

// TelemetryConfig configures local match statistics.
type TelemetryConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	Transport string `yaml:"transport" json:"transport"`
	Addr      string `yaml:"addr" json:"addr"`
	LogLevel  string `yaml:"log_level" json:"log_level"`
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Database: DatabaseConfig{
			MetadataTable:  store.DefaultMetadataTable,
			ConnectTimeout: "10s",
		},
		Catalog: CatalogConfig{
			Watch:    false,
			Debounce: "300ms",
		},
		Matcher: MatcherConfig{
			Threshold:  match.DefaultThreshold,
			Similarity: similarity.Default,
			Workers:    runtime.NumCPU(),
			CacheSize:  256,
			Candidates: CandidatesExhaustive,
			CandidateK: 16,
		},
		Keywords: KeywordsConfig{
			Language: "fr",
			Stem:     false,
		},
		Telemetry: TelemetryConfig{
			Enabled: true,
			Path:    defaultTelemetryPath(),
		},
		Server: ServerConfig{
			Transport: "stdio",
			Addr:      "127.0.0.1:8765",
			LogLevel:  "info",
		},
	}
}

func defaultTelemetryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".schemamatch", "telemetry.db")
	}
	return filepath.Join(home, ".schemamatch", "telemetry.db")
}

// GetUserConfigPath returns the path to the user configuration file:
//   - $XDG_CONFIG_HOME/schemamatch/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/schemamatch/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "schemamatch", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "schemamatch", "config.yaml")
	}
	return filepath.Join(home, ".config", "schemamatch", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// Load loads configuration for the given directory.
// Precedence, lowest first:
//  1. Hardcoded defaults
//  2. User config (~/.config/schemamatch/config.yaml)
//  3. Project config (.schemamatch.yaml in dir)
//  4. Environment variables (SCHEMAMATCH_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if path := GetUserConfigPath(); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile loads defaults, then path, then the environment.
// Used when --config names a file explicitly.
func LoadFile(path string) (*Config, error) {
	cfg := NewConfig()
	if !fileExists(path) {
		return nil, smerrors.New(smerrors.ErrCodeConfigNotFound, "config file not found", nil).
			WithDetail("path", path)
	}
	if err := cfg.loadYAML(path); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromFile loads .schemamatch.yaml, falling back to .schemamatch.yml.
func (c *Config) loadFromFile(dir string) error {
	yamlPath := filepath.Join(dir, ProjectConfigName)
	if fileExists(yamlPath) {
		return c.loadYAML(yamlPath)
	}
	ymlPath := filepath.Join(dir, ".schemamatch.yml")
	if fileExists(ymlPath) {
		return c.loadYAML(ymlPath)
	}
	return nil
}

// loadYAML decodes path onto c. Keys absent from the file keep their current values,
// so an explicit zero (threshold: 0) is honored.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return smerrors.New(smerrors.ErrCodeConfigNotFound, "failed to read config file", err).
			WithDetail("path", path)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return smerrors.New(smerrors.ErrCodeConfigInvalid, "failed to parse config file", err).
			WithDetail("path", path)
	}
	return nil
}

// applyEnvOverrides applies SCHEMAMATCH_* environment variable overrides.
// Unparseable values are ignored.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SCHEMAMATCH_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("SCHEMAMATCH_METADATA_TABLE"); v != "" {
		c.Database.MetadataTable = v
	}
	if v := os.Getenv("SCHEMAMATCH_CATALOG_FILE"); v != "" {
		c.Catalog.File = v
	}
	if v := os.Getenv("SCHEMAMATCH_WATCH"); v != "" {
		c.Catalog.Watch = parseBool(v)
	}
	if v := os.Getenv("SCHEMAMATCH_THRESHOLD"); v != "" {
		if t, err := parseFloat64(v); err == nil && t >= 0 && t <= 1 {
			c.Matcher.Threshold = t
		}
	}
	if v := os.Getenv("SCHEMAMATCH_SIMILARITY"); v != "" {
		c.Matcher.Similarity = v
	}
	if v := os.Getenv("SCHEMAMATCH_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Matcher.Workers = n
		}
	}
	if v := os.Getenv("SCHEMAMATCH_CANDIDATES"); v != "" {
		c.Matcher.Candidates = v
	}
	if v := os.Getenv("SCHEMAMATCH_LANGUAGE"); v != "" {
		c.Keywords.Language = v
	}
	if v := os.Getenv("SCHEMAMATCH_STEM"); v != "" {
		c.Keywords.Stem = parseBool(v)
	}
	if v := os.Getenv("SCHEMAMATCH_TELEMETRY"); v != "" {
		c.Telemetry.Enabled = parseBool(v)
	}
	if v := os.Getenv("SCHEMAMATCH_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("SCHEMAMATCH_TRANSPORT"); v != "" {
		c.Server.Transport = v
	}
	if v := os.Getenv("SCHEMAMATCH_ADDR"); v != "" {
		c.Server.Addr = v
	}
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes"
}

// parseFloat64 parses a string to float64, used for config parsing.
func parseFloat64(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := match.ValidateThreshold(c.Matcher.Threshold); err != nil {
		return invalid("matcher.threshold", err.Error())
	}
	if _, err := similarity.Named(c.Matcher.Similarity); err != nil {
		return invalid("matcher.similarity",
			fmt.Sprintf("must be one of %s, got %q", strings.Join(similarity.Names(), ", "), c.Matcher.Similarity))
	}
	if c.Matcher.Workers < 0 {
		return invalid("matcher.workers", fmt.Sprintf("must be non-negative, got %d", c.Matcher.Workers))
	}
	if c.Matcher.CacheSize < 0 {
		return invalid("matcher.cache_size", fmt.Sprintf("must be non-negative, got %d", c.Matcher.CacheSize))
	}
	switch strings.ToLower(c.Matcher.Candidates) {
	case CandidatesExhaustive, CandidatesHNSW:
	default:
		return invalid("matcher.candidates", fmt.Sprintf("must be 'exhaustive' or 'hnsw', got %q", c.Matcher.Candidates))
	}
	if c.Matcher.CandidateK < 0 {
		return invalid("matcher.candidate_k", fmt.Sprintf("must be non-negative, got %d", c.Matcher.CandidateK))
	}

	switch strings.ToLower(c.Keywords.Language) {
	case "fr", "en":
	default:
		return invalid("keywords.language", fmt.Sprintf("must be 'fr' or 'en', got %q", c.Keywords.Language))
	}

	if _, err := parseDuration(c.Database.ConnectTimeout); err != nil {
		return invalid("database.connect_timeout", err.Error())
	}
	if _, err := parseDuration(c.Catalog.Debounce); err != nil {
		return invalid("catalog.debounce", err.Error())
	}

	validTransports := map[string]bool{"stdio": true, "http": true}
	if !validTransports[strings.ToLower(c.Server.Transport)] {
		return invalid("server.transport", fmt.Sprintf("must be 'stdio' or 'http', got %q", c.Server.Transport))
	}
	if strings.EqualFold(c.Server.Transport, "http") && strings.TrimSpace(c.Server.Addr) == "" {
		return invalid("server.addr", "required when transport is 'http'")
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return invalid("server.log_level", fmt.Sprintf("must be 'debug', 'info', 'warn', or 'error', got %q", c.Server.LogLevel))
	}
	return nil
}

func invalid(field, msg string) error {
	return smerrors.New(smerrors.ErrCodeConfigInvalid, field+" "+msg, nil).
		WithDetail("field", field)
}

// parseDuration accepts "" as zero.
func parseDuration(s string) (time.Duration, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("must be non-negative, got %s", s)
	}
	return d, nil
}

// ConnectTimeout returns database.connect_timeout as a duration.
func (c *Config) ConnectTimeout() time.Duration {
	d, _ := parseDuration(c.Database.ConnectTimeout)
	return d
}

// Debounce returns catalog.debounce as a duration.
func (c *Config) Debounce() time.Duration {
	d, _ := parseDuration(c.Catalog.Debounce)
	return d
}

// Source describes where metadata is loaded from, for logs and status output.
func (c *Config) Source() string {
	switch {
	case c.Database.DSN != "":
		return "database"
	case c.Catalog.File != "":
		return "file"
	default:
		return ""
	}
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// MergeNewDefaults fills fields that an older config file left empty.
// Returns the dotted names of the fields it set.
func (c *Config) MergeNewDefaults() []string {
	defaults := NewConfig()
	var added []string

	if c.Database.MetadataTable == "" {
		c.Database.MetadataTable = defaults.Database.MetadataTable
		added = append(added, "database.metadata_table")
	}
	if c.Database.ConnectTimeout == "" {
		c.Database.ConnectTimeout = defaults.Database.ConnectTimeout
		added = append(added, "database.connect_timeout")
	}
	if c.Catalog.Debounce == "" {
		c.Catalog.Debounce = defaults.Catalog.Debounce
		added = append(added, "catalog.debounce")
	}
	if c.Matcher.Similarity == "" {
		c.Matcher.Similarity = defaults.Matcher.Similarity
		added = append(added, "matcher.similarity")
	}
	if c.Matcher.Candidates == "" {
		c.Matcher.Candidates = defaults.Matcher.Candidates
		added = append(added, "matcher.candidates")
	}
	if c.Matcher.CandidateK == 0 {
		c.Matcher.CandidateK = defaults.Matcher.CandidateK
		added = append(added, "matcher.candidate_k")
	}
	if c.Matcher.CacheSize == 0 {
		c.Matcher.CacheSize = defaults.Matcher.CacheSize
		added = append(added, "matcher.cache_size")
	}
	if c.Keywords.Language == "" {
		c.Keywords.Language = defaults.Keywords.Language
		added = append(added, "keywords.language")
	}
	if c.Telemetry.Path == "" {
		c.Telemetry.Path = defaults.Telemetry.Path
		added = append(added, "telemetry.path")
	}
	if c.Server.Transport == "" {
		c.Server.Transport = defaults.Server.Transport
		added = append(added, "server.transport")
	}
	if c.Server.Addr == "" {
		c.Server.Addr = defaults.Server.Addr
		added = append(added, "server.addr")
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = defaults.Server.LogLevel
		added = append(added, "server.log_level")
	}
	// threshold 0 is a legal setting and is never rewritten

	return added
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
