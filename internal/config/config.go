package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dl-alexandre/ghimg/internal/types"
	"github.com/dl-alexandre/ghimg/internal/utils"
	"go.yaml.in/yaml/v3"
)

const (
	// ConfigFileName is the name of the config file
	ConfigFileName = "config.json"
	// ConfigFileNameYAML is checked when no JSON config exists
	ConfigFileNameYAML = "config.yaml"
	// ConfigDirName is the directory under $HOME where config is stored
	ConfigDirName = ".ghimg"
	// EnvPrefix is the prefix for environment variables
	EnvPrefix = "GHIMG_"
)

// Backend names accepted by the store factory
const (
	BackendGitHub = "github"
	BackendMinio  = "minio"
)

// Config holds application configuration
type Config struct {
	// Owner and Repository identify the GitHub repository to browse
	Owner      string `json:"owner" yaml:"owner"`
	Repository string `json:"repository" yaml:"repository"`
	// Ref is the branch, tag or commit; empty means the default branch
	Ref string `json:"ref" yaml:"ref"`

	// Backend selects the remote tree implementation (github, minio)
	Backend string `json:"backend" yaml:"backend"`

	// APIBaseURL overrides the GitHub REST endpoint (GitHub Enterprise, tests)
	APIBaseURL string `json:"apiBaseUrl" yaml:"apiBaseUrl"`

	// DefaultOutputFormat is the default output format (json, table)
	DefaultOutputFormat types.OutputFormat `json:"defaultOutputFormat" yaml:"defaultOutputFormat"`

	// MaxRetries is the maximum number of retries for API calls
	MaxRetries int `json:"maxRetries" yaml:"maxRetries"`

	// RetryBaseDelay is the base delay for exponential backoff in milliseconds
	RetryBaseDelay int `json:"retryBaseDelay" yaml:"retryBaseDelay"`

	// RequestTimeout is the default request timeout in seconds
	RequestTimeout int `json:"requestTimeout" yaml:"requestTimeout"`

	// RequestsPerSecond limits outbound API calls; 0 disables the limiter
	RequestsPerSecond float64 `json:"requestsPerSecond" yaml:"requestsPerSecond"`

	SearchCacheSize  int `json:"searchCacheSize" yaml:"searchCacheSize"`
	SearchCacheTTL   int `json:"searchCacheTTL" yaml:"searchCacheTTL"`
	ObjectCacheSize  int `json:"objectCacheSize" yaml:"objectCacheSize"`
	ObjectCacheTTL   int `json:"objectCacheTTL" yaml:"objectCacheTTL"`
	ListingCacheSize int `json:"listingCacheSize" yaml:"listingCacheSize"`
	ListingCacheTTL  int `json:"listingCacheTTL" yaml:"listingCacheTTL"`

	// CleanupInterval is the cache sweep period in seconds
	CleanupInterval int `json:"cleanupInterval" yaml:"cleanupInterval"`

	// TransferConcurrency bounds parallel fetches during bulk transfer
	TransferConcurrency int `json:"transferConcurrency" yaml:"transferConcurrency"`

	// CompressionLevel is the deflate level for archives (0-9)
	CompressionLevel int `json:"compressionLevel" yaml:"compressionLevel"`

	// LogLevel sets the logging verbosity (quiet, normal, verbose, debug)
	LogLevel string `json:"logLevel" yaml:"logLevel"`

	// ColorOutput enables color output for console logs
	ColorOutput bool `json:"colorOutput" yaml:"colorOutput"`

	// HistoryPath is the SQLite file for search history; empty uses the config dir
	HistoryPath string `json:"historyPath" yaml:"historyPath"`

	// ExcludePatterns are skipped during traversal in addition to the
	// built-in ones (.git/, node_modules/, ...)
	ExcludePatterns []string `json:"excludePatterns,omitempty" yaml:"excludePatterns,omitempty"`

	// ServerAddr is the listen address for `ghimg serve`
	ServerAddr string `json:"serverAddr" yaml:"serverAddr"`

	Minio MinioConfig `json:"minio" yaml:"minio"`
}

// MinioConfig configures the S3-compatible backend
type MinioConfig struct {
	Endpoint  string `json:"endpoint" yaml:"endpoint"`
	AccessKey string `json:"accessKey" yaml:"accessKey"`
	SecretKey string `json:"secretKey" yaml:"secretKey"`
	Bucket    string `json:"bucket" yaml:"bucket"`
	Prefix    string `json:"prefix" yaml:"prefix"`
	UseSSL    bool   `json:"useSSL" yaml:"useSSL"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Backend:             BackendGitHub,
		APIBaseURL:          utils.GitHubAPIBase,
		DefaultOutputFormat: types.OutputFormatJSON,
		MaxRetries:          utils.DefaultMaxRetries,
		RetryBaseDelay:      utils.DefaultRetryDelayMs,
		RequestTimeout:      int(utils.DefaultRequestTimeout / time.Second),
		RequestsPerSecond:   10,
		SearchCacheSize:     utils.SearchCacheSize,
		SearchCacheTTL:      int(utils.SearchCacheTTL / time.Second),
		ObjectCacheSize:     utils.ObjectCacheSize,
		ObjectCacheTTL:      int(utils.ObjectCacheTTL / time.Second),
		ListingCacheSize:    utils.ListingCacheSize,
		ListingCacheTTL:     int(utils.ListingCacheTTL / time.Second),
		CleanupInterval:     int(utils.CacheSweepEvery / time.Second),
		TransferConcurrency: utils.DefaultTransferWorkers,
		CompressionLevel:    utils.DefaultCompressionLevel,
		LogLevel:            "normal",
		ColorOutput:         true,
		ServerAddr:          "127.0.0.1:8080",
		Minio: MinioConfig{
			UseSSL: true,
		},
	}
}

// Load loads configuration with precedence: CLI flags > env vars > config file > defaults.
// An empty path uses the default location.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	path, err := ResolvePath(path)
	if err != nil {
		return nil, err
	}

	if err := cfg.loadFromFile(path); err != nil {
		// Config file not existing is not an error
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// ResolvePath returns path, or the file Load reads when path is empty: the
// JSON config, or the YAML one when only that exists.
func ResolvePath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	jsonPath, err := GetConfigPath()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(jsonPath); err == nil {
		return jsonPath, nil
	}
	for _, name := range []string{ConfigFileNameYAML, "config.yml"} {
		p := filepath.Join(filepath.Dir(jsonPath), name)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return jsonPath, nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// loadFromFile loads configuration from the given file
func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if isYAML(path) {
		return yaml.Unmarshal(data, c)
	}
	return json.Unmarshal(data, c)
}

// loadFromEnv loads configuration from environment variables
func (c *Config) loadFromEnv() {
	if v := os.Getenv(EnvPrefix + "OWNER"); v != "" {
		c.Owner = v
	}
	if v := os.Getenv(EnvPrefix + "REPOSITORY"); v != "" {
		c.Repository = v
	}
	if v := os.Getenv(EnvPrefix + "REF"); v != "" {
		c.Ref = v
	}
	if v := os.Getenv(EnvPrefix + "BACKEND"); v != "" {
		c.Backend = v
	}
	if v := os.Getenv(EnvPrefix + "API_BASE_URL"); v != "" {
		c.APIBaseURL = v
	}
	if v := os.Getenv(EnvPrefix + "OUTPUT_FORMAT"); v != "" {
		c.DefaultOutputFormat = types.OutputFormat(v)
	}
	setInt(&c.MaxRetries, EnvPrefix+"MAX_RETRIES")
	setInt(&c.RetryBaseDelay, EnvPrefix+"RETRY_BASE_DELAY")
	setInt(&c.RequestTimeout, EnvPrefix+"REQUEST_TIMEOUT")
	if v := os.Getenv(EnvPrefix + "REQUESTS_PER_SECOND"); v != "" {
		if rps, err := strconv.ParseFloat(v, 64); err == nil {
			c.RequestsPerSecond = rps
		}
	}
	setInt(&c.TransferConcurrency, EnvPrefix+"TRANSFER_CONCURRENCY")
	setInt(&c.CompressionLevel, EnvPrefix+"COMPRESSION_LEVEL")
	setInt(&c.CleanupInterval, EnvPrefix+"CLEANUP_INTERVAL")
	if v := os.Getenv(EnvPrefix + "LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvPrefix + "COLOR_OUTPUT"); v != "" {
		c.ColorOutput = parseBool(v)
	}
	if v := os.Getenv(EnvPrefix + "HISTORY_PATH"); v != "" {
		c.HistoryPath = v
	}
	if v := os.Getenv(EnvPrefix + "EXCLUDE"); v != "" {
		c.ExcludePatterns = splitList(v)
	}
	if v := os.Getenv(EnvPrefix + "SERVER_ADDR"); v != "" {
		c.ServerAddr = v
	}
	if v := os.Getenv(EnvPrefix + "MINIO_ENDPOINT"); v != "" {
		c.Minio.Endpoint = v
	}
	if v := os.Getenv(EnvPrefix + "MINIO_ACCESS_KEY"); v != "" {
		c.Minio.AccessKey = v
	}
	if v := os.Getenv(EnvPrefix + "MINIO_SECRET_KEY"); v != "" {
		c.Minio.SecretKey = v
	}
	if v := os.Getenv(EnvPrefix + "MINIO_BUCKET"); v != "" {
		c.Minio.Bucket = v
	}
	if v := os.Getenv(EnvPrefix + "MINIO_USE_SSL"); v != "" {
		c.Minio.UseSSL = parseBool(v)
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// Save validates c and writes it to path, or to the file Load reads when
// path is empty. The format follows the file extension.
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	path, err := ResolvePath(path)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var data []byte
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write with restricted permissions; the file may hold minio credentials
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.DefaultOutputFormat != types.OutputFormatJSON &&
		c.DefaultOutputFormat != types.OutputFormatTable {
		return fmt.Errorf("invalid output format: %s (must be 'json' or 'table')", c.DefaultOutputFormat)
	}

	if c.Backend != BackendGitHub && c.Backend != BackendMinio {
		return fmt.Errorf("invalid backend: %s (must be 'github' or 'minio')", c.Backend)
	}

	if c.MaxRetries < 0 || c.MaxRetries > 10 {
		return fmt.Errorf("max retries must be between 0 and 10, got: %d", c.MaxRetries)
	}

	if c.RetryBaseDelay < 100 || c.RetryBaseDelay > 60000 {
		return fmt.Errorf("retry base delay must be between 100ms and 60000ms, got: %d", c.RetryBaseDelay)
	}

	if c.RequestTimeout < 1 || c.RequestTimeout > 3600 {
		return fmt.Errorf("request timeout must be between 1 and 3600 seconds, got: %d", c.RequestTimeout)
	}

	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests per second must be non-negative, got: %v", c.RequestsPerSecond)
	}

	for name, size := range map[string]int{
		"search":  c.SearchCacheSize,
		"object":  c.ObjectCacheSize,
		"listing": c.ListingCacheSize,
	} {
		if size < 1 {
			return fmt.Errorf("%s cache size must be positive, got: %d", name, size)
		}
	}

	for name, ttl := range map[string]int{
		"search":  c.SearchCacheTTL,
		"object":  c.ObjectCacheTTL,
		"listing": c.ListingCacheTTL,
	} {
		if ttl < 0 {
			return fmt.Errorf("%s cache TTL must be non-negative, got: %d", name, ttl)
		}
	}

	if c.CleanupInterval < 0 {
		return fmt.Errorf("cleanup interval must be non-negative, got: %d", c.CleanupInterval)
	}

	if c.TransferConcurrency < 1 || c.TransferConcurrency > 32 {
		return fmt.Errorf("transfer concurrency must be between 1 and 32, got: %d", c.TransferConcurrency)
	}

	if c.CompressionLevel < 0 || c.CompressionLevel > 9 {
		return fmt.Errorf("compression level must be between 0 and 9, got: %d", c.CompressionLevel)
	}

	validLogLevels := []string{"quiet", "normal", "verbose", "debug"}
	isValid := false
	for _, level := range validLogLevels {
		if c.LogLevel == level {
			isValid = true
			break
		}
	}
	if !isValid {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	if c.Backend == BackendMinio && c.Minio.Bucket == "" {
		return fmt.Errorf("minio backend requires a bucket")
	}

	return nil
}

// Set assigns a single key by its JSON name, as used by `config set`
func (c *Config) Set(key, value string) error {
	atoi := func(dst *int) error {
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s must be an integer: %w", key, err)
		}
		*dst = n
		return nil
	}

	switch key {
	case "owner":
		c.Owner = value
	case "repository":
		c.Repository = value
	case "ref":
		c.Ref = value
	case "backend":
		c.Backend = value
	case "apiBaseUrl":
		c.APIBaseURL = value
	case "defaultOutputFormat":
		c.DefaultOutputFormat = types.OutputFormat(value)
	case "maxRetries":
		return atoi(&c.MaxRetries)
	case "retryBaseDelay":
		return atoi(&c.RetryBaseDelay)
	case "requestTimeout":
		return atoi(&c.RequestTimeout)
	case "requestsPerSecond":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%s must be a number: %w", key, err)
		}
		c.RequestsPerSecond = f
	case "searchCacheSize":
		return atoi(&c.SearchCacheSize)
	case "searchCacheTTL":
		return atoi(&c.SearchCacheTTL)
	case "objectCacheSize":
		return atoi(&c.ObjectCacheSize)
	case "objectCacheTTL":
		return atoi(&c.ObjectCacheTTL)
	case "listingCacheSize":
		return atoi(&c.ListingCacheSize)
	case "listingCacheTTL":
		return atoi(&c.ListingCacheTTL)
	case "cleanupInterval":
		return atoi(&c.CleanupInterval)
	case "transferConcurrency":
		return atoi(&c.TransferConcurrency)
	case "compressionLevel":
		return atoi(&c.CompressionLevel)
	case "logLevel":
		c.LogLevel = value
	case "colorOutput":
		c.ColorOutput = parseBool(value)
	case "historyPath":
		c.HistoryPath = value
	case "excludePatterns":
		c.ExcludePatterns = splitList(value)
	case "serverAddr":
		c.ServerAddr = value
	case "minio.endpoint":
		c.Minio.Endpoint = value
	case "minio.accessKey":
		c.Minio.AccessKey = value
	case "minio.secretKey":
		c.Minio.SecretKey = value
	case "minio.bucket":
		c.Minio.Bucket = value
	case "minio.prefix":
		c.Minio.Prefix = value
	case "minio.useSSL":
		c.Minio.UseSSL = parseBool(value)
	default:
		return fmt.Errorf("unknown config key: %s (valid keys: %s)", key, strings.Join(Keys(), ", "))
	}
	return nil
}

// Keys lists the names accepted by Set
func Keys() []string {
	keys := []string{
		"owner", "repository", "ref", "backend", "apiBaseUrl", "defaultOutputFormat",
		"maxRetries", "retryBaseDelay", "requestTimeout", "requestsPerSecond",
		"searchCacheSize", "searchCacheTTL", "objectCacheSize", "objectCacheTTL",
		"listingCacheSize", "listingCacheTTL", "cleanupInterval",
		"transferConcurrency", "compressionLevel", "logLevel", "colorOutput",
		"historyPath", "serverAddr", "excludePatterns",
		"minio.endpoint", "minio.accessKey", "minio.secretKey", "minio.bucket", "minio.prefix", "minio.useSSL",
	}
	sort.Strings(keys)
	return keys
}

// Redacted returns a copy safe for printing
func (c *Config) Redacted() *Config {
	cp := *c
	if cp.Minio.SecretKey != "" {
		cp.Minio.SecretKey = "[REDACTED]"
	}
	return &cp
}

// GetRetryBaseDelay returns the retry base delay as a duration
func (c *Config) GetRetryBaseDelay() time.Duration {
	return time.Duration(c.RetryBaseDelay) * time.Millisecond
}

// GetRequestTimeout returns the request timeout as a duration
func (c *Config) GetRequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// GetCleanupInterval returns the cache sweep period as a duration
func (c *Config) GetCleanupInterval() time.Duration {
	return time.Duration(c.CleanupInterval) * time.Second
}

// GetHistoryPath resolves the history database location
func (c *Config) GetHistoryPath() (string, error) {
	if c.HistoryPath != "" {
		return c.HistoryPath, nil
	}
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.db"), nil
}

// CacheSettings is the size/TTL pair for one cache instance
type CacheSettings struct {
	Size int
	TTL  time.Duration
}

// SearchCache returns the search-result cache settings
func (c *Config) SearchCache() CacheSettings {
	return CacheSettings{Size: c.SearchCacheSize, TTL: time.Duration(c.SearchCacheTTL) * time.Second}
}

// ObjectCache returns the downloaded-bytes cache settings
func (c *Config) ObjectCache() CacheSettings {
	return CacheSettings{Size: c.ObjectCacheSize, TTL: time.Duration(c.ObjectCacheTTL) * time.Second}
}

// ListingCache returns the directory listing cache settings
func (c *Config) ListingCache() CacheSettings {
	return CacheSettings{Size: c.ListingCacheSize, TTL: time.Duration(c.ListingCacheTTL) * time.Second}
}

// GetConfigPath returns the path to the JSON config file
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, ConfigFileName), nil
}

// GetConfigDir returns the path to the config directory
func GetConfigDir() (string, error) {
	if dir := os.Getenv(EnvPrefix + "CONFIG_DIR"); dir != "" {
		return dir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, ConfigDirName), nil
}

// splitList splits a comma separated value, dropping empty items
func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// parseBool parses a boolean value from a string
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}
