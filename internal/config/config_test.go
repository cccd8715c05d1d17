package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dl-alexandre/ghimg/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, BackendGitHub, cfg.Backend)
	assert.Equal(t, types.OutputFormatJSON, cfg.DefaultOutputFormat)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, "normal", cfg.LogLevel)
	assert.Equal(t, 50, cfg.SearchCacheSize)
	assert.Equal(t, 600, cfg.SearchCacheTTL)
	assert.Equal(t, 200, cfg.ObjectCacheSize)
	assert.Equal(t, 1800, cfg.ObjectCacheTTL)
	assert.Equal(t, 100, cfg.ListingCacheSize)
	assert.Equal(t, 900, cfg.ListingCacheTTL)
	assert.Equal(t, 300, cfg.CleanupInterval)
	assert.Equal(t, 1, cfg.TransferConcurrency)
	assert.Equal(t, 6, cfg.CompressionLevel)
	require.NoError(t, cfg.Validate())
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(c *Config)
		errorMsg string
	}{
		{"invalid output format", func(c *Config) { c.DefaultOutputFormat = "xml" }, "invalid output format"},
		{"invalid backend", func(c *Config) { c.Backend = "ftp" }, "invalid backend"},
		{"max retries too high", func(c *Config) { c.MaxRetries = 11 }, "max retries must be between 0 and 10"},
		{"retry base delay too low", func(c *Config) { c.RetryBaseDelay = 50 }, "retry base delay must be between 100ms and 60000ms"},
		{"request timeout out of range", func(c *Config) { c.RequestTimeout = 3700 }, "request timeout must be between 1 and 3600 seconds"},
		{"negative rate", func(c *Config) { c.RequestsPerSecond = -1 }, "requests per second must be non-negative"},
		{"zero cache size", func(c *Config) { c.ObjectCacheSize = 0 }, "object cache size must be positive"},
		{"negative cache ttl", func(c *Config) { c.ListingCacheTTL = -5 }, "listing cache TTL must be non-negative"},
		{"concurrency zero", func(c *Config) { c.TransferConcurrency = 0 }, "transfer concurrency must be between 1 and 32"},
		{"compression too high", func(c *Config) { c.CompressionLevel = 10 }, "compression level must be between 0 and 9"},
		{"invalid log level", func(c *Config) { c.LogLevel = "loud" }, "invalid log level"},
		{"minio without bucket", func(c *Config) { c.Backend = BackendMinio }, "minio backend requires a bucket"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorMsg)
		})
	}
}

func TestConfigDurationGetters(t *testing.T) {
	cfg := &Config{
		RetryBaseDelay:  1000,
		RequestTimeout:  60,
		CleanupInterval: 300,
		SearchCacheSize: 5,
		SearchCacheTTL:  30,
	}

	assert.Equal(t, time.Second, cfg.GetRetryBaseDelay())
	assert.Equal(t, time.Minute, cfg.GetRequestTimeout())
	assert.Equal(t, 5*time.Minute, cfg.GetCleanupInterval())
	assert.Equal(t, CacheSettings{Size: 5, TTL: 30 * time.Second}, cfg.SearchCache())
}

func TestConfigSaveAndLoadJSON(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("GHIMG_CONFIG_DIR", dir)

	cfg := DefaultConfig()
	cfg.Owner = "octo"
	cfg.Repository = "assets"
	cfg.Ref = "main"
	cfg.TransferConcurrency = 4

	require.NoError(t, cfg.Save(""))

	info, err := os.Stat(filepath.Join(dir, ConfigFileName))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "octo", loaded.Owner)
	assert.Equal(t, "assets", loaded.Repository)
	assert.Equal(t, "main", loaded.Ref)
	assert.Equal(t, 4, loaded.TransferConcurrency)
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("GHIMG_CONFIG_DIR", dir)

	yamlData := `owner: octo
repository: gallery
backend: minio
logLevel: debug
minio:
  endpoint: localhost:9000
  bucket: images
  useSSL: false
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileNameYAML), []byte(yamlData), 0600))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "gallery", cfg.Repository)
	assert.Equal(t, BackendMinio, cfg.Backend)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "images", cfg.Minio.Bucket)
	assert.False(t, cfg.Minio.UseSSL)
	assert.Equal(t, []string{"drafts/", "*.psd"}, cfg.ExcludePatterns)
	// untouched keys keep defaults
	assert.Equal(t, 50, cfg.SearchCacheSize)
}

func TestSaveYAMLExplicitPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ghimg.yml")

	cfg := DefaultConfig()
	cfg.Owner = "octo"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "octo", loaded.Owner)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("GHIMG_CONFIG_DIR", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().SearchCacheSize, cfg.SearchCacheSize)
}

func TestLoadInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config file")
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("GHIMG_OWNER", "env-owner")
	t.Setenv("GHIMG_REPOSITORY", "env-repo")
	t.Setenv("GHIMG_OUTPUT_FORMAT", "table")
	t.Setenv("GHIMG_MAX_RETRIES", "7")
	t.Setenv("GHIMG_REQUESTS_PER_SECOND", "2.5")
	t.Setenv("GHIMG_TRANSFER_CONCURRENCY", "3")
	t.Setenv("GHIMG_LOG_LEVEL", "debug")
	t.Setenv("GHIMG_MINIO_USE_SSL", "no")

	cfg := DefaultConfig()
	cfg.loadFromEnv()

	assert.Equal(t, "env-owner", cfg.Owner)
	assert.Equal(t, "env-repo", cfg.Repository)
	assert.Equal(t, types.OutputFormatTable, cfg.DefaultOutputFormat)
	assert.Equal(t, 7, cfg.MaxRetries)
	assert.InDelta(t, 2.5, cfg.RequestsPerSecond, 1e-9)
	assert.Equal(t, 3, cfg.TransferConcurrency)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.False(t, cfg.Minio.UseSSL)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data, err := json.Marshal(map[string]interface{}{"owner": "file-owner", "repository": "file-repo"})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0600))
	t.Setenv("GHIMG_OWNER", "env-owner")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-owner", cfg.Owner)
	assert.Equal(t, "file-repo", cfg.Repository)
}

func TestSet(t *testing.T) {
	cfg := DefaultConfig()

	require.NoError(t, cfg.Set("owner", "octo"))
	require.NoError(t, cfg.Set("compressionLevel", "9"))
	require.NoError(t, cfg.Set("requestsPerSecond", "0.5"))
	require.NoError(t, cfg.Set("minio.useSSL", "false"))
	require.NoError(t, cfg.Set("excludePatterns", "drafts/, *.psd,,"))

	assert.Equal(t, "octo", cfg.Owner)
	assert.Equal(t, 9, cfg.CompressionLevel)
	assert.InDelta(t, 0.5, cfg.RequestsPerSecond, 1e-9)
	assert.False(t, cfg.Minio.UseSSL)

	err := cfg.Set("compressionLevel", "high")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be an integer")

	err = cfg.Set("nope", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config key")
}

func TestKeysAreSettable(t *testing.T) {
	for _, key := range Keys() {
		cfg := DefaultConfig()
		value := "1"
		err := cfg.Set(key, value)
		assert.NoError(t, err, key)
	}
}

func TestRedacted(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Minio.SecretKey = "hunter2"

	red := cfg.Redacted()
	assert.Equal(t, "[REDACTED]", red.Minio.SecretKey)
	assert.Equal(t, "hunter2", cfg.Minio.SecretKey)
}

func TestParseBool(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"true", true},
		{"TRUE", true},
		{"1", true},
		{"yes", true},
		{"on", true},
		{"false", false},
		{"0", false},
		{"off", false},
		{"", false},
		{"invalid", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseBool(tt.input))
		})
	}
}

func TestResolvePath(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("GHIMG_CONFIG_DIR", dir)

	p, err := ResolvePath("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ConfigFileName), p)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileNameYAML), []byte("owner: octo\n"), 0600))
	p, err = ResolvePath("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ConfigFileNameYAML), p)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte("{}"), 0600))
	p, err = ResolvePath("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ConfigFileName), p, "JSON wins when both exist")

	p, err = ResolvePath("custom.yml")
	require.NoError(t, err)
	assert.Equal(t, "custom.yml", p)
}
