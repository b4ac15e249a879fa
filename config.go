package catzilla

import "time"

// UploadConfig mirrors spec.md §6's `upload` configuration block.
type UploadConfig struct {
	DefaultMaxSize int64  `mapstructure:"default_max_size"`
	TempDirectory  string `mapstructure:"temp_directory"`
	StreamThreshold int64 `mapstructure:"stream_threshold"`
	ChunkSize      int   `mapstructure:"chunk_size"`
	VirusScan      bool  `mapstructure:"virus_scan"`
}

// CacheConfig mirrors spec.md §6's `cache` configuration block.
type CacheConfig struct {
	Capacity     int           `mapstructure:"capacity"`
	DefaultTTL   time.Duration `mapstructure:"default_ttl"`
	MaxValueSize int           `mapstructure:"max_value_size"`
	Compression  bool          `mapstructure:"compression"`
}

// TaskConfig mirrors spec.md §6's `task` configuration block.
type TaskConfig struct {
	MinWorkers int  `mapstructure:"min_workers"`
	MaxWorkers int  `mapstructure:"max_workers"`
	QueueSize  int  `mapstructure:"queue_size"`
	AutoScale  bool `mapstructure:"auto_scale"`
}

// DIConfig mirrors spec.md §6's `di` configuration block. It carries no
// fields of its own today (registration happens in code via
// Catzilla.Container), but exists as a named mapstructure target so a
// config file's `di:` key decodes without error, the way air.Air's
// `ConfigFile` tolerates a sparse config.
type DIConfig struct{}

// I18nConfig mirrors air.Air's I18nEnabled/LocaleRoot/LocaleBase fields,
// gathered under their own config block the way Upload/Cache/Task already
// are.
type I18nConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	LocaleRoot string `mapstructure:"locale_root"`
	LocaleBase string `mapstructure:"locale_base"`
}

// Config is Catzilla's top-level, mapstructure-tagged configuration
// surface, covering every field of spec.md §6. Unlike air.Air — which
// inlines its config fields directly onto the Air struct and decodes a
// config file straight onto itself in Serve — Catzilla keeps Config as a
// standalone value so it can be built, validated, and swapped independently
// of the server that runs it.
type Config struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	KeepAlive       time.Duration `mapstructure:"keepalive"`
	MaxHeaderBytes  int           `mapstructure:"max_header_bytes"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`

	Upload UploadConfig `mapstructure:"upload"`
	Cache  CacheConfig  `mapstructure:"cache"`
	Task   TaskConfig   `mapstructure:"task"`
	DI     DIConfig     `mapstructure:"di"`
	I18n   I18nConfig   `mapstructure:"i18n"`

	// ReadTimeout/WriteTimeout/ShutdownTimeout round out the
	// http.Server-facing fields air.Air keeps inline (ReadTimeout,
	// WriteTimeout, ReadHeaderTimeout in air.go's New defaults).
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// DebugMode and LoggerEnabled mirror air.Air.DebugMode/LoggerEnabled.
	DebugMode     bool `mapstructure:"debug_mode"`
	LoggerEnabled bool `mapstructure:"logger_enabled"`

	// LoggerFormat is the text/template format string Logger compiles,
	// matching air.Air.LoggerFormat's role.
	LoggerFormat string `mapstructure:"logger_format"`

	// TLSCertFile/TLSKeyFile/ACMEEnabled mirror air.Air's TLS/ACME
	// fields, consumed by server.go's Serve.
	TLSCertFile string `mapstructure:"tls_cert_file"`
	TLSKeyFile  string `mapstructure:"tls_key_file"`
	ACMEEnabled bool   `mapstructure:"acme_enabled"`
	ACMEDirURL  string `mapstructure:"acme_dir_url"`

	// HTTP2Enabled mirrors air.Air.HTTP2Enabled, gating h2c wiring when
	// no TLS certificate is configured.
	HTTP2Enabled bool `mapstructure:"http2_enabled"`
}

// DefaultConfig returns a Config populated the way air.go's New() seeds
// Air's inline fields — sane, production-safe defaults rather than zero
// values.
func DefaultConfig() Config {
	return Config{
		Host:           "localhost",
		Port:           8080,
		KeepAlive:      90 * time.Second,
		MaxHeaderBytes: 1 << 20,
		MaxBodyBytes:   32 << 20,

		Upload: UploadConfig{
			DefaultMaxSize:  32 << 20,
			TempDirectory:   "",
			StreamThreshold: 4 << 20,
			ChunkSize:       64 << 10,
		},
		Cache: CacheConfig{
			Capacity:     4096,
			DefaultTTL:   5 * time.Minute,
			MaxValueSize: 1 << 20,
		},
		Task: TaskConfig{
			MinWorkers: 1,
			MaxWorkers: 8,
			QueueSize:  1024,
			AutoScale:  true,
		},

		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,

		LoggerEnabled: true,
		LoggerFormat:  defaultLoggerFormat,

		I18n: I18nConfig{
			Enabled:    false,
			LocaleRoot: "locales",
			LocaleBase: "en-US",
		},

		HTTP2Enabled: true,
	}
}
