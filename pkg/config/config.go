package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"swisstransfer/pkg/models"

	"github.com/spf13/viper"
)

const (
	DefaultHost           = "https://www.swisstransfer.com"
	DefaultUploadScheme   = "https"
	DefaultUserAgent      = "swisstransfer-webext/1.0"
	DefaultChunkSize      = 50 * 1024 * 1024
	DefaultMaxUploadSize  = 50 * 1024 * 1024 * 1024
	DefaultRequestTimeout = 30 * time.Second
	DefaultRetryWaitMin   = 1 * time.Second
	DefaultRetryWaitMax   = 30 * time.Second

	DefaultDuration         = 7
	DefaultNumberOfDownload = 20
	DefaultLang             = "en_GB"

	MinPasswordLength = 6

	EnvPrefix = "SWISSTRANSFER"
)

var (
	// Durations in days the service accepts.
	AllowedDurations = []int{1, 7, 15, 30}

	// Download limits the service accepts.
	AllowedDownloadLimits = []int{1, 20, 100, 200, 250}

	// Interface languages the service accepts.
	AllowedLangs = []string{"fr_FR", "en_GB", "it_IT", "es_ES", "de_DE"}
)

var (
	ErrInvalidHost          = errors.New("host must start with http:// or https://")
	ErrInvalidUploadScheme  = errors.New("upload scheme must be http or https")
	ErrInvalidChunkSize     = errors.New("chunk size must be greater than 0")
	ErrInvalidMaxUploadSize = errors.New("max upload size must be greater than 0")
	ErrInvalidRetry         = errors.New("retry settings must not be negative and wait min must not exceed wait max")
	ErrInvalidBandwidth     = errors.New("bandwidth limit must not be negative")
	ErrPasswordTooShort     = fmt.Errorf("password must be at least %d characters long", MinPasswordLength)
	ErrInvalidDuration      = errors.New("duration must be one of 1, 7, 15 or 30 days")
	ErrInvalidDownloadLimit = errors.New("number of downloads must be one of 1, 20, 100, 200 or 250")
	ErrInvalidLang          = errors.New("lang must be one of fr_FR, en_GB, it_IT, es_ES or de_DE")
)

// Config holds all application configuration.
type Config struct {
	Host           string        `mapstructure:"host"`
	UploadScheme   string        `mapstructure:"upload_scheme"`
	UserAgent      string        `mapstructure:"user_agent"`
	ChunkSize      int64         `mapstructure:"chunk_size"`
	MaxUploadSize  int64         `mapstructure:"max_upload_size"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RetryMax       int           `mapstructure:"retry_max"`
	RetryWaitMin   time.Duration `mapstructure:"retry_wait_min"`
	RetryWaitMax   time.Duration `mapstructure:"retry_wait_max"`
	// BandwidthLimit caps upload throughput in bytes per second. Zero is unlimited.
	BandwidthLimit int64 `mapstructure:"bandwidth_limit"`
	Debug          bool  `mapstructure:"debug"`

	Upload   UploadConfig   `mapstructure:"upload"`
	Emulator EmulatorConfig `mapstructure:"emulator"`
}

// UploadConfig holds the container settings used for new uploads.
type UploadConfig struct {
	Duration         int      `mapstructure:"duration"`
	NumberOfDownload int      `mapstructure:"number_of_download"`
	Lang             string   `mapstructure:"lang"`
	Message          string   `mapstructure:"message"`
	AuthorEmail      string   `mapstructure:"author_email"`
	Password         string   `mapstructure:"password"`
	Recipients       []string `mapstructure:"recipients"`
}

// EmulatorConfig holds settings of the local service emulator.
type EmulatorConfig struct {
	Addr       string `mapstructure:"addr"`
	StorageDir string `mapstructure:"storage_dir"`
	DBPath     string `mapstructure:"db_path"`
	UploadHost string `mapstructure:"upload_host"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Host:           DefaultHost,
		UploadScheme:   DefaultUploadScheme,
		UserAgent:      DefaultUserAgent,
		ChunkSize:      DefaultChunkSize,
		MaxUploadSize:  DefaultMaxUploadSize,
		RequestTimeout: DefaultRequestTimeout,
		RetryMax:       0,
		RetryWaitMin:   DefaultRetryWaitMin,
		RetryWaitMax:   DefaultRetryWaitMax,
		Upload: UploadConfig{
			Duration:         DefaultDuration,
			NumberOfDownload: DefaultNumberOfDownload,
			Lang:             DefaultLang,
		},
		Emulator: EmulatorConfig{
			Addr:       ":8080",
			StorageDir: "build/data",
			DBPath:     "build/data/emulator.db",
		},
	}
}

// SetDefaults registers every default on v so env and file values layer over them.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("host", d.Host)
	v.SetDefault("upload_scheme", d.UploadScheme)
	v.SetDefault("user_agent", d.UserAgent)
	v.SetDefault("chunk_size", d.ChunkSize)
	v.SetDefault("max_upload_size", d.MaxUploadSize)
	v.SetDefault("request_timeout", d.RequestTimeout)
	v.SetDefault("retry_max", d.RetryMax)
	v.SetDefault("retry_wait_min", d.RetryWaitMin)
	v.SetDefault("retry_wait_max", d.RetryWaitMax)
	v.SetDefault("bandwidth_limit", d.BandwidthLimit)
	v.SetDefault("debug", d.Debug)
	v.SetDefault("upload.duration", d.Upload.Duration)
	v.SetDefault("upload.number_of_download", d.Upload.NumberOfDownload)
	v.SetDefault("upload.lang", d.Upload.Lang)
	v.SetDefault("upload.message", d.Upload.Message)
	v.SetDefault("upload.author_email", d.Upload.AuthorEmail)
	v.SetDefault("upload.password", d.Upload.Password)
	v.SetDefault("upload.recipients", d.Upload.Recipients)
	v.SetDefault("emulator.addr", d.Emulator.Addr)
	v.SetDefault("emulator.storage_dir", d.Emulator.StorageDir)
	v.SetDefault("emulator.db_path", d.Emulator.DBPath)
	v.SetDefault("emulator.upload_host", d.Emulator.UploadHost)
}

// NewViper returns a viper instance with defaults and SWISSTRANSFER_* env binding.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional config file into v and decodes the result.
// An empty file means defaults and environment only.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the transport settings and the upload settings.
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.Host, "http://") && !strings.HasPrefix(c.Host, "https://") {
		return ErrInvalidHost
	}
	if c.UploadScheme != "http" && c.UploadScheme != "https" {
		return ErrInvalidUploadScheme
	}
	if c.ChunkSize <= 0 {
		return ErrInvalidChunkSize
	}
	if c.MaxUploadSize <= 0 {
		return ErrInvalidMaxUploadSize
	}
	if c.RetryMax < 0 || c.RetryWaitMin < 0 || c.RetryWaitMax < c.RetryWaitMin {
		return ErrInvalidRetry
	}
	if c.BandwidthLimit < 0 {
		return ErrInvalidBandwidth
	}
	return c.Upload.Validate()
}

// Validate checks the values against what the service accepts.
func (u UploadConfig) Validate() error {
	return ValidateSettings(u.Settings())
}

// Settings converts the configuration into the container settings sent on registration.
func (u UploadConfig) Settings() models.ContainerSettings {
	return models.ContainerSettings{
		Duration:         u.Duration,
		AuthorEmail:      u.AuthorEmail,
		Password:         u.Password,
		Message:          u.Message,
		NumberOfDownload: u.NumberOfDownload,
		Lang:             u.Lang,
		RecipientsEmails: models.EncodeRecipients(u.Recipients),
	}
}

// ValidateSettings checks container settings. An empty password disables protection.
func ValidateSettings(s models.ContainerSettings) error {
	if s.Password != "" && len(s.Password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if !slices.Contains(AllowedDurations, s.Duration) {
		return ErrInvalidDuration
	}
	if !slices.Contains(AllowedDownloadLimits, s.NumberOfDownload) {
		return ErrInvalidDownloadLimit
	}
	if !slices.Contains(AllowedLangs, s.Lang) {
		return ErrInvalidLang
	}
	return nil
}
