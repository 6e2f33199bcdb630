// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	BrowserModeLocal  = "local"
	BrowserModeRemote = "remote"
)

// Config holds the entire application configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Browser   BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	Portal    PortalConfig    `mapstructure:"portal" yaml:"portal"`
	Database  DatabaseConfig  `mapstructure:"database" yaml:"database"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Generator GeneratorConfig `mapstructure:"generator" yaml:"generator"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color settings for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig selects and tunes the browser backend. Mode "local" launches a
// headless Chrome; mode "remote" connects to a CDP endpoint such as Browserless.
type BrowserConfig struct {
	Mode     string   `mapstructure:"mode" yaml:"mode"`
	Endpoint string   `mapstructure:"endpoint" yaml:"endpoint"`
	Token    string   `mapstructure:"token" yaml:"-"`
	ExecPath string   `mapstructure:"exec_path" yaml:"exec_path"`
	Headless bool     `mapstructure:"headless" yaml:"headless"`
	Args     []string `mapstructure:"args" yaml:"args"`

	ActionTimeout     time.Duration `mapstructure:"action_timeout" yaml:"action_timeout"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	IdleQuietPeriod   time.Duration `mapstructure:"idle_quiet_period" yaml:"idle_quiet_period"`
	CloseTimeout      time.Duration `mapstructure:"close_timeout" yaml:"close_timeout"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
}

// FormFieldsConfig maps the registration form controls to CSS selectors.
type FormFieldsConfig struct {
	FirstName       string `mapstructure:"first_name" yaml:"first_name"`
	LastName        string `mapstructure:"last_name" yaml:"last_name"`
	Email           string `mapstructure:"email" yaml:"email"`
	Password        string `mapstructure:"password" yaml:"password"`
	ConfirmPassword string `mapstructure:"confirm_password" yaml:"confirm_password"`
	Submit          string `mapstructure:"submit" yaml:"submit"`
}

// PortalConfig describes the target merchant portal: where its pages live,
// how its controls are found and which API calls the flows depend on.
type PortalConfig struct {
	LoginURL             string           `mapstructure:"login_url" yaml:"login_url"`
	SignUpLabels         []string         `mapstructure:"sign_up_labels" yaml:"sign_up_labels"`
	Fields               FormFieldsConfig `mapstructure:"fields" yaml:"fields"`
	ProfileResponseMatch string           `mapstructure:"profile_response_match" yaml:"profile_response_match"`
	ResponseTimeout      time.Duration    `mapstructure:"response_timeout" yaml:"response_timeout"`
	// TokenAliases is checked in order against the profile response body.
	TokenAliases []string `mapstructure:"token_aliases" yaml:"token_aliases"`

	SendVerificationCode bool   `mapstructure:"send_verification_code" yaml:"send_verification_code"`
	VerificationCodeURL  string `mapstructure:"verification_code_url" yaml:"verification_code_url"`
	VerifyPhoneURL       string `mapstructure:"verify_phone_url" yaml:"verify_phone_url"`
	UpdateProfileURL     string `mapstructure:"update_profile_url" yaml:"update_profile_url"`
	// RequireSuccessIndicator makes the profile update depend on the verify
	// response carrying a positive signal, not just the absence of an error.
	RequireSuccessIndicator bool `mapstructure:"require_success_indicator" yaml:"require_success_indicator"`
}

// DatabaseConfig holds the PostgreSQL connection settings.
type DatabaseConfig struct {
	URL         string `mapstructure:"url" yaml:"-"`
	AutoMigrate bool   `mapstructure:"auto_migrate" yaml:"auto_migrate"`
	MaxConns    int32  `mapstructure:"max_conns" yaml:"max_conns"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

// GeneratorConfig controls the default credentials generated for a registration.
type GeneratorConfig struct {
	PasswordLength int `mapstructure:"password_length" yaml:"password_length"`
	// UniqueAttempts bounds how many times a generated email or phone number
	// is regenerated when the store reports it as already used.
	UniqueAttempts int `mapstructure:"unique_attempts" yaml:"unique_attempts"`
}

// NewDefaultConfig creates a new configuration with all the default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	// Unmarshal of pure defaults cannot fail.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// SetDefaults registers every default with the given viper instance.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "merchant-enroll")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Browser --
	v.SetDefault("browser.mode", BrowserModeLocal)
	v.SetDefault("browser.endpoint", "wss://chrome.browserless.io")
	v.SetDefault("browser.token", "")
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.args", []string{})
	v.SetDefault("browser.action_timeout", "30s")
	v.SetDefault("browser.navigation_timeout", "90s")
	v.SetDefault("browser.idle_quiet_period", "500ms")
	v.SetDefault("browser.close_timeout", "10s")
	v.SetDefault("browser.request_timeout", "30s")

	// -- Portal --
	v.SetDefault("portal.login_url", "https://merchants.app.pyng.com.au/login")
	v.SetDefault("portal.sign_up_labels", []string{"Sign Up", "Sign up", "Register", "Create account"})
	v.SetDefault("portal.fields.first_name", `input[name="firstName"]`)
	v.SetDefault("portal.fields.last_name", `input[name="lastName"]`)
	v.SetDefault("portal.fields.email", `input[name="email"]`)
	v.SetDefault("portal.fields.password", `input[name="password"]`)
	v.SetDefault("portal.fields.confirm_password", `input[name="confirmPassword"]`)
	v.SetDefault("portal.fields.submit", `button[type="submit"]`)
	v.SetDefault("portal.profile_response_match", "/payments/profile/getUserProfile")
	v.SetDefault("portal.response_timeout", "60s")
	v.SetDefault("portal.token_aliases", []string{"token", "accessToken", "authToken", "jwt"})
	v.SetDefault("portal.send_verification_code", true)
	v.SetDefault("portal.verification_code_url", "https://app.pyng.com.au/payments/profile/sendVerificationCode")
	v.SetDefault("portal.verify_phone_url", "https://app.pyng.com.au/payments/profile/verifyUserPhoneNumber")
	v.SetDefault("portal.update_profile_url", "https://app.pyng.com.au/payments/profile/updateUserProfile")
	v.SetDefault("portal.require_success_indicator", false)

	// -- Database --
	v.SetDefault("database.url", "")
	v.SetDefault("database.auto_migrate", false)
	v.SetDefault("database.max_conns", 4)

	// -- Server --
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.request_timeout", "240s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.allowed_origins", []string{"*"})

	// -- Generator --
	v.SetDefault("generator.password_length", 16)
	v.SetDefault("generator.unique_attempts", 5)
}

// BindEnv wires the secrets and the legacy deployment variables that do not
// follow the ENROLL_ prefix convention.
func BindEnv(v *viper.Viper) {
	_ = v.BindEnv("browser.token", "ENROLL_BROWSER_TOKEN", "BROWSERLESS_TOKEN")
	_ = v.BindEnv("browser.endpoint", "ENROLL_BROWSER_ENDPOINT", "BROWSERLESS_ENDPOINT")
	_ = v.BindEnv("database.url", "ENROLL_DATABASE_URL", "DATABASE_URL")
}

// NewConfigFromViper unmarshals and validates the configuration held by v.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	BindEnv(v)
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for sane values. Missing remote browser
// credentials are not rejected here: they surface per request so the server
// can still start and answer health checks.
func (c *Config) Validate() error {
	if err := c.Browser.Validate(); err != nil {
		return err
	}
	if err := c.Portal.Validate(); err != nil {
		return err
	}
	if c.Generator.PasswordLength < 4 {
		return fmt.Errorf("generator.password_length must be at least 4")
	}
	if c.Generator.UniqueAttempts <= 0 {
		return fmt.Errorf("generator.unique_attempts must be a positive integer")
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	return nil
}

// Validate checks the browser section.
func (b BrowserConfig) Validate() error {
	switch b.Mode {
	case BrowserModeLocal, BrowserModeRemote:
	default:
		return fmt.Errorf("browser.mode must be %q or %q, got %q", BrowserModeLocal, BrowserModeRemote, b.Mode)
	}
	if b.ActionTimeout <= 0 {
		return fmt.Errorf("browser.action_timeout must be positive")
	}
	if b.NavigationTimeout <= 0 {
		return fmt.Errorf("browser.navigation_timeout must be positive")
	}
	if b.IdleQuietPeriod <= 0 {
		return fmt.Errorf("browser.idle_quiet_period must be positive")
	}
	return nil
}

// Validate checks the portal section.
func (p PortalConfig) Validate() error {
	if !strings.HasPrefix(p.LoginURL, "http") {
		return fmt.Errorf("portal.login_url must be an http(s) URL")
	}
	if len(p.SignUpLabels) == 0 {
		return fmt.Errorf("portal.sign_up_labels must not be empty")
	}
	if p.ProfileResponseMatch == "" {
		return fmt.Errorf("portal.profile_response_match is required")
	}
	if p.ResponseTimeout <= 0 {
		return fmt.Errorf("portal.response_timeout must be positive")
	}
	if len(p.TokenAliases) == 0 {
		return fmt.Errorf("portal.token_aliases must not be empty")
	}
	if p.VerifyPhoneURL == "" || p.UpdateProfileURL == "" {
		return fmt.Errorf("portal.verify_phone_url and portal.update_profile_url are required")
	}
	if p.SendVerificationCode && p.VerificationCodeURL == "" {
		return fmt.Errorf("portal.verification_code_url is required when portal.send_verification_code is enabled")
	}
	return nil
}
