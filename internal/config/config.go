// Package config loads and validates agent config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"
)

// Config holds agent configuration loaded from the environment.
type Config struct {
	// PortalURL is the base URL of the license portal API (e.g. https://portal.example.com).
	PortalURL string `mapstructure:"PORTAL_URL"`
	// PortalAPIKey is the API key exchanged for a bearer token on first portal call.
	PortalAPIKey string `mapstructure:"PORTAL_API_KEY"`
	// DeviceID is the stable installation identifier (UUID) issued by the RMM tooling.
	DeviceID string `mapstructure:"DEVICE_ID"`
	// PortalTimeout is the per-request timeout for portal calls (e.g. "30s").
	PortalTimeout string `mapstructure:"PORTAL_TIMEOUT"`

	// LDAPURL is the directory server URL (e.g. ldap://dc01.corp.local:389).
	LDAPURL string `mapstructure:"LDAP_URL"`
	// LDAPBaseDN is the search base (e.g. DC=corp,DC=local).
	LDAPBaseDN string `mapstructure:"LDAP_BASE_DN"`
	// LDAPBindDN is the bind user (DN or UPN).
	LDAPBindDN string `mapstructure:"LDAP_BIND_DN"`
	// LDAPBindPassword is the bind password.
	LDAPBindPassword string `mapstructure:"LDAP_BIND_PASSWORD"`
	// LDAPPageSize is the paged-search page size; default 1000.
	LDAPPageSize int `mapstructure:"LDAP_PAGE_SIZE"`

	// SyncInterval is the recurring job interval (e.g. "15m").
	SyncInterval string `mapstructure:"SYNC_INTERVAL"`
	// UsersDisabled manually disables the users sync job.
	UsersDisabled bool `mapstructure:"USERS_DISABLED"`
	// PDCOverride allows the users job to run on a host that is not the primary domain controller.
	PDCOverride bool `mapstructure:"PDC_OVERRIDE"`
	// LicensingDisabled manually disables the licensing check job.
	LicensingDisabled bool `mapstructure:"LICENSING_DISABLED"`
	// LicenseFile is the path to the backup product's license file.
	LicenseFile string `mapstructure:"LICENSE_FILE"`

	// OTLPEndpoint enables telemetry export when set (e.g. http://localhost:4317).
	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext OTLP export regardless of endpoint scheme.
	OTLPInsecure bool `mapstructure:"OTLP_INSECURE"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("PORTAL_URL", "")
	v.SetDefault("PORTAL_API_KEY", "")
	v.SetDefault("DEVICE_ID", "")
	v.SetDefault("PORTAL_TIMEOUT", "30s")
	v.SetDefault("LDAP_URL", "")
	v.SetDefault("LDAP_BASE_DN", "")
	v.SetDefault("LDAP_BIND_DN", "")
	v.SetDefault("LDAP_BIND_PASSWORD", "")
	v.SetDefault("LDAP_PAGE_SIZE", 1000)
	v.SetDefault("SYNC_INTERVAL", "15m")
	v.SetDefault("USERS_DISABLED", false)
	v.SetDefault("PDC_OVERRIDE", false)
	v.SetDefault("LICENSING_DISABLED", false)
	v.SetDefault("LICENSE_FILE", "")
	v.SetDefault("OTLP_ENDPOINT", "")
	v.SetDefault("OTLP_INSECURE", false)
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.PortalURL == "" {
		return nil, errors.New("config: PORTAL_URL must be set")
	}
	if cfg.DeviceID != "" {
		if _, err := uuid.Parse(cfg.DeviceID); err != nil {
			return nil, errors.New("config: DEVICE_ID must be a valid UUID")
		}
	}
	if cfg.LDAPPageSize <= 0 {
		cfg.LDAPPageSize = 1000
	}

	return &cfg, nil
}

// Interval parses SyncInterval as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) Interval() time.Duration {
	d, err := time.ParseDuration(c.SyncInterval)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

// Timeout parses PortalTimeout as a time.Duration. Returns 30s if unset or invalid.
func (c *Config) Timeout() time.Duration {
	d, err := time.ParseDuration(c.PortalTimeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}
