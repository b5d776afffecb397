// Package config handles application configuration and environment loading.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// DirectoryConfig holds the connection parameters and per-category search
// queries for the directory server, plus the attribute mappings used to
// decode entries into domain types. Mappings are deployment-specific
// because directory schemas differ between installations.
type DirectoryConfig struct {
	Server         string        // directory URL, e.g. ldap://localhost:389 or ldaps://...
	BindDN         string        // service bind DN; empty for anonymous access
	Password       string        // service bind password
	ConnectTimeout time.Duration // transport dial and read timeout
	SyncInterval   time.Duration // delay between synchronization cycles

	MemberBase      string
	MemberFilter    string
	SutlerBase      string
	SutlerFilter    string
	HonoraryBase    string
	HonoraryFilter  string
	RegisterBase    string
	RegisterFilter  string
	ExecutiveBase   string
	ExecutiveFilter string

	MemberMapping  MemberMapping
	AddressMapping AddressMapping
	GroupMapping   GroupMapping

	// TitleOrder is the precedence list used to sort member titles after
	// each sync. Titles not in the list sort first.
	TitleOrder []string
}

// MemberMapping names the directory attributes that make up a member.
type MemberMapping struct {
	Username   string
	FirstName  string
	LastName   string
	CommonName string
	Titles     string
	WhatsApp   string
	Joining    string
	Listed     string
	Official   string
	Gender     string
	Active     string
	Mobile     string
	Birthday   string
	Mail       string
	Photo      string
}

// AddressMapping names the directory attributes that make up an address.
// An address is only decoded when the entry carries all six attributes.
type AddressMapping struct {
	Street      string
	HouseNumber string
	PostalCode  string
	City        string
	State       string
	CountryCode string
}

// GroupMapping names the directory attributes that make up a group.
type GroupMapping struct {
	Name        string
	NamePlural  string
	Description string
	Members     string
}

// JWTConfig holds token issuance and validation parameters.
type JWTConfig struct {
	Issuer            string
	Expiration        time.Duration // access token validity
	RenewalExpiration time.Duration // renewal token validity
	PrivateKeyPath    string        // PEM-encoded RSA private key
	PublicKeyPath     string        // PEM-encoded RSA public key
}

// Config holds the configuration for the HTTP API, the directory client,
// and the token subsystem.
type Config struct {
	ListenAddr string // HTTP listen address (default ":8080")
	LogLevel   string // log level: debug, info, warn, error (default "info")
	Env        string // environment: "development" (default) or "production"

	// Rate limiting for the login endpoint.
	RateLimitRPS   float64 // sustained requests per second (default 10)
	RateLimitBurst int     // burst capacity (default 20)

	// CORS
	CORSAllowedOrigins []string // allowed origins for CORS (default: ["*"])

	Directory DirectoryConfig
	JWT       JWTConfig

	// Roles maps a logical role name (e.g. "archive") to the plural name
	// of the directory group that confers it.
	Roles map[string]string

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsProduction returns true when the server is running in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// LoadFromEnv loads configuration from KEG_-prefixed environment variables.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		ListenAddr: envDefault("KEG_LISTEN_ADDR", ":8080"),
		LogLevel:   envDefault("KEG_LOG_LEVEL", "info"),
		Env:        os.Getenv("KEG_ENV"),
	}

	cfg.RateLimitRPS = 10
	if v := os.Getenv("KEG_RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimitRPS = f
		}
	}
	cfg.RateLimitBurst = 20
	if v := os.Getenv("KEG_RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitBurst = n
		}
	}

	cfg.CORSAllowedOrigins = []string{"*"}
	if v := os.Getenv("KEG_CORS_ALLOWED_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		cfg.CORSAllowedOrigins = origins
	}

	cfg.Directory = DirectoryConfig{
		Server:          envDefault("KEG_LDAP_SERVER", "ldap://localhost:389"),
		BindDN:          os.Getenv("KEG_LDAP_DN"),
		Password:        os.Getenv("KEG_LDAP_PASSWORD"),
		ConnectTimeout:  envDuration("KEG_LDAP_TIMEOUT_SECONDS", 10*time.Second),
		SyncInterval:    envDuration("KEG_LDAP_SYNC_INTERVAL_SECONDS", 15*time.Minute),
		MemberBase:      os.Getenv("KEG_LDAP_MEMBER_BASE"),
		MemberFilter:    envDefault("KEG_LDAP_MEMBER_FILTER", "(objectClass=*)"),
		SutlerBase:      os.Getenv("KEG_LDAP_SUTLER_BASE"),
		SutlerFilter:    envDefault("KEG_LDAP_SUTLER_FILTER", "(objectClass=*)"),
		HonoraryBase:    os.Getenv("KEG_LDAP_HONORARY_BASE"),
		HonoraryFilter:  envDefault("KEG_LDAP_HONORARY_FILTER", "(objectClass=*)"),
		RegisterBase:    os.Getenv("KEG_LDAP_REGISTER_BASE"),
		RegisterFilter:  envDefault("KEG_LDAP_REGISTER_FILTER", "(objectClass=*)"),
		ExecutiveBase:   os.Getenv("KEG_LDAP_EXECUTIVE_BASE"),
		ExecutiveFilter: envDefault("KEG_LDAP_EXECUTIVE_FILTER", "(objectClass=*)"),
		MemberMapping:   defaultMemberMapping(),
		AddressMapping:  defaultAddressMapping(),
		GroupMapping:    defaultGroupMapping(),
	}
	if v := os.Getenv("KEG_LDAP_TITLE_ORDER"); v != "" {
		titles := strings.Split(v, ",")
		for i := range titles {
			titles[i] = strings.TrimSpace(titles[i])
		}
		cfg.Directory.TitleOrder = titles
	}

	cfg.JWT = JWTConfig{
		Issuer:            envDefault("KEG_JWT_ISSUER", "openkeg"),
		Expiration:        envMinutes("KEG_JWT_EXPIRATION_MINUTES", 30*time.Minute),
		RenewalExpiration: envHours("KEG_JWT_RENEWAL_EXPIRATION_HOURS", 60*24*time.Hour),
		PrivateKeyPath:    os.Getenv("KEG_JWT_PRIVATE_KEY_PATH"),
		PublicKeyPath:     os.Getenv("KEG_JWT_PUBLIC_KEY_PATH"),
	}

	cfg.Roles = map[string]string{}
	if v := envDefault("KEG_ROLE_ARCHIVE", "Archivists"); v != "" {
		cfg.Roles["archive"] = v
	}
	if v := os.Getenv("KEG_ROLES"); v != "" {
		// KEG_ROLES overrides the per-role variables:
		// "role=GroupPlural,other=OtherPlural"
		cfg.Roles = map[string]string{}
		for _, pair := range strings.Split(v, ",") {
			role, group, ok := strings.Cut(strings.TrimSpace(pair), "=")
			if !ok || role == "" || group == "" {
				return nil, fmt.Errorf("KEG_ROLES entry %q is not of the form role=Group", pair)
			}
			cfg.Roles[role] = group
		}
	}

	if cfg.JWT.PrivateKeyPath == "" || cfg.JWT.PublicKeyPath == "" {
		cfg.Warnings = append(cfg.Warnings,
			"KEG_JWT_PRIVATE_KEY_PATH/KEG_JWT_PUBLIC_KEY_PATH not set, authentication will be unavailable")
	}
	if cfg.Directory.BindDN == "" {
		cfg.Warnings = append(cfg.Warnings, "KEG_LDAP_DN not set, using the directory without a service user")
	}

	// Production mode: insecure defaults are fatal errors.
	if cfg.IsProduction() {
		if cfg.JWT.PrivateKeyPath == "" || cfg.JWT.PublicKeyPath == "" {
			return nil, fmt.Errorf("KEG_JWT_PRIVATE_KEY_PATH and KEG_JWT_PUBLIC_KEY_PATH must be set in production")
		}
		if len(cfg.CORSAllowedOrigins) == 1 && cfg.CORSAllowedOrigins[0] == "*" {
			return nil, fmt.Errorf("CORS wildcard (*) is not allowed in production (KEG_ENV=production)")
		}
	}

	return cfg, nil
}

func defaultMemberMapping() MemberMapping {
	return MemberMapping{
		Username:   envDefault("KEG_LDAP_ATTR_USERNAME", "uid"),
		FirstName:  envDefault("KEG_LDAP_ATTR_FIRST_NAME", "givenName"),
		LastName:   envDefault("KEG_LDAP_ATTR_LAST_NAME", "sn"),
		CommonName: envDefault("KEG_LDAP_ATTR_COMMON_NAME", "cn"),
		Titles:     envDefault("KEG_LDAP_ATTR_TITLES", "title"),
		WhatsApp:   envDefault("KEG_LDAP_ATTR_WHATSAPP", "whatsapp"),
		Joining:    envDefault("KEG_LDAP_ATTR_JOINING", "joining"),
		Listed:     envDefault("KEG_LDAP_ATTR_LISTED", "listed"),
		Official:   envDefault("KEG_LDAP_ATTR_OFFICIAL", "official"),
		Gender:     envDefault("KEG_LDAP_ATTR_GENDER", "gender"),
		Active:     envDefault("KEG_LDAP_ATTR_ACTIVE", "active"),
		Mobile:     envDefault("KEG_LDAP_ATTR_MOBILE", "mobile"),
		Birthday:   envDefault("KEG_LDAP_ATTR_BIRTHDAY", "birthday"),
		Mail:       envDefault("KEG_LDAP_ATTR_MAIL", "mail"),
		Photo:      envDefault("KEG_LDAP_ATTR_PHOTO", "jpegPhoto"),
	}
}

func defaultAddressMapping() AddressMapping {
	return AddressMapping{
		Street:      envDefault("KEG_LDAP_ATTR_STREET", "street"),
		HouseNumber: envDefault("KEG_LDAP_ATTR_HOUSE_NUMBER", "houseIdentifier"),
		PostalCode:  envDefault("KEG_LDAP_ATTR_POSTAL_CODE", "postalCode"),
		City:        envDefault("KEG_LDAP_ATTR_CITY", "l"),
		State:       envDefault("KEG_LDAP_ATTR_STATE", "st"),
		CountryCode: envDefault("KEG_LDAP_ATTR_COUNTRY_CODE", "c"),
	}
}

func defaultGroupMapping() GroupMapping {
	return GroupMapping{
		Name:        envDefault("KEG_LDAP_ATTR_GROUP_NAME", "cn"),
		NamePlural:  envDefault("KEG_LDAP_ATTR_GROUP_NAME_PLURAL", "displayName"),
		Description: envDefault("KEG_LDAP_ATTR_GROUP_DESCRIPTION", "description"),
		Members:     envDefault("KEG_LDAP_ATTR_GROUP_MEMBERS", "member"),
	}
}

func envDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return def
}

func envMinutes(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Minute
		}
	}
	return def
}

func envHours(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Hour
		}
	}
	return def
}

// LoadDotEnv reads a .env file and sets any variables not already in the environment.
// Lines must be in KEY=VALUE format. Comments (#) and blank lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil // .env not found is not an error
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		value = stripQuotes(value)
		// Only set if not already in the environment (env vars take precedence)
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
// Only strips if both the first and last characters are matching quotes.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
