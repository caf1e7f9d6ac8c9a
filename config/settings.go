package config

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	AuthModeLocal    = "local"
	AuthModeSupabase = "supabase"

	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Settings is the full service configuration.
type Settings struct {
	Server   ServerSettings   `json:"server"`
	TMDB     TMDBSettings     `json:"tmdb"`
	Database DatabaseSettings `json:"database"`
	Auth     AuthSettings     `json:"auth"`
	Logging  LoggingSettings  `json:"logging"`
	DataDir  string           `json:"dataDir"`
}

type ServerSettings struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	// AllowedOrigins are trusted for CORS on top of localhost and LAN origins.
	AllowedOrigins []string `json:"allowedOrigins,omitempty"`
}

// Addr returns the listen address for the HTTP server.
func (s ServerSettings) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type TMDBSettings struct {
	APIKey         string `json:"apiKey"`
	Language       string `json:"language"`
	BaseURL        string `json:"baseUrl,omitempty"`
	TimeoutSeconds int    `json:"timeoutSeconds,omitempty"` // 0 means no client timeout
}

type DatabaseSettings struct {
	// Driver is "sqlite3" for a local file or "postgres" for a hosted database.
	Driver string `json:"driver"`
	// Path is the SQLite file; relative paths resolve against DataDir.
	Path string `json:"path,omitempty"`
	// URL is the Postgres connection string (Supabase "direct connection" URI).
	URL string `json:"url,omitempty"`
}

type AuthSettings struct {
	Mode              string `json:"mode"`
	SupabaseJWTSecret string `json:"supabaseJwtSecret,omitempty"`
	SessionTTLHours   int    `json:"sessionTtlHours,omitempty"`
}

type LoggingSettings struct {
	File       string `json:"file,omitempty"`
	MaxSizeMB  int    `json:"maxSizeMb,omitempty"`
	MaxBackups int    `json:"maxBackups,omitempty"`
	MaxAgeDays int    `json:"maxAgeDays,omitempty"`
	Verbose    bool   `json:"verbose,omitempty"`
}

// DefaultSettings returns the configuration used when no file exists.
func DefaultSettings() Settings {
	return Settings{
		Server: ServerSettings{Host: "0.0.0.0", Port: 7788},
		TMDB:   TMDBSettings{Language: "en-US"},
		Database: DatabaseSettings{
			Driver: DriverSQLite,
			Path:   "reeltrack.db",
		},
		Auth: AuthSettings{
			Mode:            AuthModeLocal,
			SessionTTLHours: 24 * 30,
		},
		Logging: LoggingSettings{
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		DataDir: "data",
	}
}

// DatabasePath resolves the SQLite path against the data directory.
func (s Settings) DatabasePath() string {
	p := strings.TrimSpace(s.Database.Path)
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(s.DataDir, p)
}

// Validate reports configuration that cannot work at all. A missing TMDB key is
// not an error here; the proxy answers 500 per request instead.
func (s Settings) Validate() error {
	switch s.Database.Driver {
	case DriverSQLite:
		if s.DatabasePath() == "" {
			return fmt.Errorf("database.path is required for driver %s", DriverSQLite)
		}
	case DriverPostgres:
		if strings.TrimSpace(s.Database.URL) == "" {
			return fmt.Errorf("database.url is required for driver %s", DriverPostgres)
		}
	default:
		return fmt.Errorf("unsupported database driver %q", s.Database.Driver)
	}

	switch s.Auth.Mode {
	case AuthModeLocal:
	case AuthModeSupabase:
		if strings.TrimSpace(s.Auth.SupabaseJWTSecret) == "" {
			return fmt.Errorf("auth.supabaseJwtSecret is required in %s mode", AuthModeSupabase)
		}
	default:
		return fmt.Errorf("unsupported auth mode %q", s.Auth.Mode)
	}

	if s.Server.Port <= 0 || s.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", s.Server.Port)
	}
	return nil
}

// applyEnv overlays environment values on top of file settings.
func applyEnv(s *Settings, getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}

	set(&s.TMDB.APIKey, "TMDB_API_KEY")
	set(&s.TMDB.Language, "TMDB_LANGUAGE")
	set(&s.Database.Driver, "DATABASE_DRIVER")
	set(&s.Database.URL, "DATABASE_URL")
	set(&s.Database.Path, "DATABASE_PATH")
	set(&s.Auth.Mode, "AUTH_MODE")
	set(&s.Auth.SupabaseJWTSecret, "SUPABASE_JWT_SECRET")
	set(&s.DataDir, "DATA_DIR")
	set(&s.Logging.File, "LOG_FILE")
	set(&s.Server.Host, "HOST")

	if v := strings.TrimSpace(getenv("CORS_ORIGINS")); v != "" {
		var origins []string
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				origins = append(origins, origin)
			}
		}
		s.Server.AllowedOrigins = origins
	}

	if v := strings.TrimSpace(getenv("PORT")); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			s.Server.Port = port
		}
	}
}
