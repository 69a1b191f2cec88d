package config

import (
	"os"
	"time"
)

// BaseConfig is the application configuration tree. Values load from the
// config file with environment fallbacks for the provider credentials, so
// a fresh checkout boots without a config file at all.
type BaseConfig struct {
	App         App         `json:"app" koanf:"app"`
	Server      Server      `json:"server" koanf:"server"`
	Provider    Provider    `json:"provider" koanf:"provider"`
	Persistence Persistence `json:"persistence" koanf:"persistence"`
	Routes      Routes      `json:"routes" koanf:"routes"`
}

func (c *BaseConfig) Validate() error {
	return nil
}

func (c *BaseConfig) GetApp() App                 { return c.App }
func (c *BaseConfig) GetServer() Server           { return c.Server }
func (c *BaseConfig) GetProvider() Provider       { return c.Provider }
func (c *BaseConfig) GetPersistence() Persistence { return c.Persistence }
func (c *BaseConfig) GetRoutes() Routes           { return c.Routes }

// GetRejectedRouteKey implements gate.Config.
func (c *BaseConfig) GetRejectedRouteKey() string {
	return c.Routes.RejectedRouteKey
}

// GetRejectedRouteDefault implements gate.Config.
func (c *BaseConfig) GetRejectedRouteDefault() string {
	return c.Routes.RejectedRouteDefault
}

type App struct {
	Name    string `json:"name" koanf:"name"`
	Env     string `json:"env" koanf:"env"`
	BaseURL string `json:"base_url" koanf:"base_url"`
}

func (a App) GetName() string {
	if a.Name == "" {
		return "gridweb"
	}
	return a.Name
}

func (a App) GetEnv() string {
	if a.Env == "" {
		return "development"
	}
	return a.Env
}

// GetBaseURL is the absolute origin used to build the recovery-link
// redirect target.
func (a App) GetBaseURL() string {
	if a.BaseURL == "" {
		if v := os.Getenv("APP_BASE_URL"); v != "" {
			return v
		}
		return "http://localhost:8590"
	}
	return a.BaseURL
}

type Server struct {
	Addr string `json:"addr" koanf:"addr"`
}

func (s Server) GetAddr() string {
	if s.Addr == "" {
		return ":8590"
	}
	return s.Addr
}

// Provider points at the hosted identity service. URL and anon key fall
// back to the environment; both empty is not fatal, the client degrades
// per call instead.
type Provider struct {
	URL                  string `json:"url" koanf:"url"`
	AnonKey              string `json:"anon_key" koanf:"anon_key"`
	JWTSecret            string `json:"jwt_secret" koanf:"jwt_secret"`
	StorageKey           string `json:"storage_key" koanf:"storage_key"`
	AutoRefresh          bool   `json:"auto_refresh" koanf:"auto_refresh"`
	RefreshMarginSeconds int    `json:"refresh_margin_seconds" koanf:"refresh_margin_seconds"`
}

func (p Provider) GetURL() string {
	if p.URL == "" {
		return os.Getenv("SUPABASE_URL")
	}
	return p.URL
}

func (p Provider) GetAnonKey() string {
	if p.AnonKey == "" {
		return os.Getenv("SUPABASE_ANON_KEY")
	}
	return p.AnonKey
}

func (p Provider) GetJWTSecret() string {
	if p.JWTSecret == "" {
		return os.Getenv("SUPABASE_JWT_SECRET")
	}
	return p.JWTSecret
}

func (p Provider) GetStorageKey() string {
	if p.StorageKey == "" {
		return "grid78.auth"
	}
	return p.StorageKey
}

func (p Provider) GetRefreshMargin() time.Duration {
	if p.RefreshMarginSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(p.RefreshMarginSeconds) * time.Second
}

type Persistence struct {
	Driver string `json:"driver" koanf:"driver"`
	DSN    string `json:"dsn" koanf:"dsn"`
}

func (p Persistence) GetDriver() string {
	if p.Driver == "" {
		return "sqlite"
	}
	return p.Driver
}

func (p Persistence) GetDSN() string {
	if p.DSN == "" {
		return "file:gridweb.db?cache=shared"
	}
	return p.DSN
}

type Routes struct {
	RejectedRouteKey     string `json:"rejected_route_key" koanf:"rejected_route_key"`
	RejectedRouteDefault string `json:"rejected_route_default" koanf:"rejected_route_default"`
}
