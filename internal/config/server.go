package config

import "github.com/caarlos0/env/v11"

type ServerConfig struct {
	HTTPAddr  string `env:"HTTP_ADDR" envDefault:":8080"`
	StaticDir string `env:"STATIC_DIR" envDefault:"web/static"`
	DBPath    string `env:"DB_PATH" envDefault:"data/kiosk.db"`

	AdminAPIKey string `env:"ADMIN_API_KEY"`

	AllowOverflowSlots bool `env:"ALLOW_OVERFLOW_SLOTS" envDefault:"true"`

	PresenceDisabled bool `env:"PRESENCE_DISABLED" envDefault:"false"`
	PresencePollMS   int  `env:"PRESENCE_POLL_MS" envDefault:"5000"`

	MCPEnabled bool `env:"MCP_ENABLED" envDefault:"false"`

	NotifyEnabled     bool   `env:"NOTIFY_ENABLED" envDefault:"false"`
	NotifyConfigPath  string `env:"NOTIFY_CONFIG_PATH"`
	NotifyConfigJSON  string `env:"NOTIFY_CONFIG_JSON"`
	NotifyWorkers     int    `env:"NOTIFY_WORKERS" envDefault:"2"`
	NotifyRetryMax    int    `env:"NOTIFY_RETRY_MAX" envDefault:"3"`
	NotifyRetryBaseMS int    `env:"NOTIFY_RETRY_BASE_MS" envDefault:"500"`
	NotifyReloadMS    int    `env:"NOTIFY_CONFIG_RELOAD_MS" envDefault:"1000"`
}

func LoadServer() (ServerConfig, error) {
	var cfg ServerConfig
	err := env.Parse(&cfg)
	return cfg, err
}
