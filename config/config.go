package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del bot.
type Config struct {
	Engine   EngineConfig   `yaml:"engine"`
	Casino   CasinoConfig   `yaml:"casino"`
	Provider ProviderConfig `yaml:"provider"`
	Feed     FeedConfig     `yaml:"feed"`
	Storage  StorageConfig  `yaml:"storage"`
	API      APIConfig      `yaml:"api"`
	Log      LogConfig      `yaml:"log"`
}

// EngineConfig controla la máquina de apuestas y los loops por usuario.
type EngineConfig struct {
	BaseStake             float64   `yaml:"base_stake"`
	StakeMultipliers      []float64 `yaml:"stake_multipliers"` // secuencia sobre el stake base
	HeartbeatSeconds      int       `yaml:"heartbeat_seconds"`
	PollSeconds           int       `yaml:"poll_seconds"` // intervalo del reconciliador
	RenewalMinutes        int       `yaml:"renewal_minutes"`
	MaxRenewalAttempts    int       `yaml:"max_renewal_attempts"`
	ReconnectMaxAttempts  int       `yaml:"reconnect_max_attempts"`
	ReconnectBackoffSecs  int       `yaml:"reconnect_backoff_seconds"`
	ReconnectCeilingSecs  int       `yaml:"reconnect_ceiling_seconds"`
	HistoryLimit          int       `yaml:"history_limit"`
}

// CasinoConfig apunta a la plataforma que emite el credential origen.
type CasinoConfig struct {
	BaseURL  string `yaml:"base_url"`
	GameSlug string `yaml:"game_slug"`
	Currency string `yaml:"currency"`
}

// ProviderConfig apunta al proveedor del juego en vivo.
type ProviderConfig struct {
	LaunchBase    string `yaml:"launch_base"`
	WSBase        string `yaml:"ws_base"`
	GameSymbol    string `yaml:"game_symbol"`
	EnvironmentID string `yaml:"environment_id"`
	CasinoID      string `yaml:"casino_id"`
	SecureLogin   string `yaml:"secure_login"`
	TableID       string `yaml:"table_id"`
	LobbyURL      string `yaml:"lobby_url"`
	CountryCode   string `yaml:"country_code"`
}

// FeedConfig controla el polling del feed de rondas.
type FeedConfig struct {
	BaseURL string `yaml:"base_url"`
	Limit   int    `yaml:"limit"`
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// APIConfig controla el servidor HTTP de comandos del operador.
type APIConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del .env sobreescriben los del YAML para las keys que correspondan.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// HeartbeatInterval devuelve el intervalo de heartbeat como time.Duration.
func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.Engine.HeartbeatSeconds) * time.Second
}

// PollInterval devuelve el intervalo del reconciliador.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Engine.PollSeconds) * time.Second
}

// RenewalInterval devuelve cada cuánto se renuevan credenciales proactivamente.
func (c *Config) RenewalInterval() time.Duration {
	return time.Duration(c.Engine.RenewalMinutes) * time.Minute
}

// ReconnectBackoff devuelve el delay inicial de reconexión.
func (c *Config) ReconnectBackoff() time.Duration {
	return time.Duration(c.Engine.ReconnectBackoffSecs) * time.Second
}

// ReconnectCeiling devuelve el delay máximo de reconexión.
func (c *Config) ReconnectCeiling() time.Duration {
	return time.Duration(c.Engine.ReconnectCeilingSecs) * time.Second
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("API_ADDR"); v != "" {
		cfg.API.Addr = v
	}
	if v := os.Getenv("STORAGE_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Engine.BaseStake <= 0 {
		cfg.Engine.BaseStake = 1.00
	}
	if len(cfg.Engine.StakeMultipliers) == 0 {
		cfg.Engine.StakeMultipliers = []float64{1, 4, 10, 22}
	}
	if cfg.Engine.HeartbeatSeconds <= 0 {
		cfg.Engine.HeartbeatSeconds = 30
	}
	if cfg.Engine.PollSeconds <= 0 {
		cfg.Engine.PollSeconds = 2
	}
	if cfg.Engine.RenewalMinutes <= 0 {
		cfg.Engine.RenewalMinutes = 10
	}
	if cfg.Engine.MaxRenewalAttempts <= 0 {
		cfg.Engine.MaxRenewalAttempts = 3
	}
	if cfg.Engine.ReconnectMaxAttempts <= 0 {
		cfg.Engine.ReconnectMaxAttempts = 5
	}
	if cfg.Engine.ReconnectBackoffSecs <= 0 {
		cfg.Engine.ReconnectBackoffSecs = 5
	}
	if cfg.Engine.ReconnectCeilingSecs <= 0 {
		cfg.Engine.ReconnectCeilingSecs = 30
	}
	if cfg.Engine.HistoryLimit <= 0 {
		cfg.Engine.HistoryLimit = 1000
	}
	if cfg.Casino.BaseURL == "" {
		cfg.Casino.BaseURL = "https://blaze.bet.br"
	}
	if cfg.Casino.GameSlug == "" {
		cfg.Casino.GameSlug = "mega-roulette---brazilian"
	}
	if cfg.Casino.Currency == "" {
		cfg.Casino.Currency = "BRL"
	}
	if cfg.Provider.LaunchBase == "" {
		cfg.Provider.LaunchBase = "https://games.pragmaticplaylive.net"
	}
	if cfg.Provider.WSBase == "" {
		cfg.Provider.WSBase = "wss://gs9.pragmaticplaylive.net/game"
	}
	if cfg.Provider.GameSymbol == "" {
		cfg.Provider.GameSymbol = "287"
	}
	if cfg.Provider.EnvironmentID == "" {
		cfg.Provider.EnvironmentID = "247"
	}
	if cfg.Provider.CasinoID == "" {
		cfg.Provider.CasinoID = "6376"
	}
	if cfg.Provider.SecureLogin == "" {
		cfg.Provider.SecureLogin = "sfws_blazecombrsw"
	}
	if cfg.Provider.TableID == "" {
		cfg.Provider.TableID = "mrbras531mrbr532"
	}
	if cfg.Provider.LobbyURL == "" {
		cfg.Provider.LobbyURL = cfg.Casino.BaseURL
	}
	if cfg.Provider.CountryCode == "" {
		cfg.Provider.CountryCode = "BR"
	}
	if cfg.Feed.BaseURL == "" {
		cfg.Feed.BaseURL = cfg.Provider.LaunchBase + "/api/ui/statisticHistory?tableId=" + cfg.Provider.TableID
	}
	if cfg.Feed.Limit <= 0 {
		cfg.Feed.Limit = 3
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "roulettebot.db"
	}
	if cfg.API.Addr == "" {
		cfg.API.Addr = ":8080"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
