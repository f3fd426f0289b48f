package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Geocode   GeocodeConfig   `yaml:"geocode" mapstructure:"geocode"`
	BurnScar  BurnScarConfig  `yaml:"burn_scar" mapstructure:"burn_scar"`
	Buildings BuildingsConfig `yaml:"buildings" mapstructure:"buildings"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Map       MapConfig       `yaml:"map" mapstructure:"map"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// GeocodeConfig holds Google Geocoding API settings.
type GeocodeConfig struct {
	APIKey      string  `yaml:"api_key" mapstructure:"api_key"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
}

// RegionConfig names the burn-scar feature at Index.
type RegionConfig struct {
	Index int    `yaml:"index" mapstructure:"index"`
	Name  string `yaml:"name" mapstructure:"name"`
}

// BurnScarConfig locates the burn-scar polygons.
type BurnScarConfig struct {
	Source     string         `yaml:"source" mapstructure:"source"`
	Format     string         `yaml:"format" mapstructure:"format"`
	AssumedCRS string         `yaml:"assumed_crs" mapstructure:"assumed_crs"`
	NameField  string         `yaml:"name_field" mapstructure:"name_field"`
	Regions    []RegionConfig `yaml:"regions" mapstructure:"regions"`
	// Precedence lists region names in check order; the first containing
	// region wins.
	Precedence []string `yaml:"precedence" mapstructure:"precedence"`
}

// BuildingSourceConfig locates one building-damage source and maps its
// columns onto the canonical schema.
type BuildingSourceConfig struct {
	Name           string `yaml:"name" mapstructure:"name"`
	URI            string `yaml:"uri" mapstructure:"uri"`
	Format         string `yaml:"format" mapstructure:"format"`
	AssumedCRS     string `yaml:"assumed_crs" mapstructure:"assumed_crs"`
	IDField        string `yaml:"id_field" mapstructure:"id_field"`
	SourceField    string `yaml:"source_field" mapstructure:"source_field"`
	DamagedField   string `yaml:"damaged_field" mapstructure:"damaged_field"`
	DamagePctField string `yaml:"damage_pct_field" mapstructure:"damage_pct_field"`
	DamageOnly     bool   `yaml:"damage_only" mapstructure:"damage_only"`
}

// BuildingsConfig lists building-damage sources in load order.
type BuildingsConfig struct {
	Sources     []BuildingSourceConfig `yaml:"sources" mapstructure:"sources"`
	Concurrency int                    `yaml:"concurrency" mapstructure:"concurrency"`
}

// FetchConfig configures remote dataset downloads.
type FetchConfig struct {
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	TempDir     string  `yaml:"temp_dir" mapstructure:"temp_dir"`
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// TileLayerConfig is a basemap offered to map renderers.
type TileLayerConfig struct {
	Name        string `yaml:"name" mapstructure:"name"`
	URL         string `yaml:"url" mapstructure:"url"`
	Attribution string `yaml:"attribution" mapstructure:"attribution"`
}

// MapConfig configures what the layers endpoint advertises.
type MapConfig struct {
	TileLayers []TileLayerConfig `yaml:"tile_layers" mapstructure:"tile_layers"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Default dataset locations: the 2023 Maui burn-scar polygons and the
// building damage detections.
const (
	DefaultBurnScarURI  = "https://drive.google.com/file/d/1Ukn9UnGtTz69JrfTBYLQ1UpEi9vQ7VU6/view?usp=drive_link"
	DefaultBuildingsURI = "https://drive.google.com/file/d/1tCGqAsrWB0lHRvQFNyk25w7_sKO40lTm/view?usp=drive_link"
)

// Load reads configuration from file and environment. An empty path
// searches the working directory for config.yaml.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("VERIFY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("geocode.api_key", "VERIFY_GEOCODE_API_KEY", "API_KEY", "api_key"); err != nil {
		return nil, eris.Wrap(err, "config: bind api key")
	}

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("geocode.timeout_secs", 10)
	v.SetDefault("geocode.rate_limit", 10)
	v.SetDefault("geocode.user_agent", "MUW-Verify")
	v.SetDefault("fetch.timeout_secs", 120)
	v.SetDefault("fetch.temp_dir", "")
	v.SetDefault("fetch.user_agent", "MUW-Verify")
	v.SetDefault("fetch.rate_limit", 0)
	v.SetDefault("burn_scar.source", DefaultBurnScarURI)
	v.SetDefault("burn_scar.regions", []map[string]any{
		{"index": 0, "name": "Lahaina"},
		{"index": 1, "name": "South Maui/Upcountry"},
	})
	v.SetDefault("burn_scar.precedence", []string{"South Maui/Upcountry", "Lahaina"})
	v.SetDefault("buildings.concurrency", 4)
	v.SetDefault("buildings.sources", []map[string]any{
		{
			"name":             "building-damage",
			"uri":              DefaultBuildingsURI,
			"assumed_crs":      "EPSG:32604",
			"damaged_field":    "damaged",
			"damage_pct_field": "damage_pct",
		},
	})

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode needs: "verify", "serve" or
// "datasets".
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "verify", "serve", "datasets":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.BurnScar.Source == "" {
		problems = append(problems, "burn_scar.source is required")
	}
	seen := make(map[string]bool, len(c.BurnScar.Regions))
	for _, r := range c.BurnScar.Regions {
		if r.Name == "" {
			problems = append(problems, "burn_scar.regions entries need a name")
		}
		if r.Index < 0 {
			problems = append(problems, "burn_scar.regions index must be >= 0")
		}
		if seen[r.Name] {
			problems = append(problems, fmt.Sprintf("burn_scar.regions name %q is repeated", r.Name))
		}
		seen[r.Name] = true
	}

	if len(c.Buildings.Sources) == 0 {
		problems = append(problems, "buildings.sources needs at least one source")
	}
	for i, s := range c.Buildings.Sources {
		if s.URI == "" {
			problems = append(problems, fmt.Sprintf("buildings.sources[%d].uri is required", i))
		}
	}
	if c.Buildings.Concurrency < 0 {
		problems = append(problems, "buildings.concurrency must be >= 0")
	}

	if c.Geocode.TimeoutSecs < 0 {
		problems = append(problems, "geocode.timeout_secs must be >= 0")
	}
	if c.Geocode.RateLimit < 0 {
		problems = append(problems, "geocode.rate_limit must be >= 0")
	}

	if mode == "serve" && c.Server.Port <= 0 {
		problems = append(problems, "server.port must be > 0")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
