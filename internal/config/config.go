package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Mode string

const (
	ModeLocal Mode = "local"
	ModeGCP   Mode = "gcp"
)

type Config struct {
	Mode Mode

	Port string

	// LLMBackend is "gemini" (API key), "vertex" or "mock".
	LLMBackend   string
	APIKey       string
	GCPProjectID string
	GCPLocation  string
	ModelName    string
	SpeechModel  string
	Voice        string

	StorageBackend string // "memory" o "firestore"
	AudioDir       string
	HistoryWindow  int

	LogLevel  string
	LogFormat string
}

// SetDefaults registers the defaults on v. Keys use dashes, env vars use
// AUXILIUM_ and underscores (e.g. storage-backend → AUXILIUM_STORAGE_BACKEND).
func SetDefaults(v *viper.Viper) {
	v.SetDefault("mode", string(ModeLocal))
	v.SetDefault("port", "8080")
	v.SetDefault("llm-backend", "")
	v.SetDefault("api-key", "")
	v.SetDefault("gcp-project", "")
	v.SetDefault("gcp-location", "us-central1")
	v.SetDefault("model", "gemini-2.5-flash")
	v.SetDefault("speech-model", "gemini-2.5-flash-preview-tts")
	v.SetDefault("voice", "Kore")
	v.SetDefault("storage-backend", "memory")
	v.SetDefault("audio-dir", "audio")
	v.SetDefault("history-window", 10)
	v.SetDefault("log-level", "info")
	v.SetDefault("log-format", "json")
}

// NewViper returns a viper instance reading AUXILIUM_* env vars and, when
// present, an auxilium.yaml config file.
func NewViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix("auxilium")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("auxilium")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.auxilium")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}
	return v, nil
}

// Load builds the config from v.
func Load(v *viper.Viper) (*Config, error) {
	var mode Mode
	switch strings.ToLower(v.GetString("mode")) {
	case "gcp":
		mode = ModeGCP
	default:
		mode = ModeLocal
	}

	cfg := &Config{
		Mode: mode,

		Port: v.GetString("port"),

		LLMBackend:   strings.ToLower(v.GetString("llm-backend")),
		APIKey:       v.GetString("api-key"),
		GCPProjectID: v.GetString("gcp-project"),
		GCPLocation:  v.GetString("gcp-location"),
		ModelName:    v.GetString("model"),
		SpeechModel:  v.GetString("speech-model"),
		Voice:        v.GetString("voice"),

		StorageBackend: strings.ToLower(v.GetString("storage-backend")),
		AudioDir:       v.GetString("audio-dir"),
		HistoryWindow:  v.GetInt("history-window"),

		LogLevel:  v.GetString("log-level"),
		LogFormat: v.GetString("log-format"),
	}

	if cfg.LLMBackend == "" {
		switch {
		case mode == ModeGCP:
			cfg.LLMBackend = "vertex"
		case cfg.APIKey != "":
			cfg.LLMBackend = "gemini"
		default:
			cfg.LLMBackend = "mock"
		}
	}

	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = 10
	}

	// Minimal validation
	switch cfg.LLMBackend {
	case "mock":
	case "gemini":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("AUXILIUM_API_KEY must be set for the gemini backend")
		}
	case "vertex":
		if cfg.GCPProjectID == "" {
			return nil, fmt.Errorf("AUXILIUM_GCP_PROJECT must be set for the vertex backend")
		}
	default:
		return nil, fmt.Errorf("unknown llm backend %q", cfg.LLMBackend)
	}

	if cfg.StorageBackend == "firestore" && cfg.GCPProjectID == "" {
		return nil, fmt.Errorf("AUXILIUM_GCP_PROJECT is required for firestore storage")
	}

	return cfg, nil
}
