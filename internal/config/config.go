package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type Config struct {
	ServiceName string            `yaml:"service_name"`
	Environment string            `yaml:"environment"`
	HTTP        HTTPConfig        `yaml:"http"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Bus         BusConfig         `yaml:"bus"`
	LeadStore   LeadStoreConfig   `yaml:"lead_store"`
	ObjectStore ObjectStoreConfig `yaml:"object_store"`
	Staging     StagingConfig     `yaml:"staging"`
	Transcriber TranscriberConfig `yaml:"transcriber"`
	Extractor   ExtractorConfig   `yaml:"extractor"`
}

type BusConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type LeadStoreConfig struct {
	Path          string `yaml:"path"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type ObjectStoreConfig struct {
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	KeyPrefix       string `yaml:"key_prefix"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type StagingConfig struct {
	Dir string `yaml:"dir"`
}

type TranscriberConfig struct {
	Mode     string `yaml:"mode"` // mock, exec, openai
	Command  string `yaml:"command"`
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	Language string `yaml:"language"`
}

type ExtractorConfig struct {
	Mode        string  `yaml:"mode"` // mock, ollama, exec
	Endpoint    string  `yaml:"endpoint"`
	Command     string  `yaml:"command"`
	TextModel   string  `yaml:"text_model"`
	VisionModel string  `yaml:"vision_model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

func Default() Config {
	return Config{
		ServiceName: "leadcore",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9091",
		},
		Bus: BusConfig{
			Enabled:        false,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		LeadStore: LeadStoreConfig{
			Path: "./data/leadcore.db",
		},
		ObjectStore: ObjectStoreConfig{
			Region:    "us-east-1",
			KeyPrefix: "business-cards",
		},
		Transcriber: TranscriberConfig{
			Mode:     "mock",
			Endpoint: "https://api.openai.com",
			Model:    "whisper-1",
		},
		Extractor: ExtractorConfig{
			Mode:        "mock",
			Endpoint:    "http://localhost:11434",
			TextModel:   "llama3.2:latest",
			VisionModel: "llama3.2-vision:latest",
			MaxTokens:   1000,
			Temperature: 0,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.ServiceName, "LEADCORE_SERVICE_NAME")
	overrideString(&cfg.Environment, "LEADCORE_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "LEADCORE_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "LEADCORE_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "LEADCORE_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "LEADCORE_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "LEADCORE_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "LEADCORE_TELEMETRY_PROMETHEUS_BIND")
	overrideBool(&cfg.Bus.Enabled, "LEADCORE_BUS_ENABLED")
	overrideStringSlice(&cfg.Bus.Servers, "LEADCORE_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "LEADCORE_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "LEADCORE_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "LEADCORE_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "LEADCORE_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "LEADCORE_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.LeadStore.Path, "LEADCORE_LEAD_STORE_PATH")
	overrideBool(&cfg.LeadStore.VacuumOnStart, "LEADCORE_LEAD_STORE_VACUUM_ON_START")
	overrideString(&cfg.ObjectStore.Endpoint, "LEADCORE_OBJECT_STORE_ENDPOINT")
	overrideString(&cfg.ObjectStore.Region, "LEADCORE_OBJECT_STORE_REGION")
	overrideString(&cfg.ObjectStore.Bucket, "LEADCORE_OBJECT_STORE_BUCKET")
	overrideString(&cfg.ObjectStore.KeyPrefix, "LEADCORE_OBJECT_STORE_KEY_PREFIX")
	overrideString(&cfg.ObjectStore.AccessKeyID, "LEADCORE_OBJECT_STORE_ACCESS_KEY_ID")
	overrideString(&cfg.ObjectStore.SecretAccessKey, "LEADCORE_OBJECT_STORE_SECRET_ACCESS_KEY")
	overrideString(&cfg.Staging.Dir, "LEADCORE_STAGING_DIR")
	overrideString(&cfg.Transcriber.Mode, "LEADCORE_TRANSCRIBER_MODE")
	overrideString(&cfg.Transcriber.Command, "LEADCORE_TRANSCRIBER_COMMAND")
	overrideString(&cfg.Transcriber.Endpoint, "LEADCORE_TRANSCRIBER_ENDPOINT")
	overrideString(&cfg.Transcriber.APIKey, "LEADCORE_TRANSCRIBER_API_KEY")
	overrideString(&cfg.Transcriber.Model, "LEADCORE_TRANSCRIBER_MODEL")
	overrideString(&cfg.Transcriber.Language, "LEADCORE_TRANSCRIBER_LANGUAGE")
	overrideString(&cfg.Extractor.Mode, "LEADCORE_EXTRACTOR_MODE")
	overrideString(&cfg.Extractor.Endpoint, "LEADCORE_EXTRACTOR_ENDPOINT")
	overrideString(&cfg.Extractor.Command, "LEADCORE_EXTRACTOR_COMMAND")
	overrideString(&cfg.Extractor.TextModel, "LEADCORE_EXTRACTOR_TEXT_MODEL")
	overrideString(&cfg.Extractor.VisionModel, "LEADCORE_EXTRACTOR_VISION_MODEL")
	overrideInt(&cfg.Extractor.MaxTokens, "LEADCORE_EXTRACTOR_MAX_TOKENS")
	overrideFloat(&cfg.Extractor.Temperature, "LEADCORE_EXTRACTOR_TEMPERATURE")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func validate(cfg Config) error {
	if cfg.ServiceName == "" {
		return errors.New("service_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Bus.Enabled && len(cfg.Bus.Servers) == 0 {
		return errors.New("bus.servers must not be empty when the bus is enabled")
	}
	if cfg.LeadStore.Path == "" {
		return errors.New("lead_store.path must not be empty")
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}
	if cfg.ObjectStore.Bucket != "" && cfg.ObjectStore.Region == "" {
		return errors.New("object_store.region must be set when a bucket is configured")
	}
	switch cfg.Transcriber.Mode {
	case "mock", "exec", "openai":
	default:
		return errors.New("transcriber.mode must be one of mock|exec|openai")
	}
	if cfg.Transcriber.Mode == "exec" && cfg.Transcriber.Command == "" {
		return errors.New("transcriber.command must be set when mode=exec")
	}
	if cfg.Transcriber.Mode == "openai" && cfg.Transcriber.Endpoint == "" {
		return errors.New("transcriber.endpoint must be set when mode=openai")
	}
	switch cfg.Extractor.Mode {
	case "mock", "ollama", "exec":
	default:
		return errors.New("extractor.mode must be one of mock|ollama|exec")
	}
	if cfg.Extractor.Mode == "ollama" && cfg.Extractor.Endpoint == "" {
		return errors.New("extractor.endpoint must be set when mode=ollama")
	}
	if cfg.Extractor.Mode == "exec" && cfg.Extractor.Command == "" {
		return errors.New("extractor.command must be set when mode=exec")
	}
	if cfg.Extractor.MaxTokens < 0 {
		return errors.New("extractor.max_tokens must be >= 0")
	}
	return nil
}
