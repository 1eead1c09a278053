package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the namespace prefix for all Talkcoach environment variables.
const EnvPrefix = "TALKCOACH_"

// Config holds all application configuration.
type Config struct {
	CoachBaseURL          string `yaml:"coach_base_url"`
	RequestTimeout        string `yaml:"request_timeout"`
	ListenAddr            string `yaml:"listen_addr"`
	DBPath                string `yaml:"db_path"`
	AudioDir              string `yaml:"audio_dir"`
	TranscriptDir         string `yaml:"transcript_dir"`
	MicSampleRate         int    `yaml:"mic_sample_rate"`
	GDriveFolderID        string `yaml:"gdrive_folder_id"`
	GoogleCredentialsFile string `yaml:"google_credentials_file"`
}

func defaults() Config {
	return Config{
		CoachBaseURL:          "http://127.0.0.1:5001",
		RequestTimeout:        "30s",
		ListenAddr:            ":8080",
		DBPath:                "data/talkcoach.db",
		AudioDir:              "data/audio",
		TranscriptDir:         "data/transcripts",
		MicSampleRate:         16000,
		GoogleCredentialsFile: "./service-account.json",
	}
}

// Load reads configuration from a YAML file (if it exists), applies
// environment variable overrides, and validates the result. It returns the
// config, any validation warnings, and an error if the file exists but
// cannot be read or parsed.
func Load(path string) (Config, []string, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, nil, fmt.Errorf("read config file: %w", err)
			}
		} else {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	applyEnvOverrides(&cfg)

	warnings := validate(&cfg)
	return cfg, warnings, nil
}

// ParsedRequestTimeout returns RequestTimeout as a time.Duration,
// falling back to 30s if the value is invalid.
func (c *Config) ParsedRequestTimeout() time.Duration {
	d, err := time.ParseDuration(c.RequestTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvPrefix + "COACH_BASE_URL"); v != "" {
		cfg.CoachBaseURL = v
	}
	if v := os.Getenv(EnvPrefix + "REQUEST_TIMEOUT"); v != "" {
		cfg.RequestTimeout = v
	}
	if v := os.Getenv(EnvPrefix + "LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(EnvPrefix + "DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(EnvPrefix + "AUDIO_DIR"); v != "" {
		cfg.AudioDir = v
	}
	if v := os.Getenv(EnvPrefix + "TRANSCRIPT_DIR"); v != "" {
		cfg.TranscriptDir = v
	}
	if v := os.Getenv(EnvPrefix + "MIC_SAMPLE_RATE"); v != "" {
		if rate, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && rate > 0 {
			cfg.MicSampleRate = rate
		}
	}
	if v := os.Getenv(EnvPrefix + "GDRIVE_FOLDER_ID"); v != "" {
		cfg.GDriveFolderID = v
	}
	if v := os.Getenv(EnvPrefix + "GOOGLE_CREDENTIALS_FILE"); v != "" {
		cfg.GoogleCredentialsFile = v
	}
}

func validate(cfg *Config) []string {
	var warnings []string

	if !strings.HasPrefix(cfg.CoachBaseURL, "http://") && !strings.HasPrefix(cfg.CoachBaseURL, "https://") {
		warnings = append(warnings, fmt.Sprintf("Coach base URL %q does not look like an HTTP URL.", cfg.CoachBaseURL))
	}
	if _, err := time.ParseDuration(cfg.RequestTimeout); err != nil {
		warnings = append(warnings, fmt.Sprintf("Invalid request_timeout %q — using default 30s.", cfg.RequestTimeout))
	}
	if cfg.MicSampleRate <= 0 {
		warnings = append(warnings, fmt.Sprintf("Invalid mic_sample_rate %d — using default 16000.", cfg.MicSampleRate))
		cfg.MicSampleRate = 16000
	}

	return warnings
}
