package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so values like "15s" parse from YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	dur, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", value.Value, err)
	}
	*d = Duration(dur)
	return nil
}

// Unwrap returns the underlying time.Duration.
func (d Duration) Unwrap() time.Duration {
	return time.Duration(d)
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	MinIO    MinIOConfig    `yaml:"minio"`
	NATS     NATSConfig     `yaml:"nats"`
	Vision   VisionConfig   `yaml:"vision"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

type VisionConfig struct {
	ModelsDir string `yaml:"models_dir"`

	// SegmentationThreshold is the minimum instance confidence for the
	// subject isolator.
	SegmentationThreshold float64 `yaml:"segmentation_threshold"`
	// DetectionThreshold is the minimum face detection confidence.
	DetectionThreshold float64 `yaml:"detection_threshold"`

	// MatchThreshold gates the single-result matcher (strict greater-than).
	MatchThreshold float64 `yaml:"match_threshold"`
	// CandidateThreshold gates the ranked-list matcher (strict greater-than).
	CandidateThreshold float64 `yaml:"candidate_threshold"`
	// CandidateLimit caps the ranked-list result size.
	CandidateLimit int `yaml:"candidate_limit"`

	CanvasSize    int     `yaml:"canvas_size"`
	TargetLuma    float64 `yaml:"target_luma"`
	TargetLumaStd float64 `yaml:"target_luma_std"`

	// InferenceTimeout bounds each model call so a hung backend cannot block
	// a request indefinitely.
	InferenceTimeout Duration `yaml:"inference_timeout"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from a YAML file and applies environment variable
// overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 20
	}
	if cfg.Vision.SegmentationThreshold == 0 {
		cfg.Vision.SegmentationThreshold = 0.5
	}
	if cfg.Vision.DetectionThreshold == 0 {
		cfg.Vision.DetectionThreshold = 0.5
	}
	if cfg.Vision.MatchThreshold == 0 {
		cfg.Vision.MatchThreshold = 0.45
	}
	if cfg.Vision.CandidateThreshold == 0 {
		cfg.Vision.CandidateThreshold = 0.2
	}
	if cfg.Vision.CandidateLimit == 0 {
		cfg.Vision.CandidateLimit = 5
	}
	if cfg.Vision.CanvasSize == 0 {
		cfg.Vision.CanvasSize = 320
	}
	if cfg.Vision.TargetLuma == 0 {
		cfg.Vision.TargetLuma = 140
	}
	if cfg.Vision.TargetLumaStd == 0 {
		cfg.Vision.TargetLumaStd = 55
	}
	if cfg.Vision.InferenceTimeout == 0 {
		cfg.Vision.InferenceTimeout = Duration(15 * time.Second)
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FACEID_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("FACEID_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("FACEID_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("FACEID_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("FACEID_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("FACEID_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("FACEID_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("FACEID_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("FACEID_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("FACEID_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("FACEID_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("FACEID_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("FACEID_MODELS_DIR"); v != "" {
		cfg.Vision.ModelsDir = v
	}
}
