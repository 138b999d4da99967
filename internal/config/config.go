package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the shared service configuration loaded by every cmd/* binary.
// Each binary only reads the sections relevant to it.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	NATS    NATSConfig    `yaml:"nats"`
	MinIO   MinIOConfig   `yaml:"minio"`
	Robot   RobotConfig   `yaml:"robot"`
	Vision  VisionConfig  `yaml:"vision"`
	Logging LoggingConfig `yaml:"logging"`
}

type ServerConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// RobotConfig describes the TCP link to the robot controller.
type RobotConfig struct {
	Host              string        `yaml:"host"`
	Port              int           `yaml:"port"`
	ConnectTimeout    time.Duration `yaml:"connect_timeout"`
	ReconnectMinDelay time.Duration `yaml:"reconnect_min_delay"`
	ReconnectMaxDelay time.Duration `yaml:"reconnect_max_delay"`
	CommandTimeout    time.Duration `yaml:"command_timeout"`
	// ApproachZ is the fixed tool approach height used for every
	// movel command in a batch — the cell has no Z-axis vision cue.
	ApproachZ float64 `yaml:"approach_z"`
	// ConsumerWorkers sizes the NATS batch-consumer fetch/ack pool;
	// the dispatcher itself still runs one batch at a time.
	ConsumerWorkers int `yaml:"consumer_workers"`
}

type VisionConfig struct {
	SettingsPath   string `yaml:"settings_path"`
	CalibrationDir string `yaml:"calibration_dir"`
	CameraIndex    int    `yaml:"camera_index"`
	FrameWidth     int    `yaml:"frame_width"`
	FrameHeight    int    `yaml:"frame_height"`
	BatchDir       string `yaml:"batch_dir"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from a YAML file and applies QC_* environment overrides.
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
	if cfg.NATS.URL == "" {
		cfg.NATS.URL = "nats://127.0.0.1:4222"
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = "qc-cell"
	}
	if cfg.Robot.Port == 0 {
		cfg.Robot.Port = 9000
	}
	if cfg.Robot.ConnectTimeout == 0 {
		cfg.Robot.ConnectTimeout = 5 * time.Second
	}
	if cfg.Robot.ReconnectMinDelay == 0 {
		cfg.Robot.ReconnectMinDelay = 1 * time.Second
	}
	if cfg.Robot.ReconnectMaxDelay == 0 {
		cfg.Robot.ReconnectMaxDelay = 30 * time.Second
	}
	if cfg.Robot.CommandTimeout == 0 {
		cfg.Robot.CommandTimeout = 10 * time.Second
	}
	if cfg.Robot.ApproachZ == 0 {
		cfg.Robot.ApproachZ = 50.0
	}
	if cfg.Robot.ConsumerWorkers == 0 {
		cfg.Robot.ConsumerWorkers = 2
	}
	if cfg.Vision.SettingsPath == "" {
		cfg.Vision.SettingsPath = "./settings.json"
	}
	if cfg.Vision.CalibrationDir == "" {
		cfg.Vision.CalibrationDir = "./calibration"
	}
	if cfg.Vision.FrameWidth == 0 {
		cfg.Vision.FrameWidth = 1280
	}
	if cfg.Vision.FrameHeight == 0 {
		cfg.Vision.FrameHeight = 720
	}
	if cfg.Vision.BatchDir == "" {
		cfg.Vision.BatchDir = "./batches"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("QC_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("QC_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("QC_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("QC_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("QC_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("QC_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("QC_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("QC_ROBOT_HOST"); v != "" {
		cfg.Robot.Host = v
	}
	if v := os.Getenv("QC_ROBOT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Robot.Port = port
		}
	}
	if v := os.Getenv("QC_SETTINGS_PATH"); v != "" {
		cfg.Vision.SettingsPath = v
	}
	if v := os.Getenv("QC_CALIBRATION_DIR"); v != "" {
		cfg.Vision.CalibrationDir = v
	}
	if v := os.Getenv("QC_BATCH_DIR"); v != "" {
		cfg.Vision.BatchDir = v
	}
	if v := os.Getenv("QC_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
