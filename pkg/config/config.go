package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App       App       `yaml:"app"`
	Database  Database  `yaml:"database"`
	Tunnel    Tunnel    `yaml:"tunnel"`
	Webhook   Webhook   `yaml:"webhook"`
	Monitor   Monitor   `yaml:"monitor"`
	Retention Retention `yaml:"retention"`
	Auth      Auth      `yaml:"auth"`
	Cache     Cache     `yaml:"cache"`
	S3        S3        `yaml:"s3"`
	WhatsApp  WhatsApp  `yaml:"whatsapp"`
	Allows    Allows    `yaml:"allows"`
}

type App struct {
	Name     string `yaml:"name" validate:"required"`
	Port     string `yaml:"port" validate:"required,numeric"`
	Host     string `yaml:"host"`
	LogLevel string `yaml:"log_level" validate:"oneof=trace debug info warn error"`
	LogJSON  bool   `yaml:"log_json"`
}

type Database struct {
	Driver    string `yaml:"driver" validate:"oneof=sqlite postgres"`
	Path      string `yaml:"path" validate:"required_if=Driver sqlite"`
	Host      string `yaml:"host" validate:"required_if=Driver postgres"`
	Port      string `yaml:"port"`
	User      string `yaml:"user"`
	Pass      string `yaml:"pass"`
	Name      string `yaml:"name" validate:"required_if=Driver postgres"`
	BackupDir string `yaml:"backup_dir"`
}

type Tunnel struct {
	Disabled     bool          `yaml:"disabled"`
	Binary       string        `yaml:"binary" validate:"required_unless=Disabled true"`
	Marker       string        `yaml:"marker" validate:"required"`
	StartTimeout time.Duration `yaml:"start_timeout" validate:"gt=0"`
}

type Webhook struct {
	Path         string `yaml:"path" validate:"required,startswith=/"`
	BodyLimit    int64  `yaml:"body_limit" validate:"gt=0"`
	CaptureLimit int    `yaml:"capture_limit" validate:"gt=0"`
}

type Monitor struct {
	Disabled bool          `yaml:"disabled"`
	Interval time.Duration `yaml:"interval" validate:"gt=0"`
}

type Retention struct {
	Enabled  bool   `yaml:"enabled"`
	Schedule string `yaml:"schedule" validate:"required_if=Enabled true"`
	Days     int    `yaml:"days" validate:"gte=0"`
}

type Auth struct {
	Secret string `yaml:"secret"`
}

type Cache struct {
	Host     string        `yaml:"host"`
	Port     string        `yaml:"port"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type S3 struct {
	Enabled         bool   `yaml:"enabled"`
	AccessKeyID     string `yaml:"access_key_id" validate:"required_if=Enabled true"`
	SecretAccessKey string `yaml:"secret_access_key" validate:"required_if=Enabled true"`
	Region          string `yaml:"region"`
	BucketName      string `yaml:"bucket_name" validate:"required_if=Enabled true"`
	EndpointURL     string `yaml:"endpoint_url"`
	Prefix          string `yaml:"prefix"`
}

type WhatsApp struct {
	Enabled    bool    `yaml:"enabled"`
	StorePath  string  `yaml:"store_path"`
	SendPerSec float64 `yaml:"send_per_sec" validate:"gte=0"`
}

type Allows struct {
	Methods []string `yaml:"methods"`
	Origins []string `yaml:"origins"`
	Headers []string `yaml:"headers"`
}

// Load reads the yaml file at path (a missing file is fine), applies
// environment overrides and defaults, and validates the result.
func Load(path string) (*Config, error) {
	var configs Config
	if yaml_file, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(yaml_file, &configs); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	applyEnv(&configs)
	applyDefaults(&configs)

	if err := validator.New().Struct(&configs); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &configs, nil
}

func applyEnv(configs *Config) {
	// Override app configuration with environment variables
	if appHost := os.Getenv("APP_HOST"); appHost != "" {
		configs.App.Host = appHost
	}
	if appPort := os.Getenv("APP_PORT"); appPort != "" {
		configs.App.Port = appPort
	}
	if appName := os.Getenv("APP_NAME"); appName != "" {
		configs.App.Name = appName
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		configs.App.LogLevel = level
	}

	if dbDriver := os.Getenv("DB_DRIVER"); dbDriver != "" {
		configs.Database.Driver = dbDriver
	}
	if dbPath := os.Getenv("DB_PATH"); dbPath != "" {
		configs.Database.Path = dbPath
	}
	if dbHost := os.Getenv("DB_HOST"); dbHost != "" {
		configs.Database.Host = dbHost
	}
	if dbPort := os.Getenv("DB_PORT"); dbPort != "" {
		configs.Database.Port = dbPort
	}
	if dbUser := os.Getenv("DB_USER"); dbUser != "" {
		configs.Database.User = dbUser
	}
	if dbPassword := os.Getenv("DB_PASSWORD"); dbPassword != "" {
		configs.Database.Pass = dbPassword
	}
	if dbName := os.Getenv("DB_NAME"); dbName != "" {
		configs.Database.Name = dbName
	}

	if bin := os.Getenv("TUNNEL_BINARY"); bin != "" {
		configs.Tunnel.Binary = bin
	}
	if enabled := os.Getenv("TUNNEL_ENABLED"); enabled != "" {
		if on, err := strconv.ParseBool(enabled); err == nil {
			configs.Tunnel.Disabled = !on
		}
	}

	if secret := os.Getenv("SECRET"); secret != "" {
		configs.Auth.Secret = secret
	}

	if cacheHost := os.Getenv("CACHE_HOST"); cacheHost != "" {
		configs.Cache.Host = cacheHost
	}
	if cachePort := os.Getenv("CACHE_PORT"); cachePort != "" {
		configs.Cache.Port = cachePort
	}
	if cachePassword := os.Getenv("CACHE_PASSWORD"); cachePassword != "" {
		configs.Cache.Password = cachePassword
	}

	if enabled := os.Getenv("S3_BACKUP_ENABLED"); enabled != "" {
		configs.S3.Enabled = enabled == "true"
	}
	if v := os.Getenv("S3_ACCESS_KEY_ID"); v != "" {
		configs.S3.AccessKeyID = v
	}
	if v := os.Getenv("S3_SECRET_ACCESS_KEY"); v != "" {
		configs.S3.SecretAccessKey = v
	}
	if v := os.Getenv("S3_REGION"); v != "" {
		configs.S3.Region = v
	}
	if v := os.Getenv("S3_BUCKET_NAME"); v != "" {
		configs.S3.BucketName = v
	}
	if v := os.Getenv("S3_ENDPOINT_URL"); v != "" {
		configs.S3.EndpointURL = v
	}
}

func applyDefaults(configs *Config) {
	if configs.App.Name == "" {
		configs.App.Name = "wahook"
	}
	if configs.App.Port == "" {
		configs.App.Port = "5000"
	}
	if configs.App.Host == "" {
		configs.App.Host = "0.0.0.0"
	}
	if configs.App.LogLevel == "" {
		configs.App.LogLevel = "info"
	}

	if configs.Database.Driver == "" {
		configs.Database.Driver = "sqlite"
	}
	if configs.Database.Driver == "sqlite" && configs.Database.Path == "" {
		configs.Database.Path = "webhooks.db"
	}
	if configs.Database.Port == "" {
		configs.Database.Port = "5432"
	}
	if configs.Database.BackupDir == "" {
		configs.Database.BackupDir = "backups"
	}

	if configs.Tunnel.Binary == "" {
		configs.Tunnel.Binary = "cloudflared"
	}
	if configs.Tunnel.Marker == "" {
		configs.Tunnel.Marker = "trycloudflare.com"
	}
	if configs.Tunnel.StartTimeout <= 0 {
		configs.Tunnel.StartTimeout = 30 * time.Second
	}

	if configs.Webhook.Path == "" {
		configs.Webhook.Path = "/webhook"
	}
	if configs.Webhook.BodyLimit <= 0 {
		configs.Webhook.BodyLimit = 10 << 20
	}
	if configs.Webhook.CaptureLimit <= 0 {
		configs.Webhook.CaptureLimit = 1000
	}

	if configs.Monitor.Interval <= 0 {
		configs.Monitor.Interval = time.Second
	}

	if configs.Retention.Schedule == "" {
		configs.Retention.Schedule = "0 30 3 * * *"
	}
	if configs.Retention.Days == 0 {
		configs.Retention.Days = 90
	}

	if configs.Cache.Port == "" {
		configs.Cache.Port = "6379"
	}
	if configs.Cache.TTL <= 0 {
		configs.Cache.TTL = 30 * time.Second
	}

	if configs.S3.Region == "" {
		configs.S3.Region = "us-east-1"
	}
	if configs.S3.Prefix == "" {
		configs.S3.Prefix = "backups"
	}

	if configs.WhatsApp.StorePath == "" {
		configs.WhatsApp.StorePath = "whatsapp.db"
	}
	if configs.WhatsApp.SendPerSec == 0 {
		configs.WhatsApp.SendPerSec = 1
	}

	if len(configs.Allows.Methods) == 0 {
		configs.Allows.Methods = []string{"GET", "PUT", "POST", "DELETE", "OPTIONS"}
	}
	if len(configs.Allows.Origins) == 0 {
		configs.Allows.Origins = []string{"*"}
	}
	if len(configs.Allows.Headers) == 0 {
		configs.Allows.Headers = []string{"Content-Type", "Authorization", "X-Requested-With", "Origin", "Accept"}
	}
}
