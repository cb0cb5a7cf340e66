package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Telegram TelegramConfig `yaml:"telegram"`
	Redis    RedisConfig    `yaml:"redis"`
	Database DatabaseConfig `yaml:"database"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Relay    RelayConfig    `yaml:"relay"`
	Booking  BookingConfig  `yaml:"booking"`
	Wizard   WizardConfig   `yaml:"wizard"`
}

type HTTPConfig struct {
	Address string `yaml:"address"`
}

type TelegramConfig struct {
	Token         string `yaml:"token"`
	ManagerChatID int64  `yaml:"manager_chat_id"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type KafkaConfig struct {
	Brokers       []string `yaml:"brokers"`
	BookingsTopic string   `yaml:"bookings_topic"`
	GroupID       string   `yaml:"group_id"`
}

type RelayConfig struct {
	PollSeconds int `yaml:"poll_seconds"`
}

func (r RelayConfig) PollInterval() time.Duration {
	return time.Duration(r.PollSeconds) * time.Second
}

type BookingConfig struct {
	RetentionHours    int `yaml:"retention_hours"`
	OutcomeTTLMinutes int `yaml:"outcome_ttl_minutes"`
}

func (b BookingConfig) Retention() time.Duration {
	return time.Duration(b.RetentionHours) * time.Hour
}

func (b BookingConfig) OutcomeTTL() time.Duration {
	return time.Duration(b.OutcomeTTLMinutes) * time.Minute
}

type WizardConfig struct {
	SessionIdleMinutes int `yaml:"session_idle_minutes"`
	MaxSessions        int `yaml:"max_sessions"`
}

func (w WizardConfig) SessionIdle() time.Duration {
	return time.Duration(w.SessionIdleMinutes) * time.Minute
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &cfg, nil
}
