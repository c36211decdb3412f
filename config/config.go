package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database DatabaseConfig  `yaml:"database"`
	Kafka    KafkaConfig     `yaml:"kafka"`
	Redis    RedisConfig     `yaml:"redis"`
	Telegram TelegramConfig  `yaml:"telegram"`
	ShipWatch ShipWatchConfig `yaml:"shipwatch"`
	Accounts []AccountConfig `yaml:"accounts"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type KafkaConfig struct {
	Host                    string `yaml:"host"`
	Port                    int    `yaml:"port"`
	ShipmentEventsTopicName string `yaml:"shipment_events_topic_name"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type TelegramConfig struct {
	BotToken   string `yaml:"bot_token"`
	APIBaseURL string `yaml:"api_base_url"`

	PrimaryChatID   int64 `yaml:"primary_chat_id"`
	SecondaryChatID int64 `yaml:"secondary_chat_id"`

	// Топик 1 — сентинел "слать без топика".
	ActiveTopicID    int `yaml:"active_topic_id"`
	CompletedTopicID int `yaml:"completed_topic_id"`
}

type ShipWatchConfig struct {
	HTTPAddr        string `yaml:"http_addr"`
	HistoryHTTPAddr string `yaml:"history_http_addr"`

	KafkaConsumerGroup string `yaml:"kafka_consumer_group"`

	VendorMode    string `yaml:"vendor_mode"` // "wb" | "fake"
	VendorBaseURL string `yaml:"vendor_base_url"`

	CheckIntervalSeconds     int `yaml:"check_interval_seconds"`
	RefreshIntervalSeconds   int `yaml:"refresh_interval_seconds"`
	InactivityTimeoutSeconds int `yaml:"inactivity_timeout_seconds"`

	RateLimitPerMinute int `yaml:"rate_limit_per_minute"`

	LatestStateTTLSeconds int `yaml:"latest_state_ttl_seconds"`

	// Запускать мониторинг всех аккаунтов сразу при старте процесса.
	Autostart bool `yaml:"autostart"`
}

type AccountConfig struct {
	ID         string  `yaml:"id"`
	Name       string  `yaml:"name"`
	Token      string  `yaml:"token"`
	SupplierID int64   `yaml:"supplier_id"`
	OfficeIDs  []int64 `yaml:"office_ids"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return &config, nil
}
