package config

import (
	"errors"
	"log"
	"os"
	"sync"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const defaultPath = "config.yml"

type Config struct {
	IsDebug bool `yaml:"is_debug" env:"IS_DEBUG" env-default:"false"`
	Listen  struct {
		BindIP   string `yaml:"bind_ip" env:"LISTEN_BIND_IP" env-default:"0.0.0.0"`
		Port     string `yaml:"port" env:"LISTEN_PORT" env-default:"8080"`
		TLS      bool   `yaml:"tls_enabled" env-default:"false"`
		CertFile string `yaml:"cert_file" env-default:""`
		KeyFile  string `yaml:"key_file" env-default:""`
	} `yaml:"listen"`
	Api struct {
		BindIP         string        `yaml:"bind_ip" env:"API_BIND_IP" env-default:"0.0.0.0"`
		Port           string        `yaml:"port" env:"API_PORT" env-default:"3000"`
		RequestTimeout time.Duration `yaml:"request_timeout" env-default:"10s"`
	} `yaml:"api"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" env-default:"false"`
		BindIP  string `yaml:"bind_ip" env-default:"0.0.0.0"`
		Port    string `yaml:"port" env-default:"9100"`
	} `yaml:"metrics"`
	Mongo struct {
		Enabled  bool   `yaml:"enabled" env-default:"false"`
		Host     string `yaml:"host" env-default:"127.0.0.1"`
		Port     string `yaml:"port" env-default:"27017"`
		User     string `yaml:"user" env-default:""`
		Password string `yaml:"password" env:"MONGO_PASSWORD" env-default:""`
		Database string `yaml:"database" env-default:"evlink"`
	} `yaml:"mongo"`
	Telegram struct {
		Enabled bool    `yaml:"enabled" env-default:"false"`
		ApiKey  string  `yaml:"api_key" env:"TELEGRAM_API_KEY" env-default:""`
		ChatIds []int64 `yaml:"chat_ids"`
	} `yaml:"telegram"`
	Ocpp struct {
		CallTimeout       time.Duration `yaml:"call_timeout" env-default:"30s"`
		HeartbeatInterval time.Duration `yaml:"heartbeat_interval" env-default:"10s"`
	} `yaml:"ocpp"`
	ChargePoint struct {
		Id                string        `yaml:"id" env:"CHARGE_POINT_ID" env-default:"CP1"`
		CentralUrl        string        `yaml:"central_url" env:"CENTRAL_URL" env-default:"ws://localhost:8080/ocpp"`
		ConnectorId       int           `yaml:"connector_id" env-default:"1"`
		Vendor            string        `yaml:"vendor" env-default:"Simulator"`
		Model             string        `yaml:"model" env-default:"Model1"`
		PreparingDelay    time.Duration `yaml:"preparing_delay" env-default:"2s"`
		FinishingDelay    time.Duration `yaml:"finishing_delay" env-default:"2s"`
		HeartbeatInterval time.Duration `yaml:"heartbeat_interval" env-default:"10s"`
		ChargingPower     int           `yaml:"charging_power" env-default:"11000"`
		DialAttempts      uint          `yaml:"dial_attempts" env-default:"5"`
	} `yaml:"charge_point"`
}

var instance *Config
var once sync.Once

// GetConfig reads the configuration once; a missing file falls back to defaults and environment
func GetConfig(path string) (*Config, error) {
	var err error
	once.Do(func() {
		if path == "" {
			path = defaultPath
		}
		instance = &Config{}
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
			log.Printf("config file %s not found, using defaults", path)
			err = cleanenv.ReadEnv(instance)
		} else {
			log.Printf("reading config %s", path)
			err = cleanenv.ReadConfig(path, instance)
		}
		if err != nil {
			desc, _ := cleanenv.GetDescription(instance, nil)
			log.Println(desc)
			instance = nil
		}
	})
	if instance == nil && err == nil {
		err = errors.New("configuration not loaded")
	}
	return instance, err
}
