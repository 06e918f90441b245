package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

const (
	DefaultConfigPath   = "config.toml"
	DefaultHTTPAddr     = ":8080"
	DefaultJWTExpiresIn = "24h"
	DefaultPGHost       = "127.0.0.1"
	DefaultPGPort       = 5432
	DefaultPGUser       = "postgres"
	DefaultPGDatabase   = "waverelay"
	DefaultPGSSLMode    = "disable"
	DefaultGraphAPIBase = "https://graph.facebook.com/v21.0"
	DefaultDataRoot     = "data"
)

type Config struct {
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	Auth     AuthConfig     `toml:"auth"`
	Postgres PostgresConfig `toml:"postgres"`
	WhatsApp WhatsAppConfig `toml:"whatsapp"`
	Storage  StorageConfig  `toml:"storage"`
	AMQP     AMQPConfig     `toml:"amqp"`
	Push     PushConfig     `toml:"push"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type AuthConfig struct {
	JWTSecret    string `toml:"jwt_secret"`
	JWTExpiresIn string `toml:"jwt_expires_in"`
}

type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

// DSN renders the pool connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

// WhatsAppConfig holds the Cloud API credentials and webhook secrets.
// AppSecret empty means inbound signature verification is skipped (dev mode).
type WhatsAppConfig struct {
	APIBase           string `toml:"api_base"`
	AccessToken       string `toml:"access_token"`
	PhoneNumberID     string `toml:"phone_number_id"`
	VerifyToken       string `toml:"verify_token"`
	AppSecret         string `toml:"app_secret"`
	StrictStatusOrder bool   `toml:"strict_status_order"`
}

type StorageConfig struct {
	DataRoot      string `toml:"data_root"`
	PublicBaseURL string `toml:"public_base_url"`
}

// AMQPConfig configures the optional broker mirror for realtime events.
// URL empty disables the mirror.
type AMQPConfig struct {
	URL      string `toml:"url"`
	Exchange string `toml:"exchange"`
}

// PushConfig configures the fire-and-forget push notification dispatch.
// Endpoint empty disables it.
type PushConfig struct {
	Endpoint string `toml:"endpoint"`
}

func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Auth: AuthConfig{
			JWTExpiresIn: DefaultJWTExpiresIn,
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
		WhatsApp: WhatsAppConfig{
			APIBase:           DefaultGraphAPIBase,
			StrictStatusOrder: true,
		},
		Storage: StorageConfig{
			DataRoot: DefaultDataRoot,
		},
		AMQP: AMQPConfig{
			Exchange: "waverelay.events",
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}
