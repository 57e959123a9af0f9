package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	RestPort string `yaml:"REST_PORT" env:"REST_PORT" env-default:"8080"`
	LogLevel string `yaml:"LOG_LEVEL" env:"LOG_LEVEL" env-default:"info"`

	PostgresDB       string `yaml:"POSTGRES_DB"       env:"POSTGRES_DB"       env-default:"elections"`
	PostgresUser     string `yaml:"POSTGRES_USER"     env:"POSTGRES_USER"     env-default:"postgres"`
	PostgresPassword string `yaml:"POSTGRES_PASSWORD" env:"POSTGRES_PASSWORD"`
	PostgresHost     string `yaml:"POSTGRES_HOST"     env:"POSTGRES_HOST"     env-default:"localhost"`
	PostgresPort     string `yaml:"POSTGRES_PORT"     env:"POSTGRES_PORT"     env-default:"5432"`

	// VoteSigningSecret keys the HMAC over every persisted vote. Rotating it
	// invalidates signature verification for existing votes.
	VoteSigningSecret string `yaml:"VOTE_SIGNING_SECRET" env:"VOTE_SIGNING_SECRET"`
	JWTSecret         string `yaml:"JWT_SECRET"          env:"JWT_SECRET"`
}

func New() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	var config Config
	if err := cleanenv.ReadEnv(&config); err != nil {
		return nil, err
	}
	if config.VoteSigningSecret == "" {
		return nil, errors.New("VOTE_SIGNING_SECRET is required")
	}
	if config.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	return &config, nil
}

func (c *Config) PostgresURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.PostgresUser, c.PostgresPassword, c.PostgresHost, c.PostgresPort, c.PostgresDB)
}
