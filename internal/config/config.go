package config

import (
	"os"

	"github.com/spf13/viper"
)

type Config struct {
	ServerAddress string
	Environment   string
	Remote        RemoteConfig
}

// RemoteConfig points the consuming client at the catalog API.
type RemoteConfig struct {
	BaseURL string
	Retry   int
}

func LoadConfig() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	viper.SetDefault("SERVER_ADDRESS", ":8080")
	viper.SetDefault("ENVIRONMENT", "development")
	viper.SetDefault("REMOTE_BASE_URL", "http://localhost:8080")
	viper.SetDefault("REMOTE_RETRY", 2)

	if err := viper.ReadInConfig(); err != nil {
		// .env is optional; env vars and defaults cover the rest
		if _, statErr := os.Stat(".env"); statErr == nil {
			return nil, err
		}
	}

	return &Config{
		ServerAddress: viper.GetString("SERVER_ADDRESS"),
		Environment:   viper.GetString("ENVIRONMENT"),
		Remote: RemoteConfig{
			BaseURL: viper.GetString("REMOTE_BASE_URL"),
			Retry:   viper.GetInt("REMOTE_RETRY"),
		},
	}, nil
}
