/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the custody service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort                         string `mapstructure:"SERVER_PORT"`
	DatabaseURL                        string `mapstructure:"DATABASE_URL"`
	RedisURL                           string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix               string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL                        string `mapstructure:"RABBITMQ_URL"`
	JWKSURL                            string `mapstructure:"JWKS_URL"`
	StorageServiceURL                  string `mapstructure:"STORAGE_SERVICE_URL"`
	StorageServiceAPIKey               string `mapstructure:"STORAGE_SERVICE_API_KEY"`
	SupportedCoins                     string `mapstructure:"SUPPORTED_COINS"`
	MaxKycFileSizeBytes                int64  `mapstructure:"MAX_KYC_FILE_SIZE_BYTES"`
	WithdrawalRequestRateLimitPerMinute int   `mapstructure:"WITHDRAWAL_REQUEST_RATE_LIMIT_PER_MINUTE"`
}

// SupportedCoinList splits the configured coin symbols into a normalized slice.
func (c Config) SupportedCoinList() []string {
	parts := strings.Split(c.SupportedCoins, ",")
	coins := make([]string, 0, len(parts))
	for _, part := range parts {
		coin := strings.ToUpper(strings.TrimSpace(part))
		if coin != "" {
			coins = append(coins, coin)
		}
	}
	return coins
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "custody:rate_limit")
	viper.SetDefault("SUPPORTED_COINS", "BTC,ETH,USDC,USDT,SOL")
	viper.SetDefault("MAX_KYC_FILE_SIZE_BYTES", 5*1024*1024)
	viper.SetDefault("WITHDRAWAL_REQUEST_RATE_LIMIT_PER_MINUTE", 10)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "CUSTODY_REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("JWKS_URL")
	_ = viper.BindEnv("STORAGE_SERVICE_URL")
	_ = viper.BindEnv("STORAGE_SERVICE_API_KEY")
	_ = viper.BindEnv("SUPPORTED_COINS")
	_ = viper.BindEnv("MAX_KYC_FILE_SIZE_BYTES")
	_ = viper.BindEnv("WITHDRAWAL_REQUEST_RATE_LIMIT_PER_MINUTE")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "custody:rate_limit"
	}

	if len(config.SupportedCoinList()) == 0 {
		log.Printf("level=warn component=config msg=\"no supported coins configured; using defaults\"")
		config.SupportedCoins = "BTC,ETH,USDC,USDT,SOL"
	}
	if config.MaxKycFileSizeBytes <= 0 {
		log.Printf("level=warn component=config msg=\"invalid max kyc file size; using default\" configured=%d", config.MaxKycFileSizeBytes)
		config.MaxKycFileSizeBytes = 5 * 1024 * 1024
	}
	if config.WithdrawalRequestRateLimitPerMinute <= 0 {
		config.WithdrawalRequestRateLimitPerMinute = 10
	}

	return
}
