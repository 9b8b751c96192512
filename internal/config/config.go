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
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the wallet-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort           string `mapstructure:"SERVER_PORT"`
	DatabaseURL          string `mapstructure:"DATABASE_URL"`
	RedisURL             string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL          string `mapstructure:"RABBITMQ_URL"`
	EventExchange        string `mapstructure:"EVENT_EXCHANGE"`

	JWTSecret   string `mapstructure:"JWT_SECRET"`
	JWTTTLHours int    `mapstructure:"JWT_TTL_HOURS"`

	PaystackSecretKey   string `mapstructure:"PAYSTACK_SECRET_KEY"`
	PaystackBaseURL     string `mapstructure:"PAYSTACK_BASE_URL"`
	FundingCallbackURL  string `mapstructure:"FUNDING_CALLBACK_URL"`
	MinFundingKobo      int64  `mapstructure:"MIN_FUNDING_KOBO"`
	ReferralBonusKobo   int64  `mapstructure:"REFERRAL_BONUS_KOBO"`
	MaxAdjustmentKobo   int64  `mapstructure:"MAX_ADJUSTMENT_KOBO"`

	VTUBaseURL        string `mapstructure:"VTU_BASE_URL"`
	VTUUserID         string `mapstructure:"VTU_USER_ID"`
	VTUAPIKey         string `mapstructure:"VTU_API_KEY"`
	VTUTimeoutSeconds int    `mapstructure:"VTU_TIMEOUT_SECONDS"`

	SweepIntervalSeconds int `mapstructure:"SWEEP_INTERVAL_SECONDS"`
	SweepMinAgeSeconds   int `mapstructure:"SWEEP_MIN_AGE_SECONDS"`

	FundingRateLimitPerMinute  int `mapstructure:"FUNDING_RATE_LIMIT_PER_MINUTE"`
	PurchaseRateLimitPerMinute int `mapstructure:"PURCHASE_RATE_LIMIT_PER_MINUTE"`
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
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "dataflare:rate_limit")
	viper.SetDefault("EVENT_EXCHANGE", "dataflare.events")
	viper.SetDefault("JWT_TTL_HOURS", 168) // 7 days
	viper.SetDefault("PAYSTACK_BASE_URL", "https://api.paystack.co")
	viper.SetDefault("MIN_FUNDING_KOBO", 10000)    // NGN 100
	viper.SetDefault("REFERRAL_BONUS_KOBO", 10000) // NGN 100
	viper.SetDefault("MAX_ADJUSTMENT_KOBO", 500000000)
	viper.SetDefault("VTU_BASE_URL", "https://www.clubkonnect.com")
	viper.SetDefault("VTU_TIMEOUT_SECONDS", 30)
	viper.SetDefault("SWEEP_INTERVAL_SECONDS", 300)
	viper.SetDefault("SWEEP_MIN_AGE_SECONDS", 600)
	viper.SetDefault("FUNDING_RATE_LIMIT_PER_MINUTE", 10)
	viper.SetDefault("PURCHASE_RATE_LIMIT_PER_MINUTE", 30)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("EVENT_EXCHANGE")
	_ = viper.BindEnv("JWT_SECRET")
	_ = viper.BindEnv("JWT_TTL_HOURS")
	_ = viper.BindEnv("PAYSTACK_SECRET_KEY")
	_ = viper.BindEnv("PAYSTACK_BASE_URL")
	_ = viper.BindEnv("FUNDING_CALLBACK_URL")
	_ = viper.BindEnv("MIN_FUNDING_KOBO")
	_ = viper.BindEnv("REFERRAL_BONUS_KOBO")
	_ = viper.BindEnv("REFERRAL_BONUS")
	_ = viper.BindEnv("MAX_ADJUSTMENT_KOBO")
	_ = viper.BindEnv("VTU_BASE_URL")
	_ = viper.BindEnv("VTU_USER_ID")
	_ = viper.BindEnv("VTU_API_KEY")
	_ = viper.BindEnv("VTU_TIMEOUT_SECONDS")
	_ = viper.BindEnv("SWEEP_INTERVAL_SECONDS")
	_ = viper.BindEnv("SWEEP_MIN_AGE_SECONDS")
	_ = viper.BindEnv("FUNDING_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("PURCHASE_RATE_LIMIT_PER_MINUTE")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn().Err(err).Str("component", "config").Msg("failed to read config file; using environment values")
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
		config.RedisRateLimitPrefix = "dataflare:rate_limit"
	}

	// Allow specifying the referral bonus in whole naira via REFERRAL_BONUS.
	// The kobo variable wins when both are present. Precedence is decided from
	// the process environment directly: viper.IsSet reports true for any bound
	// alias, which would make the kobo key look set whenever the alias is.
	if _, koboSet := os.LookupEnv("REFERRAL_BONUS_KOBO"); !koboSet {
		bonusStr := strings.TrimSpace(viper.GetString("REFERRAL_BONUS"))
		if bonusStr != "" {
			bonusValue, parseErr := strconv.ParseFloat(bonusStr, 64)
			if parseErr != nil {
				log.Warn().Str("component", "config").Str("value", bonusStr).Err(parseErr).Msg("invalid REFERRAL_BONUS")
			} else {
				config.ReferralBonusKobo = int64(math.Round(bonusValue * 100))
			}
		}
	}

	if config.ReferralBonusKobo < 0 {
		log.Warn().Str("component", "config").Int64("bonus_kobo", config.ReferralBonusKobo).Msg("negative referral bonus configured; coercing to zero")
		config.ReferralBonusKobo = 0
	}
	if config.MinFundingKobo <= 0 {
		config.MinFundingKobo = 10000
	}
	if config.MaxAdjustmentKobo <= 0 {
		config.MaxAdjustmentKobo = 500000000
	}
	if config.JWTTTLHours <= 0 {
		config.JWTTTLHours = 168
	}
	if config.VTUTimeoutSeconds <= 0 {
		config.VTUTimeoutSeconds = 30
	}
	if config.SweepIntervalSeconds <= 0 {
		config.SweepIntervalSeconds = 300
	}
	if config.SweepMinAgeSeconds <= 0 {
		config.SweepMinAgeSeconds = 600
	}
	if config.FundingRateLimitPerMinute <= 0 {
		config.FundingRateLimitPerMinute = 10
	}
	if config.PurchaseRateLimitPerMinute <= 0 {
		config.PurchaseRateLimitPerMinute = 30
	}

	return
}
