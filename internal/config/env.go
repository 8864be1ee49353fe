package config

import (
	"os"
	"strconv"
	"time"
)

// parseEnv overlays Config fields from SECURECHAT_* environment variables.
// Unset or malformed variables leave the current value in place.
func parseEnv(config *Config) {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	setBool := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(key); ok {
			if parsed, err := strconv.ParseBool(v); err == nil {
				*dst = parsed
			}
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		if v, ok := os.LookupEnv(key); ok {
			if parsed, err := time.ParseDuration(v); err == nil {
				*dst = parsed
			}
		}
	}

	setString("SECURECHAT_STORE_BACKEND", &config.StoreBackend)
	setString("SECURECHAT_DATABASE_DSN", &config.DatabaseDSN)
	setString("SECURECHAT_REDIS_ADDR", &config.RedisAddr)
	setString("SECURECHAT_VAULT_DIR", &config.VaultDir)
	setString("SECURECHAT_SESSION_FILE", &config.SessionFile)
	setString("SECURECHAT_SECRET_KEY", &config.SecretKey)
	setDuration("SECURECHAT_TOKEN_VALIDITY", &config.AccessTokenValidityDuration)
	setBool("SECURECHAT_SECRET_ARM_ON_SEND", &config.SecretArmOnSend)
	setDuration("SECURECHAT_SECRET_SEND_LIFETIME", &config.SecretSendLifetime)
	setDuration("SECURECHAT_SECRET_READ_ARM_WINDOW", &config.SecretReadArmWindow)
	setBool("SECURECHAT_REPUBLISH_KEY_ON_SIGNIN", &config.RepublishKeyOnSignIn)
}
