package config

import (
	"encoding/json"
	"os"

	"github.com/classyapps/securechat/internal/flagx"
	"github.com/classyapps/securechat/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON
// unmarshalling. It uses timex.Duration for interval fields, which allows
// parsing both string values such as "20s" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON
// configuration files. After unmarshalling, its set fields are copied into
// the runtime Config struct which uses time.Duration.
type JsonConfig struct {
	StoreBackend                string          `json:"store_backend"`
	DatabaseDSN                 string          `json:"database_dsn"`
	RedisAddr                   string          `json:"redis_addr"`
	VaultDir                    string          `json:"vault_dir"`
	SessionFile                 string          `json:"session_file"`
	SecretKey                   string          `json:"secret_key"`
	AccessTokenValidityDuration *timex.Duration `json:"access_token_validity_duration"`
	SecretArmOnSend             *bool           `json:"secret_arm_on_send"`
	SecretSendLifetime          *timex.Duration `json:"secret_send_lifetime"`
	SecretReadArmWindow         *timex.Duration `json:"secret_read_arm_window"`
	RepublishKeyOnSignIn        *bool           `json:"republish_key_on_signin"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance.
//
// The file path comes from the -c or -config command-line flags; when
// neither is set, no JSON file is loaded. Fields absent from the file keep
// their current values. An unreadable or invalid file panics, matching the
// fail-fast treatment of broken explicit configuration.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	if c.StoreBackend != "" {
		config.StoreBackend = c.StoreBackend
	}
	if c.DatabaseDSN != "" {
		config.DatabaseDSN = c.DatabaseDSN
	}
	if c.RedisAddr != "" {
		config.RedisAddr = c.RedisAddr
	}
	if c.VaultDir != "" {
		config.VaultDir = c.VaultDir
	}
	if c.SessionFile != "" {
		config.SessionFile = c.SessionFile
	}
	if c.SecretKey != "" {
		config.SecretKey = c.SecretKey
	}
	if c.AccessTokenValidityDuration != nil {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.SecretArmOnSend != nil {
		config.SecretArmOnSend = *c.SecretArmOnSend
	}
	if c.SecretSendLifetime != nil {
		config.SecretSendLifetime = c.SecretSendLifetime.Duration
	}
	if c.SecretReadArmWindow != nil {
		config.SecretReadArmWindow = c.SecretReadArmWindow.Duration
	}
	if c.RepublishKeyOnSignIn != nil {
		config.RepublishKeyOnSignIn = *c.RepublishKeyOnSignIn
	}
}
