package config

import (
	"flag"
	"os"
	"time"

	"github.com/classyapps/securechat/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-b string   store backend: "memory" or "postgres"
//	-d string   PostgreSQL DSN
//	-r string   Redis address (host:port)
//	-v string   key vault directory
//	-f string   session file path
//	-s string   JWT HMAC secret key
//	-t int      access token validity, minutes
//	-x bool     arm secret messages at send time
//	-l int      secret send lifetime, seconds
//	-w int      secret read arm window, seconds
//	-k bool     republish public key on every sign-in
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with the -c/-config file flags.
// Duration flags are accepted as integers and converted to time.Duration.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-b", "-d", "-r", "-v", "-f", "-s", "-t", "-x", "-l", "-w", "-k"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.StoreBackend, "b", config.StoreBackend, "store backend (memory or postgres)")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.RedisAddr, "r", config.RedisAddr, "redis address")
	fs.StringVar(&config.VaultDir, "v", config.VaultDir, "key vault directory")
	fs.StringVar(&config.SessionFile, "f", config.SessionFile, "session file path")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	tokenValidity := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access token validity (in minutes)")
	fs.BoolVar(&config.SecretArmOnSend, "x", config.SecretArmOnSend, "arm secret messages at send time")
	sendLifetime := fs.Int("l", int(config.SecretSendLifetime.Seconds()), "secret send lifetime (in seconds)")
	readArmWindow := fs.Int("w", int(config.SecretReadArmWindow.Seconds()), "secret read arm window (in seconds)")
	fs.BoolVar(&config.RepublishKeyOnSignIn, "k", config.RepublishKeyOnSignIn, "republish public key on every sign-in")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*tokenValidity) * time.Minute
	config.SecretSendLifetime = time.Duration(*sendLifetime) * time.Second
	config.SecretReadArmWindow = time.Duration(*readArmWindow) * time.Second
}
