package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/flagx"
)

// serverFlags are the short flags understood by parseFlags.
var serverFlags = []string{"-a", "-g", "-t", "-d", "-s", "-l", "-v"}

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., "0.0.0.0:3000")
//	-g string   gRPC bind address; empty disables gRPC
//	-t string   database driver: sqlite or postgres
//	-d string   database DSN
//	-s string   token signing secret
//	-l int      session lifetime, minutes
//	-v string   log level
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	if err := ParseFlagsFrom(config, os.Args[1:]); err != nil {
		panic(err)
	}
}

// ParseFlagsFrom applies the recognised short flags found in args.
func ParseFlagsFrom(config *Config, args []string) error {
	args = flagx.FilterArgs(args, serverFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "HTTP address and port to run server")
	fs.StringVar(&config.GRPCAddr, "g", config.GRPCAddr, "gRPC address and port, empty to disable")
	fs.StringVar(&config.DatabaseDriver, "t", config.DatabaseDriver, "database driver (sqlite|postgres)")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "token signing secret")
	fs.StringVar(&config.LogLevel, "v", config.LogLevel, "log level (debug|info|warn|error)")

	sessionLifetime := fs.Int("l", int(config.SessionLifetime.Minutes()), "session lifetime (in minutes)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	// only an explicit -l overrides, so sub-minute values from earlier layers survive
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "l" {
			config.SessionLifetime = time.Duration(*sessionLifetime) * time.Minute
		}
	})
	return nil
}
