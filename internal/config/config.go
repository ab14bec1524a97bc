// Package config provides functionality for managing configuration options
// for the application using command-line flags, environment variables and
// an optional JSON config file.
package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
)

// Options holds the configuration values for the server.
type Options struct {
	// Port defines the server's listening address (ip:port).
	Port string `json:"port"`

	// UsersFile is the path of the JSON file holding user credentials.
	// Empty means in-memory storage only.
	UsersFile string `json:"users_file"`

	// DatabaseDSN selects the PostgreSQL backend instead of UsersFile when set.
	DatabaseDSN string `json:"database_dsn"`

	// LogLevel is the zap level name.
	LogLevel string `json:"log_level"`

	// BcryptCost is the bcrypt work factor for new hashes.
	BcryptCost int `json:"bcrypt_cost"`

	// HashConcurrency caps simultaneous bcrypt operations. 0 means GOMAXPROCS.
	HashConcurrency int `json:"hash_concurrency"`

	// TLSCert and TLSKey enable HTTPS when both are set.
	TLSCert string `json:"tls_cert"`
	TLSKey  string `json:"tls_key"`

	// Config is the path to the Config file.
	Config string `json:"-"`
}

// Parse parses os.Args and the process environment.
// It exits the process on invalid input, like flag.Parse does.
func Parse() *Options {
	opts, err := ParseArgs(os.Args[1:], os.Getenv)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	return opts
}

// ParseArgs builds Options from defaults, then the JSON config file, then
// command-line flags, then environment variables (highest priority).
func ParseArgs(args []string, getenv func(string) string) (*Options, error) {
	opts := &Options{}

	fs := flag.NewFlagSet("credkeeper", flag.ContinueOnError)
	fs.StringVar(&opts.Port, "a", "localhost:8080", "run on ip:port server")
	fs.StringVar(&opts.UsersFile, "f", "data/users.json", "path to users file")
	fs.StringVar(&opts.DatabaseDSN, "d", "", "db address")
	fs.StringVar(&opts.LogLevel, "l", "info", "log level")
	fs.IntVar(&opts.BcryptCost, "cost", 10, "bcrypt cost")
	fs.IntVar(&opts.HashConcurrency, "hash-workers", 0, "max concurrent password hashes (0 = GOMAXPROCS)")
	fs.StringVar(&opts.TLSCert, "tls-cert", "", "path to TLS certificate")
	fs.StringVar(&opts.TLSKey, "tls-key", "", "path to TLS key")
	fs.StringVar(&opts.Config, "config", "config.json", "path to config file")
	fs.StringVar(&opts.Config, "c", "config.json", "path to config file (shorthand)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Override flags with environment variables if set
	if configPath := getenv("CONFIG"); configPath != "" {
		opts.Config = configPath
	}

	// Flags given explicitly win over the file.
	explicit := map[string]string{}
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = f.Value.String() })

	if opts.Config != "" {
		if _, err := os.Stat(opts.Config); err == nil {
			data, err := os.ReadFile(opts.Config)
			if err != nil {
				return nil, fmt.Errorf("error while reading config file: %w", err)
			}
			if err := json.Unmarshal(data, opts); err != nil {
				return nil, fmt.Errorf("error while parsing config file: %w", err)
			}
			for name, value := range explicit {
				if err := fs.Set(name, value); err != nil {
					return nil, fmt.Errorf("reapply flag -%s: %w", name, err)
				}
			}
		}
	}

	if v := getenv("SERVER_ADDRESS"); v != "" {
		opts.Port = v
	}
	if v := getenv("USERS_FILE"); v != "" {
		opts.UsersFile = v
	}
	if v := getenv("DATABASE_DSN"); v != "" {
		opts.DatabaseDSN = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		opts.LogLevel = v
	}
	if v := getenv("BCRYPT_COST"); v != "" {
		cost, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid BCRYPT_COST %q: %w", v, err)
		}
		opts.BcryptCost = cost
	}

	return opts, nil
}
