package config

import "os"

// GetEnv returns the value of the environment variable k, or d when unset or empty.
func GetEnv(k, d string) string {
	if v := env(k); v != "" {
		return v
	}
	return d
}

var env = os.Getenv
