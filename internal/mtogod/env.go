package mtogod

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

const (
	EnvBackendToken = "MTOGO_BACKEND_TOKEN"
	EnvMQTTPass     = "MTOGO_MQTT_PASS"
)

// LoadEnv loads dotenv files into the process environment. Missing files are
// skipped and variables already set are kept.
func LoadEnv(paths ...string) error {
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
	}
	return nil
}

// ApplyEnv overrides secrets from the environment.
func ApplyEnv(cfg *Config) {
	if token, ok := os.LookupEnv(EnvBackendToken); ok {
		cfg.Backend.Token = token
	}
	if pass, ok := os.LookupEnv(EnvMQTTPass); ok {
		cfg.Server.Auth.Pass = pass
	}
}
