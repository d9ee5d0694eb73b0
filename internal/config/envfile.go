package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

// EnvFileVar names an explicit env file. Without it ./.env is read if present.
const EnvFileVar = "RELAYBOT_ENV_FILE"

// loadEnvFiles copies KEY=VALUE lines into the process environment without
// overriding variables that are already set. A missing explicit file is an
// error; a missing .env is not.
func loadEnvFiles() error {
	if explicit := strings.TrimSpace(os.Getenv(EnvFileVar)); explicit != "" {
		if err := loadEnvFile(explicit); err != nil {
			return fmt.Errorf("%s: %w", EnvFileVar, err)
		}
		return nil
	}
	if err := loadEnvFile(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf(".env: %w", err)
	}
	return nil
}

func loadEnvFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(strings.TrimPrefix(line, "export "), "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		if _, set := os.LookupEnv(key); set {
			continue
		}
		_ = os.Setenv(key, unquote(strings.TrimSpace(val)))
	}
	return sc.Err()
}

func unquote(v string) string {
	if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
		return v[1 : len(v)-1]
	}
	return v
}
