package config

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"strings"
)

// envDirs lists the working directory and the executable's directory.
func envDirs() []string {
	var dirs []string
	if cwd, err := os.Getwd(); err == nil {
		dirs = append(dirs, cwd)
	}
	if exe, err := os.Executable(); err == nil {
		if dir := filepath.Dir(exe); dir != "" {
			dirs = append(dirs, dir)
		}
	}
	return dirs
}

// loadEnvFiles sets variables from .env.local then .env in each dir. Variables
// that are already set are left alone, so .env.local wins over .env.
func loadEnvFiles(dirs ...string) {
	for _, dir := range dirs {
		for _, name := range []string{".env.local", ".env"} {
			data, err := os.ReadFile(filepath.Join(dir, name))
			if err != nil {
				continue
			}
			applyEnvFile(data)
		}
	}
}

func applyEnvFile(data []byte) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		key, value, ok := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		if os.Getenv(key) == "" {
			_ = os.Setenv(key, value)
		}
	}
}
