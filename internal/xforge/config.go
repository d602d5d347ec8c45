package xforge

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// Config struct
type Config struct {
	Values map[string]string
}

// Load /etc/xforge.conf and apply defaults
func loadConfig(path string) (*Config, error) {
	cfg := &Config{Values: make(map[string]string)}

	// Attempt to read the file
	file, err := os.Open(path)
	if err == nil {
		defer file.Close()
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			parts := strings.SplitN(line, "=", 2)
			if len(parts) != 2 {
				continue
			}
			key := strings.TrimSpace(parts[0])
			val := strings.TrimSpace(parts[1])
			val = strings.Trim(val, `"'`)
			cfg.Values[key] = val
		}
		if err := scanner.Err(); err != nil {
			return cfg, err
		}
	}

	mergeEnvOverrides(cfg)
	return cfg, nil
}

// Merge XFORGE_* env overrides
func mergeEnvOverrides(cfg *Config) {
	for _, env := range os.Environ() {
		if strings.HasPrefix(env, "XFORGE_") {
			parts := strings.SplitN(env, "=", 2)
			if len(parts) == 2 {
				cfg.Values[parts[0]] = parts[1]
			}
		}
	}
}

func initConfig(cfg *Config) {
	BaseDir = cfg.Values["XFORGE_BASE"]
	if BaseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "/tmp"
		}
		BaseDir = filepath.Join(home, "xlibre-build")
	}

	RepoName = cfg.Values["XFORGE_REPONAME"]
	if RepoName == "" {
		RepoName = "xlibre"
	}

	Version = cfg.Values["XFORGE_VERSION"]
	if Version == "" {
		Version = defaultVersion
	}

	Release = cfg.Values["XFORGE_RELEASE"]
	if Release == "" {
		Release = "1"
	}

	Debug = cfg.Values["XFORGE_DEBUG"] == "1"

	PkgRoot = filepath.Join(BaseDir, "pkg")
	RepoDir = filepath.Join(BaseDir, "repo")
	LogDir = filepath.Join(BaseDir, "logs")
}
