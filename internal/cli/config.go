package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Transport names accepted in a profile.
const (
	TransportMemory = "memory"
	TransportRedis  = "redis"
)

// DefaultConfigPath is tried when neither --config nor ARBOR_CONFIG is set.
const DefaultConfigPath = "arbor.yaml"

// Profile holds the connection settings shared by every arbor command.
//
// The memory transport runs everything inside the current command, which is
// enough for launch and demo flows. The redis transport joins the broker and
// stores of every engine on the same database, which is what the control
// commands need to reach processes owned by other programs.
type Profile struct {
	Transport string      `yaml:"transport" json:"transport"`
	Redis     RedisConfig `yaml:"redis" json:"redis"`

	// TimeoutMS bounds how long control commands wait for a reply.
	TimeoutMS int `yaml:"timeout_ms" json:"timeout_ms"`

	// HTTPAddr is the bind address used by `arbor serve`.
	HTTPAddr string `yaml:"http_addr" json:"http_addr"`
}

// RedisConfig locates the shared broker and stores.
type RedisConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`
}

// DefaultProfile returns the settings used when no config file exists.
func DefaultProfile() Profile {
	return Profile{
		Transport: TransportMemory,
		Redis:     RedisConfig{Addr: "localhost:6379"},
		TimeoutMS: 5000,
		HTTPAddr:  ":8321",
	}
}

// Timeout converts the configured reply deadline to a duration.
func (p Profile) Timeout() time.Duration {
	return time.Duration(p.TimeoutMS) * time.Millisecond
}

// LoadProfile reads a profile file (YAML or JSON, decided by extension).
// Path resolution order: the explicit argument, the ARBOR_CONFIG variable,
// then ./arbor.yaml. A missing file yields the defaults; a present but
// malformed one is an error.
func LoadProfile(path string) (Profile, error) {
	explicit := path != ""
	if path == "" {
		path = os.Getenv("ARBOR_CONFIG")
		explicit = path != ""
	}
	if path == "" {
		path = DefaultConfigPath
	}

	profile := DefaultProfile()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return profile, nil
		}
		return profile, fmt.Errorf("failed to read config: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".json" {
		if err := json.Unmarshal(data, &profile); err != nil {
			return profile, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else {
		// Default to YAML
		if err := yaml.Unmarshal(data, &profile); err != nil {
			return profile, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	if err := profile.validate(); err != nil {
		return profile, err
	}
	return profile, nil
}

func (p Profile) validate() error {
	switch p.Transport {
	case TransportMemory, TransportRedis, "":
	default:
		return fmt.Errorf("unknown transport %q: expected %q or %q", p.Transport, TransportMemory, TransportRedis)
	}
	if p.TimeoutMS < 0 {
		return fmt.Errorf("timeout_ms must not be negative, got %d", p.TimeoutMS)
	}
	return nil
}
