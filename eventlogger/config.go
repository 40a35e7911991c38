package eventlogger

import (
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultTTL           = 12 * time.Hour
	DefaultMaxEventCount = 50
	DefaultSyslogAddr    = "127.0.0.1:1514"
	DefaultDBPath        = "eventlogger.db"
)

// APIConfig is the collection endpoint the engine reports to.
// Both fields are required; the engine stays disabled until they are set.
type APIConfig struct {
	APIKey string
	APIURL string
}

func (c *APIConfig) Valid() bool {
	return c != nil && strings.TrimSpace(c.APIKey) != "" && strings.TrimSpace(c.APIURL) != ""
}

type FileConfig struct {
	APIKey string `yaml:"api_key"`
	APIURL string `yaml:"api_url"`

	// DB is the SQLite file holding pending events. Empty keeps events in memory.
	DB string `yaml:"db"`

	// Transport selects the Sender: "http" (default) or "syslog".
	Transport  string `yaml:"transport"`
	SyslogAddr string `yaml:"syslog_addr"`

	TTL           time.Duration `yaml:"ttl"`
	MaxEventCount int           `yaml:"max_event_count"`
	SendTimeout   time.Duration `yaml:"send_timeout"`

	// DeleteOnFailure drops the stored batch when a lifecycle flush fails.
	DeleteOnFailure *bool `yaml:"delete_on_failure"`
	// DropDir receives a JSON copy of batches dropped after a failed flush.
	DropDir string `yaml:"drop_dir"`

	Debug    bool   `yaml:"debug"`
	LogLevel string `yaml:"log_level"`

	App AppIdentity `yaml:"app"`
}

func LoadConfig(path string) (*FileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg FileConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnv overrides the API credentials from EVENTLOGGER_API_KEY and
// EVENTLOGGER_API_URL when set.
func (c *FileConfig) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv("EVENTLOGGER_API_KEY")); v != "" {
		c.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("EVENTLOGGER_API_URL")); v != "" {
		c.APIURL = v
	}
}

// WithDefaults returns a copy with zero values replaced by package defaults.
func (c FileConfig) WithDefaults() FileConfig {
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
	if c.MaxEventCount <= 0 {
		c.MaxEventCount = DefaultMaxEventCount
	}
	if strings.TrimSpace(c.Transport) == "" {
		c.Transport = "http"
	}
	if c.SyslogAddr == "" {
		c.SyslogAddr = DefaultSyslogAddr
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = defaultSendTimeout
	}
	return c
}

func (c *FileConfig) APIConfig() *APIConfig {
	if c == nil {
		return nil
	}
	return &APIConfig{APIKey: strings.TrimSpace(c.APIKey), APIURL: strings.TrimSpace(c.APIURL)}
}

func (c *FileConfig) DeleteOnFailureOrDefault() bool {
	if c == nil || c.DeleteOnFailure == nil {
		return false
	}
	return *c.DeleteOnFailure
}
