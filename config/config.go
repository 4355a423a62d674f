package config

import (
	"gopkg.in/yaml.v2"
	"io/ioutil"
	"os"
)

type Config struct {
	TelegramToken  string  `yaml:"telegram_token"`
	AdminIDs       []int64 `yaml:"admin_ids"`
	GeminiAPIKey   string  `yaml:"gemini_api_key"`
	GeminiEndpoint string  `yaml:"gemini_endpoint"`
	DatabasePath   string  `yaml:"database_path"`
	AuditDBPath    string  `yaml:"audit_database_path"`
	HTTPAddress    string  `yaml:"http_address"`
	MinBalance     float64 `yaml:"min_balance"`
	RestrictMode   bool    `yaml:"restrict_mode"`
	OCRTimeoutSec  int     `yaml:"ocr_timeout_seconds"`
	LogLevel       string  `yaml:"log_level"`
	SupportURL     string  `yaml:"support_url"`
	RegisterURL    string  `yaml:"register_url"`
}

func Load(path string) (*Config, error) {
	cfg := &Config{}
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return ioutil.WriteFile(path, data, 0644)
}

func Ensure(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := &Config{
			TelegramToken:  "",
			AdminIDs:       []int64{},
			GeminiAPIKey:   "",
			GeminiEndpoint: "https://generativelanguage.googleapis.com/v1beta/models/gemini-1.5-flash:generateContent",
			DatabasePath:   "uidcheck.db",
			AuditDBPath:    "audit.db",
			HTTPAddress:    ":8080",
			MinBalance:     100.0,
			RestrictMode:   true,
			OCRTimeoutSec:  30,
			LogLevel:       "info",
			SupportURL:     "https://t.me/support",
			RegisterURL:    "",
		}
		if err := cfg.Save(path); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return Load(path)
}

// IsAdmin reports whether the Telegram user id belongs to an admin.
func (c *Config) IsAdmin(id int64) bool {
	for _, a := range c.AdminIDs {
		if a == id {
			return true
		}
	}
	return false
}
