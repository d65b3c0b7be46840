package config

import (
	"errors"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	DB struct {
		DSN string `yaml:"dsn"`
	} `yaml:"db"`
	Stripe struct {
		SecretKey string `yaml:"secret_key"`
	} `yaml:"stripe"`
	Mail struct {
		Token       string `yaml:"token"`
		APIURL      string `yaml:"api_url"`
		SenderEmail string `yaml:"sender_email"`
		SenderName  string `yaml:"sender_name"`
		Templates   struct {
			Underfunded   string `yaml:"underfunded"`
			StageAdvanced string `yaml:"stage_advanced"`
			Discontinued  string `yaml:"discontinued"`
			OrderStatus   string `yaml:"order_status"`
		} `yaml:"templates"`
	} `yaml:"mail"`
	Sweep struct {
		HourUTC         int   `yaml:"hour_utc"`
		MinuteUTC       int   `yaml:"minute_utc"`
		IntervalSeconds int64 `yaml:"interval_seconds"`
	} `yaml:"sweep"`
	Settlement struct {
		CallTimeoutSeconds int64 `yaml:"call_timeout_seconds"`
	} `yaml:"settlement"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(&cfg)

	if cfg.Server.Addr == "" {
		return nil, errors.New("server.addr is required")
	}
	if cfg.DB.DSN == "" {
		return nil, errors.New("db.dsn is required")
	}
	if cfg.Sweep.HourUTC < 0 || cfg.Sweep.HourUTC > 23 {
		return nil, errors.New("sweep.hour_utc out of range")
	}
	if cfg.Sweep.MinuteUTC < 0 || cfg.Sweep.MinuteUTC > 59 {
		return nil, errors.New("sweep.minute_utc out of range")
	}
	if cfg.Settlement.CallTimeoutSeconds <= 0 {
		cfg.Settlement.CallTimeoutSeconds = 15
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("DB_DSN"); v != "" {
		cfg.DB.DSN = v
	}
	if v := os.Getenv("STRIPE_SECRET_KEY"); v != "" {
		cfg.Stripe.SecretKey = v
	}
	if v := os.Getenv("MAIL_TOKEN"); v != "" {
		cfg.Mail.Token = v
	}
	if v := os.Getenv("MAIL_API_URL"); v != "" {
		cfg.Mail.APIURL = v
	}
	if v := os.Getenv("MAIL_SENDER_EMAIL"); v != "" {
		cfg.Mail.SenderEmail = v
	}
	if v := os.Getenv("MAIL_SENDER_NAME"); v != "" {
		cfg.Mail.SenderName = v
	}
	if v := os.Getenv("SWEEP_HOUR_UTC"); v != "" {
		cfg.Sweep.HourUTC = atoiOr(cfg.Sweep.HourUTC, v)
	}
	if v := os.Getenv("SWEEP_MINUTE_UTC"); v != "" {
		cfg.Sweep.MinuteUTC = atoiOr(cfg.Sweep.MinuteUTC, v)
	}
	if v := os.Getenv("SWEEP_INTERVAL_SECONDS"); v != "" {
		cfg.Sweep.IntervalSeconds = atoi64Or(cfg.Sweep.IntervalSeconds, v)
	}
	if v := os.Getenv("SETTLEMENT_CALL_TIMEOUT_SECONDS"); v != "" {
		cfg.Settlement.CallTimeoutSeconds = atoi64Or(cfg.Settlement.CallTimeoutSeconds, v)
	}
}

func atoiOr(fallback int, v string) int {
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func atoi64Or(fallback int64, v string) int64 {
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return i
}
