package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. QUIZBOT_TELEGRAM_TOKEN for telegram.token.
const EnvPrefix = "QUIZBOT"

type Config struct {
	Platform string `yaml:"platform"`
	Server   struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Telegram struct {
		Token string `yaml:"token"`
	} `yaml:"telegram"`
	Quiz struct {
		QuestionDuration  string `yaml:"question_duration"`
		RefreshInterval   string `yaml:"refresh_interval"`
		RevealPause       string `yaml:"reveal_pause"`
		QueueCapacity     int    `yaml:"queue_capacity"`
		DrainInterval     string `yaml:"drain_interval"`
		AllowAnswerChange *bool  `yaml:"allow_answer_change"`
		PublishFailure    string `yaml:"publish_failure"`
		PublishRetries    *int   `yaml:"publish_retries"`
	} `yaml:"quiz"`
	Rounds struct {
		Source   string `yaml:"source"`
		Dir      string `yaml:"dir"`
		CacheTTL string `yaml:"cache_ttl"`
	} `yaml:"rounds"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Firebase struct {
		CredentialsFile string `yaml:"credentials_file"`
		DatabaseURL     string `yaml:"database_url"`
		Root            string `yaml:"root"`
	} `yaml:"firebase"`
	RabbitMQ struct {
		URL      string `yaml:"url"`
		Exchange string `yaml:"exchange"`
	} `yaml:"rabbitmq"`
	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
		File   string `yaml:"file"`
	} `yaml:"log"`
}

// Load reads YAML config from path and applies QUIZBOT_* environment overrides.
// A missing file is not an error; the environment alone can configure the bot.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	applyEnv(&cfg, newEnv())
	cfg.applyDefaults()
	return cfg, nil
}

func newEnv() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func applyEnv(cfg *Config, v *viper.Viper) {
	stringKeys := map[string]*string{
		"platform":                  &cfg.Platform,
		"server.port":               &cfg.Server.Port,
		"telegram.token":            &cfg.Telegram.Token,
		"quiz.question_duration":    &cfg.Quiz.QuestionDuration,
		"quiz.refresh_interval":     &cfg.Quiz.RefreshInterval,
		"quiz.reveal_pause":         &cfg.Quiz.RevealPause,
		"quiz.drain_interval":       &cfg.Quiz.DrainInterval,
		"quiz.publish_failure":      &cfg.Quiz.PublishFailure,
		"rounds.source":             &cfg.Rounds.Source,
		"rounds.dir":                &cfg.Rounds.Dir,
		"rounds.cache_ttl":          &cfg.Rounds.CacheTTL,
		"redis.addr":                &cfg.Redis.Addr,
		"redis.password":            &cfg.Redis.Password,
		"redis.ttl":                 &cfg.Redis.TTL,
		"postgres.url":              &cfg.Postgres.URL,
		"firebase.credentials_file": &cfg.Firebase.CredentialsFile,
		"firebase.database_url":     &cfg.Firebase.DatabaseURL,
		"firebase.root":             &cfg.Firebase.Root,
		"rabbitmq.url":              &cfg.RabbitMQ.URL,
		"rabbitmq.exchange":         &cfg.RabbitMQ.Exchange,
		"log.level":                 &cfg.Log.Level,
		"log.file":                  &cfg.Log.File,
	}
	for key, target := range stringKeys {
		if val := v.GetString(key); val != "" {
			*target = val
		}
	}
	if v.IsSet("quiz.queue_capacity") {
		cfg.Quiz.QueueCapacity = v.GetInt("quiz.queue_capacity")
	}
	if v.IsSet("quiz.allow_answer_change") {
		allow := v.GetBool("quiz.allow_answer_change")
		cfg.Quiz.AllowAnswerChange = &allow
	}
	if v.IsSet("quiz.publish_retries") {
		retries := v.GetInt("quiz.publish_retries")
		cfg.Quiz.PublishRetries = &retries
	}
	if v.IsSet("redis.db") {
		cfg.Redis.DB = v.GetInt("redis.db")
	}
	if v.IsSet("log.pretty") {
		cfg.Log.Pretty = v.GetBool("log.pretty")
	}
}

func (c *Config) applyDefaults() {
	if c.Platform == "" {
		c.Platform = "telegram"
	}
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Rounds.Source == "" {
		c.Rounds.Source = "file"
	}
	if c.Rounds.Dir == "" {
		c.Rounds.Dir = "rounds"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate reports settings that cannot work together.
func (c Config) Validate() error {
	switch c.Platform {
	case "telegram":
		if c.Telegram.Token == "" {
			return fmt.Errorf("telegram.token not configured (env: %s_TELEGRAM_TOKEN)", EnvPrefix)
		}
	case "web":
	default:
		return fmt.Errorf("unknown platform %q (want telegram or web)", c.Platform)
	}
	switch c.Rounds.Source {
	case "file":
	case "postgres":
		if c.Postgres.URL == "" {
			return fmt.Errorf("rounds.source is postgres but postgres.url not configured")
		}
	case "firebase":
		if c.Firebase.CredentialsFile == "" || c.Firebase.DatabaseURL == "" {
			return fmt.Errorf("rounds.source is firebase but firebase.credentials_file or firebase.database_url not configured")
		}
	default:
		return fmt.Errorf("unknown rounds.source %q", c.Rounds.Source)
	}
	switch c.Quiz.PublishFailure {
	case "", "abort", "retry":
	default:
		return fmt.Errorf("unknown quiz.publish_failure %q (want abort or retry)", c.Quiz.PublishFailure)
	}
	durations := []struct {
		key, raw string
	}{
		{"quiz.question_duration", c.Quiz.QuestionDuration},
		{"quiz.refresh_interval", c.Quiz.RefreshInterval},
		{"quiz.reveal_pause", c.Quiz.RevealPause},
		{"quiz.drain_interval", c.Quiz.DrainInterval},
		{"rounds.cache_ttl", c.Rounds.CacheTTL},
		{"redis.ttl", c.Redis.TTL},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		if _, err := time.ParseDuration(d.raw); err != nil {
			return fmt.Errorf("%s: %w (use a unit, e.g. 15s)", d.key, err)
		}
	}
	return nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
