package config

import (
	"time"

	"github.com/spf13/viper"

	pkgconfig "github.com/kmrathod29/seribro-sub002/pkg/config"
	"github.com/kmrathod29/seribro-sub002/pkg/log"
)

type Config struct {
	API     APIConfig
	Channel ChannelConfig
	Poll    PollConfig
	Typing  TypingConfig
	Log     log.Config
}

// APIConfig covers the REST endpoints consumed for snapshot, backfill,
// send, and mark-read.
type APIConfig struct {
	BaseURL string `mapstructure:"base_url"`
	// UserID is the opaque identity forwarded on every call. Real
	// session handling lives outside this module.
	UserID         string        `mapstructure:"user_id"`
	SendTimeout    time.Duration `mapstructure:"send_timeout"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	PageLimit      int           `mapstructure:"page_limit"`
}

// ChannelConfig covers the persistent duplex connection.
type ChannelConfig struct {
	URL            string        `mapstructure:"url"`
	MaxReconnects  int           `mapstructure:"max_reconnects"`
	BackoffInitial time.Duration `mapstructure:"backoff_initial"`
	BackoffCap     time.Duration `mapstructure:"backoff_cap"`
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
}

// PollConfig covers the fallback poller.
type PollConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// TypingConfig covers typing indicator timing.
type TypingConfig struct {
	IdleStop  time.Duration `mapstructure:"idle_stop"`
	SignalTTL time.Duration `mapstructure:"signal_ttl"`
}

func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "config")
	if err != nil {
		return nil, err
	}

	// Set defaults
	v.SetDefault("api.base_url", "http://localhost:8090")
	v.SetDefault("api.send_timeout", "30s")
	v.SetDefault("api.read_timeout", "5s")
	v.SetDefault("api.request_timeout", "15s")
	v.SetDefault("api.page_limit", 50)
	v.SetDefault("channel.url", "ws://localhost:8090/ws")
	v.SetDefault("channel.max_reconnects", 5)
	v.SetDefault("channel.backoff_initial", "1s")
	v.SetDefault("channel.backoff_cap", "5s")
	v.SetDefault("channel.ping_interval", "30s")
	v.SetDefault("channel.pong_wait", "60s")
	v.SetDefault("channel.write_wait", "10s")
	v.SetDefault("channel.max_message_size", 65536)
	v.SetDefault("poll.interval", "30s")
	v.SetDefault("typing.idle_stop", "1s")
	v.SetDefault("typing.signal_ttl", "3s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// Override from environment
	v.BindEnv("api.base_url", "WORKSPACE_API_BASE_URL")
	v.BindEnv("api.user_id", "WORKSPACE_USER_ID")
	v.BindEnv("channel.url", "WORKSPACE_CHANNEL_URL")
	v.BindEnv("log.level", "LOG_LEVEL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Parse durations
	cfg.API.SendTimeout = parseDuration(v, "api.send_timeout", 30*time.Second)
	cfg.API.ReadTimeout = parseDuration(v, "api.read_timeout", 5*time.Second)
	cfg.API.RequestTimeout = parseDuration(v, "api.request_timeout", 15*time.Second)
	cfg.Channel.BackoffInitial = parseDuration(v, "channel.backoff_initial", time.Second)
	cfg.Channel.BackoffCap = parseDuration(v, "channel.backoff_cap", 5*time.Second)
	cfg.Channel.PingInterval = parseDuration(v, "channel.ping_interval", 30*time.Second)
	cfg.Channel.PongWait = parseDuration(v, "channel.pong_wait", 60*time.Second)
	cfg.Channel.WriteWait = parseDuration(v, "channel.write_wait", 10*time.Second)
	cfg.Poll.Interval = parseDuration(v, "poll.interval", 30*time.Second)
	cfg.Typing.IdleStop = parseDuration(v, "typing.idle_stop", time.Second)
	cfg.Typing.SignalTTL = parseDuration(v, "typing.signal_ttl", 3*time.Second)

	return &cfg, nil
}

func parseDuration(v *viper.Viper, key string, defaultVal time.Duration) time.Duration {
	str := v.GetString(key)
	d, err := time.ParseDuration(str)
	if err != nil {
		return defaultVal
	}
	return d
}
