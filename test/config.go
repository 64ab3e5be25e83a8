package test

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// INTEGRATION_EVENT_TIMEOUT bounds how long a scenario waits for an
	// event to propagate through the broker and the sessions.
	EventTimeout time.Duration `envconfig:"INTEGRATION_EVENT_TIMEOUT" default:"2s"`
	PollInterval time.Duration `envconfig:"INTEGRATION_POLL_INTERVAL" default:"10ms"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
