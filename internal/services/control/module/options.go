package module

import (
	"time"

	"penwatch/internal/platform/config"
)

// Options holds configuration settings for the control module
type Options struct {
	Addr         string
	WriteTimeout time.Duration
}

// FromConfig reads configuration settings from the config.Conf
func FromConfig(cfg config.Conf) Options {
	cf := cfg.Prefix("CONTROL_")
	return Options{
		Addr:         cf.MayString("ADDR", ":12346"),
		WriteTimeout: cf.MayDuration("WRITE_TIMEOUT", 10*time.Second),
	}
}

func (o Options) merge(over Options) Options {
	if over.Addr != "" {
		o.Addr = over.Addr
	}
	if over.WriteTimeout > 0 {
		o.WriteTimeout = over.WriteTimeout
	}
	return o
}
