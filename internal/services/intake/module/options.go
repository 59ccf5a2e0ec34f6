package module

import (
	"time"

	"penwatch/internal/platform/config"
	"penwatch/internal/services/intake/service"
)

// Options holds configuration settings for the intake module
type Options struct {
	Addr          string
	MaxFrameBytes int
	IdleTimeout   time.Duration
}

// FromConfig reads configuration settings from the config.Conf
func FromConfig(cfg config.Conf) Options {
	inf := cfg.Prefix("INTAKE_")
	return Options{
		Addr:          inf.MayString("ADDR", ":12345"),
		MaxFrameBytes: inf.MayInt("MAX_FRAME_BYTES", service.DefaultMaxFrameBytes),
		IdleTimeout:   inf.MayDuration("IDLE_TIMEOUT", 0),
	}
}

func (o Options) merge(over Options) Options {
	if over.Addr != "" {
		o.Addr = over.Addr
	}
	if over.MaxFrameBytes > 0 {
		o.MaxFrameBytes = over.MaxFrameBytes
	}
	if over.IdleTimeout > 0 {
		o.IdleTimeout = over.IdleTimeout
	}
	return o
}
