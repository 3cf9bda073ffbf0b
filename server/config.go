package server

import "time"

type Config struct {
	Addr            string        `envconfig:"ADDR" default:":8000"`
	Mode            string        `envconfig:"MODE" default:"release"`
	RatePerMinute   int           `envconfig:"RATE_PER_MINUTE" split_words:"true" default:"20"`
	Burst           int           `envconfig:"BURST" default:"5"`
	LimiterIdle     time.Duration `envconfig:"LIMITER_IDLE" split_words:"true" default:"10m"`
	ReadTimeout     time.Duration `envconfig:"READ_TIMEOUT" split_words:"true" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"WRITE_TIMEOUT" split_words:"true" default:"90s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" split_words:"true" default:"10s"`
}
