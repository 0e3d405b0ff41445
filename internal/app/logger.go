package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the application logger. Production gets JSON at Info;
// development defaults to a readable text handler at Debug unless
// LOG_FORMAT=json is set explicitly.
func NewLogger(cfg *Config) *slog.Logger {
	level := slog.LevelDebug
	if cfg.IsProduction() {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{AddSource: true, Level: level}
	if cfg.IsProduction() || cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
