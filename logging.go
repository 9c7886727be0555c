package main

import (
	"os"
	"strings"

	"go.uber.org/zap"
)

// newLogger builds the process-wide zap logger. FUNDUSVAULT_ENV=prod switches
// to the JSON production encoder; everything else gets the dev console one.
func newLogger() (*zap.SugaredLogger, error) {
	var cfg zap.Config
	switch strings.ToLower(os.Getenv("FUNDUSVAULT_ENV")) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}
