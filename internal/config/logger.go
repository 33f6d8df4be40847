package config

import "go.uber.org/zap"

// NewLogger returns a production logger in production and a development logger
// everywhere else.
func (a App) NewLogger() (*zap.Logger, error) {
	if a.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
