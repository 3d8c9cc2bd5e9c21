// Package logging builds the zap logger shared across the pipeline's
// components.
package logging

import "go.uber.org/zap"

// New builds a production JSON logger, or a development console logger
// when dev is true.
func New(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
