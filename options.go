package saveable

import (
	"go.uber.org/zap"
)

type Options struct {
	// Logger receives open/close and, with Verbose, per-field debug logs.
	// Defaults to a no-op logger.
	Logger  *zap.Logger
	Verbose bool
}

func (opt Options) logger() *zap.Logger {
	if opt.Logger == nil {
		return zap.NewNop()
	}
	return opt.Logger
}

// Log returns the configured logger or a no-op one.
func (opt Options) Log() *zap.Logger {
	return opt.logger()
}

// Mode says whether a file is opened for loading or for saving.
type Mode string

const (
	Read  Mode = "r"
	Write Mode = "w"
)

func (m Mode) Valid() bool {
	return m == Read || m == Write
}
