package rpc

import "github.com/sirupsen/logrus"

// NewLogger builds a logrus logger configured the way the reference
// binaries in cmd/ want their diagnostics formatted: text output, a
// parseable level, and RFC3339 timestamps.
func NewLogger(level string) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	log.SetLevel(lvl)
	return log, nil
}
