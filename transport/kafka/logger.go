package kafka

import (
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/arloliu/busbench/types"
)

// kgoLogger forwards franz-go client logs at warn level and above.
type kgoLogger struct {
	logger types.Logger
}

var _ kgo.Logger = kgoLogger{}

func (l kgoLogger) Level() kgo.LogLevel {
	return kgo.LogLevelWarn
}

func (l kgoLogger) Log(level kgo.LogLevel, msg string, keyvals ...any) {
	switch level {
	case kgo.LogLevelError:
		l.logger.Error(msg, keyvals...)
	case kgo.LogLevelWarn:
		l.logger.Warn(msg, keyvals...)
	case kgo.LogLevelInfo:
		l.logger.Info(msg, keyvals...)
	default:
		l.logger.Debug(msg, keyvals...)
	}
}
