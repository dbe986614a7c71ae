package log

import (
	"fmt"

	"github.com/rs/zerolog"
)

// RetryableLogger adapts the package logger to retryablehttp.LeveledLogger.
type RetryableLogger struct{}

func (RetryableLogger) Error(msg string, keysAndValues ...interface{}) {
	withFields(Logger.Error(), keysAndValues).Msg(msg)
}

func (RetryableLogger) Info(msg string, keysAndValues ...interface{}) {
	// retryablehttp logs every request at info; that is debug noise for us.
	withFields(Logger.Debug(), keysAndValues).Msg(msg)
}

func (RetryableLogger) Debug(msg string, keysAndValues ...interface{}) {
	withFields(Logger.Debug(), keysAndValues).Msg(msg)
}

func (RetryableLogger) Warn(msg string, keysAndValues ...interface{}) {
	withFields(Logger.Warn(), keysAndValues).Msg(msg)
}

func withFields(event *zerolog.Event, keysAndValues []interface{}) *zerolog.Event {
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprint(keysAndValues[i])
		}
		event = event.Interface(key, keysAndValues[i+1])
	}
	if len(keysAndValues)%2 == 1 {
		event = event.Interface("extra", keysAndValues[len(keysAndValues)-1])
	}
	return event
}
