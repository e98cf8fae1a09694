package apiclient

import "github.com/rs/zerolog"

// retryLogger feeds the retry transport's key/value logs into zerolog so they
// honour the configured level and format.
type retryLogger struct {
	l zerolog.Logger
}

func (r retryLogger) Debug(msg string, args ...any) { r.l.Debug().Fields(args).Msg(msg) }
func (r retryLogger) Info(msg string, args ...any)  { r.l.Info().Fields(args).Msg(msg) }
func (r retryLogger) Warn(msg string, args ...any)  { r.l.Warn().Fields(args).Msg(msg) }
func (r retryLogger) Error(msg string, args ...any) { r.l.Error().Fields(args).Msg(msg) }
