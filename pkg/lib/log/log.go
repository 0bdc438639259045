// Package log has the logger used by the runnables SDK.
//
// Logging is disabled by default ([Noop]). To get the SDK logs in your application logger,
// adapt it to [Logger], for example with log/slog:
//
//	type slogLogger struct{ l *slog.Logger }
//
//	func (s slogLogger) Infof(f string, a ...any)    { s.l.Info(fmt.Sprintf(f, a...)) }
//	func (s slogLogger) Warningf(f string, a ...any) { s.l.Warn(fmt.Sprintf(f, a...)) }
//	func (s slogLogger) Errorf(f string, a ...any)   { s.l.Error(fmt.Sprintf(f, a...)) }
//	func (s slogLogger) Debugf(f string, a ...any)   { s.l.Debug(fmt.Sprintf(f, a...)) }
//	func (s slogLogger) WithValues(kv log.Kv) log.Logger {
//		args := []any{}
//		for k, v := range kv {
//			args = append(args, k, v)
//		}
//		return slogLogger{l: s.l.With(args...)}
//	}
//	// WithCtxValues and SetValuesOnCtx can return the logger and the context as they are.
package log

import "github.com/slok/runnables/internal/log"

// Logger is the logger the SDK components log with.
type Logger = log.Logger

// Kv are the structured values attached to a logger.
type Kv = log.Kv

// Noop discards everything, it's used when [lib.Config] has no logger.
var Noop = log.Noop
