package api

import (
	"fmt"
	"io"
	"sync/atomic"

	"github.com/labstack/gommon/log"

	"github.com/sawring/sawring/internal/logger"
)

// echoLogger routes echo's own log output into the module logger so that
// server errors share format and destination with the rest of the app.
// Output and header settings belong to the module logger and are ignored.
type echoLogger struct {
	log   logger.Logger
	level atomic.Uint32
}

func newEchoLogger(l logger.Logger) *echoLogger {
	el := &echoLogger{log: l}
	el.level.Store(uint32(log.INFO))
	return el
}

func (e *echoLogger) Output() io.Writer    { return io.Discard }
func (e *echoLogger) SetOutput(io.Writer)  {}
func (e *echoLogger) Prefix() string       { return "" }
func (e *echoLogger) SetPrefix(string)     {}
func (e *echoLogger) SetHeader(string)     {}
func (e *echoLogger) Level() log.Lvl       { return log.Lvl(e.level.Load()) }
func (e *echoLogger) SetLevel(lvl log.Lvl) { e.level.Store(uint32(lvl)) }

// emit writes msg when lvl passes the echo level.
func (e *echoLogger) emit(lvl log.Lvl, msg string, fields ...logger.Field) {
	if lvl < e.Level() {
		return
	}
	switch lvl {
	case log.DEBUG:
		e.log.Debug(msg, fields...)
	case log.WARN:
		e.log.Warn(msg, fields...)
	case log.ERROR:
		e.log.Error(msg, fields...)
	default:
		e.log.Info(msg, fields...)
	}
}

func (e *echoLogger) Print(i ...any)                 { e.emit(log.INFO, fmt.Sprint(i...)) }
func (e *echoLogger) Printf(format string, a ...any) { e.emit(log.INFO, fmt.Sprintf(format, a...)) }
func (e *echoLogger) Printj(j log.JSON)              { e.emit(log.INFO, "echo", logger.Any("data", j)) }

func (e *echoLogger) Debug(i ...any)                 { e.emit(log.DEBUG, fmt.Sprint(i...)) }
func (e *echoLogger) Debugf(format string, a ...any) { e.emit(log.DEBUG, fmt.Sprintf(format, a...)) }
func (e *echoLogger) Debugj(j log.JSON)              { e.emit(log.DEBUG, "echo", logger.Any("data", j)) }

func (e *echoLogger) Info(i ...any)                 { e.emit(log.INFO, fmt.Sprint(i...)) }
func (e *echoLogger) Infof(format string, a ...any) { e.emit(log.INFO, fmt.Sprintf(format, a...)) }
func (e *echoLogger) Infoj(j log.JSON)              { e.emit(log.INFO, "echo", logger.Any("data", j)) }

func (e *echoLogger) Warn(i ...any)                 { e.emit(log.WARN, fmt.Sprint(i...)) }
func (e *echoLogger) Warnf(format string, a ...any) { e.emit(log.WARN, fmt.Sprintf(format, a...)) }
func (e *echoLogger) Warnj(j log.JSON)              { e.emit(log.WARN, "echo", logger.Any("data", j)) }

func (e *echoLogger) Error(i ...any)                 { e.emit(log.ERROR, fmt.Sprint(i...)) }
func (e *echoLogger) Errorf(format string, a ...any) { e.emit(log.ERROR, fmt.Sprintf(format, a...)) }
func (e *echoLogger) Errorj(j log.JSON)              { e.emit(log.ERROR, "echo", logger.Any("data", j)) }

// Fatal and Panic variants log at error level and panic; echo's Recover
// middleware or the caller decides what happens next. Nothing here exits
// the process.
func (e *echoLogger) Fatal(i ...any)                 { e.fail(fmt.Sprint(i...)) }
func (e *echoLogger) Fatalf(format string, a ...any) { e.fail(fmt.Sprintf(format, a...)) }
func (e *echoLogger) Fatalj(j log.JSON)              { e.fail(fmt.Sprint(j)) }
func (e *echoLogger) Panic(i ...any)                 { e.fail(fmt.Sprint(i...)) }
func (e *echoLogger) Panicf(format string, a ...any) { e.fail(fmt.Sprintf(format, a...)) }
func (e *echoLogger) Panicj(j log.JSON)              { e.fail(fmt.Sprint(j)) }

func (e *echoLogger) fail(msg string) {
	e.log.Error(msg)
	panic("echo: " + msg)
}
