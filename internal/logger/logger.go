// Copyright 2024 The EtherDFS Authors. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logger provides the process-wide leveled logger. Log calls are
// routed through a slog.Logger configured from the logging section of the
// config: text or json format, an optional rotating log file, and a severity
// threshold with a TRACE level below slog's DEBUG for per-frame protocol
// tracing.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/megapearl/etherdfs/cfg"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Severity names accepted in the config.
const (
	TRACE   = "TRACE"
	DEBUG   = "DEBUG"
	INFO    = "INFO"
	WARNING = "WARNING"
	ERROR   = "ERROR"
	OFF     = "OFF"
)

// slog levels corresponding to the severities above. TRACE and OFF have no
// slog equivalent and sit below DEBUG and above ERROR respectively.
const (
	LevelTrace = slog.Level(-8)
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
	LevelOff   = slog.Level(12)
)

var (
	defaultLoggerFactory *loggerFactory
	defaultLogger        *slog.Logger
)

// Initialize the logger with stderr as sink so that any log calls made
// before Init can still be flushed somewhere.
func init() {
	defaultLoggerFactory = &loggerFactory{
		sysWriter: os.Stderr,
		format:    "text",
		level:     INFO,
	}
	defaultLogger = defaultLoggerFactory.newLogger(INFO)
}

// Init configures the default logger from the supplied config. When a log
// file is set, output goes to that file through a rotating writer; otherwise
// it goes to standard error.
func Init(c cfg.LoggingConfig) error {
	f := &loggerFactory{
		format: c.Format,
		level:  c.Severity,
	}
	if c.FilePath != "" {
		f.file = &lumberjack.Logger{
			Filename:   c.FilePath,
			MaxSize:    c.MaxFileSizeMb,
			MaxBackups: c.BackupFileCount,
			Compress:   c.Compress,
		}
	} else {
		f.sysWriter = os.Stderr
	}

	defaultLoggerFactory = f
	defaultLogger = f.newLogger(c.Severity)

	return nil
}

// SetLogFormat resets the default logger with the given format, keeping the
// configured sink and severity.
func SetLogFormat(format string) {
	if format == defaultLoggerFactory.format {
		return
	}
	defaultLoggerFactory.format = format
	defaultLogger = defaultLoggerFactory.newLogger(defaultLoggerFactory.level)
}

func Tracef(format string, v ...interface{}) {
	defaultLogger.Log(context.Background(), LevelTrace, fmt.Sprintf(format, v...))
}

func Debugf(format string, v ...interface{}) {
	defaultLogger.Debug(fmt.Sprintf(format, v...))
}

func Infof(format string, v ...interface{}) {
	defaultLogger.Info(fmt.Sprintf(format, v...))
}

func Info(v string) {
	defaultLogger.Info(v)
}

func Warnf(format string, v ...interface{}) {
	defaultLogger.Warn(fmt.Sprintf(format, v...))
}

func Errorf(format string, v ...interface{}) {
	defaultLogger.Error(fmt.Sprintf(format, v...))
}

func Error(v string) {
	defaultLogger.Error(v)
}

////////////////////////////////////////////////////////////////////////
// Factory
////////////////////////////////////////////////////////////////////////

type loggerFactory struct {
	// If file is set, sysWriter is unused and vice versa.
	file      *lumberjack.Logger
	sysWriter io.Writer
	format    string
	level     string
}

func (f *loggerFactory) newLogger(level string) *slog.Logger {
	// create a new logger
	var programLevel = new(slog.LevelVar)
	logger := slog.New(f.handler(programLevel, ""))
	setLoggingLevel(level, programLevel)
	return logger
}

func (f *loggerFactory) writer() io.Writer {
	if f.file != nil {
		return f.file
	}
	return f.sysWriter
}

func (f *loggerFactory) handler(levelVar *slog.LevelVar, prefix string) slog.Handler {
	return f.createJsonOrTextHandler(f.writer(), levelVar, prefix)
}

func (f *loggerFactory) createJsonOrTextHandler(writer io.Writer, levelVar *slog.LevelVar, prefix string) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:       levelVar,
		ReplaceAttr: replaceAttr(prefix),
	}
	if f.format == "text" {
		return slog.NewTextHandler(writer, opts)
	}
	return slog.NewJSONHandler(writer, opts)
}

// replaceAttr renames slog's level key to severity, maps the custom levels
// to their severity names, and prefixes the message.
func replaceAttr(prefix string) func(groups []string, a slog.Attr) slog.Attr {
	return func(groups []string, a slog.Attr) slog.Attr {
		switch a.Key {
		case slog.LevelKey:
			a.Key = "severity"
			level := a.Value.Any().(slog.Level)
			a.Value = slog.StringValue(severityName(level))
		case slog.MessageKey:
			a.Key = "message"
			if prefix != "" {
				a.Value = slog.StringValue(prefix + a.Value.String())
			}
		}
		return a
	}
}

func severityName(level slog.Level) string {
	switch {
	case level < LevelDebug:
		return TRACE
	case level < LevelInfo:
		return DEBUG
	case level < LevelWarn:
		return INFO
	case level < LevelError:
		return WARNING
	default:
		return ERROR
	}
}

func setLoggingLevel(level string, programLevel *slog.LevelVar) {
	switch level {
	case TRACE:
		programLevel.Set(LevelTrace)
	case DEBUG:
		programLevel.Set(LevelDebug)
	case INFO:
		programLevel.Set(LevelInfo)
	case WARNING:
		programLevel.Set(LevelWarn)
	case ERROR:
		programLevel.Set(LevelError)
	default:
		programLevel.Set(LevelOff)
	}
}
