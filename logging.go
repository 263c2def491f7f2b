// Copyright (c) 2026 The ZeroNSD Authors.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zeronsd

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger is the narrow Printf-style seam the teacher's dnsserver.Config
// used for ErrorLog/DebugLog (tsavola-indns/dnsserver/server.go). Keeping
// the same shape lets any of the sub-packages accept either the zerolog
// adapter below or a test double.
type Logger interface {
	Printf(format string, args ...interface{})
}

// zerologAdapter backs Logger with a zerolog.Logger at a fixed level,
// matching cuemby-warren's pattern of wiring one structured logger for the
// whole process rather than the teacher's bare log.Logger.
type zerologAdapter struct {
	log   zerolog.Logger
	level zerolog.Level
}

func (a zerologAdapter) Printf(format string, args ...interface{}) {
	a.log.WithLevel(a.level).Msg(strings.TrimSuffix(fmt.Sprintf(format, args...), "\n"))
}

// ParseLogLevel maps the six spec.md log_level values onto zerolog levels.
// "off" disables logging entirely (zerolog.Disabled).
func ParseLogLevel(s string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off":
		return zerolog.Disabled, nil
	case "trace":
		return zerolog.TraceLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "info", "":
		return zerolog.InfoLevel, nil
	case "warn":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.InfoLevel, fmt.Errorf("unknown log_level %q", s)
	}
}

// SetupLogging installs a process-global zerolog.Logger at the requested
// level and returns it, matching original_source/src/log.rs's one-time
// env_logger::builder() initialization but backed by zerolog per
// SPEC_FULL.md's ambient stack.
func SetupLogging(level string) (zerolog.Logger, error) {
	lvl, err := ParseLogLevel(level)
	if err != nil {
		return zerolog.Logger{}, err
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		Level(lvl).
		With().Timestamp().Logger()

	zerolog.SetGlobalLevel(lvl)
	log.Logger = logger
	return logger, nil
}

// WarnLogger and ErrorLogger adapt a zerolog.Logger to the Logger
// interface at fixed levels, for components (such as dnsserver.Config's
// ErrorLog/DebugLog) that only need "print this line at my assigned
// severity." The reconciler takes a zerolog.Logger directly.
func WarnLogger(l zerolog.Logger) Logger  { return zerologAdapter{log: l, level: zerolog.WarnLevel} }
func ErrorLogger(l zerolog.Logger) Logger { return zerologAdapter{log: l, level: zerolog.ErrorLevel} }
func InfoLogger(l zerolog.Logger) Logger  { return zerologAdapter{log: l, level: zerolog.InfoLevel} }
func DebugLogger(l zerolog.Logger) Logger { return zerologAdapter{log: l, level: zerolog.DebugLevel} }
