// Package logging configures the logrus logger shared by every command.
//
// Log lines use the "yy/mm/dd HH:MM:SS" timestamp layout in UTC so that the
// updater's log file reads the same as the one produced by earlier
// deployments. Output goes to stderr and, optionally, is appended to a file.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// TimestampFormat is the Go layout for "yy/mm/dd HH:MM:SS".
const TimestampFormat = "06/01/02 15:04:05"

// Options controls how Setup configures a logger.
type Options struct {
	// Level is a logrus level name ("debug", "info", "warning", "error").
	// Empty means info.
	Level string

	// File, when set, receives a copy of every log line.
	File string

	// Output is the console destination. Nil means os.Stderr.
	Output io.Writer
}

// Setup configures logger according to opts. The returned closer releases
// the log file, if one was opened; it is never nil.
func Setup(logger *log.Logger, opts Options) (func() error, error) {
	level := log.InfoLevel
	if opts.Level != "" {
		parsed, err := log.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return nopClose, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = parsed
	}
	logger.SetLevel(level)
	logger.SetFormatter(UTCFormatter{&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: TimestampFormat,
		DisableColors:   opts.File != "",
	}})

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	if opts.File == "" {
		logger.SetOutput(out)
		return nopClose, nil
	}

	f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logger.SetOutput(out)
		return nopClose, fmt.Errorf("failed to open log file %s: %w", opts.File, err)
	}
	logger.SetOutput(io.MultiWriter(out, f))
	return f.Close, nil
}

func nopClose() error { return nil }

// UTCFormatter formats entries with their timestamp converted to UTC.
type UTCFormatter struct {
	log.Formatter
}

// Format implements log.Formatter.
func (f UTCFormatter) Format(entry *log.Entry) ([]byte, error) {
	e := *entry
	e.Time = entry.Time.UTC()
	return f.Formatter.Format(&e)
}
