// Package logging sets up logrus for the pcapkit command.
package logging

import (
	"fmt"
	"io"
	"os"
	"path"
	"runtime"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/packetcap/pcapkit/internal/config"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Setup configure the standard logger. The returned Closer closes the log file, if any.
func Setup(cfg config.LogConfig) (io.Closer, error) {
	return Configure(log.StandardLogger(), os.Stderr, cfg)
}

// Configure set level, formatter and output of l. Entries go to console, and
// also to a rotating file when cfg.File.Filename is set.
func Configure(l *log.Logger, console io.Writer, cfg config.LogConfig) (io.Closer, error) {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	formatter, err := newFormatter(cfg.Format)
	if err != nil {
		return nil, err
	}

	var closer io.Closer = nopCloser{}
	out := console
	if cfg.File.Filename != "" {
		file := &lumberjack.Logger{
			Filename:   cfg.File.Filename,
			MaxSize:    cfg.File.MaxSize, // megabytes
			MaxBackups: cfg.File.MaxBackups,
			MaxAge:     cfg.File.MaxAge, // days
			Compress:   cfg.File.Compress,
		}
		out = io.MultiWriter(console, file)
		closer = file
	}

	l.SetLevel(level)
	l.SetReportCaller(level >= log.DebugLevel)
	l.SetFormatter(formatter)
	l.SetOutput(out)
	return closer, nil
}

func newFormatter(format string) (log.Formatter, error) {
	switch strings.ToLower(format) {
	case "", "text":
		return &log.TextFormatter{
			PadLevelText:     true,
			QuoteEmptyFields: true,
			CallerPrettyfier: prettyCaller,
		}, nil
	case "json":
		return &log.JSONFormatter{CallerPrettyfier: prettyCaller}, nil
	}
	return nil, fmt.Errorf("unsupported log format: %s (must be text or json)", format)
}

// prettyCaller report the caller as "func()" and "file.go:line"
func prettyCaller(f *runtime.Frame) (string, string) {
	s := strings.Split(f.Function, ".")
	funcName := s[len(s)-1] + "()"
	_, filename := path.Split(f.File)
	return funcName, filename + ":" + strconv.Itoa(f.Line)
}
