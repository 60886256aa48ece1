// Package logger builds the logrus logger shared by the API server and the Discord relay.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	Level  string // trace, debug, info, warn, error
	Format string // json or text
	File   string // rotated log file in addition to Out; empty for none
	Out    io.Writer
}

const timestampFormat = "2006-01-02 15:04:05.000"

// New returns a configured logger and a closer for its file output.
func New(opts Options) (*logrus.Logger, io.Closer, error) {
	log := logrus.New()

	level, err := logrus.ParseLevel(strings.ToLower(opts.Level))
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	log.SetLevel(level)

	switch strings.ToLower(opts.Format) {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: timestampFormat,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime: "timestamp",
				logrus.FieldKeyMsg:  "message",
			},
		})
	case "", "text":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: timestampFormat})
	default:
		return nil, nil, fmt.Errorf("logger: unknown format %q", opts.Format)
	}

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		file := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    100, // MB
			MaxBackups: 7,
			MaxAge:     7, // days
			Compress:   true,
		}
		out = io.MultiWriter(out, file)
		closer = file
	}
	log.SetOutput(out)
	return log, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
