// Package logging builds the process-wide zap logger. Output goes to stdout
// in JSON or console form, optionally teed into an OpenTelemetry log bridge,
// and every core redacts sensitive field names before encoding.
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/gatherd/internal/config"
)

const bridgeName = "gatherd"

// New creates a logger from config. provider may be nil to disable the
// OpenTelemetry bridge.
func New(cfg config.LoggingConfig, provider log.LoggerProvider) (*zap.Logger, error) {
	return NewWithSink(cfg, provider, os.Stdout)
}

// NewWithSink is New with an explicit output. Stdio transports need logs on
// stderr because stdout carries the protocol.
func NewWithSink(cfg config.LoggingConfig, provider log.LoggerProvider, sink io.Writer) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	encoder, err := newRedactingEncoder(newEncoder(cfg.Format), defaultRedaction())
	if err != nil {
		return nil, fmt.Errorf("building redacting encoder: %w", err)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.AddSync(sink), level),
	}
	if provider != nil {
		cores = append(cores, otelzap.NewCore(bridgeName,
			otelzap.WithLoggerProvider(provider),
		))
	}

	core := cores[0]
	if len(cores) > 1 {
		core = zapcore.NewTee(cores...)
	}

	return zap.New(core,
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	), nil
}

func newEncoder(format string) zapcore.Encoder {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	if format == "console" {
		return zapcore.NewConsoleEncoder(encoderCfg)
	}
	return zapcore.NewJSONEncoder(encoderCfg)
}

// Sync flushes buffered entries. Sync errors on stdout are expected on Linux
// and swallowed.
func Sync(l *zap.Logger) error {
	err := l.Sync()
	if err != nil && isStdoutSyncError(err) {
		return nil
	}
	return err
}

func isStdoutSyncError(err error) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.EINVAL || errno == syscall.ENOTTY
	}
	return false
}
