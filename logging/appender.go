package logging

import (
	"os"

	"go.uber.org/zap/zapcore"
)

// DefaultTimeFormatStr is the default time format string for log appenders.
const DefaultTimeFormatStr = "2006-01-02T15:04:05.000Z0700"

// Appender is an output for log entries. This is a subset of the `zapcore.Core` interface, so
// zap cores (observers, tees) can be used directly.
type Appender interface {
	// Write submits a structured log entry to the appender for logging.
	Write(zapcore.Entry, []zapcore.Field) error
	// Sync is for signaling that any buffered logs to `Write` should be flushed. E.g: at shutdown.
	Sync() error
}

// ConsoleAppender will create human readable lines from log events and write them to the desired
// output sync. E.g: stdout or a file.
type ConsoleAppender struct {
	zapcore.Encoder
	zapcore.WriteSyncer
}

// NewStdoutAppender creates a new appender that writes to stdout.
func NewStdoutAppender() ConsoleAppender {
	return NewWriterAppender(os.Stdout)
}

// NewWriterAppender creates a new appender that writes to the input writer.
func NewWriterAppender(writer zapcore.WriteSyncer) ConsoleAppender {
	return ConsoleAppender{
		zapcore.NewConsoleEncoder(NewZapLoggerConfig().EncoderConfig),
		writer,
	}
}

// Write outputs the log entry to the underlying stream.
func (appender ConsoleAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	buf, err := appender.EncodeEntry(entry, fields)
	if err != nil {
		return err
	}
	defer buf.Free()

	_, err = appender.WriteSyncer.Write(buf.Bytes())
	return err
}

// Sync flushes the underlying writer.
func (appender ConsoleAppender) Sync() error {
	return appender.WriteSyncer.Sync()
}
