// Package logging provides the structured logger used throughout the
// insertion controller. It wraps zap the way go.viam.com/rdk/logging does:
// a small Appender interface plus a human-readable console appender, rather
// than exposing zap's configuration surface directly to callers.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// DefaultTimeFormatStr is the time format used by ConsoleAppender.
const DefaultTimeFormatStr = "2006-01-02T15:04:05.000Z0700"

// Appender is an output sink for log entries. Subset of zapcore.Core.
type Appender interface {
	Write(zapcore.Entry, []zapcore.Field) error
	Sync() error
}

// ConsoleAppender writes tab-separated, human-readable log lines.
type ConsoleAppender struct {
	io.Writer
}

// NewStdoutAppender creates an appender that prints to stdout.
func NewStdoutAppender() ConsoleAppender {
	return ConsoleAppender{os.Stdout}
}

// NewWriterAppender creates an appender that prints to the given writer.
func NewWriterAppender(w io.Writer) ConsoleAppender {
	return ConsoleAppender{w}
}

// NewFileAppender creates an appender that writes to a rotated log file.
// The returned io.Closer should be closed on shutdown.
func NewFileAppender(filename string) (Appender, io.Closer) {
	lj := &lumberjack.Logger{
		Filename: filename,
		MaxSize:  1024, // megabytes; we rely on process restarts, not size, to rotate
	}
	return NewWriterAppender(lj), lj
}

// Write renders the entry as a single tab-separated line.
func (a ConsoleAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	parts := make([]string, 0, 6)
	parts = append(parts, entry.Time.UTC().Format(DefaultTimeFormatStr))
	parts = append(parts, strings.ToUpper(entry.Level.String()))
	parts = append(parts, entry.LoggerName)
	if entry.Caller.Defined {
		parts = append(parts, callerToString(&entry.Caller))
	}
	parts = append(parts, entry.Message)

	if len(fields) > 0 {
		fieldsJSON, err := zapcoreFieldsToJSON(fields)
		if err != nil {
			parts = append(parts, fmt.Sprintf("<field encoding error: %v>", err))
		} else {
			parts = append(parts, fieldsJSON)
		}
	}

	_, err := fmt.Fprintln(a.Writer, strings.Join(parts, "\t"))
	return err
}

// Sync is a no-op for the console appender.
func (a ConsoleAppender) Sync() error {
	return nil
}

func zapcoreFieldsToJSON(fields []zapcore.Field) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic serializing log fields: %v", r)
		}
	}()
	enc := zapcore.NewJSONEncoder(zapcore.EncoderConfig{SkipLineEnding: true})
	buf, err := enc.EncodeEntry(zapcore.Entry{}, fields)
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

func callerToString(caller *zapcore.EntryCaller) string {
	cnt := 0
	idx := strings.LastIndexFunc(caller.File, func(r rune) bool {
		if r == '/' {
			cnt++
		}
		return cnt == 2
	})
	return fmt.Sprintf("%s:%d", caller.File[idx+1:], caller.Line)
}
