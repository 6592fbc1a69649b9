package config

import (
	"fmt"
	"io"
	"os"
	"path"
	"runtime"

	"github.com/sirupsen/logrus"
)

var root = newRootLogger()

func newRootLogger() *logrus.Logger {
	logger := logrus.New()
	logger.Out = os.Stderr
	logger.Formatter = &CustomTextFormatter{
		TextFormatter: logrus.TextFormatter{
			DisableColors: true,
			FullTimestamp: true,
			// the message prefix already names the caller
			CallerPrettyfier: func(*runtime.Frame) (string, string) { return "", "" },
		},
	}
	logger.Level = logrus.InfoLevel
	logger.SetReportCaller(true)
	return logger
}

// SetVerbose switches all named loggers between info and debug output
func SetVerbose(verbose bool) {
	if verbose {
		root.SetLevel(logrus.DebugLevel)
	} else {
		root.SetLevel(logrus.InfoLevel)
	}
}

// SetLogOutput redirects all named loggers
func SetLogOutput(w io.Writer) {
	root.SetOutput(w)
}

// NamedLogger creates named package logger.
func NamedLogger(name string) *logrus.Entry {
	return root.WithField("pkg", name)
}

// CustomTextFormatter prefixes every message with the calling file and line
type CustomTextFormatter struct {
	logrus.TextFormatter
}

// Format renders a single log entry
func (f *CustomTextFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	if entry.HasCaller() {
		entry.Message = fmt.Sprintf("[%-15s:%03d] %s", path.Base(entry.Caller.File), entry.Caller.Line, entry.Message)
	}
	return f.TextFormatter.Format(entry)
}
