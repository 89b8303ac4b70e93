// Package event provides the shared operational logger.
package event

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Log is the logger used by every package. Messages are prefixed with the
// component name, e.g. "sorter: copied %s".
var Log = logrus.New()

func init() {
	Log.SetOutput(os.Stderr)
	Log.SetLevel(logrus.InfoLevel)
	Log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

// Configure sets the level (trace, debug, info, warning, error) and the
// format ("text" or "json") of Log. Unknown levels fall back to info.
func Configure(level, format string) {
	lvl, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	Log.SetLevel(lvl)

	if strings.EqualFold(format, "json") {
		Log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		Log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

// Silence discards all log output. Used by tests and quiet CLI runs.
func Silence() {
	Log.SetOutput(io.Discard)
}
