package event

import (
	"testing"

	"github.com/sirupsen/logrus"
)

func TestConfigure(t *testing.T) {
	tests := []struct {
		level    string
		format   string
		expected logrus.Level
		json     bool
	}{
		{"debug", "text", logrus.DebugLevel, false},
		{"WARNING", "json", logrus.WarnLevel, true},
		{"nonsense", "", logrus.InfoLevel, false},
		{"", "JSON", logrus.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level+"/"+tt.format, func(t *testing.T) {
			Configure(tt.level, tt.format)

			if Log.GetLevel() != tt.expected {
				t.Errorf("level = %s, want %s", Log.GetLevel(), tt.expected)
			}
			_, isJSON := Log.Formatter.(*logrus.JSONFormatter)
			if isJSON != tt.json {
				t.Errorf("json formatter = %v, want %v", isJSON, tt.json)
			}
		})
	}

	Configure("info", "text")
}
