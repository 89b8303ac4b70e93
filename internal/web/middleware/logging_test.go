package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/kozaktomas/face-sorter/internal/event"
)

func init() {
	event.Silence()
}

func TestRequestLogger(t *testing.T) {
	hook := test.NewLocal(event.Log)
	event.Log.SetLevel(logrus.DebugLevel)
	defer event.Log.SetLevel(logrus.InfoLevel)

	handler := RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	if rec.Code != http.StatusTeapot {
		t.Errorf("expected status to pass through, got %d", rec.Code)
	}
	entry := hook.LastEntry()
	if entry == nil {
		t.Fatal("expected a log entry")
	}
	if entry.Data["status"] != http.StatusTeapot || entry.Data["path"] != "/api/v1/health" {
		t.Errorf("unexpected fields %v", entry.Data)
	}
}

func TestRequestLoggerServerError(t *testing.T) {
	hook := test.NewLocal(event.Log)

	handler := RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/runs", nil))

	entry := hook.LastEntry()
	if entry == nil || entry.Level != logrus.WarnLevel {
		t.Errorf("expected warning entry, got %v", entry)
	}
}
