package distribute

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ReportWriter appends delivery rows to the execution report CSV.
type ReportWriter struct {
	path string
	now  func() time.Time
	mu   sync.Mutex
}

// NewReportWriter creates a writer for path. The file is created on first use.
func NewReportWriter(path string) *ReportWriter {
	return &ReportWriter{path: path, now: time.Now}
}

var reportHeader = []string{"Timestamp", "Name", "Email", "Status", "Message"}

// Log appends one row, writing the header when the file is new.
func (r *ReportWriter) Log(name, email, status, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, statErr := os.Stat(r.path)
	isNew := errors.Is(statErr, fs.ErrNotExist)

	if dir := filepath.Dir(r.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create report folder: %w", err)
		}
	}
	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("failed to open report: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if isNew {
		_ = w.Write(reportHeader)
	}
	_ = w.Write([]string{r.now().Format(time.DateTime), name, email, status, message})
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

