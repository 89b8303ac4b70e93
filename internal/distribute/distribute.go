// Package distribute delivers sorted person folders to attendees as zip archives.
package distribute

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"

	"github.com/kozaktomas/face-sorter/internal/constants"
	"github.com/kozaktomas/face-sorter/internal/event"
)

var log = event.Log

// DefaultSubject is the mail subject when none is configured.
const DefaultSubject = "Your photos are ready"

// ErrOutputDirNotFound is returned when there is nothing to distribute.
var ErrOutputDirNotFound = errors.New("output directory not found")

type Options struct {
	OutputDir     string
	UnknownFolder string // never distributed
	ZipDir        string // where archives are built, defaults to OutputDir
	Subject       string
}

// Stats are the counters of one distribution run.
type Stats struct {
	Processed int `json:"processed"` // folders with a known attendee
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
	NotFound  int `json:"not_found"`
	Empty     int `json:"empty"`
}

// Distributor zips person folders and hands them to a Sender.
type Distributor struct {
	attendees *Directory
	sender    Sender
	report    *ReportWriter
}

// New creates a distributor. report may be nil.
func New(attendees *Directory, sender Sender, report *ReportWriter) *Distributor {
	return &Distributor{attendees: attendees, sender: sender, report: report}
}

func (d *Distributor) record(name, email, status, message string) {
	if d.report == nil {
		return
	}
	if err := d.report.Log(name, email, status, message); err != nil {
		log.Warnf("distribute: failed to log transaction: %v", err)
	}
}

// personFolders returns the folders of the output directory except unknown.
func personFolders(outputDir, unknown string) ([]string, error) {
	entries, err := os.ReadDir(outputDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrOutputDirNotFound, outputDir)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read output directory: %w", err)
	}

	var folders []string
	for _, e := range entries {
		if e.IsDir() && e.Name() != unknown {
			folders = append(folders, e.Name())
		}
	}
	sort.Strings(folders)
	return folders, nil
}

// Run delivers every person folder of opts.OutputDir. Per-folder failures are
// counted and reported; only an unreadable output directory is an error.
func (d *Distributor) Run(ctx context.Context, opts Options) (Stats, error) {
	var stats Stats

	unknown := opts.UnknownFolder
	if unknown == "" {
		unknown = constants.DefaultUnknownFolder
	}
	zipDir := opts.ZipDir
	if zipDir == "" {
		zipDir = opts.OutputDir
	}
	subject := opts.Subject
	if subject == "" {
		subject = DefaultSubject
	}

	folders, err := personFolders(opts.OutputDir, unknown)
	if err != nil {
		return stats, err
	}
	log.Infof("distribute: found %d person folders", len(folders))

	for _, name := range folders {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		dir := filepath.Join(opts.OutputDir, name)
		files, err := listFiles(dir)
		if err != nil || len(files) == 0 {
			log.Infof("distribute: skipping %s: no files in folder", name)
			stats.Empty++
			continue
		}

		attendee, ok := d.attendees.Lookup(name)
		if !ok {
			log.Warnf("distribute: %s not found in attendees", name)
			d.record(name, "N/A", constants.ReportStatusSkipped, "Name not found in attendees list")
			stats.NotFound++
			continue
		}
		stats.Processed++

		if err := d.deliver(ctx, name, dir, zipDir, attendee, subject); err != nil {
			log.Errorf("distribute: %s: %v", name, err)
			d.record(name, attendee.Email, constants.ReportStatusFailed, err.Error())
			stats.Failed++
			continue
		}
		log.Infof("distribute: sent %s to %s", english.Plural(len(files), "photo", ""), attendee.Email)
		d.record(name, attendee.Email, constants.ReportStatusSuccess, "Photos sent successfully")
		stats.Sent++
	}

	return stats, nil
}

func (d *Distributor) deliver(ctx context.Context, name, dir, zipDir string, attendee Attendee, subject string) error {
	zipPath := filepath.Join(zipDir, ArchiveName(name))
	size, err := ZipFolder(dir, zipPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := os.Remove(zipPath); err != nil {
			log.Warnf("distribute: failed to delete %s: %v", zipPath, err)
		}
	}()
	log.Infof("distribute: created %s (%s)", filepath.Base(zipPath), humanize.Bytes(uint64(size))) //nolint:gosec // size is non-negative

	return d.sender.Send(ctx, Delivery{
		Email:      attendee.Email,
		Subject:    subject,
		Message:    Message(attendee.Email),
		Attachment: zipPath,
	})
}
