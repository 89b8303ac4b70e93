package distribute

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// ErrAttendeesNotFound is returned when the attendee list is missing.
	ErrAttendeesNotFound = errors.New("attendees file not found")
	// ErrMissingColumns is returned when the header lacks Name or Email.
	ErrMissingColumns = errors.New("attendees file requires Name and Email columns")
)

// Attendee is one recipient of a person folder.
type Attendee struct {
	Name  string
	Email string
}

// Directory maps sorted folder names to attendees.
type Directory struct {
	exact      map[string]Attendee
	normalized map[string]Attendee
	Skipped    []string // descriptions of rows that were ignored
}

// foldName lowercases a name, removes diacritics and collapses whitespace and
// dashes, so "Jiří  Novák" and "jiri-novak" compare equal.
func foldName(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}
	folded = strings.ToLower(strings.ReplaceAll(folded, "-", " "))
	return strings.Join(strings.Fields(folded), " ")
}

// Lookup finds the attendee for a folder name, first exactly, then by folded name.
func (d *Directory) Lookup(name string) (Attendee, bool) {
	if a, ok := d.exact[name]; ok {
		return a, true
	}
	a, ok := d.normalized[foldName(name)]
	return a, ok
}

// Len returns the number of attendees.
func (d *Directory) Len() int {
	return len(d.exact)
}

// LoadAttendees reads a CSV attendee list from path.
func LoadAttendees(path string) (*Directory, error) {
	f, err := os.Open(path) //nolint:gosec // path is from trusted config
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrAttendeesNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open attendees file: %w", err)
	}
	defer f.Close()
	return ParseAttendees(f)
}

// ParseAttendees reads a CSV with Name and Email columns. The delimiter is
// ',' or ';', whichever occurs more often in the header line. A UTF-8 BOM and
// whitespace around headers and values are stripped. Rows without a name or
// with an email lacking '@' are skipped.
func ParseAttendees(r io.Reader) (*Directory, error) {
	br := bufio.NewReader(r)
	header, err := br.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read attendees header: %w", err)
	}
	header = strings.TrimPrefix(header, "\ufeff")

	reader := csv.NewReader(io.MultiReader(strings.NewReader(header), br))
	reader.Comma = ','
	if strings.Count(header, ";") > strings.Count(header, ",") {
		reader.Comma = ';'
	}
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	columns, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingColumns, err)
	}
	nameCol, emailCol := -1, -1
	for i, c := range columns {
		switch strings.TrimSpace(c) {
		case "Name":
			nameCol = i
		case "Email":
			emailCol = i
		}
	}
	if nameCol < 0 || emailCol < 0 {
		return nil, fmt.Errorf("%w: got %v", ErrMissingColumns, columns)
	}

	d := &Directory{
		exact:      make(map[string]Attendee),
		normalized: make(map[string]Attendee),
	}
	row := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		row++
		if err != nil {
			d.Skipped = append(d.Skipped, fmt.Sprintf("row %d: %v", row, err))
			continue
		}

		name, email := field(record, nameCol), field(record, emailCol)
		switch {
		case name == "" || email == "":
			d.Skipped = append(d.Skipped, fmt.Sprintf("row %d: missing Name or Email", row))
			continue
		case !strings.Contains(email, "@"):
			d.Skipped = append(d.Skipped, fmt.Sprintf("row %d: invalid email %q for %s", row, email, name))
			continue
		}

		a := Attendee{Name: name, Email: email}
		d.exact[name] = a
		d.normalized[foldName(name)] = a
	}
	return d, nil
}

func field(record []string, i int) string {
	if i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}
