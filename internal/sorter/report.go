package sorter

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize/english"

	"github.com/kozaktomas/face-sorter/internal/facematch"
)

// WriteReport stores the result as indented JSON.
func WriteReport(path string, result *SortResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create report folder: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// PrintSummary writes the human readable run summary.
func PrintSummary(w io.Writer, s facematch.Summary) {
	fmt.Fprintln(w, "=== Sorting summary ===")
	fmt.Fprintf(w, "Processed:        %s\n", english.Plural(s.Processed, "image", ""))
	fmt.Fprintf(w, "Clear matches:    %d\n", s.ClearMatches)
	fmt.Fprintf(w, "Rescued matches:  %d\n", s.RescuedMatches)
	fmt.Fprintf(w, "Unknown:          %d\n", s.Unknown)
	fmt.Fprintf(w, "No faces:         %d\n", s.NoFaces)
	if s.Failed > 0 {
		fmt.Fprintf(w, "Unreadable:       %d\n", s.Failed)
	}
	fmt.Fprintf(w, "Faces:            %d (%d low quality dropped)\n", s.Faces, s.LowQualityFaces)
	fmt.Fprintf(w, "Rescue attempts:  %d (%d succeeded)\n", s.RescueAttempts, s.RescueSuccesses)
	fmt.Fprintf(w, "Match rate:       %.1f%%\n", s.MatchRate*100)

	if s.Similarity.Count > 0 {
		fmt.Fprintf(w, "Similarity:       mean %.3f, median %.3f, p10 %.3f (%s)\n",
			s.Similarity.Mean, s.Similarity.Median, s.Similarity.P10,
			english.Plural(s.Similarity.Count, "face", ""))
	}

	if len(s.People) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Per person:")
		for _, p := range s.People {
			fmt.Fprintf(w, "  %-30s %s\n", p.Name, english.Plural(p.Images, "image", ""))
		}
	}
}
