package distribute

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/gosimple/slug"
)

// ArchiveName returns the zip file name for a person folder.
func ArchiveName(person string) string {
	name := slug.Make(person)
	if name == "" {
		name = "photos"
	}
	return name + ".zip"
}

// listFiles returns the regular files directly inside dir, sorted by name.
func listFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

// ZipFolder writes the files of dir into a flat zip archive at dst and
// returns the archive size in bytes.
func ZipFolder(dir, dst string) (int64, error) {
	files, err := listFiles(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create zip folder: %w", err)
	}
	out, err := os.Create(dst) //nolint:gosec // path is from trusted config
	if err != nil {
		return 0, fmt.Errorf("failed to create zip: %w", err)
	}

	zw := zip.NewWriter(out)
	for _, name := range files {
		if err := addFile(zw, filepath.Join(dir, name), name); err != nil {
			_ = zw.Close()
			_ = out.Close()
			_ = os.Remove(dst)
			return 0, err
		}
	}
	if err := zw.Close(); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return 0, fmt.Errorf("failed to finish zip: %w", err)
	}
	if err := out.Close(); err != nil {
		return 0, fmt.Errorf("failed to close zip: %w", err)
	}

	info, err := os.Stat(dst)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func addFile(zw *zip.Writer, path, name string) error {
	in, err := os.Open(path) //nolint:gosec // file listed from the output folder
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = name
	// Photos are already compressed.
	header.Method = zip.Store

	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", name, err)
	}
	if _, err := io.Copy(w, in); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}
