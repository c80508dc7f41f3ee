package archive

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
)

// entryTime is stamped on every zip entry so identical trees give identical bytes.
var entryTime = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// OutputName derives the repacked archive name from the downloaded file name.
func OutputName(downloadedName string) string {
	base := filepath.Base(downloadedName)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" || stem == "." || stem == string(filepath.Separator) {
		stem = "archive"
	}
	return stem + "_cleaned.zip"
}

// Repack writes every regular file under dir into a deflated zip at outPath.
// Entries are added in lexical path order with a fixed timestamp.
func Repack(dir, outPath string) (err error) {
	var files []string
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			rel, relErr := filepath.Rel(dir, path)
			if relErr != nil {
				return relErr
			}
			files = append(files, filepath.ToSlash(rel))
		}
		return nil
	})
	if walkErr != nil {
		return fmt.Errorf("walk %s: %w", dir, walkErr)
	}
	sort.Strings(files)

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", outPath, err)
	}
	defer func() {
		if cerr := out.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close %s: %w", outPath, cerr)
		}
		if err != nil {
			_ = os.Remove(outPath)
		}
	}()

	zw := zip.NewWriter(out)
	for _, name := range files {
		if err := addFile(zw, filepath.Join(dir, filepath.FromSlash(name)), name); err != nil {
			_ = zw.Close()
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finish zip: %w", err)
	}
	return nil
}

func addFile(zw *zip.Writer, path, name string) error {
	in, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer func() { _ = in.Close() }()

	header := &zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: entryTime,
	}
	header.SetMode(0o644)

	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}
	if _, err := io.Copy(w, in); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
