package fetch

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
)

// extract unpacks the zip archive at src into dst and returns the number of
// files written. Entries escaping dst are rejected.
func extract(src, dst string, strip int) (int, error) {
	r, err := zip.OpenReader(src)
	if err != nil {
		return 0, fmt.Errorf("failed to open archive: %w", err)
	}
	defer r.Close()

	if err := os.MkdirAll(dst, 0o755); err != nil {
		return 0, err
	}

	files := 0
	for _, zf := range r.File {
		name, ok := stripComponents(zf.Name, strip)
		if !ok {
			continue
		}
		target, err := safeJoin(dst, name)
		if err != nil {
			return files, err
		}

		mode := zf.Mode()
		switch {
		case mode.IsDir():
			if err := os.MkdirAll(target, 0o755); err != nil {
				return files, err
			}
		case mode.IsRegular():
			if err := writeFile(zf, target); err != nil {
				return files, fmt.Errorf("failed to extract %s: %w", zf.Name, err)
			}
			files++
		default:
			// symlinks and devices are never part of the dataset
		}
	}
	return files, nil
}

func writeFile(zf *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	rc, err := zf.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func stripComponents(name string, n int) (string, bool) {
	name = strings.TrimPrefix(name, "./")
	parts := strings.Split(strings.Trim(name, "/"), "/")
	if len(parts) <= n {
		return "", false
	}
	return strings.Join(parts[n:], "/"), true
}

func safeJoin(dst, name string) (string, error) {
	if strings.Contains(name, `\`) || filepath.IsAbs(name) {
		return "", fmt.Errorf("illegal archive path %q", name)
	}
	target := filepath.Join(dst, filepath.FromSlash(name))
	rel, err := filepath.Rel(dst, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("illegal archive path %q", name)
	}
	return target, nil
}
