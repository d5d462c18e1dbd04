package store

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/datons/esios-go/internal/logging"
)

// ExpandArchive recursively extracts a downloaded bundle archive into dir.
// Members whose own name ends in .zip are extracted into a sub-directory
// named after that nested archive's stem and recursively expanded in turn.
// Every member path is validated against directory traversal before being
// joined onto dir: an entry naming ".." or resolving outside dir is
// rejected rather than silently written outside the target tree.
//
// On a name collision with a file already on disk, the existing file is
// overwritten with a warning logged, unless overwrite is false, in which
// case the existing file is left untouched.
func ExpandArchive(archivePath, dir string, overwrite bool) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open archive %s: %w", archivePath, err)
	}
	defer r.Close()
	return expandReader(&r.Reader, dir, overwrite)
}

func expandReader(r *zip.Reader, dir string, overwrite bool) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, f := range r.File {
		target, err := safeJoin(dir, f.Name)
		if err != nil {
			return err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if strings.HasSuffix(strings.ToLower(f.Name), ".zip") {
			if err := extractNested(f, target, dir, overwrite); err != nil {
				return err
			}
			continue
		}
		if err := extractFile(f, target, overwrite); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(f *zip.File, target string, overwrite bool) error {
	if _, err := os.Stat(target); err == nil {
		if !overwrite {
			return nil
		}
		logging.L().Warnw("overwriting extracted archive member", "path", target)
	} else if !os.IsNotExist(err) {
		return err
	}

	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := io.Copy(out, rc); err != nil {
		return err
	}
	return nil
}

// extractNested extracts a nested .zip member into a sibling sub-directory
// named after its stem (e.g. "archivos_2024.zip" -> "archivos_2024/") and
// recursively expands it.
func extractNested(f *zip.File, target, parentDir string, overwrite bool) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	tmp, err := os.CreateTemp(parentDir, ".nested-*.zip")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)
	if _, err := io.Copy(tmp, rc); err != nil {
		tmp.Close()
		return err
	}
	tmp.Close()

	stem := strings.TrimSuffix(filepath.Base(f.Name), filepath.Ext(f.Name))
	subDir, err := safeJoin(parentDir, stem)
	if err != nil {
		return err
	}

	nested, err := zip.OpenReader(tmpName)
	if err != nil {
		return fmt.Errorf("open nested archive %s: %w", f.Name, err)
	}
	defer nested.Close()
	return expandReader(&nested.Reader, subDir, overwrite)
}

// safeJoin joins name onto base after rejecting absolute paths and any
// component that would resolve outside base: zip-slip protection.
func safeJoin(base, name string) (string, error) {
	clean := filepath.Clean(name)
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("archive member %q escapes target directory", name)
	}
	full := filepath.Join(base, clean)
	baseAbs, err := filepath.Abs(base)
	if err != nil {
		return "", err
	}
	fullAbs, err := filepath.Abs(full)
	if err != nil {
		return "", err
	}
	if fullAbs != baseAbs && !strings.HasPrefix(fullAbs, baseAbs+string(filepath.Separator)) {
		return "", fmt.Errorf("archive member %q escapes target directory", name)
	}
	return full, nil
}
