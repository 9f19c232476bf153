package catalog

import (
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"fedigraph/internal/errs"
)

// DateLayout is the canonical snapshot date format.
const DateLayout = "20060102"

var namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// ValidDate reports whether s is a canonical YYYYMMDD calendar date.
func ValidDate(s string) bool {
	if len(s) != len(DateLayout) {
		return false
	}
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// ValidName reports whether s may be used as a platform or graph type.
func ValidName(s string) bool {
	return namePattern.MatchString(s)
}

// Build scans root and indexes every artifact below it. Any path that looks
// like an artifact but does not follow the layout fails the whole build.
func Build(root string) (*Catalog, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, errs.Corrupt(root, "dataset root not readable: %v", err)
	}
	if !info.IsDir() {
		return nil, errs.Corrupt(root, "dataset root is not a directory")
	}

	c := New(root)
	err = Scan(root, func(e Entry) error {
		return c.Add(e)
	})
	if err != nil {
		return nil, err
	}
	if c.Len() == 0 {
		return nil, errs.Corrupt(root, "no artifacts found")
	}
	return c, nil
}

// Scan walks root and streams each artifact entry to onEntry. Symlinked
// directories are followed; reported paths stay under root as given.
func Scan(root string, onEntry func(Entry) error) error {
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		return errs.Corrupt(root, "dataset root not readable: %v", err)
	}
	return scanTree(resolved, root, nil, onEntry)
}

// scanTree walks dir, which is shown to callers as shown and sits at the
// layout position described by prefix.
func scanTree(dir, shown string, prefix []string, onEntry func(Entry) error) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return errs.Corrupt(path, "walk: %v", err)
		}
		if path == dir {
			return nil
		}

		// Hidden entries hold fetch bookkeeping, never artifacts.
		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return errs.Corrupt(path, "%v", err)
		}
		parts := append(slices.Clone(prefix), strings.Split(filepath.ToSlash(rel), "/")...)
		at := filepath.Join(shown, rel)

		if d.Type()&fs.ModeSymlink != 0 {
			return visitLink(path, at, parts, onEntry)
		}
		if !d.IsDir() {
			return visitFile(at, d.Name())
		}
		descend, err := visitDir(at, parts, onEntry)
		if err != nil {
			return err
		}
		if !descend {
			return filepath.SkipDir
		}
		return nil
	})
}

// visitLink handles a symlink found during the walk. WalkDir never follows
// links, so linked platform and graph type directories are walked here.
func visitLink(path, at string, parts []string, onEntry func(Entry) error) error {
	info, err := os.Stat(path)
	if err != nil {
		return errs.Corrupt(at, "broken symlink: %v", err)
	}
	if !info.IsDir() {
		return visitFile(at, filepath.Base(at))
	}
	descend, err := visitDir(at, parts, onEntry)
	if err != nil || !descend {
		return err
	}
	target, err := filepath.EvalSymlinks(path)
	if err != nil {
		return errs.Corrupt(at, "broken symlink: %v", err)
	}
	return scanTree(target, at, parts, onEntry)
}

func visitFile(at, name string) error {
	// Loose files (README, LICENSE, archive metadata) sit above the
	// artifact level; a serialized graph there has no coordinates.
	if name == InteractionsFile || name == MetadataFile {
		return errs.Corrupt(at, "artifact outside <platform>/<graph_type>/<date>")
	}
	return nil
}

// visitDir validates a directory at its layout depth and reports whether
// the walk should go below it.
func visitDir(at string, parts []string, onEntry func(Entry) error) (bool, error) {
	switch len(parts) {
	case 1, 2:
		name := parts[len(parts)-1]
		if !ValidName(name) {
			return false, errs.Corrupt(at, "invalid %s name %q", levelName(len(parts)), name)
		}
		return true, nil
	case 3:
		e, err := entryAt(at, Key{Platform: parts[0], GraphType: parts[1], Date: parts[2]})
		if err != nil {
			return false, err
		}
		return false, onEntry(e)
	default:
		return false, nil
	}
}

func entryAt(dir string, k Key) (Entry, error) {
	if !ValidDate(k.Date) {
		return Entry{}, errs.Corrupt(dir, "invalid snapshot date %q, want YYYYMMDD", k.Date)
	}

	e := Entry{
		Key:              k,
		Dir:              dir,
		InteractionsPath: filepath.Join(dir, InteractionsFile),
	}
	if !isFile(e.InteractionsPath) {
		return Entry{}, errs.Corrupt(dir, "missing %s", InteractionsFile)
	}
	if meta := filepath.Join(dir, MetadataFile); isFile(meta) {
		e.MetadataPath = meta
	}
	return e, nil
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func levelName(depth int) string {
	if depth == 1 {
		return "platform"
	}
	return "graph type"
}
