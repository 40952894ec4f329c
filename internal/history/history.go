// Package history manages the named-run library under
// $HOME/.mcp-stress/runs.
package history

import (
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	api "github.com/dgellow/mcp-stress/lib-stress"
	"github.com/dgellow/mcp-stress/internal/stresserr"
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Entry is one stored run.
type Entry struct {
	Name    string
	Path    string
	Size    int64
	ModTime time.Time
}

// Dir returns the library directory, honouring HOME and USERPROFILE.
func Dir() (string, error) {
	home := os.Getenv("HOME")
	if home == "" {
		home = os.Getenv("USERPROFILE")
	}
	if home == "" {
		var err error
		home, err = os.UserHomeDir()
		if err != nil {
			return "", stresserr.New(api.ErrIO, err, "failed to locate home directory")
		}
	}
	return filepath.Join(home, ".mcp-stress", "runs"), nil
}

// ValidName reports whether name is acceptable as a run name.
func ValidName(name string) bool {
	return namePattern.MatchString(name)
}

func pathOf(name string) (string, error) {
	if !ValidName(name) {
		return "", stresserr.New(api.ErrInvalidArgumentValue, nil, "invalid run name %q (allowed: letters, digits, _ and -)", name)
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name+".ndjson"), nil
}

// List enumerates stored runs, newest first.
func List() ([]Entry, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}

	files, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, stresserr.New(api.ErrIO, err, "failed to read run library")
	}

	var entries []Entry
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".ndjson") {
			continue
		}
		info, err := f.Info()
		if err != nil {
			continue
		}
		entries = append(entries, Entry{
			Name:    strings.TrimSuffix(f.Name(), ".ndjson"),
			Path:    filepath.Join(dir, f.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ModTime.After(entries[j].ModTime)
	})

	return entries, nil
}

// Save copies a run file into the library under name.
func Save(name, srcPath string) (string, error) {
	dst, err := pathOf(name)
	if err != nil {
		return "", err
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return "", stresserr.New(api.ErrIO, err, "failed to open run file")
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", stresserr.New(api.ErrIO, err, "failed to create run library")
	}

	out, err := os.Create(dst)
	if err != nil {
		return "", stresserr.New(api.ErrIO, err, "failed to create library entry")
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return "", stresserr.New(api.ErrIO, err, "failed to copy run file")
	}
	return dst, nil
}

// Path resolves a stored run by name.
func Path(name string) (string, error) {
	p, err := pathOf(name)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(p); err != nil {
		return "", stresserr.New(api.ErrInvalidArgumentValue, err, "no stored run named %q", name)
	}
	return p, nil
}

// Remove deletes a stored run. Removing a missing run is an error.
func Remove(name string) error {
	p, err := Path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		return stresserr.New(api.ErrIO, err, "failed to remove stored run")
	}
	return nil
}
