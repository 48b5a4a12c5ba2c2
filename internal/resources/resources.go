// Package resources discovers files that other systems drop into dated
// folders during a run. A resource is stored as
//
//	<base>/<yyyy>/<mm>/<dd>/<hhmm>_<ss>.<mss>.png
//
// with an optional description next to it (same name, .txt extension).
package resources

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

var filePattern = regexp.MustCompile(`^\d{4}_\d{2}\.\d{3}\.png$`)

func dayDir(base string, t time.Time) string {
	return filepath.Join(base,
		fmt.Sprintf("%04d", t.Year()),
		fmt.Sprintf("%02d", int(t.Month())),
		fmt.Sprintf("%02d", t.Day()))
}

// bound is the name a file would have at t with the given milliseconds.
func bound(base string, t time.Time, millis string) string {
	return filepath.Join(dayDir(base, t), fmt.Sprintf("%02d%02d_%02d.%s.png", t.Hour(), t.Minute(), t.Second(), millis))
}

// Find lists the resources under base created strictly between start and
// stop, in chronological order. Times are interpreted in start's location.
// Every day folder in the window must exist.
func Find(base string, start, stop time.Time) ([]string, error) {
	if stop.Before(start) {
		return nil, fmt.Errorf("resources: window ends before it starts (%s > %s)", start, stop)
	}
	stop = stop.In(start.Location())
	first := bound(base, start, "000")
	last := bound(base, stop, "999")

	var paths []string
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
	lastDay := time.Date(stop.Year(), stop.Month(), stop.Day(), 0, 0, 0, 0, start.Location())
	for !day.After(lastDay) {
		dir := dayDir(base, day)
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to read directory %q: %w", dir, err)
		}

		var found []string
		for _, e := range entries {
			if !e.Type().IsRegular() || !filePattern.MatchString(e.Name()) {
				continue
			}
			p := filepath.Join(dir, e.Name())
			if p <= first && sameDay(day, start) {
				continue
			}
			if p >= last && sameDay(day, stop) {
				continue
			}
			found = append(found, p)
		}
		sort.Strings(found)
		paths = append(paths, found...)

		day = day.AddDate(0, 0, 1)
	}
	return paths, nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// DescriptionPath is where the description of the resource at path lives.
func DescriptionPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".txt"
}

// Description returns the trimmed description of the resource at path, or ""
// if it has none.
func Description(path string) (string, error) {
	data, err := os.ReadFile(DescriptionPath(path))
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read description: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
