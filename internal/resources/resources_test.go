package resources

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func touch(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestFind_WindowAcrossMidnight(t *testing.T) {
	base := t.TempDir()
	day1 := filepath.Join(base, "2024", "01", "12")
	day2 := filepath.Join(base, "2024", "01", "13")
	for _, p := range []string{
		filepath.Join(day1, "2358_59.999.png"), // before start
		filepath.Join(day1, "2359_10.000.png"), // equals the lower bound, excluded
		filepath.Join(day1, "2359_30.250.png"),
		filepath.Join(day1, "notes.png"),       // wrong pattern
		filepath.Join(day1, "2359_40.000.txt"), // description, not a resource
		filepath.Join(day2, "0000_05.500.png"),
		filepath.Join(day2, "0001_00.000.png"),
		filepath.Join(day2, "0001_00.999.png"), // equals the upper bound, excluded
		filepath.Join(day2, "0002_00.000.png"), // after stop
	} {
		touch(t, p, "x")
	}

	loc := time.UTC
	start := time.Date(2024, 1, 12, 23, 59, 10, 0, loc)
	stop := time.Date(2024, 1, 13, 0, 1, 0, 0, loc)

	got, err := Find(base, start, stop)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	want := []string{
		filepath.Join(day1, "2359_30.250.png"),
		filepath.Join(day2, "0000_05.500.png"),
		filepath.Join(day2, "0001_00.000.png"),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Find mismatch (-want +got):\n%s", diff)
	}
}

func TestFind_MissingDayFolder(t *testing.T) {
	start := time.Date(2024, 1, 12, 10, 0, 0, 0, time.UTC)
	if _, err := Find(t.TempDir(), start, start.Add(time.Minute)); err == nil {
		t.Fatal("expected error for missing folder")
	}
}

func TestFind_ReversedWindow(t *testing.T) {
	start := time.Date(2024, 1, 12, 10, 0, 0, 0, time.UTC)
	if _, err := Find(t.TempDir(), start, start.Add(-time.Minute)); err == nil {
		t.Fatal("expected error for reversed window")
	}
}

func TestDescription(t *testing.T) {
	dir := t.TempDir()
	png := filepath.Join(dir, "1200_00.000.png")
	touch(t, png, "x")

	if d, err := Description(png); err != nil || d != "" {
		t.Fatalf("no description: got %q, %v", d, err)
	}
	touch(t, DescriptionPath(png), "  positron cloud, 3 mm  \n")
	if d, err := Description(png); err != nil || d != "positron cloud, 3 mm" {
		t.Fatalf("Description = %q, %v", d, err)
	}
}
