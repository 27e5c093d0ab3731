package recorder

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
}

func TestNewCSV_Validation(t *testing.T) {
	if _, err := NewCSV("", 1, nil); !errors.Is(err, ErrEmptyPath) {
		t.Fatalf("err=%v", err)
	}
	if _, err := NewCSV("x.csv", 0, nil); !errors.Is(err, ErrInvalidChannels) {
		t.Fatalf("err=%v", err)
	}
}

func TestCSV_WritesHeaderAndRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	c, err := NewCSV(path, 3, zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}

	if err := c.Record(time.Now(), []uint8{1, 2, 3}); !errors.Is(err, ErrNotRecording) {
		t.Fatalf("record before start err=%v", err)
	}

	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	at := time.Date(2024, 3, 9, 14, 5, 7, 0, time.Local)
	if err := c.Record(at, []uint8{128, 0, 255}); err != nil {
		t.Fatal(err)
	}
	if err := c.Record(at.Add(time.Second), []uint8{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	if err := c.Record(at, []uint8{1}); !errors.Is(err, ErrRowWidth) {
		t.Fatalf("short row err=%v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}

	want := []string{
		"Timestamp,Channel_1,Channel_2,Channel_3",
		"2024-03-09 14:05:07,128,0,255",
		"2024-03-09 14:05:08,1,2,3",
	}
	got := readLines(t, path)
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestCSV_DirectoryTargetGetsTimestampedFiles(t *testing.T) {
	dir := t.TempDir()
	c, err := NewCSV(dir, 1, zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	clock := time.Date(2024, 1, 2, 3, 4, 5, 600000000, time.Local)
	c.now = func() time.Time { return clock }

	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	if err := c.Start(); err != nil {
		t.Fatalf("second start: %v", err)
	}
	if !c.Active() {
		t.Fatal("not recording after Start")
	}
	if err := c.Record(clock, []uint8{9}); err != nil {
		t.Fatal(err)
	}
	if err := c.Stop(); err != nil {
		t.Fatal(err)
	}
	if c.Active() {
		t.Fatal("still recording after Stop")
	}

	first := c.Path()
	if filepath.Base(first) != "2024-01-02_03-04-05.600000.csv" {
		t.Fatalf("file name %q", filepath.Base(first))
	}
	if lines := readLines(t, first); len(lines) != 2 {
		t.Fatalf("lines=%q", lines)
	}

	clock = clock.Add(time.Minute)
	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	if err := c.Stop(); err != nil {
		t.Fatal(err)
	}
	if c.Path() == first {
		t.Fatal("second recording overwrote the first")
	}
	if err := c.Stop(); err != nil {
		t.Fatalf("stop while idle: %v", err)
	}
}

func TestCSV_StartFailure(t *testing.T) {
	c, _ := NewCSV(filepath.Join(t.TempDir(), "missing", "out.csv"), 1, zaptest.NewLogger(t))
	if err := c.Start(); err == nil {
		t.Fatal("expected open error")
	}
	if c.Active() {
		t.Fatal("failed start must not be active")
	}
}
