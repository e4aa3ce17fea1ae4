package session

import (
	"errors"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

var start = time.Date(2025, time.March, 4, 13, 5, 9, 0, time.Local)

type indexer struct {
	paths []string
	err   error
}

func (i *indexer) Index(path string) error {
	i.paths = append(i.paths, path)
	return i.err
}

func TestRecorder(t *testing.T) {
	r := NewRecorder(10 * time.Millisecond)
	if r.Started() {
		t.Error("new recorder unexpectedly started")
	}
	r.Begin(start)
	r.Add(72, 1.8)
	r.Add(-1, 0)
	r.Add(100000001, 0.25)

	if !r.Started() {
		t.Error("recorder not started after Begin")
	}
	if r.Rows() != 3 {
		t.Errorf("unexpected row count: got:%d want:3", r.Rows())
	}
	wantName := "2025-03-04-13-05-09.txt"
	if got := r.Name(); got != wantName {
		t.Errorf("unexpected name: got:%q want:%q", got, wantName)
	}
	want := "Time Value Voltage\n" +
		"0 72 1.8V\n" +
		"10 -1 0V\n" +
		"20 100000001 0.25V\n"
	if got := r.String(); got != want {
		t.Errorf("unexpected log:\ngot:\n%s\nwant:\n%s", got, want)
	}

	r.Begin(start.Add(time.Hour))
	r.Add(60, 0)
	want = "Time Value Voltage\n0 60 0V\n"
	if got := r.String(); got != want {
		t.Errorf("unexpected log after new session:\ngot:\n%s\nwant:\n%s", got, want)
	}

	r.Reset()
	if r.Started() || r.Rows() != 0 {
		t.Errorf("recorder not reset: started=%t rows=%d", r.Started(), r.Rows())
	}
}

func TestSave(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sessions")
	r := NewRecorder(10 * time.Millisecond)
	r.Begin(start)
	r.Add(72, 1.8)
	r.Add(73, 1.8)

	var idx indexer
	path, err := r.Save(dir, &idx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := filepath.Join(dir, "2025-03-04-13-05-09.txt"); path != want {
		t.Errorf("unexpected path: got:%q want:%q", path, want)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read session log: %v", err)
	}
	if string(got) != r.String() {
		t.Errorf("unexpected file content:\ngot:\n%s\nwant:\n%s", got, r.String())
	}
	if !reflect.DeepEqual(idx.paths, []string{path}) {
		t.Errorf("unexpected indexed paths: got:%q want:%q", idx.paths, []string{path})
	}

	// A second session starting in the same second
	// does not overwrite the first.
	r.Begin(start)
	r.Add(90, 0)
	again, err := r.Save(dir, &idx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := filepath.Join(dir, "2025-03-04-13-05-09-1.txt"); again != want {
		t.Errorf("unexpected path: got:%q want:%q", again, want)
	}
	got, err = os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read session log: %v", err)
	}
	if want := "Time Value Voltage\n0 72 1.8V\n10 73 1.8V\n"; string(got) != want {
		t.Errorf("first session log overwritten:\ngot:\n%s\nwant:\n%s", got, want)
	}

	idx.err = errors.New("scanner unavailable")
	_, err = r.Save(dir, &idx)
	if !errors.Is(err, idx.err) {
		t.Errorf("expected index error: got:%v", err)
	}
}

func TestSaveUnwritable(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	err := os.WriteFile(blocker, nil, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	r := NewRecorder(10 * time.Millisecond)
	r.Begin(start)
	r.Add(72, 0)

	var idx indexer
	_, err = r.Save(filepath.Join(blocker, "sessions"), &idx)
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Errorf("unexpected error: got:%v want:%v", err, ErrStorageUnavailable)
	}
	if len(idx.paths) != 0 {
		t.Errorf("unexpected index call for failed save: %q", idx.paths)
	}
}

func TestState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "hrs.yaml")

	_, err := ReadState(path)
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("unexpected error for missing state: %v", err)
	}

	want := State{InProgress: true, Counter: 1230 * time.Millisecond, Value: 72}
	err = WriteState(path, want)
	if err != nil {
		t.Fatalf("unexpected error writing state: %v", err)
	}
	got, err := ReadState(path)
	if err != nil {
		t.Fatalf("unexpected error reading state: %v", err)
	}
	if got != want {
		t.Errorf("unexpected state: got:%+v want:%+v", got, want)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("unexpected temporary files left: %v", entries)
	}
}

func TestCommandIndexer(t *testing.T) {
	err := CommandIndexer{}.Index("/nonexistent")
	if err != nil {
		t.Errorf("unexpected error for empty command: %v", err)
	}

	if _, err := exec.LookPath("false"); err != nil {
		t.Skip("no false command")
	}
	err = CommandIndexer{Args: []string{"false"}, Timeout: time.Second}.Index("/nonexistent")
	if err == nil {
		t.Error("expected error from failing command")
	}
}
