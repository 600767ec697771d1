package jsengine

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/itsmostafa/gokernel/internal/expr"
	"github.com/itsmostafa/gokernel/internal/sink"
)

func newFiles(t *testing.T) (*Files, string) {
	t.Helper()
	dir := t.TempDir()
	files, err := NewFiles(dir)
	if err != nil {
		t.Fatalf("NewFiles() error: %v", err)
	}
	return files, dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestFiles_List(t *testing.T) {
	files, dir := newFiles(t)
	writeFile(t, filepath.Join(dir, "a.js"), "1")
	writeFile(t, filepath.Join(dir, "sub", "b.js"), "2")
	writeFile(t, filepath.Join(dir, ".git", "HEAD"), "ref")

	result, err := files.List(".")
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}

	names := make(map[string]bool)
	for _, entry := range result {
		names[entry["name"].(string)] = true
	}
	if len(result) != 2 || !names["a.js"] || !names["sub"] {
		t.Errorf("List() names = %v, want a.js and sub", names)
	}
}

func TestFiles_Read(t *testing.T) {
	files, dir := newFiles(t)
	writeFile(t, filepath.Join(dir, "data.txt"), "Hello, World!\n")

	got, err := files.Read("data.txt")
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if got != "Hello, World!\n" {
		t.Errorf("Read() = %q", got)
	}

	if _, err := files.Read("."); err == nil {
		t.Error("expected an error reading a directory")
	}
}

func TestFiles_ReadRejectsLargeFiles(t *testing.T) {
	files, dir := newFiles(t)
	files.MaxFileSize = 100
	writeFile(t, filepath.Join(dir, "large.txt"), strings.Repeat("x", 2000))

	if _, err := files.Read("large.txt"); err == nil {
		t.Error("expected an error for a file over the limit")
	}
}

func TestFiles_OutsideRoot(t *testing.T) {
	files, _ := newFiles(t)

	paths := []string{"../secret", "/etc/passwd", "sub/../../x"}
	for _, path := range paths {
		if _, err := files.Read(path); !errors.Is(err, ErrOutsideRoot) {
			t.Errorf("Read(%q) error = %v, want ErrOutsideRoot", path, err)
		}
		if files.Exists(path) {
			t.Errorf("Exists(%q) = true outside the root", path)
		}
	}
	if _, err := files.Glob("../*"); !errors.Is(err, ErrOutsideRoot) {
		t.Errorf("Glob() error = %v, want ErrOutsideRoot", err)
	}
}

func TestFiles_Glob(t *testing.T) {
	files, dir := newFiles(t)
	writeFile(t, filepath.Join(dir, "main.js"), "")
	writeFile(t, filepath.Join(dir, "util.js"), "")
	writeFile(t, filepath.Join(dir, "readme.md"), "")

	result, err := files.Glob("*.js")
	if err != nil {
		t.Fatalf("Glob() error: %v", err)
	}
	if len(result) != 2 || result[0] != "main.js" || result[1] != "util.js" {
		t.Errorf("Glob() = %v", result)
	}
}

func TestFiles_Exists(t *testing.T) {
	files, dir := newFiles(t)
	writeFile(t, filepath.Join(dir, "exists.txt"), "hello")

	if !files.Exists("exists.txt") {
		t.Error("expected exists.txt to exist")
	}
	if files.Exists("missing.txt") {
		t.Error("expected missing.txt to not exist")
	}
}

func TestEngine_FSModule(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "lib", "math.js"), "function square(n) { return n * n }\nsquare(3)")
	writeFile(t, filepath.Join(dir, "notes.txt"), "alpha\nbeta\n")
	writeFile(t, filepath.Join(dir, "bail.js"), "Throw('from file')")

	var out bytes.Buffer
	e, err := New(Options{JumpLabel: testLabel, Channel: sink.NewChannel(&out), WorkDir: dir})
	if err != nil {
		t.Fatal(err)
	}

	if v := eval(t, e, `fs.load("lib/math.js")`); v != int64(9) {
		t.Errorf("fs.load() = %v, want 9", v)
	}
	if v := eval(t, e, "square(4)"); v != int64(16) {
		t.Errorf("square(4) after load = %v, want 16", v)
	}
	if v := eval(t, e, `fs.read("notes.txt").split("\n").length`); v != int64(3) {
		t.Errorf("line count = %v, want 3", v)
	}
	if v := eval(t, e, `fs.exists("lib")`); v != true {
		t.Errorf("fs.exists(lib) = %v", v)
	}
	if v := eval(t, e, `fs.glob("*.txt").length`); v != int64(1) {
		t.Errorf("fs.glob length = %v", v)
	}

	v := eval(t, e, `fs.read("../outside")`)
	if !expr.IsFailed(v) || !strings.Contains(out.String(), ExceptionMessage) {
		t.Errorf("reading outside the root = %v, channel %q", v, out.String())
	}

	_, err = e.Evaluate(context.Background(), `fs.load("bail.js")`, expr.EvalOptions{})
	var jump *expr.Jump
	if !errors.As(err, &jump) || jump.Value != "from file" {
		t.Errorf("jump from loaded file = %v", err)
	}
}
