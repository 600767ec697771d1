package jsengine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dop251/goja"
)

// DefaultMaxFileSize bounds fs.read and fs.load.
const DefaultMaxFileSize = 1 << 20

// ErrOutsideRoot is returned for a path that escapes the files root.
var ErrOutsideRoot = errors.New("path is outside the kernel working directory")

// Files backs the fs object: read-only access to the files under Root.
type Files struct {
	// Root is the directory relative paths resolve against. Paths may
	// not leave it.
	Root string

	// MaxFileSize is the largest file fs.read and fs.load accept.
	MaxFileSize int64

	// ExcludeDirs are directory names hidden from list and glob.
	ExcludeDirs []string
}

// NewFiles returns a Files rooted at root, or at the working directory
// when root is empty.
func NewFiles(root string) (*Files, error) {
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		root = wd
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve files root: %w", err)
	}
	return &Files{
		Root:        abs,
		MaxFileSize: DefaultMaxFileSize,
		ExcludeDirs: []string{".git", "node_modules", "vendor"},
	}, nil
}

// resolve maps path to an absolute path inside Root.
func (f *Files) resolve(path string) (string, error) {
	resolved := path
	if !filepath.IsAbs(path) {
		resolved = filepath.Join(f.Root, path)
	}
	resolved = filepath.Clean(resolved)

	rel, err := filepath.Rel(f.Root, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s: %w", path, ErrOutsideRoot)
	}
	return resolved, nil
}

// List returns the entries of a directory as {name, isDir, size}.
func (f *Files) List(path string) ([]map[string]any, error) {
	resolved, err := f.resolve(path)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(resolved)
	if err != nil {
		return nil, err
	}

	result := []map[string]any{}
	for _, entry := range entries {
		if entry.IsDir() && f.excluded(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		result = append(result, map[string]any{
			"name":  entry.Name(),
			"isDir": entry.IsDir(),
			"size":  info.Size(),
		})
	}
	return result, nil
}

// Read returns the contents of a file.
func (f *Files) Read(path string) (string, error) {
	resolved, err := f.resolve(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", path)
	}
	if f.MaxFileSize > 0 && info.Size() > f.MaxFileSize {
		return "", fmt.Errorf("%s is %d bytes, over the %d byte limit", path, info.Size(), f.MaxFileSize)
	}

	content, err := os.ReadFile(resolved)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// Glob returns the paths under Root matching pattern, relative to Root.
func (f *Files) Glob(pattern string) ([]string, error) {
	if _, err := f.resolve(pattern); err != nil {
		return nil, err
	}
	if !filepath.IsAbs(pattern) {
		pattern = filepath.Join(f.Root, pattern)
	}

	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}

	result := []string{}
	for _, match := range matches {
		rel, err := filepath.Rel(f.Root, match)
		if err != nil {
			continue
		}
		if slices.ContainsFunc(strings.Split(rel, string(filepath.Separator)), f.excluded) {
			continue
		}
		result = append(result, rel)
	}
	return result, nil
}

// Exists reports whether path names an existing file or directory.
func (f *Files) Exists(path string) bool {
	resolved, err := f.resolve(path)
	if err != nil {
		return false
	}
	_, err = os.Stat(resolved)
	return err == nil
}

func (f *Files) excluded(name string) bool {
	return slices.Contains(f.ExcludeDirs, name)
}

// setupFiles adds the fs object. fs.load(path) runs a script file in the
// session's runtime and returns its completion value.
func (e *Engine) setupFiles() error {
	vm := e.vm
	files := e.files
	fs := vm.NewObject()

	pathArg := func(call goja.FunctionCall, name string) string {
		if len(call.Arguments) < 1 {
			panic(vm.NewTypeError(fmt.Sprintf("fs.%s requires 1 argument: path", name)))
		}
		return call.Arguments[0].String()
	}

	// fs.list(path) -> array of {name, isDir, size}
	list := func(call goja.FunctionCall) goja.Value {
		path := "."
		if len(call.Arguments) > 0 {
			path = call.Arguments[0].String()
		}
		result, err := files.List(path)
		if err != nil {
			panic(vm.NewGoError(err))
		}
		return vm.ToValue(result)
	}
	if err := fs.Set("list", list); err != nil {
		return err
	}

	// fs.read(path) -> string content
	read := func(call goja.FunctionCall) goja.Value {
		content, err := files.Read(pathArg(call, "read"))
		if err != nil {
			panic(vm.NewGoError(err))
		}
		return vm.ToValue(content)
	}
	if err := fs.Set("read", read); err != nil {
		return err
	}

	// fs.glob(pattern) -> array of matching paths
	glob := func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 1 {
			panic(vm.NewTypeError("fs.glob requires 1 argument: pattern"))
		}
		matches, err := files.Glob(call.Arguments[0].String())
		if err != nil {
			panic(vm.NewGoError(err))
		}
		return vm.ToValue(matches)
	}
	if err := fs.Set("glob", glob); err != nil {
		return err
	}

	// fs.exists(path) -> boolean
	exists := func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(files.Exists(pathArg(call, "exists")))
	}
	if err := fs.Set("exists", exists); err != nil {
		return err
	}

	// fs.load(path) -> completion value of the script
	load := func(call goja.FunctionCall) goja.Value {
		path := pathArg(call, "load")
		src, err := files.Read(path)
		if err != nil {
			panic(vm.NewGoError(err))
		}
		val, err := vm.RunScript(path, src)
		var exc *goja.Exception
		switch {
		case errors.As(err, &exc):
			panic(exc.Value())
		case err != nil:
			panic(err)
		}
		return val
	}
	if err := fs.Set("load", load); err != nil {
		return err
	}

	return vm.Set("fs", fs)
}
