// Package tools resolves optional external executables used by the engine:
// the muxer/transcoder (ffmpeg) and the multi-connection accelerator (aria2c).
//
// Lookup order is the inherited PATH first, then a fixed local tools
// directory holding name plus the platform executable suffix. A missing tool
// is not an error; callers branch on Tool.Available.
//
// Results are cached for the lifetime of a Locator. A binary installed or
// removed after the first lookup is not observed.
package tools

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
)

const (
	FFmpeg      = "ffmpeg"
	Accelerator = "aria2c"
)

// Tool is the result of a lookup. Path is empty when the tool was not found.
type Tool struct {
	Name string
	Path string
}

// Available reports whether the tool was found.
func (t Tool) Available() bool {
	return t.Path != ""
}

// Dir returns the directory holding the executable, or "" when absent.
func (t Tool) Dir() string {
	if !t.Available() {
		return ""
	}

	return filepath.Dir(t.Path)
}

// Toolset is the immutable snapshot of discovered tools handed to the
// configuration deriver.
type Toolset struct {
	FFmpeg      Tool
	Accelerator Tool
}

// Locator finds executables and memoizes the answers.
type Locator struct {
	localDir string
	lookPath func(string) (string, error)

	mu    sync.Mutex
	cache map[string]Tool
}

// NewLocator returns a Locator that falls back to localDir.
func NewLocator(localDir string) *Locator {
	return &Locator{
		localDir: localDir,
		lookPath: exec.LookPath,
		cache:    make(map[string]Tool),
	}
}

// Locate resolves a bare executable name such as "ffmpeg".
func (l *Locator) Locate(name string) Tool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if t, ok := l.cache[name]; ok {
		return t
	}

	t := Tool{Name: name, Path: l.resolve(name)}
	l.cache[name] = t

	return t
}

// Discover resolves every tool the engine can use.
func (l *Locator) Discover() Toolset {
	return Toolset{
		FFmpeg:      l.Locate(FFmpeg),
		Accelerator: l.Locate(Accelerator),
	}
}

func (l *Locator) resolve(name string) string {
	if path, err := l.lookPath(name); err == nil {
		if abs, err := filepath.Abs(path); err == nil {
			return abs
		}

		return path
	}

	if l.localDir == "" {
		return ""
	}

	candidate := filepath.Join(l.localDir, executableName(name))

	info, err := os.Stat(candidate)
	if err != nil || !info.Mode().IsRegular() {
		return ""
	}

	if abs, err := filepath.Abs(candidate); err == nil {
		return abs
	}

	return candidate
}

func executableName(base string) string {
	if runtime.GOOS == "windows" {
		return base + ".exe"
	}

	return base
}
