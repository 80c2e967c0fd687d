// Package ledger records per-wallet outcomes as plain text lines.
package ledger

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

var ErrUnknownModule = errors.New("unknown module")

// Paths are the two files a module writes to.
type Paths struct {
	Success string
	Failed  string
}

// Files appends keys to per-module success/failure files. One mutex guards
// every write so lines from concurrent workers never interleave.
type Files struct {
	mu      sync.Mutex
	root    string
	modules map[string]Paths
}

// New returns a ledger rooted at root with the "sender" module registered.
func New(root string) *Files {
	if root == "" {
		root = "results"
	}
	return &Files{
		root: root,
		modules: map[string]Paths{
			"sender": {
				Success: filepath.Join(root, "login", "bridge_success.txt"),
				Failed:  filepath.Join(root, "login", "bridge_failed.txt"),
			},
		},
	}
}

// Register adds or replaces a module's file pair.
func (f *Files) Register(module string, p Paths) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.modules[module] = p
}

// Setup creates the directory layout and touches every module file.
func (f *Files) Setup() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.MkdirAll(f.root, 0o755); err != nil {
		return err
	}
	for _, p := range f.modules {
		for _, path := range []string{p.Success, p.Failed} {
			if err := touch(path); err != nil {
				return err
			}
		}
	}
	return nil
}

// Export appends key+"\n" to the module's success or failure file.
func (f *Files) Export(key string, success bool, module string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.modules[module]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownModule, module)
	}
	path := p.Failed
	if success {
		path = p.Success
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ledger: %w", err)
	}
	fh, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("ledger: %w", err)
	}
	if _, err := fh.WriteString(key + "\n"); err != nil {
		_ = fh.Close()
		return fmt.Errorf("ledger: write %s: %w", path, err)
	}
	return fh.Close()
}

// Modules lists registered module names in sorted order.
func (f *Files) Modules() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.modules))
	for m := range f.modules {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

func touch(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	fh, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	return fh.Close()
}
