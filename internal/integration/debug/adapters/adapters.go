// Package adapters describes the debug adapters debugstate knows how to
// start without explicit configuration.
package adapters

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

// Preset is a known debug adapter.
type Preset struct {
	// Name selects the preset and is sent as the adapter ID.
	Name string

	// Description is a human-readable adapter name.
	Description string

	// Command starts the adapter speaking DAP over stdio.
	Command []string

	// Mode is the default launch mode. Empty means the adapter has none.
	Mode string

	// Extensions are the source file extensions the adapter debugs.
	Extensions []string
}

var presets = map[string]Preset{
	"go": {
		Name:        "go",
		Description: "Go debugger (delve)",
		Command:     []string{"dlv", "dap"},
		Mode:        "debug",
		Extensions:  []string{".go"},
	},
	"python": {
		Name:        "python",
		Description: "Python debugger (debugpy)",
		Command:     []string{"python3", "-m", "debugpy.adapter"},
		Extensions:  []string{".py"},
	},
	"lldb": {
		Name:        "lldb",
		Description: "LLDB debugger for C, C++ and Rust (lldb-dap)",
		Command:     []string{"lldb-dap"},
		Extensions:  []string{".c", ".cc", ".cpp", ".rs"},
	},
}

// Lookup returns the preset with the given name.
func Lookup(name string) (Preset, bool) {
	p, ok := presets[strings.ToLower(name)]
	return p, ok
}

// Detect returns the preset for a program based on its file extension.
// Programs without a known extension, such as compiled binaries or Go
// package directories, are not detected.
func Detect(program string) (Preset, bool) {
	ext := strings.ToLower(filepath.Ext(program))
	if ext == "" {
		return Preset{}, false
	}
	for _, p := range presets {
		for _, e := range p.Extensions {
			if e == ext {
				return p, true
			}
		}
	}
	return Preset{}, false
}

// Names returns the preset names in sorted order.
func Names() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve returns the preset command with the executable resolved in PATH.
func (p Preset) Resolve() ([]string, error) {
	if len(p.Command) == 0 {
		return nil, fmt.Errorf("adapter %s has no command", p.Name)
	}
	path, err := FindExecutable(p.Command[0])
	if err != nil {
		return nil, fmt.Errorf("adapter %s: %w", p.Name, err)
	}
	return append([]string{path}, p.Command[1:]...), nil
}

// FindExecutable searches for an executable in PATH.
func FindExecutable(name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%s not found in PATH: %w", name, err)
	}
	return path, nil
}
