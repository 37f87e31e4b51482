package domain

import (
	"fmt"
	"path/filepath"
	"strings"
)

// DescriptorSuffix is the file suffix that marks a plugin descriptor.
const DescriptorSuffix = ".plugin"

// PluginDescriptor describes one external plugin as read from a descriptor
// file. It is created once per scan and never mutated afterwards.
type PluginDescriptor struct {
	// Name is the descriptor file name without the .plugin suffix
	Name string

	// SourcePath is the path of the descriptor file itself
	SourcePath string

	// ExecutablePath is the program to launch; empty means the descriptor
	// cannot be launched
	ExecutablePath string

	// ArgumentLine is the raw argument string from the descriptor
	ArgumentLine string

	// WorkingDirectory is the absolute directory containing the descriptor
	WorkingDirectory string
}

// NewPluginDescriptor builds a descriptor for the descriptor file at
// sourcePath. The working directory is derived from sourcePath.
func NewPluginDescriptor(sourcePath, executable, arguments string) PluginDescriptor {
	dir := filepath.Dir(sourcePath)
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}

	return PluginDescriptor{
		Name:             strings.TrimSuffix(filepath.Base(sourcePath), DescriptorSuffix),
		SourcePath:       sourcePath,
		ExecutablePath:   strings.TrimSpace(executable),
		ArgumentLine:     arguments,
		WorkingDirectory: dir,
	}
}

// Launchable reports whether the descriptor names an executable.
func (d PluginDescriptor) Launchable() bool {
	return d.ExecutablePath != ""
}

// Arguments returns the process arguments. The argument line is passed
// through as a single token; an empty line means no arguments.
func (d PluginDescriptor) Arguments() []string {
	if strings.TrimSpace(d.ArgumentLine) == "" {
		return nil
	}
	return []string{d.ArgumentLine}
}

func (d PluginDescriptor) String() string {
	if d.ArgumentLine == "" {
		return fmt.Sprintf("%s (%s)", d.Name, d.ExecutablePath)
	}
	return fmt.Sprintf("%s (%s %s)", d.Name, d.ExecutablePath, d.ArgumentLine)
}
