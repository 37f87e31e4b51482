package descriptor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"
	"gopkg.in/ini.v1"

	"plughost.dev/cli/internal/core/domain"
)

// Descriptor file layout.
const (
	SectionPlugin  = "Plugin"
	KeyExecutable  = "Executable"
	KeyArguments   = "Arguments"
	pluginsDirName = "plugins"
	appDirName     = "plughost"
)

// ErrMissingExecutable marks a descriptor without an Executable key.
var ErrMissingExecutable = errors.New("descriptor has no executable")

// DescriptorParseError reports a descriptor file that could not be read.
type DescriptorParseError struct {
	Path string
	Err  error
}

func (e *DescriptorParseError) Error() string {
	return fmt.Sprintf("descriptor %s: %v", e.Path, e.Err)
}

func (e *DescriptorParseError) Unwrap() error {
	return e.Err
}

// Loader finds and reads plugin descriptor files.
type Loader struct {
	logger hclog.Logger
}

// NewLoader creates a descriptor loader.
func NewLoader(logger hclog.Logger) *Loader {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Loader{logger: logger.Named("descriptor")}
}

// Scan lazily walks root and yields one descriptor per .plugin file,
// recursing into subdirectories. A file that cannot be parsed yields a
// *DescriptorParseError and the walk continues. A missing root yields
// nothing.
func (l *Loader) Scan(ctx context.Context, root string) iter.Seq2[domain.PluginDescriptor, error] {
	return func(yield func(domain.PluginDescriptor, error) bool) {
		info, err := os.Stat(root)
		if err != nil || !info.IsDir() {
			l.logger.Warn("plugin directory not found", "dir", root)
			return
		}

		l.logger.Info("scanning plugin directory", "dir", root)

		stop := errors.New("stop")
		walkErr := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				l.logger.Debug("skipping unreadable path", "path", path, "error", err)
				return nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if entry.IsDir() || !IsDescriptorFile(path) {
				return nil
			}

			l.logger.Debug("plugin descriptor found", "path", path)
			desc, err := l.Load(path)
			if !yield(desc, err) {
				return stop
			}
			return nil
		})

		if walkErr != nil && !errors.Is(walkErr, stop) {
			l.logger.Debug("plugin scan stopped", "dir", root, "error", walkErr)
		}
	}
}

// Load reads a single descriptor file. A descriptor without an executable
// is returned without error; the supervisor refuses to launch it.
func (l *Loader) Load(path string) (domain.PluginDescriptor, error) {
	cfg, err := ini.LoadSources(ini.LoadOptions{
		Insensitive:         false,
		IgnoreInlineComment: true,
		AllowBooleanKeys:    true,
	}, path)
	if err != nil {
		l.logger.Warn("cannot parse plugin descriptor", "path", path, "error", err)
		return domain.PluginDescriptor{}, &DescriptorParseError{Path: path, Err: err}
	}

	section := cfg.Section(SectionPlugin)
	desc := domain.NewPluginDescriptor(path,
		section.Key(KeyExecutable).String(),
		section.Key(KeyArguments).String())

	if !desc.Launchable() {
		l.logger.Warn("plugin descriptor has no executable", "path", path,
			"error", &DescriptorParseError{Path: path, Err: ErrMissingExecutable})
	}
	return desc, nil
}

// Collect drains a scan into descriptors and parse errors.
func (l *Loader) Collect(ctx context.Context, root string) ([]domain.PluginDescriptor, []error) {
	var (
		descs []domain.PluginDescriptor
		errs  []error
	)
	for desc, err := range l.Scan(ctx, root) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		descs = append(descs, desc)
	}
	return descs, errs
}

// IsDescriptorFile reports whether path has the descriptor suffix.
func IsDescriptorFile(path string) bool {
	return strings.HasSuffix(path, domain.DescriptorSuffix)
}

// DefaultPluginDirs returns the candidate plugin directories for an
// application installed in exeDir, in search order.
func DefaultPluginDirs(exeDir string) []string {
	return []string{
		filepath.Join(exeDir, "..", "share", appDirName, pluginsDirName),
		filepath.Join(exeDir, "..", "..", "share", appDirName, pluginsDirName),
		filepath.Join(exeDir, "..", "..", pluginsDirName),
		filepath.Join(exeDir, pluginsDirName),
	}
}

// ResolvePluginDir returns the first existing directory among candidates.
func ResolvePluginDir(candidates []string) (string, bool) {
	for _, dir := range candidates {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return filepath.Clean(dir), true
		}
	}
	return "", false
}
