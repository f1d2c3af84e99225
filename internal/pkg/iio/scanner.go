// Package iio discovers IIO value endpoints under a sysfs device tree and resolves
// the bus/address of the device that owns them.
package iio

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/anicoll/iio-sensors/internal/pkg/model"
)

const DefaultRoot = "/sys/bus/iio/devices"

// Patterns match value endpoint file names, one per channel kind, in scan order.
var Patterns = []*regexp.Regexp{
	regexp.MustCompile(`^in_temp\d*_(input|raw)$`),
	regexp.MustCompile(`^in_pressure\d*_(input|raw)$`),
	regexp.MustCompile(`^in_humidity\d*_(input|raw)$`),
}

type Scanner struct {
	root         string
	patterns     []*regexp.Regexp
	symlinkDepth int
	logger       *zap.Logger
}

func NewScanner(root string, patterns ...*regexp.Regexp) *Scanner {
	if len(patterns) == 0 {
		patterns = Patterns
	}
	return &Scanner{
		root:         root,
		patterns:     patterns,
		symlinkDepth: 1,
		logger:       zap.L(),
	}
}

// FindFiles returns every regular file below the scanner root whose name matches one of
// the patterns, grouped by pattern order. Symlinked directories are followed up to the
// scanner's symlink depth. A root that does not exist holds no files.
func (s *Scanner) FindFiles() ([]string, error) {
	found := make([][]string, len(s.patterns))
	visited := map[string]struct{}{}
	if err := s.walk(s.root, 0, visited, found); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Debug("iio root does not exist", zap.String("path", s.root))
			return nil, nil
		}
		return nil, err
	}
	var paths []string
	for _, group := range found {
		slices.Sort(group)
		paths = append(paths, group...)
	}
	return paths, nil
}

func (s *Scanner) walk(dir string, depth int, visited map[string]struct{}, found [][]string) error {
	canonical, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return err
	}
	if _, seen := visited[canonical]; seen {
		return nil
	}
	visited[canonical] = struct{}{}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		switch {
		case entry.IsDir():
			if err := s.walk(path, depth, visited, found); err != nil {
				s.logger.Debug("skipping unreadable directory", zap.String("path", path), zap.Error(err))
			}
		case entry.Type()&os.ModeSymlink != 0:
			info, err := os.Stat(path)
			if err != nil {
				continue
			}
			if info.IsDir() {
				if depth >= s.symlinkDepth {
					continue
				}
				if err := s.walk(path, depth+1, visited, found); err != nil {
					s.logger.Debug("skipping unreadable directory", zap.String("path", path), zap.Error(err))
				}
				continue
			}
			if info.Mode().IsRegular() {
				s.match(path, found)
			}
		case entry.Type().IsRegular():
			s.match(path, found)
		}
	}
	return nil
}

func (s *Scanner) match(path string, found [][]string) {
	name := filepath.Base(path)
	for i, re := range s.patterns {
		if re.MatchString(name) {
			found[i] = append(found[i], path)
			return
		}
	}
}

// KindFromPath infers the channel kind from the endpoint path. The path is ground truth
// for what physically exists.
func KindFromPath(path string) model.Kind {
	switch {
	case strings.Contains(path, "pressure"):
		return model.KindPressure
	case strings.Contains(path, "humidity"):
		return model.KindHumidity
	default:
		return model.KindTemperature
	}
}

// ChannelLabel strips the in_ prefix and _input/_raw suffix from an endpoint file name,
// e.g. in_temp1_input -> temp1.
func ChannelLabel(path string) string {
	label := strings.TrimPrefix(filepath.Base(path), "in_")
	for _, suffix := range []string{"_input", "_raw"} {
		if trimmed, ok := strings.CutSuffix(label, suffix); ok {
			return trimmed
		}
	}
	return label
}
