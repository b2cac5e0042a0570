package resolver

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/artpar/recordgate/core/schema"
)

// Source is a located schema document for a module.
type Source struct {
	Module string
	Origin string
	Format schema.Format
	Data   []byte
}

// Locator finds the schema document for a module name.
// A missing document is reported as ok == false with a nil error.
type Locator interface {
	Locate(ctx context.Context, module string) (src Source, ok bool, err error)
}

// DirLocator looks for <leaf><ext> in a directory, where leaf is the last
// dotted component of the module name and ext follows schema.Extensions.
type DirLocator struct {
	Dir string
}

// Locate implements Locator.
func (l DirLocator) Locate(ctx context.Context, module string) (Source, bool, error) {
	leaf := Leaf(module)
	for _, ext := range schema.Extensions {
		if err := ctx.Err(); err != nil {
			return Source{}, false, err
		}

		path := filepath.Join(l.Dir, leaf+ext)
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return Source{}, false, fmt.Errorf("read %s: %w", path, err)
		}

		format, _ := schema.FormatFromPath(path)
		return Source{Module: module, Origin: path, Format: format, Data: data}, true, nil
	}
	return Source{}, false, nil
}

func (l DirLocator) String() string {
	return "dir:" + l.Dir
}

// Leaf returns the last dotted component of a module name.
func Leaf(module string) string {
	if i := strings.LastIndexByte(module, '.'); i >= 0 {
		return module[i+1:]
	}
	return module
}

// ValidModuleName reports whether name is a dotted sequence of identifiers.
func ValidModuleName(name string) bool {
	if name == "" {
		return false
	}
	for _, part := range strings.Split(name, ".") {
		if !isIdentifier(part) {
			return false
		}
	}
	return true
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case i > 0 && c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return true
}
