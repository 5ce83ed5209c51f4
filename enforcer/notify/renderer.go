package notify

import (
	"bytes"
	"embed"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"

	"github.com/bluesky-social/marshal/enforcer/action"

	"github.com/flosch/pongo2/v6"
)

// all: keeps the _-prefixed partials, which go:embed skips otherwise
//
//go:embed all:templates
var TemplateFS embed.FS

// RendererLoader loads pongo2 templates out of a filesystem. Template names are always relative to
// the filesystem root, including in include tags.
type RendererLoader struct {
	fsys fs.FS
}

func (l *RendererLoader) Abs(base, name string) string {
	return strings.TrimPrefix(path.Clean(name), "/")
}

func (l *RendererLoader) Get(name string) (io.Reader, error) {
	b, err := fs.ReadFile(l.fsys, name)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(b), nil
}

type Renderer struct {
	fsys fs.FS
	set  *pongo2.TemplateSet
}

// NewRenderer renders templates from fsys. If debug is set, templates are re-read on every render.
func NewRenderer(fsys fs.FS, debug bool) *Renderer {
	set := pongo2.NewSet("notify", &RendererLoader{fsys: fsys})
	set.Debug = debug
	return &Renderer{fsys: fsys, set: set}
}

// DefaultRenderer renders the templates built into the binary.
func DefaultRenderer() *Renderer {
	fsys, err := fs.Sub(TemplateFS, "templates")
	if err != nil {
		panic(err)
	}
	return NewRenderer(fsys, false)
}

func (r *Renderer) Exists(name string) bool {
	_, err := fs.Stat(r.fsys, name)
	return err == nil
}

// resolve prefers the translation of name in dir, if there is one.
func (r *Renderer) resolve(dir, name string) string {
	if dir != "" {
		localized := path.Join(dir, name)
		if r.Exists(localized) {
			return localized
		}
	}
	return name
}

// Compile parses a template, reporting missing templates and syntax errors as configuration errors.
func (r *Renderer) Compile(name string) (*pongo2.Template, error) {
	if !r.Exists(name) {
		return nil, &action.ConfigurationError{Reason: fmt.Sprintf("template %s does not exist", name)}
	}
	tpl, err := r.set.FromCache(name)
	if err != nil {
		return nil, &action.ConfigurationError{Reason: fmt.Sprintf("template %s: %v", name, err)}
	}
	return tpl, nil
}

// Render executes template name, or its translation under dir.
func (r *Renderer) Render(dir, name string, data pongo2.Context) (string, error) {
	name = r.resolve(dir, name)
	tpl, err := r.Compile(name)
	if err != nil {
		return "", err
	}
	out, err := tpl.Execute(data)
	if err != nil {
		return "", &action.ConfigurationError{Reason: fmt.Sprintf("rendering %s: %v", name, err)}
	}
	return strings.TrimSpace(out) + "\n", nil
}
