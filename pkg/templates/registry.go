package templates

import (
	"bytes"
	"embed"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"text/template"

	"agora/pkg/errors"
)

const ext = ".tmpl"

//go:embed assets/**/*.tmpl
var embeddedFS embed.FS

// Template is one parsed prompt. Its ID is the slash path below the registry
// root without the extension, e.g. "workflow/intent".
type Template struct {
	ID      string
	Path    string
	Content string

	parsed *template.Template
}

// Render executes the prompt. Missing map keys fail instead of rendering "<no value>".
func (t *Template) Render(data any) (string, error) {
	var buf bytes.Buffer
	if err := t.parsed.Execute(&buf, data); err != nil {
		return "", errors.Wrapf(err, "render template %s", t.ID)
	}
	return buf.String(), nil
}

// Registry resolves prompts by ID. It is safe for concurrent use.
type Registry struct {
	fs fs.FS

	mu        sync.RWMutex
	templates map[string]*Template
}

// NewRegistry parses every *.tmpl below dir. Used to override the compiled-in prompts.
func NewRegistry(dir string) (*Registry, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.Wrap(err, "resolve template base path")
	}
	return NewRegistryFromFS(os.DirFS(abs))
}

// NewRegistryFromFS parses every *.tmpl in fsys.
func NewRegistryFromFS(fsys fs.FS) (*Registry, error) {
	r := &Registry{fs: fsys, templates: map[string]*Template{}}

	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || path.Ext(p) != ext {
			return err
		}
		return r.load(p)
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
	defaultErr      error
)

// Get returns the registry of the prompts compiled into the binary. The embedded
// set is fixed at build time, so a parse failure panics.
func Get() *Registry {
	defaultOnce.Do(func() {
		sub, err := fs.Sub(embeddedFS, "assets")
		if err != nil {
			defaultErr = errors.Wrap(err, "prepare embedded templates")
			return
		}
		defaultRegistry, defaultErr = NewRegistryFromFS(sub)
	})
	if defaultErr != nil {
		panic(defaultErr)
	}
	return defaultRegistry
}

// GetTemplate returns the prompt with the given ID. A file created on disk after
// the registry was built is loaded on first request.
func (r *Registry) GetTemplate(id string) (*Template, error) {
	r.mu.RLock()
	tmpl, ok := r.templates[id]
	r.mu.RUnlock()
	if ok {
		return tmpl, nil
	}

	p := id + ext
	if _, err := fs.Stat(r.fs, p); err != nil {
		return nil, errors.Wrapf(errors.ErrNotFound, "template %s", id)
	}
	if err := r.load(p); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.templates[id], nil
}

// Render looks up id and executes it with data.
func (r *Registry) Render(id string, data any) (string, error) {
	tmpl, err := r.GetTemplate(id)
	if err != nil {
		return "", err
	}
	return tmpl.Render(data)
}

// Require fails with ErrNotFound naming every missing ID.
func (r *Registry) Require(ids ...string) error {
	var missing []string
	for _, id := range ids {
		if _, err := r.GetTemplate(id); err != nil {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return errors.Wrapf(errors.ErrNotFound, "templates %s", strings.Join(missing, ", "))
	}
	return nil
}

// List returns the loaded IDs, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.templates))
	for id := range r.templates {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Registry) load(p string) error {
	id := strings.TrimSuffix(strings.TrimPrefix(p, "/"), ext)

	content, err := fs.ReadFile(r.fs, p)
	if err != nil {
		return errors.Wrapf(err, "read template %s", id)
	}
	parsed, err := template.New(id).Funcs(Funcs).Option("missingkey=error").Parse(string(content))
	if err != nil {
		return errors.Wrapf(err, "parse template %s", id)
	}

	r.mu.Lock()
	r.templates[id] = &Template{ID: id, Path: p, Content: string(content), parsed: parsed}
	r.mu.Unlock()
	return nil
}
