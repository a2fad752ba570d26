// Package environment provides the shared template environment behind a
// page writer: a search-path template loader, a single namespace of
// globals, functions and filters, and a parse cache.
//
// Registration is only possible until Seal is called. After that the
// environment is read-only and Render may be called concurrently.
package environment

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"text/template/parse"
)

// Config configures an Environment.
type Config struct {
	// SearchPaths are the directories templates are loaded from, in
	// lookup order.
	SearchPaths []string

	// NoCache parses templates from disk on every render.
	NoCache bool

	// Watch clears the parse cache whenever a file below a search path
	// changes.
	Watch bool

	Logger *slog.Logger
}

// Environment is a configured, reusable template rendering context.
type Environment struct {
	logger  *slog.Logger
	loader  *Loader
	noCache bool
	watcher *watcher

	// Guarded by mu.
	funcs  template.FuncMap
	kinds  map[string]string
	delims [2]string
	opts   []string
	sealed bool
	cache  map[string]*template.Template
	gen    uint64
	mu     sync.RWMutex
}

// New creates an Environment. The built-in helpers are registered before it
// is returned.
func New(config Config) (*Environment, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	env := &Environment{
		logger:  logger,
		loader:  NewLoader(config.SearchPaths...),
		noCache: config.NoCache,
		funcs:   template.FuncMap{},
		kinds:   map[string]string{},
		cache:   map[string]*template.Template{},
	}
	for name, fn := range builtinFuncs() {
		env.funcs[name] = fn
		env.kinds[name] = "builtin"
	}

	if config.Watch {
		w, err := newWatcher(logger, config.SearchPaths, env.invalidate)
		if err != nil {
			return nil, fmt.Errorf("failed to watch template directories: %w", err)
		}
		env.watcher = w
	}

	return env, nil
}

// AddGlobal registers a named value. A func value is registered as a
// callable; anything else is exposed as a zero-argument function returning
// the value, so {{ name }} prints it.
func (e *Environment) AddGlobal(name string, value any) error {
	if isFunc(value) {
		return e.register("global", name, value)
	}
	return e.register("global", name, constant(value))
}

// AddFunction registers a named callable. Globals and functions share one
// namespace; the later registration wins.
func (e *Environment) AddFunction(name string, fn any) error {
	return e.register("function", name, fn)
}

// AddFilter registers a named filter, used as {{ .value | name }}. Filters
// share the namespace of globals and functions; the later registration wins.
func (e *Environment) AddFilter(name string, fn any) error {
	return e.register("filter", name, fn)
}

func (e *Environment) register(kind, name string, fn any) error {
	if !ValidName(name) {
		return fmt.Errorf("%w: %s %q", ErrInvalidName, kind, name)
	}
	if err := CheckFunc(fn); err != nil {
		return fmt.Errorf("%s %q: %w", kind, name, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sealed {
		return fmt.Errorf("%w: cannot add %s %q", ErrSealed, kind, name)
	}
	if prev, ok := e.kinds[name]; ok {
		e.logger.Debug("Overriding template name", "name", name, "previous", prev, "kind", kind)
	}
	e.funcs[name] = fn
	e.kinds[name] = kind
	e.resetCache()
	return nil
}

// SetDelims changes the action delimiters used when parsing templates.
// Empty values restore the defaults.
func (e *Environment) SetDelims(left, right string) error {
	if left != "" && left == right {
		return fmt.Errorf("left and right delimiters must differ: %q", left)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sealed {
		return fmt.Errorf("%w: cannot change delimiters", ErrSealed)
	}
	e.delims = [2]string{left, right}
	e.resetCache()
	return nil
}

// SetOptions sets html/template options, such as "missingkey=error".
func (e *Environment) SetOptions(opts ...string) error {
	for _, opt := range opts {
		switch opt {
		case "missingkey=default", "missingkey=invalid", "missingkey=zero", "missingkey=error":
		default:
			return fmt.Errorf("unrecognized template option %q", opt)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sealed {
		return fmt.Errorf("%w: cannot change options", ErrSealed)
	}
	e.opts = append(e.opts, opts...)
	e.resetCache()
	return nil
}

// Seal makes the environment read-only. Registration methods return
// ErrSealed afterwards.
func (e *Environment) Seal() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sealed = true
}

// Sealed reports whether Seal has been called.
func (e *Environment) Sealed() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sealed
}

// Has reports whether name is registered, and as what kind ("builtin",
// "global", "function" or "filter").
func (e *Environment) Has(name string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	kind, ok := e.kinds[name]
	return kind, ok
}

// Loader returns the template loader.
func (e *Environment) Loader() *Loader {
	return e.loader
}

// Render renders the named template with data as its context.
func (e *Environment) Render(name string, data any) (string, error) {
	t, err := e.template(name)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err = t.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", name, err)
	}
	return buf.String(), nil
}

// Close stops watching the search paths, if enabled.
func (e *Environment) Close() error {
	if e.watcher == nil {
		return nil
	}
	return e.watcher.stop()
}

func (e *Environment) template(name string) (*template.Template, error) {
	if !e.noCache {
		e.mu.RLock()
		t, ok := e.cache[name]
		e.mu.RUnlock()
		if ok {
			return t, nil
		}
	}

	e.mu.RLock()
	gen := e.gen
	t, err := e.parse(name)
	e.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	if !e.noCache {
		e.mu.Lock()
		// Another render may have parsed it meanwhile; keep the first. A
		// parse that raced with an invalidation is used once, not cached.
		if cached, ok := e.cache[name]; ok {
			t = cached
		} else if gen == e.gen {
			e.cache[name] = t
		}
		e.mu.Unlock()
	}
	return t, nil
}

// parse loads name and every template it references that it does not
// define itself. A reference with no file of that name may still be
// defined by a file loaded later, so it is only an error once the whole
// set is loaded. The caller must hold mu for reading.
func (e *Environment) parse(name string) (*template.Template, error) {
	root := template.New(name).Funcs(e.funcs).Delims(e.delims[0], e.delims[1])
	if len(e.opts) > 0 {
		root = root.Option(e.opts...)
	}

	loaded := map[string]struct{}{}
	var unresolved []string
	queue := []string{name}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if _, ok := loaded[current]; ok {
			continue
		}
		if current != name && root.Lookup(current) != nil {
			continue
		}

		src, err := e.loader.Load(current)
		if err != nil {
			if current == name {
				return nil, err
			}
			if !errors.Is(err, ErrTemplateNotFound) {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			unresolved = append(unresolved, current)
			continue
		}

		t := root
		if current != name {
			t = root.New(current)
		}
		if _, err = t.Parse(src); err != nil {
			if fn, ok := undefinedFunc(err); ok {
				return nil, fmt.Errorf("%s: %w: %s", current, ErrFilterNotFound, fn)
			}
			return nil, fmt.Errorf("failed to parse %s: %w", current, err)
		}
		loaded[current] = struct{}{}
		e.logger.Debug("Parsed template", "name", current)

		for _, ref := range templateRefs(t) {
			if _, ok := loaded[ref]; !ok {
				queue = append(queue, ref)
			}
		}
	}

	for _, ref := range unresolved {
		if root.Lookup(ref) == nil {
			return nil, fmt.Errorf("%s: %w: %s", name, ErrTemplateNotFound, ref)
		}
	}
	return root, nil
}

// invalidate drops every parsed template.
func (e *Environment) invalidate(path string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.cache) > 0 {
		e.logger.Info("Template changed, clearing cache", "path", path)
	}
	e.resetCache()
}

// resetCache must be called with mu held for writing.
func (e *Environment) resetCache() {
	clear(e.cache)
	e.gen++
}

// templateRefs returns the names invoked with {{template "name"}} from the
// templates associated with t.
func templateRefs(t *template.Template) []string {
	var refs []string
	seen := map[string]struct{}{}
	for _, tmpl := range t.Templates() {
		if tmpl.Tree == nil {
			continue
		}
		walkTemplateNodes(tmpl.Tree.Root, func(n *parse.TemplateNode) {
			if _, ok := seen[n.Name]; !ok {
				seen[n.Name] = struct{}{}
				refs = append(refs, n.Name)
			}
		})
	}
	return refs
}

func walkTemplateNodes(node parse.Node, fn func(*parse.TemplateNode)) {
	switch n := node.(type) {
	case *parse.ListNode:
		if n == nil {
			return
		}
		for _, child := range n.Nodes {
			walkTemplateNodes(child, fn)
		}
	case *parse.IfNode:
		walkTemplateNodes(n.List, fn)
		walkTemplateNodes(n.ElseList, fn)
	case *parse.RangeNode:
		walkTemplateNodes(n.List, fn)
		walkTemplateNodes(n.ElseList, fn)
	case *parse.WithNode:
		walkTemplateNodes(n.List, fn)
		walkTemplateNodes(n.ElseList, fn)
	case *parse.TemplateNode:
		fn(n)
	}
}

func isFunc(v any) bool {
	return v != nil && reflect.TypeOf(v).Kind() == reflect.Func
}

// Describe summarizes the environment for logging.
func (e *Environment) Describe() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	counts := map[string]int{}
	for _, kind := range e.kinds {
		counts[kind]++
	}
	return fmt.Sprintf("paths=%s globals=%d functions=%d filters=%d",
		strings.Join(e.loader.Paths(), ","), counts["global"], counts["function"], counts["filter"])
}
