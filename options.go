package pagewriter

import (
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"slices"

	"pagewriter/environment"
	"pagewriter/renderer"
)

const (
	defaultView     = "main.html"
	defaultViewsDir = "views"
)

// Data is one record handed to a Writer. Every top-level key is available
// in templates as {{ .key }}.
type Data = map[string]any

// Options holds all configuration for New.
type Options struct {
	// View is the template rendered for every record. Defaults to
	// "main.html" when ViewFunc is not set either.
	View string

	// ViewFunc selects the template per record. It may not be combined
	// with View.
	ViewFunc func(data Data) (string, error)

	// ViewsDir lists the template directories, searched in order.
	// Defaults to "views".
	ViewsDir []string

	// Globals are exposed by name in every template. Func values are
	// callable, other values are printed by {{ name }}.
	Globals map[string]any

	// Functions are callables registered after Globals, in the same
	// namespace.
	Functions map[string]any

	// Filters are registered last, for use as {{ .value | name }}. A filter
	// named "markdown" replaces the built-in markdown filter.
	Filters map[string]any

	// Advanced is called once with the environment after all other
	// registrations, for configuration not otherwise exposed.
	Advanced func(env *environment.Environment) error

	// DisableMarkdown leaves the "markdown" filter unregistered.
	DisableMarkdown bool

	// MarkdownOptions override the markdown converter defaults, using
	// showdown option names (see renderer.Options).
	MarkdownOptions map[string]any

	// NoCache re-reads templates from disk on every render.
	NoCache bool

	// Watch clears the template cache when files under ViewsDir change.
	Watch bool

	Logger *slog.Logger

	// WriterOptions are passed unmodified to the writer factory.
	WriterOptions map[string]any
}

// DefaultOptions returns Options with the default views directory. The
// default view is left unset so a ViewFunc can still be supplied; New falls
// back to "main.html" when neither is set.
func DefaultOptions() Options {
	return Options{
		ViewsDir: []string{defaultViewsDir},
	}
}

// withDefaults fills in the view and views directory when unset.
func (o Options) withDefaults() Options {
	if o.View == "" && o.ViewFunc == nil {
		o.View = defaultView
	}
	if len(o.ViewsDir) == 0 {
		o.ViewsDir = []string{defaultViewsDir}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Validate checks the shape of every option, after defaults are applied.
// It returns nil or a *ValidationError listing every problem found.
func (o Options) Validate() error {
	o = o.withDefaults()
	var errs []*ConfigError

	switch {
	case o.View != "" && o.ViewFunc != nil:
		errs = append(errs, &ConfigError{Option: "view", Expected: "a template name or a function, not both"})
	case o.ViewFunc == nil && !fs.ValidPath(o.View):
		errs = append(errs, &ConfigError{Option: "view", Expected: "a relative, slash-separated template name", Err: fmt.Errorf("got %q", o.View)})
	}

	for i, dir := range o.ViewsDir {
		if dir == "" {
			errs = append(errs, &ConfigError{Option: "viewsDir", Expected: "a list of directory names", Err: fmt.Errorf("entry %d is empty", i)})
		}
	}

	for _, name := range slices.Sorted(maps.Keys(o.Globals)) {
		if !environment.ValidName(name) {
			errs = append(errs, &ConfigError{Option: "globals", Expected: "a map keyed by identifiers", Err: fmt.Errorf("%w: %q", environment.ErrInvalidName, name)})
		}
	}
	errs = append(errs, checkFuncs("functions", o.Functions)...)
	errs = append(errs, checkFuncs("filters", o.Filters)...)

	if _, err := renderer.DecodeOptions(o.MarkdownOptions); err != nil {
		errs = append(errs, &ConfigError{Option: "markdownOptions", Expected: "a map of markdown converter options", Err: err})
	}

	if _, ok := o.WriterOptions["renderer"]; ok {
		errs = append(errs, &ConfigError{Option: "writerOptions", Expected: "no 'renderer' entry, it is always supplied by pagewriter"})
	}

	if len(errs) == 0 {
		return nil
	}
	return &ValidationError{Errors: errs}
}

func checkFuncs(option string, funcs map[string]any) []*ConfigError {
	var errs []*ConfigError
	for _, name := range slices.Sorted(maps.Keys(funcs)) {
		if !environment.ValidName(name) {
			errs = append(errs, &ConfigError{Option: option, Expected: "a map of functions keyed by identifiers", Err: fmt.Errorf("%w: %q", environment.ErrInvalidName, name)})
			continue
		}
		if err := environment.CheckFunc(funcs[name]); err != nil {
			errs = append(errs, &ConfigError{Option: option, Expected: "a map of functions", Err: fmt.Errorf("%q: %w", name, err)})
		}
	}
	return errs
}
