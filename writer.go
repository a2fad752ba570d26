package pagewriter

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"maps"
	"slices"

	"pagewriter/environment"
	"pagewriter/renderer"
)

// RenderFunc renders one record to a string.
type RenderFunc func(data Data) (string, error)

// WriteFunc persists one record. It is what a WriterFactory returns.
type WriteFunc func(ctx context.Context, data Data) error

// WriterFactory builds the file-writing side of the pipeline. It receives
// Options.WriterOptions unmodified and the render callback to produce each
// file's content; output paths and persistence are entirely its concern.
type WriterFactory func(opts map[string]any, render RenderFunc) (WriteFunc, error)

// Writer renders records with a template environment and hands them to a
// file writer. It is safe for concurrent use.
type Writer struct {
	logger *slog.Logger
	env    *environment.Environment
	view   string
	viewFn func(Data) (string, error)
	write  WriteFunc
}

// New validates opts, builds the template environment and wraps the writer
// produced by newWriter. Registration order is: built-in helpers, the
// markdown filter, Globals, Functions, Filters, then Advanced; a later
// registration replaces an earlier one of the same name.
func New(opts Options, newWriter WriterFactory) (*Writer, error) {
	opts = opts.withDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if newWriter == nil {
		return nil, &ConfigError{Option: "writer", Expected: "a writer factory"}
	}
	logger := opts.Logger

	env, err := environment.New(environment.Config{
		SearchPaths: opts.ViewsDir,
		NoCache:     opts.NoCache,
		Watch:       opts.Watch,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	w := &Writer{
		logger: logger,
		env:    env,
		view:   opts.View,
		viewFn: opts.ViewFunc,
	}
	if err = w.configure(opts); err != nil {
		_ = env.Close()
		return nil, err
	}
	env.Seal()

	w.write, err = newWriter(opts.WriterOptions, w.Render)
	if err != nil {
		_ = env.Close()
		return nil, fmt.Errorf("failed to create file writer: %w", err)
	}
	if w.write == nil {
		_ = env.Close()
		return nil, &ConfigError{Option: "writer", Expected: "a factory returning a write function"}
	}

	logger.Info("Page writer initialized", "environment", env.Describe(), "markdown", !opts.DisableMarkdown)
	return w, nil
}

func (w *Writer) configure(opts Options) error {
	env := w.env

	if !opts.DisableMarkdown {
		mdOpts, err := renderer.DecodeOptions(opts.MarkdownOptions)
		if err != nil {
			return err
		}
		if err = env.AddFilter("markdown", markdownFilter(renderer.NewConverter(mdOpts))); err != nil {
			return err
		}
	}

	for _, name := range slices.Sorted(maps.Keys(opts.Globals)) {
		if err := env.AddGlobal(name, opts.Globals[name]); err != nil {
			return err
		}
	}
	for _, name := range slices.Sorted(maps.Keys(opts.Functions)) {
		if err := env.AddFunction(name, opts.Functions[name]); err != nil {
			return err
		}
	}
	for _, name := range slices.Sorted(maps.Keys(opts.Filters)) {
		if err := env.AddFilter(name, opts.Filters[name]); err != nil {
			return err
		}
	}

	if opts.Advanced != nil {
		return opts.Advanced(env)
	}
	return nil
}

// markdownFilter returns a filter converting its input to pre-escaped HTML.
func markdownFilter(c *renderer.Converter) func(any) (template.HTML, error) {
	return func(v any) (template.HTML, error) {
		var src string
		switch s := v.(type) {
		case nil:
		case string:
			src = s
		case template.HTML:
			src = string(s)
		default:
			src = fmt.Sprint(v)
		}
		html, err := c.Convert(src)
		if err != nil {
			return "", err
		}
		return template.HTML(html), nil
	}
}

// Render selects the view for data and renders it, without writing.
func (w *Writer) Render(data Data) (string, error) {
	view, err := w.resolveView(data)
	if err != nil {
		return "", err
	}
	w.logger.Debug("Rendering template", "view", view)
	return w.env.Render(view, data)
}

// Write renders data and hands it to the file writer. Errors from the
// file writer are returned unchanged.
func (w *Writer) Write(ctx context.Context, data Data) error {
	return w.write(ctx, data)
}

// Environment returns the sealed template environment.
func (w *Writer) Environment() *environment.Environment {
	return w.env
}

// Close releases the environment's file watcher, if any.
func (w *Writer) Close() error {
	return w.env.Close()
}

func (w *Writer) resolveView(data Data) (string, error) {
	if w.viewFn == nil {
		return w.view, nil
	}
	view, err := w.viewFn(data)
	if err != nil {
		return "", fmt.Errorf("failed to select view: %w", err)
	}
	if view == "" {
		return "", ErrNoView
	}
	return view, nil
}
