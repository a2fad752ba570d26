package pagewriter

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"pagewriter/environment"
)

// captureWriter stands in for the file-writer collaborator. It records the
// options it was built with and every rendered page.
type captureWriter struct {
	mu    sync.Mutex
	opts  map[string]any
	pages []string
	err   error
}

func (c *captureWriter) factory(opts map[string]any, render RenderFunc) (WriteFunc, error) {
	c.opts = opts
	return func(_ context.Context, data Data) error {
		out, err := render(data)
		if err != nil {
			return err
		}
		if c.err != nil {
			return c.err
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		c.pages = append(c.pages, out)
		return nil
	}, nil
}

func (c *captureWriter) written() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.pages...)
}

// testOptions returns DefaultOptions pointed at the test views, with
// logging discarded.
func testOptions() Options {
	opts := DefaultOptions()
	opts.ViewsDir = []string{filepath.Join("testdata", "views")}
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return opts
}

// writeOne builds a Writer from opts, writes data once and returns the page.
func writeOne(t *testing.T, opts Options, data Data) string {
	t.Helper()

	capture := &captureWriter{}
	w, err := New(opts, capture.factory)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	require.NoError(t, w.Write(context.Background(), data))
	pages := capture.written()
	require.Len(t, pages, 1)
	return pages[0]
}

func TestNew_DefaultOptions(t *testing.T) {
	t.Chdir("testdata")

	capture := &captureWriter{}
	opts := DefaultOptions()
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	w, err := New(opts, capture.factory)
	require.NoError(t, err)
	require.NotNil(t, w)

	require.NoError(t, w.Write(context.Background(), Data{"body": "foo"}))
	assert.Equal(t, []string{"hello world!<p>foo</p>"}, capture.written())
}

func TestNew_ZeroOptionsUseDefaultView(t *testing.T) {
	t.Chdir("testdata")

	w, err := New(Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}, (&captureWriter{}).factory)
	require.NoError(t, err)

	out, err := w.Render(Data{"body": "foo"})
	require.NoError(t, err)
	assert.Equal(t, "hello world!<p>foo</p>", out)
	_, ok := w.Environment().Has("markdown")
	assert.True(t, ok)
}

func TestWrite_SimpleTemplate(t *testing.T) {
	assert.Equal(t, "hello world!<p>foo</p>", writeOne(t, testOptions(), Data{"body": "foo"}))
}

func TestWrite_MultipleViewsDirs(t *testing.T) {
	opts := testOptions()
	opts.View = "userview.html"
	opts.ViewsDir = []string{filepath.Join("testdata", "userViews1"), filepath.Join("testdata", "userViews2")}
	assert.Equal(t, "__*<p>foo</p>*__", writeOne(t, opts, Data{"body": "foo"}))

	opts.View = "shared.html"
	assert.Equal(t, "first", writeOne(t, opts, Data{}), "the first search path wins")
}

func TestWrite_Globals(t *testing.T) {
	opts := testOptions()
	opts.View = "globals.test.html"
	opts.Globals = map[string]any{"globalValue": "foo bar"}
	assert.Equal(t, "foo bar", writeOne(t, opts, Data{"body": "foo"}))
}

func TestWrite_Functions(t *testing.T) {
	opts := testOptions()
	opts.View = "functions.test.html"
	opts.Functions = map[string]any{"myfn": func(x any) any { return x }}
	assert.Equal(t, "foo bar", writeOne(t, opts, Data{"body": "foo bar"}))

	opts.View = "functions-opts.test.html"
	opts.Functions = map[string]any{
		"myfn_safe": func(x string) template.HTML { return template.HTML(x) },
		"myfn":      func(x any) any { return x },
	}
	assert.Equal(t, "&lt;foo&gt;<foo>", writeOne(t, opts, Data{"body": "<foo>"}))
}

func TestWrite_Filters(t *testing.T) {
	opts := testOptions()
	opts.View = "filters.test.html"
	opts.Filters = map[string]any{"myfn": func(x any) any { return x }}
	assert.Equal(t, "foo bar", writeOne(t, opts, Data{"body": "foo bar"}))

	opts.View = "filters-opts.test.html"
	opts.Filters = map[string]any{
		"myfn_safe": func(x string) template.HTML { return template.HTML(x) },
		"myfn":      func(x any) any { return x },
	}
	assert.Equal(t, "&lt;foo&gt;<foo>", writeOne(t, opts, Data{"body": "<foo>"}))
}

func TestWrite_FilterOverridesMarkdown(t *testing.T) {
	opts := testOptions()
	opts.Filters = map[string]any{"markdown": func(s string) string { return "[" + s + "]" }}
	assert.Equal(t, "hello world![foo]", writeOne(t, opts, Data{"body": "foo"}))
}

func TestWrite_GlobalsVersusFunctions(t *testing.T) {
	opts := testOptions()
	opts.View = "precedence.html"
	opts.Globals = map[string]any{"v": "a"}
	opts.Functions = map[string]any{"v": func() string { return "b" }}
	assert.Equal(t, "b", writeOne(t, opts, Data{}))
}

func TestWrite_Advanced(t *testing.T) {
	opts := testOptions()
	opts.View = "globals.test.html"
	calls := 0
	opts.Advanced = func(env *environment.Environment) error {
		calls++
		return env.AddGlobal("globalValue", "foo bar")
	}
	assert.Equal(t, "foo bar", writeOne(t, opts, Data{}))
	assert.Equal(t, 1, calls)
}

func TestWrite_MarkdownDisabled(t *testing.T) {
	opts := testOptions()
	opts.DisableMarkdown = true

	w, err := New(opts, (&captureWriter{}).factory)
	require.NoError(t, err)

	err = w.Write(context.Background(), Data{"body": "foo"})
	require.ErrorIs(t, err, environment.ErrFilterNotFound)
	assert.Contains(t, err.Error(), "filter not found: markdown")
}

func TestWrite_MarkdownOptions(t *testing.T) {
	opts := testOptions()
	opts.View = "showdown.html"
	opts.MarkdownOptions = map[string]any{"headerLevelStart": 2}
	assert.Equal(t, `<h2 id="foo">foo</h2>`, writeOne(t, opts, Data{"body": "# foo"}))
}

func TestWrite_ViewFunc(t *testing.T) {
	opts := testOptions()
	var seen []Data
	opts.ViewFunc = func(data Data) (string, error) {
		seen = append(seen, data)
		return fmt.Sprintf("%v.html", data["type"]), nil
	}

	data := Data{"type": "post", "body": "x"}
	assert.Equal(t, "<article>x</article>", writeOne(t, opts, data))
	require.Len(t, seen, 1)
	assert.Equal(t, data, seen[0])
}

func TestRender_ViewErrors(t *testing.T) {
	opts := testOptions()
	boom := errors.New("boom")
	opts.ViewFunc = func(data Data) (string, error) {
		switch data["type"] {
		case "fail":
			return "", boom
		case "none":
			return "", nil
		}
		return "missing.html", nil
	}
	w, err := New(opts, (&captureWriter{}).factory)
	require.NoError(t, err)

	_, err = w.Render(Data{"type": "fail"})
	require.ErrorIs(t, err, boom)

	_, err = w.Render(Data{"type": "none"})
	require.ErrorIs(t, err, ErrNoView)

	_, err = w.Render(Data{})
	require.ErrorIs(t, err, environment.ErrTemplateNotFound)
}

func TestRender_Idempotent(t *testing.T) {
	w, err := New(testOptions(), (&captureWriter{}).factory)
	require.NoError(t, err)

	data := Data{"body": "# Title\n\nsome *text*"}
	first, err := w.Render(data)
	require.NoError(t, err)
	second, err := w.Render(data)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestWrite_Concurrent(t *testing.T) {
	capture := &captureWriter{}
	w, err := New(testOptions(), capture.factory)
	require.NoError(t, err)

	g, ctx := errgroup.WithContext(context.Background())
	for i := range 32 {
		g.Go(func() error {
			return w.Write(ctx, Data{"body": fmt.Sprintf("page %d", i%4)})
		})
	}
	require.NoError(t, g.Wait())

	pages := capture.written()
	require.Len(t, pages, 32)
	for _, page := range pages {
		assert.Regexp(t, `^hello world!<p>page [0-3]</p>$`, page)
	}
}

func TestWrite_WriterErrorPassesThrough(t *testing.T) {
	errDisk := errors.New("disk full")
	capture := &captureWriter{err: errDisk}
	w, err := New(testOptions(), capture.factory)
	require.NoError(t, err)

	err = w.Write(context.Background(), Data{"body": "foo"})
	assert.Same(t, errDisk, err)
}

func TestNew_WriterOptionsPassThrough(t *testing.T) {
	opts := testOptions()
	opts.WriterOptions = map[string]any{"outDir": "dist", "outFile": func(Data) string { return "x.html" }}

	capture := &captureWriter{}
	_, err := New(opts, capture.factory)
	require.NoError(t, err)
	assert.Equal(t, "dist", capture.opts["outDir"])
	assert.Contains(t, capture.opts, "outFile")
	assert.Len(t, capture.opts, 2)
}

func TestNew_SealsEnvironment(t *testing.T) {
	opts := testOptions()
	var captured *environment.Environment
	opts.Advanced = func(env *environment.Environment) error {
		captured = env
		return nil
	}

	w, err := New(opts, (&captureWriter{}).factory)
	require.NoError(t, err)
	require.NotNil(t, captured)
	assert.Same(t, captured, w.Environment())
	assert.True(t, captured.Sealed())
	require.ErrorIs(t, captured.AddGlobal("late", 1), environment.ErrSealed)
	require.ErrorIs(t, captured.AddFilter("late", func(s string) string { return s }), environment.ErrSealed)
}

func TestNew_ConstructionErrors(t *testing.T) {
	t.Run("Advanced", func(t *testing.T) {
		errHook := errors.New("hook failed")
		opts := testOptions()
		opts.Advanced = func(*environment.Environment) error { return errHook }
		w, err := New(opts, (&captureWriter{}).factory)
		assert.Nil(t, w)
		assert.Same(t, errHook, err)
	})

	t.Run("AdvancedRegistration", func(t *testing.T) {
		opts := testOptions()
		opts.Advanced = func(env *environment.Environment) error {
			return env.AddFilter("bad-name", func(s string) string { return s })
		}
		_, err := New(opts, (&captureWriter{}).factory)
		require.ErrorIs(t, err, environment.ErrInvalidName)
	})

	t.Run("WriterFactory", func(t *testing.T) {
		errFactory := errors.New("no output dir")
		_, err := New(testOptions(), func(map[string]any, RenderFunc) (WriteFunc, error) { return nil, errFactory })
		require.ErrorIs(t, err, errFactory)
	})

	t.Run("NilWriterFactory", func(t *testing.T) {
		_, err := New(testOptions(), nil)
		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "writer", cfgErr.Option)
	})

	t.Run("NilWriteFunc", func(t *testing.T) {
		_, err := New(testOptions(), func(map[string]any, RenderFunc) (WriteFunc, error) { return nil, nil })
		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "writer", cfgErr.Option)
	})
}
