package pagewriter

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagewriter/environment"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Options)
		options []string
	}{
		{
			name:   "defaults",
			modify: func(*Options) {},
		},
		{
			name:   "zero value",
			modify: func(o *Options) { *o = Options{} },
		},
		{
			name: "view func over default view",
			modify: func(o *Options) {
				o.ViewFunc = func(Data) (string, error) { return "x.html", nil }
			},
		},
		{
			name: "view and view func",
			modify: func(o *Options) {
				o.View = "main.html"
				o.ViewFunc = func(Data) (string, error) { return "x.html", nil }
			},
			options: []string{"view"},
		},
		{
			name:    "escaping view",
			modify:  func(o *Options) { o.View = "../main.html" },
			options: []string{"view"},
		},
		{
			name:    "empty views dir entry",
			modify:  func(o *Options) { o.ViewsDir = []string{"views", ""} },
			options: []string{"viewsDir"},
		},
		{
			name:    "global name",
			modify:  func(o *Options) { o.Globals = map[string]any{"not valid": 1} },
			options: []string{"globals"},
		},
		{
			name:    "function value",
			modify:  func(o *Options) { o.Functions = map[string]any{"fn": "not a function"} },
			options: []string{"functions"},
		},
		{
			name: "filter signature",
			modify: func(o *Options) {
				o.Filters = map[string]any{"f": func(string) (string, string) { return "", "" }}
			},
			options: []string{"filters"},
		},
		{
			name:    "markdown options",
			modify:  func(o *Options) { o.MarkdownOptions = map[string]any{"tables": "yes"} },
			options: []string{"markdownOptions"},
		},
		{
			name:    "writer renderer",
			modify:  func(o *Options) { o.WriterOptions = map[string]any{"renderer": "mine"} },
			options: []string{"writerOptions"},
		},
		{
			name: "several",
			modify: func(o *Options) {
				o.ViewsDir = []string{""}
				o.Functions = map[string]any{"a": 1, "b-c": func() string { return "" }}
				o.WriterOptions = map[string]any{"renderer": nil}
			},
			options: []string{"viewsDir", "functions", "functions", "writerOptions"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.modify(&opts)

			err := opts.Validate()
			if tt.options == nil {
				require.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.options, verr.Options())
		})
	}
}

func TestValidate_ErrorChain(t *testing.T) {
	opts := DefaultOptions()
	opts.Functions = map[string]any{"bad name": func() string { return "" }}
	opts.Filters = map[string]any{"f": 42}

	err := opts.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, environment.ErrInvalidName)
	assert.ErrorIs(t, err, environment.ErrNotFunc)

	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "functions", cfgErr.Option)
	assert.Contains(t, err.Error(), "pagewriter: 'functions' option expects")
	assert.Contains(t, err.Error(), "pagewriter: 'filters' option expects")
}

func TestNew_InvalidOptions(t *testing.T) {
	opts := testOptions()
	opts.MarkdownOptions = map[string]any{"headerLevelStart": "two"}

	capture := &captureWriter{}
	w, err := New(opts, capture.factory)
	assert.Nil(t, w)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"markdownOptions"}, verr.Options())
	assert.Nil(t, capture.opts, "the writer factory is not called for invalid options")
}
