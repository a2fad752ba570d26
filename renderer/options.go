package renderer

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// Options configures a Converter. Field tags carry the option names used by
// showdown-style configuration maps.
type Options struct {
	// SimpleLineBreaks renders single newlines inside a paragraph as <br>.
	SimpleLineBreaks bool `mapstructure:"simpleLineBreaks"`

	// GhCompatibleHeaderID generates GitHub-style heading ids ("foo-bar").
	// When false, non-word characters are dropped instead ("foobar").
	GhCompatibleHeaderID bool `mapstructure:"ghCompatibleHeaderId"`

	// CustomizedHeaderID allows an explicit id with "# Title {#id}".
	CustomizedHeaderID bool `mapstructure:"customizedHeaderId"`

	Tables             bool `mapstructure:"tables"`
	Strikethrough      bool `mapstructure:"strikethrough"`
	Tasklists          bool `mapstructure:"tasklists"`
	SimplifiedAutoLink bool `mapstructure:"simplifiedAutoLink"`
	Emoji              bool `mapstructure:"emoji"`

	// Metadata strips a leading YAML or TOML front matter block.
	Metadata bool `mapstructure:"metadata"`

	// NoHeaderID disables automatic heading ids.
	NoHeaderID bool `mapstructure:"noHeaderId"`

	// PrefixHeaderID is prepended to every generated heading id.
	PrefixHeaderID string `mapstructure:"prefixHeaderId"`

	// HeaderLevelStart is the level a top-level "#" heading renders at.
	HeaderLevelStart int `mapstructure:"headerLevelStart"`

	// OpenLinksInNewWindow adds target="_blank" to links.
	OpenLinksInNewWindow bool `mapstructure:"openLinksInNewWindow"`
}

// DefaultOptions returns the options used when none are overridden.
func DefaultOptions() Options {
	return Options{
		SimpleLineBreaks:     true,
		GhCompatibleHeaderID: true,
		CustomizedHeaderID:   true,
		Tables:               true,
		HeaderLevelStart:     1,
	}
}

// DecodeOptions merges overrides over DefaultOptions. Keys that are not
// known options are ignored; a value of the wrong type is an error.
func DecodeOptions(overrides map[string]any) (Options, error) {
	opts := DefaultOptions()
	if len(overrides) == 0 {
		return opts, nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &opts,
		TagName: "mapstructure",
	})
	if err != nil {
		return Options{}, fmt.Errorf("failed to create options decoder: %w", err)
	}
	if err = decoder.Decode(overrides); err != nil {
		return Options{}, fmt.Errorf("failed to decode markdown options: %w", err)
	}

	if opts.HeaderLevelStart < 1 {
		opts.HeaderLevelStart = 1
	}
	return opts, nil
}
