package environment

import (
	"fmt"
	"html/template"
	"reflect"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Masterminds/sprig/v3"
)

var tagRe = regexp.MustCompile(`<[^>]*>`)

// builtinFuncs returns the helpers every environment starts with: Sprig's
// HTML-safe set, plus a few common text filters.
func builtinFuncs() template.FuncMap {
	funcs := sprig.HtmlFuncMap()
	funcs["safe"] = safe
	funcs["nl2br"] = nl2br
	funcs["striptags"] = striptags
	funcs["wordcount"] = wordcount
	funcs["length"] = length
	funcs["capitalize"] = capitalize
	return funcs
}

// toString renders v the way templates print it. nil becomes "".
func toString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case template.HTML:
		return string(s)
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprint(v)
	}
}

// safe marks v as pre-escaped HTML.
func safe(v any) template.HTML {
	return template.HTML(toString(v))
}

// nl2br escapes v and replaces newlines with <br>.
func nl2br(v any) template.HTML {
	escaped := template.HTMLEscapeString(toString(v))
	return template.HTML(strings.ReplaceAll(escaped, "\n", "<br>\n"))
}

// striptags removes HTML tags and collapses whitespace.
func striptags(v any) string {
	return strings.Join(strings.Fields(tagRe.ReplaceAllString(toString(v), " ")), " ")
}

// wordcount returns the number of whitespace-separated words.
func wordcount(v any) int {
	return len(strings.Fields(toString(v)))
}

// length returns the length of a string (in runes), slice, array or map.
// Anything else has length 0.
func length(v any) int {
	if s, ok := v.(string); ok {
		return utf8.RuneCountInString(s)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.Chan:
		return rv.Len()
	}
	return 0
}

// capitalize uppercases the first character and lowercases the rest.
func capitalize(v any) string {
	s := toString(v)
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}
