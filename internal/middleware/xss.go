package middleware

import (
	"io"
	"net/url"
	"strings"

	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/ezotic/devcamper-api/internal/pipeline"
)

// XSSFilter removes executable markup from every string in the query, form
// and JSON body. Script-like elements are dropped with their content and
// other tags are stripped. Angle brackets left in the text are escaped.
type XSSFilter struct{}

var angleEscaper = strings.NewReplacer("<", "&lt;", ">", "&gt;")

func (XSSFilter) Name() string { return "xss-filter" }

func (XSSFilter) Process(c *pipeline.Context) pipeline.Result {
	cleanValues(c.Query)
	cleanValues(c.Form)
	if c.Body != nil {
		if body, changed := cleanValue(c.Body); changed {
			c.SetBody(body)
		}
	}
	return pipeline.Continue()
}

// CleanString returns s with markup removed.
func CleanString(s string) string {
	if !strings.ContainsAny(s, "<>") {
		return s
	}

	var b strings.Builder
	z := xhtml.NewTokenizer(strings.NewReader(s))
	skip := 0
	for {
		tt := z.Next()
		switch tt {
		case xhtml.ErrorToken:
			if z.Err() != io.EOF {
				b.WriteString(angleEscaper.Replace(string(z.Raw())))
			}
			return b.String()
		case xhtml.TextToken:
			if skip == 0 {
				b.WriteString(angleEscaper.Replace(string(z.Text())))
			}
		case xhtml.StartTagToken:
			if dropsContent(z) {
				skip++
			}
		case xhtml.EndTagToken:
			if dropsContent(z) && skip > 0 {
				skip--
			}
		}
	}
}

func dropsContent(z *xhtml.Tokenizer) bool {
	name, _ := z.TagName()
	switch atom.Lookup(name) {
	case atom.Script, atom.Style, atom.Iframe, atom.Object:
		return true
	}
	return false
}

func cleanValues(v url.Values) {
	for key, vals := range v {
		for i, s := range vals {
			vals[i] = CleanString(s)
		}
		v[key] = vals
	}
}

func cleanValue(v any) (any, bool) {
	switch t := v.(type) {
	case string:
		clean := CleanString(t)
		return clean, clean != t
	case map[string]any:
		changed := false
		for key, child := range t {
			clean, childChanged := cleanValue(child)
			if childChanged {
				t[key] = clean
				changed = true
			}
		}
		return t, changed
	case []any:
		changed := false
		for i, child := range t {
			clean, childChanged := cleanValue(child)
			if childChanged {
				t[i] = clean
				changed = true
			}
		}
		return t, changed
	default:
		return v, false
	}
}
