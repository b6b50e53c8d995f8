package notify

import (
	"bytes"
	"embed"
	"html/template"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.New("notify").Funcs(template.FuncMap{
	"lines": lineBreaks,
}).ParseFS(templateFS, "templates/*.html"))

// Layout wraps rendered body content into the branded HTML document.
type Layout struct {
	brand string
}

// NewLayout returns the wrapper for the given brand.
func NewLayout(brand string) *Layout {
	return &Layout{brand: brand}
}

// Wrap returns the full HTML document around content. It has no side
// effects and is deterministic.
func (l *Layout) Wrap(content template.HTML) (string, error) {
	return execute("layout", struct {
		Brand   string
		Content template.HTML
	}{Brand: l.brand, Content: content})
}

func execute(name string, data any) (string, error) {
	var b bytes.Buffer
	if err := templates.ExecuteTemplate(&b, name, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

// lineBreaks escapes s and turns every newline into a <br> marker.
func lineBreaks(s string) template.HTML {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return template.HTML(strings.ReplaceAll(template.HTMLEscapeString(s), "\n", "<br>"))
}

// singleLine collapses CR and LF so caller text cannot add mail headers.
func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
