// Package web renders the server-side HTML pages through echo's Renderer.
package web

import (
    "embed"
    "fmt"
    "html/template"
    "io"
    "io/fs"
    "path"
    "strings"

    "github.com/labstack/echo/v4"
)

//go:embed templates/*.html
var templateFS embed.FS

// Brand is the product name shown in page chrome.
const Brand = "What Is My Stuff Worth"

// Renderer holds one parsed template set per page, each combined with the
// shared layout.
type Renderer struct {
    pages map[string]*template.Template
}

// New parses every page template against layout.html.
func New() (*Renderer, error) {
    names, err := fs.Glob(templateFS, "templates/*.html")
    if err != nil {
        return nil, err
    }
    funcs := template.FuncMap{"year": currentYear}
    r := &Renderer{pages: map[string]*template.Template{}}
    for _, name := range names {
        base := path.Base(name)
        if base == "layout.html" {
            continue
        }
        t, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html", name)
        if err != nil {
            return nil, fmt.Errorf("parse %s: %w", base, err)
        }
        r.pages[strings.TrimSuffix(base, ".html")] = t
    }
    return r, nil
}

// Render implements echo.Renderer.  name is the page name without ".html".
func (r *Renderer) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
    t, ok := r.pages[name]
    if !ok {
        return fmt.Errorf("web: unknown page %q", name)
    }
    return t.ExecuteTemplate(w, "layout.html", data)
}

// Has reports whether a page template exists.
func (r *Renderer) Has(name string) bool {
    _, ok := r.pages[name]
    return ok
}
