package render

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"os"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

//go:embed templates/*.html
var templateFiles embed.FS

//go:embed help/*.md
var helpFiles embed.FS

// ErrHelpNotFound is returned for a help page that does not exist.
var ErrHelpNotFound = errors.New("help page not found")

var helpPath = regexp.MustCompile(`^[a-z0-9_-]+(/[a-z0-9_-]+)*$`)

// Page is the data given to every template.
type Page struct {
	Title string
	User  string
	Data  interface{}
}

// Renderer writes HTML pages.
type Renderer interface {
	Render(w http.ResponseWriter, status int, name string, page Page) error
	Help(path string) (title string, body template.HTML, err error)
}

// Templates renders the embedded page templates and markdown help pages.
type Templates struct {
	pages    map[string]*template.Template
	help     fs.FS
	markdown goldmark.Markdown
}

var _ Renderer = (*Templates)(nil)

// New parses the templates. Help pages are read from helpDir when set,
// else from the embedded set.
func New(helpDir string) (*Templates, error) {
	layout, err := template.ParseFS(templateFiles, "templates/layout.html")
	if err != nil {
		return nil, err
	}

	pages := map[string]*template.Template{}
	entries, err := templateFiles.ReadDir("templates")
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		name := strings.TrimSuffix(entry.Name(), ".html")
		if name == "layout" {
			continue
		}
		clone, err := layout.Clone()
		if err != nil {
			return nil, err
		}
		if pages[name], err = clone.ParseFS(templateFiles, "templates/"+entry.Name()); err != nil {
			return nil, fmt.Errorf("template %s: %w", name, err)
		}
	}

	var help fs.FS
	if helpDir != "" {
		help = os.DirFS(helpDir)
	} else if help, err = fs.Sub(helpFiles, "help"); err != nil {
		return nil, err
	}

	return &Templates{
		pages:    pages,
		help:     help,
		markdown: goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}, nil
}

// Render executes the page called name into w with status.
func (t *Templates) Render(w http.ResponseWriter, status int, name string, page Page) error {
	tmpl, ok := t.pages[name]
	if !ok {
		return fmt.Errorf("unknown page %q", name)
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", page); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

// Help converts the markdown page at path to HTML. The title is the text
// of the first heading.
func (t *Templates) Help(path string) (string, template.HTML, error) {
	path = strings.Trim(path, "/")
	if path == "" {
		path = "index"
	}
	if !helpPath.MatchString(path) {
		return "", "", ErrHelpNotFound
	}
	source, err := fs.ReadFile(t.help, path+".md")
	if errors.Is(err, fs.ErrNotExist) {
		return "", "", ErrHelpNotFound
	}
	if err != nil {
		return "", "", err
	}

	doc := t.markdown.Parser().Parse(text.NewReader(source), parser.WithContext(parser.NewContext()))
	title := path
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if heading, ok := n.(*ast.Heading); ok && entering {
			title = headingText(heading, source)
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})

	var buf bytes.Buffer
	if err := t.markdown.Renderer().Render(&buf, source, doc); err != nil {
		return "", "", err
	}
	return title, template.HTML(buf.String()), nil
}

func headingText(n ast.Node, source []byte) string {
	var b strings.Builder
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		if t, ok := child.(*ast.Text); ok {
			b.Write(t.Segment.Value(source))
		} else {
			b.WriteString(headingText(child, source))
		}
	}
	return b.String()
}
