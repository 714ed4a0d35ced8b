// Package docs renders the project's markdown documentation tree into a
// static site and deploys it to the configured doc host.
package docs

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/projops/projops/internal/config"
)

var (
	// ErrBuild indicates malformed documentation source.
	ErrBuild = errors.New("documentation build failed")

	// ErrDeploy indicates an upload failure to the doc host.
	ErrDeploy = errors.New("documentation deploy failed")
)

// Site describes a completed build.
type Site struct {
	Dir   string // output directory holding the rendered site
	Pages int    // number of rendered markdown pages
}

// Builder renders markdown into a static HTML site.
type Builder struct {
	cfg *config.Config
	md  goldmark.Markdown
}

// NewBuilder creates a Builder.
func NewBuilder(cfg *config.Config) *Builder {
	return &Builder{
		cfg: cfg,
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
		),
	}
}

// Build renders every .md file under the source directory into the output
// directory, preserving the tree layout; non-markdown files are copied
// verbatim as assets. The output directory is recreated from scratch so the
// site never contains stale pages.
func (b *Builder) Build() (*Site, error) {
	srcDir := b.cfg.DocsSourcePath()
	outDir := b.cfg.DocsOutputPath()

	if _, err := os.Stat(srcDir); err != nil {
		return nil, fmt.Errorf("%w: source directory %s: %v", ErrBuild, srcDir, err)
	}
	if err := os.RemoveAll(outDir); err != nil {
		return nil, fmt.Errorf("%w: cleaning output: %v", ErrBuild, err)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating output: %v", ErrBuild, err)
	}

	site := &Site{Dir: outDir}
	err := filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		if d.IsDir() {
			if rel == "." {
				return nil
			}
			return os.MkdirAll(filepath.Join(outDir, rel), 0o755)
		}
		if strings.EqualFold(filepath.Ext(path), ".md") {
			if err := b.renderPage(path, filepath.Join(outDir, htmlName(rel))); err != nil {
				return err
			}
			site.Pages++
			return nil
		}
		return copyFile(path, filepath.Join(outDir, rel))
	})
	if err != nil {
		if errors.Is(err, ErrBuild) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrBuild, err)
	}

	if err := os.WriteFile(filepath.Join(outDir, "style.css"), []byte(stylesheet), 0o644); err != nil {
		return nil, fmt.Errorf("%w: writing stylesheet: %v", ErrBuild, err)
	}
	slog.Info("documentation built", "pages", site.Pages, "output", outDir)
	return site, nil
}

// renderPage converts one markdown file into a standalone HTML page.
func (b *Builder) renderPage(srcPath, dstPath string) error {
	src, err := os.ReadFile(srcPath)
	if err != nil {
		return fmt.Errorf("%w: reading %s: %v", ErrBuild, srcPath, err)
	}
	var body bytes.Buffer
	if err := b.md.Convert(src, &body); err != nil {
		return fmt.Errorf("%w: rendering %s: %v", ErrBuild, srcPath, err)
	}

	page := pageData{
		SiteTitle: b.cfg.Docs.Title,
		Title:     pageTitle(src, srcPath),
		Body:      template.HTML(body.String()),
		StyleHref: styleHref(dstPath, b.cfg.DocsOutputPath()),
	}
	f, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("%w: writing %s: %v", ErrBuild, dstPath, err)
	}
	defer f.Close()
	if err := pageTemplate.Execute(f, page); err != nil {
		return fmt.Errorf("%w: templating %s: %v", ErrBuild, dstPath, err)
	}
	return nil
}

// htmlName maps docs/guide/intro.md to guide/intro.html; README.md becomes
// the directory index.
func htmlName(rel string) string {
	base := strings.TrimSuffix(rel, filepath.Ext(rel))
	if strings.EqualFold(filepath.Base(base), "README") {
		base = filepath.Join(filepath.Dir(base), "index")
	}
	return base + ".html"
}

// pageTitle uses the first ATX heading, falling back to the file name.
func pageTitle(src []byte, path string) string {
	for _, line := range strings.Split(string(src), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			return strings.TrimSpace(strings.TrimLeft(line, "#"))
		}
	}
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// styleHref returns the relative path from a page back to the root stylesheet.
func styleHref(dstPath, outDir string) string {
	rel, err := filepath.Rel(filepath.Dir(dstPath), filepath.Join(outDir, "style.css"))
	if err != nil {
		return "style.css"
	}
	return filepath.ToSlash(rel)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}

type pageData struct {
	SiteTitle string
	Title     string
	Body      template.HTML
	StyleHref string
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}} - {{.SiteTitle}}</title>
<link rel="stylesheet" href="{{.StyleHref}}">
</head>
<body>
<header><a href="/">{{.SiteTitle}}</a></header>
<main>
{{.Body}}
</main>
</body>
</html>
`))

const stylesheet = `body {
  font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif;
  max-width: 52rem;
  margin: 0 auto;
  padding: 0 1rem 4rem;
  line-height: 1.6;
  color: #1f2328;
}
header { padding: 1rem 0; border-bottom: 1px solid #d1d9e0; margin-bottom: 2rem; }
header a { text-decoration: none; color: inherit; font-weight: 600; }
pre { background: #f6f8fa; padding: 1rem; overflow-x: auto; border-radius: 6px; }
code { font-family: ui-monospace, SFMono-Regular, Menlo, monospace; font-size: 0.9em; }
table { border-collapse: collapse; }
th, td { border: 1px solid #d1d9e0; padding: 0.4rem 0.8rem; }
`
