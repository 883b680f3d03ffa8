package ingest

import (
	"bytes"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"golang.org/x/net/html"
)

var excessiveLinesRe = regexp.MustCompile(`\n{3,}`)

// boilerplateTags never carry knowledge-base content.
var boilerplateTags = map[string]bool{
	"nav": true, "header": true, "footer": true, "aside": true, "script": true,
	"style": true, "noscript": true, "iframe": true, "form": true, "button": true,
	"svg": true, "template": true,
}

var boilerplateClasses = map[string]bool{
	"nav": true, "navbar": true, "navigation": true, "sidebar": true, "menu": true,
	"toc": true, "breadcrumb": true, "breadcrumbs": true, "cookie": true, "banner": true,
	"footer": true, "header": true, "social": true, "share": true, "related": true,
}

// HTMLConverter turns a web page into a Document by extracting its main
// content, converting it to Markdown and splitting that at headings.
type HTMLConverter struct {
	converter *md.Converter
}

func NewHTMLConverter() *HTMLConverter {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())
	return &HTMLConverter{converter: converter}
}

func (c *HTMLConverter) Convert(source string, content []byte) (Document, error) {
	root, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return Document{}, err
	}
	title := pageTitle(root)

	markdown, err := c.converter.ConvertString(renderNode(mainContent(root)))
	if err != nil {
		return Document{}, err
	}
	markdown = strings.TrimSpace(excessiveLinesRe.ReplaceAllString(markdown, "\n\n"))

	doc := ParseMarkdown(source, []byte(markdown))
	if title != "" {
		doc.Title = title
	}
	return doc, nil
}

// ConvertFragment converts an HTML snippet, such as a feed item body, to
// plain text.
func (c *HTMLConverter) ConvertFragment(fragment string) (string, error) {
	markdown, err := c.converter.ConvertString(fragment)
	if err != nil {
		return "", err
	}
	var parts []string
	for _, s := range ParseMarkdown("", []byte(markdown)).Sections {
		parts = append(parts, s.Text)
	}
	return strings.Join(parts, "\n"), nil
}

func pageTitle(root *html.Node) string {
	if n := findElement(root, func(n *html.Node) bool { return n.Data == "title" }); n != nil && n.FirstChild != nil {
		return strings.TrimSpace(n.FirstChild.Data)
	}
	return ""
}

// mainContent prefers <main>, then <article>, then role=main. Without any
// of those it strips boilerplate from <body>.
func mainContent(root *html.Node) *html.Node {
	for _, match := range []func(*html.Node) bool{
		func(n *html.Node) bool { return n.Data == "main" },
		func(n *html.Node) bool { return n.Data == "article" },
		func(n *html.Node) bool { return attr(n, "role") == "main" },
	} {
		if n := findElement(root, match); n != nil {
			removeBoilerplate(n)
			return n
		}
	}
	removeBoilerplate(root)
	if body := findElement(root, func(n *html.Node) bool { return n.Data == "body" }); body != nil {
		return body
	}
	return root
}

func findElement(n *html.Node, match func(*html.Node) bool) *html.Node {
	if n.Type == html.ElementNode && match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, match); found != nil {
			return found
		}
	}
	return nil
}

func removeBoilerplate(n *html.Node) {
	var doomed []*html.Node
	var collect func(*html.Node)
	collect = func(node *html.Node) {
		if node.Type == html.ElementNode && isBoilerplate(node) {
			doomed = append(doomed, node)
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collect(c)
	}
	for _, node := range doomed {
		node.Parent.RemoveChild(node)
	}
}

func isBoilerplate(n *html.Node) bool {
	if boilerplateTags[n.Data] {
		return true
	}
	for _, class := range strings.Fields(strings.ToLower(attr(n, "class"))) {
		if boilerplateClasses[class] {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func renderNode(n *html.Node) string {
	var sb strings.Builder
	_ = html.Render(&sb, n)
	return sb.String()
}
