package website

import (
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"golang.org/x/net/html"
)

// Pre-compiled to avoid recompilation per page.
var (
	scriptRe      = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleRe       = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	excessLinesRe = regexp.MustCompile(`\n{4,}`)
)

// Chrome elements stripped before conversion when no main content
// container is present.
var (
	strippedTags = []string{
		"nav", "header", "footer", "aside", "script", "style", "noscript",
		"iframe", "object", "embed", "form", "input", "button",
	}
	strippedClasses = []string{
		"nav", "navbar", "navigation", "sidebar", "menu", "toc",
		"table-of-contents", "footer", "header", "ad", "advertisement",
		"social", "share", "comments", "related", "breadcrumb",
	}
)

// Page is the extracted content of a fetched web page.
type Page struct {
	Title    string
	Markdown string
}

// Converter turns raw HTML into markdown, preferring the page's main
// content container over the full body.
type Converter struct {
	md *md.Converter
}

// NewConverter creates a Converter with GitHub-flavored markdown output.
func NewConverter() *Converter {
	conv := md.NewConverter("", true, nil)
	conv.Use(plugin.GitHubFlavored())
	return &Converter{md: conv}
}

// Convert extracts the main content of an HTML page and converts it
// to markdown.
func (c *Converter) Convert(htmlContent []byte) (*Page, error) {
	title := htmlTitle(htmlContent)

	markdown, err := c.md.ConvertString(mainContent(htmlContent))
	if err != nil {
		return nil, err
	}
	markdown = tidyMarkdown(markdown)

	if title == "" {
		title = markdownTitle(markdown)
	}

	return &Page{Title: title, Markdown: markdown}, nil
}

// htmlTitle returns the text of the first <title> element.
func htmlTitle(content []byte) string {
	doc, err := html.Parse(strings.NewReader(string(content)))
	if err != nil {
		return ""
	}

	var title string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "title" && n.FirstChild != nil {
			title = strings.TrimSpace(n.FirstChild.Data)
			return
		}
		for child := n.FirstChild; child != nil && title == ""; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	return title
}

// mainContent returns the HTML of the page's main content area.
// It prefers main/article/[role=main] containers; otherwise it strips
// navigation chrome from the body.
func mainContent(content []byte) string {
	doc, err := html.Parse(strings.NewReader(string(content)))
	if err != nil {
		// Unparseable input still goes through the markdown converter,
		// just without structural extraction.
		raw := scriptRe.ReplaceAllString(string(content), "")
		return styleRe.ReplaceAllString(raw, "")
	}

	for _, selector := range []string{"main", "article", "[role=main]"} {
		if node := findNode(doc, selector); node != nil {
			return renderNode(node)
		}
	}

	stripChrome(doc)

	if body := findNode(doc, "body"); body != nil {
		return renderNode(body)
	}
	return string(content)
}

// findNode returns the first element matching a tag name or a
// [key=value] attribute selector.
func findNode(root *html.Node, selector string) *html.Node {
	var found *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found != nil {
			return
		}
		if n.Type == html.ElementNode && matchSelector(n, selector) {
			found = n
			return
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(root)
	return found
}

func matchSelector(n *html.Node, selector string) bool {
	if strings.HasPrefix(selector, "[") && strings.HasSuffix(selector, "]") {
		key, val, ok := strings.Cut(strings.Trim(selector, "[]"), "=")
		if !ok {
			return false
		}
		for _, a := range n.Attr {
			if a.Key == key && a.Val == val {
				return true
			}
		}
		return false
	}
	return n.Data == selector
}

// stripChrome removes navigation, scripts and other non-content
// elements in a single walk over the tree.
func stripChrome(root *html.Node) {
	tagSet := make(map[string]bool, len(strippedTags))
	for _, tag := range strippedTags {
		tagSet[tag] = true
	}
	classSet := make(map[string]bool, len(strippedClasses))
	for _, class := range strippedClasses {
		classSet[class] = true
	}

	var doomed []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if tagSet[n.Data] || hasStrippedClass(n, classSet) {
				doomed = append(doomed, n)
				return
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(root)

	for _, n := range doomed {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
	}
}

func hasStrippedClass(n *html.Node, classSet map[string]bool) bool {
	for _, a := range n.Attr {
		if a.Key != "class" {
			continue
		}
		for _, class := range strings.Fields(strings.ToLower(a.Val)) {
			if classSet[class] {
				return true
			}
		}
	}
	return false
}

func renderNode(n *html.Node) string {
	var sb strings.Builder
	_ = html.Render(&sb, n)
	return sb.String()
}

// tidyMarkdown collapses excessive blank lines and trailing spaces left
// over from conversion.
func tidyMarkdown(content string) string {
	content = excessLinesRe.ReplaceAllString(content, "\n\n\n")

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}

	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// markdownTitle returns the first H1 heading, if any.
func markdownTitle(content string) string {
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if after, ok := strings.CutPrefix(trimmed, "# "); ok {
			return strings.TrimSpace(after)
		}
	}
	return ""
}
