package parser

import (
	"os"
	"strings"

	"golang.org/x/net/html"
)

// extractHTML extracts readable text and the <title> from an HTML file.
func extractHTML(path string) (content, title string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", "", err
	}
	defer f.Close()

	doc, err := html.Parse(f)
	if err != nil {
		return "", "", err
	}
	return HTMLText(doc), HTMLTitle(doc), nil
}

// HTMLText walks the node tree collecting text, skipping script and
// style subtrees, with paragraph breaks at block elements.
func HTMLText(doc *html.Node) string {
	var sb strings.Builder

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "head":
				return
			case "p", "div", "section", "article", "li", "br",
				"h1", "h2", "h3", "h4", "h5", "h6", "tr":
				sb.WriteString("\n\n")
			}
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				if sb.Len() > 0 && !strings.HasSuffix(sb.String(), "\n") {
					sb.WriteString(" ")
				}
				sb.WriteString(t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	// Collapse runs of blank lines left by nested block elements.
	lines := strings.Split(sb.String(), "\n")
	var out []string
	blank := true
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			if !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, line)
		blank = false
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func HTMLTitle(doc *html.Node) string {
	var title string
	var walk func(n *html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "title" {
			if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				title = strings.TrimSpace(n.FirstChild.Data)
			}
			return true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}
		return false
	}
	walk(doc)
	return title
}
