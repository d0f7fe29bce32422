package parser

import (
	"os"

	"github.com/yuin/goldmark"
	gmparser "github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/toc"
)

// extractMarkdown reads a markdown file, using the document's first
// heading as the title when there is one. The content is kept as-is:
// markdown is already readable text for chunking and retrieval.
func extractMarkdown(path string) (content, title string, err error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}

	md := goldmark.New(
		goldmark.WithParserOptions(
			gmparser.WithAutoHeadingID(),
		),
	)
	doc := md.Parser().Parse(text.NewReader(source))

	tree, err := toc.Inspect(doc, source,
		toc.MinDepth(1),
		toc.MaxDepth(1),
		toc.Compact(true),
	)
	if err == nil && len(tree.Items) > 0 {
		title = string(tree.Items[0].Title)
	}

	return string(source), title, nil
}
