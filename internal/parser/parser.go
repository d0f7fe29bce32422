// Package parser converts supported document formats into raw items for
// normalization. Format support is decided by file extension against a
// fixed allow-list.
package parser

import (
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/calder-ai/ragserver/internal/document"
)

// supportedExtensions is the fixed allow-list of ingestable formats.
var supportedExtensions = map[string]bool{
	".pdf":  true,
	".docx": true,
	".pptx": true,
	".xlsx": true,
	".txt":  true,
	".md":   true,
	".html": true,
	".htm":  true,
	".csv":  true,
	".json": true,
	".xml":  true,
}

// IsSupported reports whether the file's extension is on the allow-list.
func IsSupported(path string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(path))]
}

// Parser extracts plain text content from files on disk.
type Parser struct {
	log *slog.Logger
}

// New creates a parser.
func New(log *slog.Logger) *Parser {
	if log == nil {
		log = slog.Default()
	}
	return &Parser{log: log}
}

// ParseFile extracts a raw item from a single file. Unsupported types and
// files yielding no content are errors; the caller decides whether that
// fails the whole batch or just skips the file.
func (p *Parser) ParseFile(path string) (*document.RawItem, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !supportedExtensions[ext] {
		return nil, fmt.Errorf("unsupported file type: %s", ext)
	}

	content, title, err := p.extract(path, ext)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("no content extracted from %s", filepath.Base(path))
	}

	name := filepath.Base(path)
	if title == "" {
		title = strings.TrimSuffix(name, ext)
	}

	var size int64
	if info, err := os.Stat(path); err == nil {
		size = info.Size()
	}

	mimeType := mime.TypeByExtension(ext)
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	return &document.RawItem{
		Content:  content,
		Title:    title,
		FilePath: path,
		FileName: name,
		FileSize: size,
		FileType: ext,
		MimeType: mimeType,
		Extra: document.Metadata{
			"source": "file_upload",
		},
	}, nil
}

// ParseFiles parses a batch, logging and skipping files that fail so one
// malformed document does not sink the rest.
func (p *Parser) ParseFiles(paths []string) []document.RawItem {
	items := make([]document.RawItem, 0, len(paths))
	for _, path := range paths {
		item, err := p.ParseFile(path)
		if err != nil {
			p.log.Warn("skipping file", "path", path, "error", err)
			continue
		}
		items = append(items, *item)
	}
	return items
}

// extract dispatches to the format-specific extractor. It returns the
// plain text content and, where the format carries one, a title.
func (p *Parser) extract(path, ext string) (content, title string, err error) {
	switch ext {
	case ".txt", ".json", ".xml":
		content, err = readAll(path)
		return content, "", err
	case ".md":
		return extractMarkdown(path)
	case ".html", ".htm":
		return extractHTML(path)
	case ".csv":
		content, err = extractCSV(path)
		return content, "", err
	case ".pdf":
		content, err = extractPDF(path)
		return content, "", err
	case ".docx":
		content, err = extractDOCX(path)
		return content, "", err
	case ".pptx":
		content, err = extractOfficeXML(path, "ppt/slides/")
		return content, "", err
	case ".xlsx":
		content, err = extractOfficeXML(path, "xl/sharedStrings.xml")
		return content, "", err
	default:
		return "", "", fmt.Errorf("unsupported file type: %s", ext)
	}
}

func readAll(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
