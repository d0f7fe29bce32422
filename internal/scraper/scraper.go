// Package scraper fetches web pages and whole sites and turns them into
// raw items ready for normalization and chunking.
package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/time/rate"

	"github.com/calder-ai/ragserver/internal/document"
	"github.com/calder-ai/ragserver/internal/jobs"
	"github.com/calder-ai/ragserver/internal/parser"
)

const (
	userAgent       = "ragserver/1.0"
	maxBodyBytes    = 10 << 20
	defaultMaxPages = 50
	requestTimeout  = 30 * time.Second
)

// Scraper fetches pages over HTTP. Crawls are throttled to about one
// request per second per Scraper so target sites are not hammered.
type Scraper struct {
	client  *http.Client
	limiter *rate.Limiter
	log     *slog.Logger
}

// New creates a scraper with sane timeouts and crawl throttling.
func New(log *slog.Logger) *Scraper {
	if log == nil {
		log = slog.Default()
	}
	return &Scraper{
		client:  &http.Client{Timeout: requestTimeout},
		limiter: rate.NewLimiter(rate.Every(time.Second), 2),
		log:     log,
	}
}

// ValidateURL rejects anything that is not an absolute http(s) URL with a
// host. It returns the parsed URL on success.
func ValidateURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid URL scheme %q: only http and https are supported", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid URL: missing host")
	}
	return u, nil
}

// ScrapeURL fetches a single page and converts it to a raw item.
func (s *Scraper) ScrapeURL(ctx context.Context, raw string) (*document.RawItem, error) {
	u, err := ValidateURL(raw)
	if err != nil {
		return nil, err
	}

	doc, err := s.fetch(ctx, u.String())
	if err != nil {
		return nil, err
	}

	content := strings.TrimSpace(parser.HTMLText(doc))
	if content == "" {
		return nil, fmt.Errorf("no content extracted from %s", u.String())
	}

	title := parser.HTMLTitle(doc)
	if title == "" {
		title = u.Host
	}

	now := time.Now()
	return &document.RawItem{
		Content:  content,
		Title:    title,
		FileName: fmt.Sprintf("%s_%d.md", sanitizeHost(u.Host), now.Unix()),
		FileType: ".md",
		MimeType: "text/markdown",
		FileSize: int64(len(content)),
		Extra: document.Metadata{
			"source":       "web_scraping",
			"original_url": u.String(),
			"scraped_at":   now.UTC().Format(time.RFC3339),
		},
	}, nil
}

// BatchScrape scrapes several URLs, skipping failures, and reports
// progress per page.
func (s *Scraper) BatchScrape(ctx context.Context, urls []string, progress jobs.Reporter) []document.RawItem {
	if progress == nil {
		progress = jobs.Discard
	}
	items := make([]document.RawItem, 0, len(urls))
	for i, raw := range urls {
		if s.limiter.Wait(ctx) != nil {
			break
		}
		progress.Report(fmt.Sprintf("Scraping page %d of %d", i+1, len(urls)), float64(i)/float64(len(urls)))
		item, err := s.ScrapeURL(ctx, raw)
		if err != nil {
			s.log.Warn("skipping url", "url", raw, "error", err)
			continue
		}
		items = append(items, *item)
	}
	return items
}

// CrawlWebsite walks a site breadth-first from the start URL, staying on
// the same host, up to maxPages pages. Fetch failures on individual pages
// are logged and skipped.
func (s *Scraper) CrawlWebsite(ctx context.Context, startURL string, maxPages int, progress jobs.Reporter) ([]document.RawItem, error) {
	start, err := ValidateURL(startURL)
	if err != nil {
		return nil, err
	}
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}
	if progress == nil {
		progress = jobs.Discard
	}

	visited := map[string]bool{}
	queue := []string{normalizeURL(start)}
	var items []document.RawItem

	for len(queue) > 0 && len(items) < maxPages {
		if err := ctx.Err(); err != nil {
			return items, err
		}

		current := queue[0]
		queue = queue[1:]
		if visited[current] {
			continue
		}
		visited[current] = true

		if err := s.limiter.Wait(ctx); err != nil {
			return items, err
		}

		progress.Report(fmt.Sprintf("Crawling page %d of up to %d", len(items)+1, maxPages),
			float64(len(items))/float64(maxPages))

		doc, err := s.fetch(ctx, current)
		if err != nil {
			s.log.Warn("skipping page", "url", current, "error", err)
			continue
		}

		content := strings.TrimSpace(parser.HTMLText(doc))
		if content != "" {
			title := parser.HTMLTitle(doc)
			if title == "" {
				title = current
			}
			now := time.Now()
			items = append(items, document.RawItem{
				Content:  content,
				Title:    title,
				FileName: fmt.Sprintf("%s_%d.md", sanitizeHost(start.Host), now.UnixNano()),
				FileType: ".md",
				MimeType: "text/markdown",
				FileSize: int64(len(content)),
				Extra: document.Metadata{
					"source":       "website_crawling",
					"original_url": current,
					"root_url":     start.String(),
					"scraped_at":   now.UTC().Format(time.RFC3339),
				},
			})
		}

		for _, link := range extractLinks(doc, current) {
			if link.Host != start.Host {
				continue
			}
			key := normalizeURL(link)
			if !visited[key] {
				queue = append(queue, key)
			}
		}
	}

	if len(items) == 0 {
		return nil, fmt.Errorf("no pages could be crawled from %s", start.String())
	}
	return items, nil
}

// fetch retrieves and parses one HTML page.
func (s *Scraper) fetch(ctx context.Context, rawURL string) (*html.Node, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", rawURL, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "text/html") && !strings.Contains(ct, "text/plain") {
		return nil, fmt.Errorf("fetch %s: unsupported content type %s", rawURL, ct)
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", rawURL, err)
	}
	return doc, nil
}

// extractLinks collects absolute same-document links from anchor tags,
// resolved against the page URL and stripped of fragments.
func extractLinks(doc *html.Node, pageURL string) []*url.URL {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	var links []*url.URL
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				ref, err := url.Parse(strings.TrimSpace(attr.Val))
				if err != nil {
					continue
				}
				resolved := base.ResolveReference(ref)
				if resolved.Scheme != "http" && resolved.Scheme != "https" {
					continue
				}
				resolved.Fragment = ""
				links = append(links, resolved)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return links
}

func normalizeURL(u *url.URL) string {
	clone := *u
	clone.Fragment = ""
	return strings.TrimSuffix(clone.String(), "/")
}

func sanitizeHost(host string) string {
	return strings.NewReplacer(".", "_", ":", "_").Replace(host)
}
