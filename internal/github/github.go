// Package github fetches documentation files from GitHub repositories so
// they can be ingested like locally uploaded documents.
package github

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"
	"github.com/google/go-github/v81/github"

	"github.com/calder-ai/ragserver/internal/document"
	"github.com/calder-ai/ragserver/internal/jobs"
)

// docExtensions are repository file types worth ingesting as documents.
var docExtensions = map[string]bool{
	".md":   true,
	".txt":  true,
	".html": true,
	".htm":  true,
}

// Fetcher pulls documentation files out of a repository tree.
type Fetcher struct {
	client *github.Client
	log    *slog.Logger
}

// NewFetcher builds a fetcher with secondary rate limit handling. When
// GITHUB_TOKEN is set the client authenticates with it for the higher
// request quota.
func NewFetcher(log *slog.Logger) (*Fetcher, error) {
	if log == nil {
		log = slog.Default()
	}
	httpClient, err := github_ratelimit.NewRateLimitWaiterClient(nil)
	if err != nil {
		return nil, fmt.Errorf("create rate limited client: %w", err)
	}
	client := github.NewClient(httpClient)
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		client = client.WithAuthToken(token)
	}
	return &Fetcher{client: client, log: log}, nil
}

// FetchRepository lists and downloads all documentation files under dir in
// owner/repo, reporting progress per file. An empty dir means the
// repository root.
func (f *Fetcher) FetchRepository(ctx context.Context, owner, repo, dir string, progress jobs.Reporter) ([]document.RawItem, error) {
	if owner == "" || repo == "" {
		return nil, fmt.Errorf("owner and repo are required")
	}
	if progress == nil {
		progress = jobs.Discard
	}

	progress.Report(fmt.Sprintf("Listing files in %s/%s", owner, repo), 0)
	paths, err := f.listFiles(ctx, owner, repo, dir)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no documentation files found in %s/%s/%s", owner, repo, dir)
	}

	items := make([]document.RawItem, 0, len(paths))
	for i, filePath := range paths {
		if err := ctx.Err(); err != nil {
			return items, err
		}
		progress.Report(fmt.Sprintf("Fetching file %d of %d", i+1, len(paths)),
			float64(i)/float64(len(paths)))

		item, err := f.fetchFile(ctx, owner, repo, filePath)
		if err != nil {
			f.log.Warn("skipping repository file", "path", filePath, "error", err)
			continue
		}
		items = append(items, *item)
	}

	if len(items) == 0 {
		return nil, fmt.Errorf("no files could be fetched from %s/%s", owner, repo)
	}
	return items, nil
}

// listFiles walks the repository directory tree collecting documentation
// file paths.
func (f *Fetcher) listFiles(ctx context.Context, owner, repo, dir string) ([]string, error) {
	_, entries, _, err := f.client.Repositories.GetContents(ctx, owner, repo, dir, nil)
	if err != nil {
		return nil, fmt.Errorf("list %s/%s/%s: %w", owner, repo, dir, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.Type == nil || entry.Path == nil {
			continue
		}
		switch *entry.Type {
		case "file":
			if docExtensions[strings.ToLower(path.Ext(*entry.Path))] {
				paths = append(paths, *entry.Path)
			}
		case "dir":
			sub, err := f.listFiles(ctx, owner, repo, *entry.Path)
			if err != nil {
				return nil, err
			}
			paths = append(paths, sub...)
		}
	}
	return paths, nil
}

// fetchFile downloads one file and converts it to a raw item.
func (f *Fetcher) fetchFile(ctx context.Context, owner, repo, filePath string) (*document.RawItem, error) {
	fileContent, _, _, err := f.client.Repositories.GetContents(ctx, owner, repo, filePath, nil)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", filePath, err)
	}
	if fileContent == nil || fileContent.Content == nil {
		return nil, fmt.Errorf("no content returned for %s", filePath)
	}

	raw, err := base64.StdEncoding.DecodeString(*fileContent.Content)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filePath, err)
	}
	content := strings.TrimSpace(string(raw))
	if content == "" {
		return nil, fmt.Errorf("empty file %s", filePath)
	}

	name := path.Base(filePath)
	ext := strings.ToLower(path.Ext(name))
	item := &document.RawItem{
		Content:  content,
		Title:    strings.TrimSuffix(name, ext),
		FilePath: filePath,
		FileName: name,
		FileSize: int64(len(raw)),
		FileType: ext,
		MimeType: "text/plain",
		Extra: document.Metadata{
			"source":     "github_repository",
			"repository": owner + "/" + repo,
			"repo_path":  filePath,
			"blob_sha":   fileContent.GetSHA(),
			"source_url": fmt.Sprintf("https://github.com/%s/%s/blob/HEAD/%s", owner, repo, filePath),
		},
	}
	if ext == ".md" {
		item.MimeType = "text/markdown"
	}
	return item, nil
}

// ParseRepoRef splits an "owner/repo" reference, tolerating a full GitHub
// URL form as well.
func ParseRepoRef(ref string) (owner, repo string, err error) {
	ref = strings.TrimSpace(ref)
	ref = strings.TrimPrefix(ref, "https://github.com/")
	ref = strings.TrimPrefix(ref, "http://github.com/")
	ref = strings.Trim(ref, "/")

	parts := strings.Split(ref, "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository reference %q: expected owner/repo", ref)
	}
	return parts[0], strings.TrimSuffix(parts[1], ".git"), nil
}
