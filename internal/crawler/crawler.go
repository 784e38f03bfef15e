// Package crawler implements a bounded-depth, same-domain web crawler.
// Traversal uses an explicit per-call frontier (worklist plus visited set)
// rather than recursion, with bounded concurrent fetches per depth level.
package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"
)

const (
	// DefaultFanout bounds both concurrent fetches per depth level and the
	// number of new same-domain links enqueued from a single page. External
	// and already-visited links do not count against it.
	DefaultFanout = 10

	// DefaultFetchTimeout bounds each page download.
	DefaultFetchTimeout = 10 * time.Second
)

// Page is the readable content extracted from one crawled URL.
// Content is never truncated here; downstream embedding applies its own
// input budget.
type Page struct {
	URL     string
	Title   string
	Content string
}

// Crawler fetches pages within a single domain up to a depth bound.
// A Crawler is safe for concurrent use; all traversal state is per-call.
type Crawler struct {
	client *http.Client
	fanout int
	logger *slog.Logger
}

// New creates a Crawler. Zero values select DefaultFetchTimeout and
// DefaultFanout.
func New(timeout time.Duration, fanout int, logger *slog.Logger) *Crawler {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	if fanout <= 0 {
		fanout = DefaultFanout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Crawler{
		client: &http.Client{Timeout: timeout},
		fanout: fanout,
		logger: logger,
	}
}

// Crawl traverses from seedURL down to maxDepth hops, never leaving the
// seed's scheme and host, and returns the extracted pages. Each URL is
// fetched at most once per call. Fetch and parse failures are swallowed:
// the failing URL yields nothing and its links are not followed, but the
// crawl continues.
func (c *Crawler) Crawl(ctx context.Context, seedURL string, maxDepth int) []Page {
	root, err := url.Parse(seedURL)
	if err != nil || root.Host == "" || (root.Scheme != "http" && root.Scheme != "https") {
		c.logger.Warn("invalid seed url", "url", seedURL)
		return nil
	}

	seed := normalize(root)
	visited := map[string]bool{seed: true}
	level := []string{seed}

	var pages []Page

	for depth := 0; depth <= maxDepth && len(level) > 0; depth++ {
		c.logger.Info("crawling level", "depth", depth, "urls", len(level))

		var next []string
		for _, res := range c.fetchLevel(ctx, level) {
			pages = append(pages, res.page)

			if depth == maxDepth {
				continue
			}
			enqueued := 0
			for _, link := range res.links {
				if enqueued == c.fanout {
					break
				}
				if !sameDomain(root, link) || visited[link] {
					continue
				}
				// Marking visited at enqueue time keeps the invariant even
				// though the level itself is fetched concurrently.
				visited[link] = true
				next = append(next, link)
				enqueued++
			}
		}
		level = next
	}

	return pages
}

type fetchResult struct {
	page  Page
	links []string
}

// fetchLevel downloads one depth level with at most fanout fetches in
// flight. Results arrive in completion order and are merged by the single
// receiving goroutine; URLs that fail or yield no text are dropped here.
func (c *Crawler) fetchLevel(ctx context.Context, urls []string) []fetchResult {
	sem := make(chan struct{}, c.fanout)
	results := make(chan fetchResult)

	var wg sync.WaitGroup
	for _, pageURL := range urls {
		wg.Add(1)
		go func(pageURL string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			page, links, err := c.fetchPage(ctx, pageURL)
			if err != nil {
				c.logger.Warn("page fetch failed", "url", pageURL, "error", err)
				return
			}
			if page.Content == "" {
				// No readable text means dead end: the page contributes no
				// document and its links are not followed.
				c.logger.Debug("page yielded no text", "url", pageURL)
				return
			}
			results <- fetchResult{page: page, links: links}
		}(pageURL)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var out []fetchResult
	for res := range results {
		out = append(out, res)
	}
	return out
}

// fetchPage downloads and parses one URL, returning its readable text and
// the absolute outbound links discovered on it.
func (c *Crawler) fetchPage(ctx context.Context, pageURL string) (Page, []string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return Page{}, nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Page{}, nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return Page{}, nil, fmt.Errorf("fetch: status %d", resp.StatusCode)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return Page{}, nil, fmt.Errorf("parse html: %w", err)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return Page{}, nil, fmt.Errorf("parse url: %w", err)
	}

	title, text := extractText(doc)
	return Page{URL: pageURL, Title: title, Content: text}, extractLinks(doc, base), nil
}

// boilerplateTags are element subtrees dropped during text extraction.
var boilerplateTags = map[string]bool{
	"script": true,
	"style":  true,
	"nav":    true,
	"footer": true,
	"aside":  true,
}

// extractText walks the DOM collecting text nodes, skipping boilerplate
// subtrees, and returns the page title plus whitespace-normalized body text.
func extractText(doc *html.Node) (title, text string) {
	var parts []string

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if boilerplateTags[n.Data] {
				return
			}
			if n.Data == "title" && n.FirstChild != nil && title == "" {
				title = strings.TrimSpace(n.FirstChild.Data)
				return
			}
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	return title, strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

// extractLinks collects anchor hrefs, resolved to absolute URLs against the
// page, skipping in-page fragments and script-scheme links.
func extractLinks(doc *html.Node, base *url.URL) []string {
	var links []string

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				href := strings.TrimSpace(attr.Val)
				if href == "" || strings.HasPrefix(href, "#") || strings.Contains(href, "javascript") {
					break
				}
				ref, err := url.Parse(href)
				if err != nil {
					break
				}
				resolved := base.ResolveReference(ref)
				if resolved.Scheme != "http" && resolved.Scheme != "https" {
					break
				}
				links = append(links, normalize(resolved))
				break
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	return links
}

// normalize strips the fragment so in-page anchors collapse onto one URL.
func normalize(u *url.URL) string {
	clean := *u
	clean.Fragment = ""
	return clean.String()
}

// sameDomain reports whether link shares the root's scheme and host exactly.
// Subdomains do not match.
func sameDomain(root *url.URL, link string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	return u.Scheme == root.Scheme && u.Host == root.Host
}
