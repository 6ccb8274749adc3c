package scrape

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"golang.org/x/net/html"

	"github.com/jo-hoe/clipcast/internal/config"
)

// Result holds the readable content extracted from a web page.
type Result struct {
	Title string
	Text  string
}

// Extractor defines the capability to turn a URL into readable text.
type Extractor interface {
	Extract(ctx context.Context, rawURL string) (Result, error)
}

var _ Extractor = (*Client)(nil)

// Client fetches a URL and extracts its main text content and title.
type Client struct {
	httpClient *http.Client
	userAgent  string
	maxBody    int64
}

// New creates a scrape client from config.
func New(cfg config.ScrapeConfig) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		userAgent:  cfg.UserAgent,
		maxBody:    int64(cfg.MaxBodySize),
	}
}

// Extract fetches rawURL and returns its title and readable text. It does not
// retry; transient failures surface to the caller so the whole clip fails once.
func (c *Client) Extract(ctx context.Context, rawURL string) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Result{}, fmt.Errorf("build request for url: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, fmt.Errorf("fetch url: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return Result{}, fmt.Errorf("url returned status %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !isHTML(contentType) {
		return Result{}, fmt.Errorf("unsupported content type %q", contentType)
	}

	body := io.LimitReader(resp.Body, c.maxBody)
	doc, err := html.Parse(body)
	if err != nil {
		return Result{}, fmt.Errorf("parse html: %w", err)
	}

	res := extractReadable(doc)
	if strings.TrimSpace(res.Text) == "" {
		return Result{}, fmt.Errorf("no readable text extracted from url")
	}
	return res, nil
}

func isHTML(contentType string) bool {
	if contentType == "" {
		// Some servers omit the header; attempt to parse anyway.
		return true
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "text/html" || mt == "application/xhtml+xml"
}

// Elements whose entire subtree is boilerplate rather than content.
var skippedElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"nav":      true,
	"header":   true,
	"footer":   true,
	"aside":    true,
	"iframe":   true,
	"form":     true,
	"svg":      true,
}

// Elements that terminate a run of inline text.
var blockElements = map[string]bool{
	"p": true, "div": true, "section": true, "article": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"li": true, "blockquote": true, "pre": true, "br": true,
	"td": true, "th": true, "tr": true,
}

func extractReadable(doc *html.Node) Result {
	var res Result
	var sb strings.Builder

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			name := strings.ToLower(n.Data)
			if skippedElements[name] {
				return
			}
			if name == "title" && res.Title == "" {
				res.Title = strings.TrimSpace(textContent(n))
				return
			}
			if name == "meta" && res.Title == "" {
				if prop := attr(n, "property"); prop == "og:title" {
					res.Title = strings.TrimSpace(attr(n, "content"))
				}
			}
			if blockElements[name] {
				sb.WriteString("\n")
			}
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	res.Text = collapseWhitespace(sb.String())
	return res
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	}
	return sb.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

// collapseWhitespace squeezes runs of spaces and keeps at most one blank line.
func collapseWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	var out []string
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		out = append(out, strings.Join(fields, " "))
	}
	return strings.Join(out, "\n")
}
