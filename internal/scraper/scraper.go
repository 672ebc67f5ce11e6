// Package scraper fetches a single web page so it can be ingested as HTML.
package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/chromedp/chromedp"
	colly "github.com/gocolly/colly/v2"
	"golang.org/x/net/html/charset"

	"study-notes-platform/internal/logger"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// ErrNotHTML is returned when the URL serves something other than a page.
var ErrNotHTML = errors.New("response is not HTML")

type Options struct {
	Timeout time.Duration
	// RenderJS loads the page in headless Chrome instead of a plain GET.
	RenderJS bool
	// WaitSelector is waited for when rendering. Empty means body.
	WaitSelector string
}

// Page is a fetched document, decoded to UTF-8.
type Page struct {
	URL         string
	ContentType string
	HTML        []byte
}

type Scraper struct {
	opts Options
	log  *slog.Logger
}

func New(opts Options) *Scraper {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Scraper{opts: opts, log: logger.With("scraper")}
}

// Fetch downloads one page. Links are not followed.
func (s *Scraper) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	target, err := normalizeURL(rawURL)
	if err != nil {
		return nil, err
	}
	if s.opts.RenderJS {
		html, err := s.render(ctx, target)
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", target, err)
		}
		return &Page{URL: target, ContentType: "text/html; charset=utf-8", HTML: []byte(html)}, nil
	}
	return s.get(ctx, target)
}

func (s *Scraper) get(ctx context.Context, target string) (*Page, error) {
	c := colly.NewCollector(colly.MaxDepth(1))
	c.UserAgent = userAgent
	c.WithTransport(&brotliTransport{base: http.DefaultTransport})
	c.SetRequestTimeout(s.opts.Timeout)

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
			return
		}
		r.Headers.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
		r.Headers.Set("Accept-Encoding", "gzip, br")
	})

	var (
		page    *Page
		pageErr error
	)
	c.OnResponse(func(r *colly.Response) {
		contentType := r.Headers.Get("Content-Type")
		if contentType != "" && !strings.Contains(contentType, "text/html") && !strings.Contains(contentType, "application/xhtml+xml") {
			pageErr = fmt.Errorf("%w: %s", ErrNotHTML, contentType)
			return
		}
		body, err := decodeBody(r.Body, contentType)
		if err != nil {
			pageErr = err
			return
		}
		page = &Page{URL: r.Request.URL.String(), ContentType: contentType, HTML: body}
	})

	var reqErr error
	c.OnError(func(r *colly.Response, err error) {
		reqErr = fmt.Errorf("fetch %s: status %d: %w", target, r.StatusCode, err)
	})

	if err := c.Visit(target); err != nil && reqErr == nil {
		reqErr = fmt.Errorf("fetch %s: %w", target, err)
	}
	c.Wait()

	switch {
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case reqErr != nil:
		return nil, reqErr
	case pageErr != nil:
		return nil, pageErr
	case page == nil:
		return nil, fmt.Errorf("fetch %s: empty response", target)
	}
	s.log.Info("page fetched", "url", page.URL, "bytes", len(page.HTML))
	return page, nil
}

// brotliTransport unwraps br bodies before colly reads them, so its charset
// conversion sees the page bytes and not the compressed stream. gzip is left
// to colly.
type brotliTransport struct {
	base http.RoundTripper
}

func (t *brotliTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	res, err := t.base.RoundTrip(req)
	if err != nil || !strings.Contains(strings.ToLower(res.Header.Get("Content-Encoding")), "br") {
		return res, err
	}
	res.Body = &brotliBody{Reader: brotli.NewReader(res.Body), closer: res.Body}
	res.Header.Del("Content-Encoding")
	res.Header.Del("Content-Length")
	res.ContentLength = -1
	res.Uncompressed = true
	return res, nil
}

type brotliBody struct {
	io.Reader
	closer io.Closer
}

func (b *brotliBody) Close() error { return b.closer.Close() }

// decodeBody converts pages that declare no charset in the header, using the
// meta tag or a sniff. colly has already converted the ones that do.
func decodeBody(body []byte, contentType string) ([]byte, error) {
	if len(body) == 0 || strings.Contains(strings.ToLower(contentType), "charset") {
		return body, nil
	}
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		// unknown charset label, keep bytes as they are
		return body, nil
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("charset decode: %w", err)
	}
	return decoded, nil
}

func (s *Scraper) render(ctx context.Context, target string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx,
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.UserAgent(userAgent),
	)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	selector := s.opts.WaitSelector
	if selector == "" {
		selector = "body"
	}

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(target),
		chromedp.WaitReady(selector, chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", err
	}
	s.log.Info("page rendered", "url", target, "bytes", len(html))
	return html, nil
}

func normalizeURL(rawURL string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme == "" {
		parsed, err = url.Parse("https://" + strings.TrimSpace(rawURL))
		if err != nil {
			return "", fmt.Errorf("invalid URL: %w", err)
		}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("invalid URL scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("invalid URL: missing host")
	}
	parsed.Fragment = ""
	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	return parsed.String(), nil
}
