package catawiki

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
)

var errNoNextData = errors.New("__NEXT_DATA__ script tag not found")

// extractBuildID pulls the Next.js build ID out of a rendered category page.
func extractBuildID(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse HTML: %w", err)
	}

	script := doc.Find("script#__NEXT_DATA__").First()
	if script.Length() == 0 {
		return "", errNoNextData
	}

	var data struct {
		BuildID string `json:"buildId"`
	}
	if err := json.Unmarshal([]byte(script.Text()), &data); err != nil {
		return "", fmt.Errorf("parse __NEXT_DATA__: %w", err)
	}
	if data.BuildID == "" {
		return "", errors.New("buildId not found in __NEXT_DATA__")
	}
	return data.BuildID, nil
}

// dataURL maps a category page URL onto its Next.js data endpoint:
// https://host/en/c/333-watches -> https://host/_next/data/{id}/en/c/333-watches.json
func dataURL(categoryPageURL, buildID string) (string, error) {
	u, err := url.Parse(categoryPageURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid category page URL %q", categoryPageURL)
	}
	p := strings.TrimRight(u.Path, "/")
	return fmt.Sprintf("%s://%s/_next/data/%s%s.json", u.Scheme, u.Host, url.PathEscape(buildID), p), nil
}

// categorySlug returns the last path segment of the category page URL,
// e.g. "333-watches".
func categorySlug(categoryPageURL string) string {
	u, err := url.Parse(categoryPageURL)
	if err != nil {
		return ""
	}
	p := strings.TrimRight(u.Path, "/")
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}

// ResolveBaseURL returns the listing data endpoint. A configured base URL
// wins; otherwise the build ID is read from the category page, rendering it
// in a headless browser when the plain HTTP response carries no build data.
func (s *Scraper) ResolveBaseURL(ctx context.Context) (string, error) {
	if s.baseURL != "" {
		return s.baseURL, nil
	}

	pageURL := s.cfg.CategoryPageURL
	s.logger.Info("[catawiki] Fetching category page for build ID: %s", pageURL)

	html, err := s.getPage(ctx, pageURL)
	if err != nil {
		return "", err
	}

	buildID, err := extractBuildID(html)
	if err != nil && s.cfg.BrowserFallback && s.renderPage != nil {
		s.logger.Warn("[catawiki] %v, rendering page in headless browser", err)
		rendered, rerr := s.renderPage(ctx, pageURL)
		if rerr != nil {
			return "", &FetchError{URL: pageURL, Message: "browser rendering failed", Cause: rerr}
		}
		buildID, err = extractBuildID(rendered)
	}
	if err != nil {
		return "", &FetchError{URL: pageURL, Message: "could not determine build ID", Cause: err}
	}

	base, err := dataURL(pageURL, buildID)
	if err != nil {
		return "", &FetchError{URL: pageURL, Cause: err}
	}

	s.logger.Info("[catawiki] Build ID %s, data endpoint %s", buildID, base)
	s.baseURL = base
	return base, nil
}

func (s *Scraper) getPage(ctx context.Context, pageURL string) (string, error) {
	var body string
	var status int

	err := s.retry.Do(ctx, "category-page", func(ctx context.Context) error {
		status = 0
		resp, err := s.client.R().SetContext(ctx).Get(pageURL)
		if err != nil {
			return err
		}
		if !resp.IsSuccess() {
			status = resp.StatusCode()
			return &statusError{code: status}
		}
		body = resp.String()
		return nil
	})
	if err != nil {
		return "", &FetchError{URL: pageURL, StatusCode: status, Cause: err}
	}
	return body, nil
}

// renderWithBrowser loads a page in headless Chrome and returns its HTML.
func renderWithBrowser(chromeBin string, timeout time.Duration) func(ctx context.Context, pageURL string) (string, error) {
	return func(ctx context.Context, pageURL string) (string, error) {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.UserAgent(userAgent),
		)
		if bin := findChromeBinary(chromeBin); bin != "" {
			opts = append(opts, chromedp.ExecPath(bin))
		}

		allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
		defer cancelAlloc()

		// Suppress chromedp log noise
		browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
		defer cancelBrowser()

		browserCtx, cancelTimeout := context.WithTimeout(browserCtx, timeout)
		defer cancelTimeout()

		var html string
		err := chromedp.Run(browserCtx,
			chromedp.Navigate(pageURL),
			chromedp.WaitReady("body"),
			chromedp.OuterHTML("html", &html),
		)
		if err != nil {
			return "", err
		}
		return html, nil
	}
}

func findChromeBinary(configured string) string {
	if configured != "" {
		return configured
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
