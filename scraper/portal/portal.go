package portal

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"boohill-ingest/config"
	"boohill-ingest/utils"
)

// ErrNoURLs is returned when Fetch is called with nothing to load.
var ErrNoURLs = errors.New("portal: no urls to fetch")

// Page is the rendered text of one listing page.
type Page struct {
	URL       string
	Text      string
	FetchedAt time.Time
}

// loadFunc renders url and returns the visible page text.
type loadFunc func(ctx context.Context, url string) (string, error)

// Fetcher loads listing pages in a headless browser and returns their
// visible text, ready for the parser.
type Fetcher struct {
	logger *utils.Logger
	pool   *utils.WorkerPool
	retry  *utils.RetryConfig
	settle time.Duration
	bin    string
	load   loadFunc
}

// New creates a Fetcher using the browser, concurrency and rate settings
// of cfg.
func New(cfg *config.Config, logger *utils.Logger) *Fetcher {
	f := &Fetcher{
		logger: logger,
		pool:   utils.NewWorkerPool(cfg.MaxConcurrency, cfg.RateLimitMs),
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		},
		settle: time.Duration(cfg.PageSettleMs) * time.Millisecond,
		bin:    cfg.ChromeBin,
	}
	f.load = f.loadInBrowser
	return f
}

// Fetch loads every distinct URL and returns the pages in input order.
// Pages that fail after all retries are logged and left out; the joined
// errors are returned alongside whatever succeeded.
func (f *Fetcher) Fetch(ctx context.Context, urls []string) ([]*Page, error) {
	seen := utils.NewSeenSet()
	targets := make([]string, 0, len(urls))
	for _, raw := range urls {
		u, err := NormalizeURL(raw)
		if err != nil {
			f.logger.Warn("[portal] Skipping %q: %v", raw, err)
			continue
		}
		if !seen.Add(u) {
			f.logger.Debug("[portal] Skipping duplicate: %s", u)
			continue
		}
		targets = append(targets, u)
	}
	if len(targets) == 0 {
		return nil, ErrNoURLs
	}

	if f.load == nil {
		f.load = f.loadInBrowser
	}

	ctx, stop := f.browserContext(ctx)
	defer stop()

	f.logger.Info("[portal] Fetching %d pages", len(targets))

	var mu sync.Mutex
	pages := make([]*Page, len(targets))
	for i, u := range targets {
		i, u := i, u
		f.pool.Submit(func() error {
			var text string
			err := f.retry.DoContext(ctx, "fetch "+u, func() error {
				var err error
				text, err = f.load(ctx, u)
				return err
			})
			if err != nil {
				f.logger.Error("[portal] %s failed: %v", u, err)
				return fmt.Errorf("portal: %s: %w", u, err)
			}

			mu.Lock()
			pages[i] = &Page{URL: u, Text: text, FetchedAt: time.Now()}
			mu.Unlock()
			f.logger.Info("[portal] Fetched %s (%d chars)", u, len([]rune(text)))
			return nil
		})
	}
	err := f.pool.Wait()

	out := make([]*Page, 0, len(pages))
	for _, p := range pages {
		if p != nil {
			out = append(out, p)
		}
	}
	return out, err
}

// JoinPages concatenates page texts into one paste, one page per block.
func JoinPages(pages []*Page) string {
	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		if t := strings.TrimSpace(p.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}

// NormalizeURL accepts absolute http(s) URLs only and drops the fragment.
func NormalizeURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", errors.New("missing host")
	}
	u.Fragment = ""
	return u.String(), nil
}

type browserKey struct{}

// browserContext starts one headless browser shared by every page of a
// fetch. Injected loaders get ctx unchanged.
func (f *Fetcher) browserContext(ctx context.Context) (context.Context, func()) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 "+
			"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	)
	bin := f.bin
	if bin == "" {
		bin = FindChromeBinary()
	}
	if bin != "" {
		opts = append(opts, chromedp.ExecPath(bin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	return context.WithValue(ctx, browserKey{}, browserCtx), func() {
		cancelBrowser()
		cancelAlloc()
	}
}

// loadInBrowser opens url in a new tab and reads document.body.innerText
// once the page has had time to render.
func (f *Fetcher) loadInBrowser(ctx context.Context, u string) (string, error) {
	parent, ok := ctx.Value(browserKey{}).(context.Context)
	if !ok {
		return "", errors.New("portal: no browser in context")
	}

	tab, cancel := chromedp.NewContext(parent)
	defer cancel()
	tab, cancelTimeout := context.WithTimeout(tab, 60*time.Second)
	defer cancelTimeout()

	var text string
	err := chromedp.Run(tab,
		chromedp.Navigate(u),
		chromedp.Sleep(f.settle),
		chromedp.Evaluate(`document.body ? document.body.innerText : ''`, &text),
	)
	if err != nil {
		return "", fmt.Errorf("chromedp extract: %w", err)
	}
	return text, nil
}

// FindChromeBinary locates a Chrome or Chromium binary, preferring CHROME_BIN.
func FindChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	for _, name := range []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	for _, p := range []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
	} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
