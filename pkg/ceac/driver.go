package ceac

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/ceacwatch/ceacwatch/pkg/checker"
)

// DefaultFormURL is the NIV status-check form, selected via URL parameter so
// no visa-type step is needed.
const DefaultFormURL = "https://ceac.state.gov/ceacstattracker/status.aspx?App=NIV"

// DefaultNavigationTimeout matches the site's slow page loads.
const DefaultNavigationTimeout = 90 * time.Second

// launchArgs harden Chromium against the tracker's automation detection.
var launchArgs = []string{
	"--disable-blink-features=AutomationControlled",
	"--disable-dev-shm-usage",
	"--disable-web-security",
	"--disable-features=IsolateOrigins,site-per-process",
	"--no-sandbox",
	"--disable-setuid-sandbox",
	"--disable-accelerated-2d-canvas",
	"--disable-gpu",
	"--window-size=1920,1080",
	"--disable-infobars",
	"--disable-extensions",
	"--disable-automation",
	"--disable-background-timer-throttling",
	"--disable-backgrounding-occluded-windows",
	"--disable-renderer-backgrounding",
}

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

var extraHeaders = map[string]string{
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,image/apng,*/*;q=0.8",
	"Accept-Language":           "en-US,en;q=0.9",
	"DNT":                       "1",
	"Upgrade-Insecure-Requests": "1",
}

// stealthScript masks the usual headless giveaways before any site script runs.
const stealthScript = `
Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
window.chrome = { runtime: {} };
const originalQuery = window.navigator.permissions.query;
window.navigator.permissions.query = (parameters) => (
    parameters.name === 'notifications' ?
        Promise.resolve({ state: Notification.permission }) :
        originalQuery(parameters)
);
`

// Options configures the driver.
type Options struct {
	// Headless controls whether browsers run without a visible window.
	Headless bool

	// FormURL overrides the status-check form URL. Empty means DefaultFormURL.
	FormURL string

	// NavigationTimeout is the default timeout for page operations.
	// Zero means DefaultNavigationTimeout.
	NavigationTimeout time.Duration
}

// Driver owns the Playwright runtime and launches one browser per session.
// It implements checker.AutomatorFactory.
type Driver struct {
	mu          sync.Mutex
	pw          *playwright.Playwright
	opts        Options
	initialized bool
}

// NewDriver creates a driver. Initialize must be called before NewPage.
func NewDriver(opts Options) *Driver {
	if opts.FormURL == "" {
		opts.FormURL = DefaultFormURL
	}
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = DefaultNavigationTimeout
	}
	return &Driver{opts: opts}
}

// Initialize installs and starts Playwright. Safe to call more than once.
func (d *Driver) Initialize() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.initialized {
		return nil
	}

	runOpts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}
	if err := playwright.Install(runOpts); err != nil {
		return fmt.Errorf("failed to install playwright: %w", err)
	}
	pw, err := playwright.Run(runOpts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	d.pw = pw
	d.initialized = true
	return nil
}

// NewPage launches a hardened browser and returns a page walking the
// status-check form. The page exclusively belongs to one session until its
// Close.
func (d *Driver) NewPage(ctx context.Context) (checker.PageAutomator, error) {
	d.mu.Lock()
	if !d.initialized {
		d.mu.Unlock()
		return nil, fmt.Errorf("driver not initialized")
	}
	pw := d.pw
	d.mu.Unlock()

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(d.opts.Headless),
		Args:     launchArgs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browserCtx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport:          &playwright.Size{Width: 1920, Height: 1080},
		UserAgent:         playwright.String(userAgent),
		Locale:            playwright.String("en-US"),
		TimezoneId:        playwright.String("America/New_York"),
		IgnoreHttpsErrors: playwright.Bool(true),
		ExtraHttpHeaders:  extraHeaders,
	})
	if err != nil {
		_ = browser.Close()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	page, err := browserCtx.NewPage()
	if err != nil {
		_ = browserCtx.Close()
		_ = browser.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	page.SetDefaultTimeout(float64(d.opts.NavigationTimeout.Milliseconds()))
	if err := page.AddInitScript(playwright.Script{Content: playwright.String(stealthScript)}); err != nil {
		_ = browserCtx.Close()
		_ = browser.Close()
		return nil, fmt.Errorf("failed to add stealth script: %w", err)
	}

	return &Page{
		browser: browser,
		context: browserCtx,
		page:    page,
		formURL: d.opts.FormURL,
	}, nil
}

// Shutdown stops the Playwright runtime. Pages must be released first.
func (d *Driver) Shutdown() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.initialized {
		return nil
	}
	d.initialized = false
	if err := d.pw.Stop(); err != nil {
		return fmt.Errorf("failed to stop playwright: %w", err)
	}
	return nil
}
