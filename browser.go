package main

import (
	"fmt"
	"io"

	"github.com/playwright-community/playwright-go"
)

// BrowserOptions configures the single browser context the process owns.
type BrowserOptions struct {
	// Headless controls whether the browser runs without a visible window.
	// Interactive login needs a visible window, so the default is false.
	Headless bool

	// WindowWidth and WindowHeight size the viewport so the composer and
	// submit control stay on screen.
	WindowWidth  int
	WindowHeight int

	// StepTimeout bounds every locator wait and navigation, in milliseconds.
	StepTimeout float64
}

// Browser owns the Playwright driver and the one live browser context used
// for login, validation, and publishing. There is never more than one.
type Browser struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
}

// NewBrowser installs the Playwright driver if needed, launches Chromium, and
// opens a single context with one page.
func NewBrowser(opts BrowserOptions) (*Browser, error) {
	runOpts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}

	if err := playwright.Install(runOpts); err != nil {
		return nil, fmt.Errorf("installing playwright driver: %w", err)
	}

	pw, err := playwright.Run(runOpts)
	if err != nil {
		return nil, fmt.Errorf("starting playwright: %w", err)
	}

	if opts.WindowWidth <= 0 {
		opts.WindowWidth = 1920
	}
	if opts.WindowHeight <= 0 {
		opts.WindowHeight = 1080
	}

	args := []string{
		fmt.Sprintf("--window-size=%d,%d", opts.WindowWidth, opts.WindowHeight),
		"--start-maximized",
	}
	if runningInCI() {
		args = append(args, "--no-sandbox", "--disable-dev-shm-usage")
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		Args:     args,
	})
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("launching browser: %w", err)
	}

	context, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  opts.WindowWidth,
			Height: opts.WindowHeight,
		},
	})
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("creating browser context: %w", err)
	}

	page, err := context.NewPage()
	if err != nil {
		context.Close()
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("creating page: %w", err)
	}

	if opts.StepTimeout > 0 {
		page.SetDefaultTimeout(opts.StepTimeout)
	}

	return &Browser{
		pw:      pw,
		browser: browser,
		context: context,
		page:    page,
	}, nil
}

// Page returns the single live page.
func (b *Browser) Page() playwright.Page {
	return b.page
}

// Context returns the single live browser context.
func (b *Browser) Context() playwright.BrowserContext {
	return b.context
}

// Close tears everything down: page, context, browser, then the driver.
func (b *Browser) Close() {
	if b == nil {
		return
	}
	_ = b.page.Close()
	_ = b.context.Close()
	_ = b.browser.Close()
	_ = b.pw.Stop()
}
