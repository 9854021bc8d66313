package main

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
)

// errNotPublishable marks an item with no usable title/body representation.
var errNotPublishable = errors.New("item has no publishable content")

// PublishConfig holds the UI coordinates of the publish surface.
type PublishConfig struct {
	ComposeURL      string
	ListURL         string
	EditorSelector  string
	SubmitSelector  string
	OverlaySelector string
	Language        string
	Tags            []string

	// StepTimeout bounds each step, in milliseconds. Exceeding it is
	// indistinguishable from a functional failure of that step.
	StepTimeout float64
}

// Publisher pushes one item at a time through the publish surface. Each
// attempt is a fixed sequence: navigate, compose, dismiss overlays, submit,
// confirm. A failed attempt is never retried in-process.
type Publisher struct {
	browser *Browser
	cfg     PublishConfig
}

// NewPublisher creates a publish driver over the live browser.
func NewPublisher(b *Browser, cfg PublishConfig) *Publisher {
	return &Publisher{browser: b, cfg: cfg}
}

// Publish runs one complete attempt for item. The only success signal is the
// browser reaching the listing URL within the step timeout; everything else
// is failure.
func (p *Publisher) Publish(item FeedItem) AttemptResult {
	page := p.browser.Page()
	log.Printf("[publish] publishing item %s", item.ID)

	if _, err := page.Goto(p.cfg.ComposeURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
		Timeout:   playwright.Float(p.cfg.StepTimeout),
	}); err != nil {
		return p.fail(StageNavigate, fmt.Errorf("opening composer: %w", err))
	}

	message, ok := composeMessage(item, p.cfg.Language, p.cfg.Tags)
	if !ok {
		return p.fail(StageCompose, errNotPublishable)
	}

	editor := page.Locator(p.cfg.EditorSelector).First()
	if err := editor.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(p.cfg.StepTimeout),
	}); err != nil {
		return p.fail(StageCompose, fmt.Errorf("waiting for editor: %w", err))
	}
	// Fill replaces whatever a previous attempt may have left behind.
	if err := editor.Fill(message, playwright.LocatorFillOptions{
		Timeout: playwright.Float(p.cfg.StepTimeout),
	}); err != nil {
		return p.fail(StageCompose, fmt.Errorf("filling editor: %w", err))
	}

	p.dismissOverlays()

	if err := p.submit(); err != nil {
		return p.fail(StageSubmit, err)
	}

	log.Printf("[publish] submitted, waiting for listing page...")
	if err := page.WaitForURL(p.cfg.ListURL, playwright.PageWaitForURLOptions{
		Timeout: playwright.Float(p.cfg.StepTimeout),
	}); err != nil {
		return p.fail(StageConfirm, fmt.Errorf("no navigation to listing page: %w", err))
	}

	log.Printf("[publish] item %s published", item.ID)
	return success()
}

// submit locates the submit control, scrolls it into view, and clicks it. A
// direct click can fail when the control is obscured; a programmatic click
// against the same element is the fallback before giving up.
func (p *Publisher) submit() error {
	button := p.browser.Page().Locator(p.cfg.SubmitSelector).First()

	if err := button.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(p.cfg.StepTimeout),
	}); err != nil {
		return fmt.Errorf("waiting for submit control: %w", err)
	}
	if err := button.ScrollIntoViewIfNeeded(playwright.LocatorScrollIntoViewIfNeededOptions{
		Timeout: playwright.Float(p.cfg.StepTimeout),
	}); err != nil {
		return fmt.Errorf("scrolling to submit control: %w", err)
	}

	if err := button.Click(playwright.LocatorClickOptions{
		Timeout: playwright.Float(p.cfg.StepTimeout),
	}); err != nil {
		log.Printf("[publish] direct click failed (%v), trying programmatic click", err)
		if _, evalErr := button.Evaluate("el => el.click()", nil); evalErr != nil {
			return fmt.Errorf("programmatic click also failed: %w", evalErr)
		}
	}
	return nil
}

// dismissOverlays makes a best-effort pass over transient interstitials.
// Zero or more of these may be present; none of them are allowed to abort
// the attempt, so every error here is swallowed.
func (p *Publisher) dismissOverlays() {
	if p.cfg.OverlaySelector == "" {
		return
	}

	closers := p.browser.Page().Locator(p.cfg.OverlaySelector)
	count, err := closers.Count()
	if err != nil {
		return
	}
	if count > 3 {
		count = 3
	}

	for i := 0; i < count; i++ {
		closer := closers.Nth(i)
		visible, err := closer.IsVisible()
		if err != nil || !visible {
			continue
		}
		_ = closer.Click(playwright.LocatorClickOptions{
			Timeout: playwright.Float(1000),
		})
	}
}

func (p *Publisher) fail(stage AttemptStage, err error) AttemptResult {
	log.Printf("[publish] attempt failed at %s: %v", stage, err)
	p.captureFailure()
	return failure(stage, err)
}

// captureFailure snapshots the browser for debugging when running in an
// automated environment. Capture failures are swallowed.
func (p *Publisher) captureFailure() {
	if !runningInCI() {
		return
	}
	path := fmt.Sprintf("error_screenshot_%s.png", time.Now().Format("20060102_150405"))
	if _, err := p.browser.Page().Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
	}); err != nil {
		debugLog("screenshot failed: %v", err)
		return
	}
	log.Printf("[publish] failure screenshot saved: %s", path)
}

// composeMessage builds the final post text: the resolved title wrapped in
// lenticular brackets, the body, then the static tags. ok is false when the
// item has no publishable representation.
func composeMessage(item FeedItem, lang string, tags []string) (string, bool) {
	title, body, ok := item.Resolve(lang)
	if !ok {
		return "", false
	}

	message := fmt.Sprintf("【%s】\n\n%s", title, body)
	if len(tags) > 0 {
		message += "\n\n" + strings.Join(tags, " ")
	}
	return message, true
}
