package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
)

// SessionStore owns the on-disk cookie blob. Load fails soft: a missing or
// unreadable file just means the caller must log in interactively.
type SessionStore struct {
	path string
}

// NewSessionStore creates a store backed by the given file path.
func NewSessionStore(path string) *SessionStore {
	return &SessionStore{path: path}
}

// Load reads the stored cookie set. ok is false when no usable session exists.
func (s *SessionStore) Load() ([]playwright.OptionalCookie, bool) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, false
	}

	var cookies []playwright.OptionalCookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		log.Printf("[cookie] stored session unreadable, ignoring: %v", err)
		return nil, false
	}
	if len(cookies) == 0 {
		return nil, false
	}
	return cookies, true
}

// Save overwrites the stored cookie set unconditionally (last-write-wins).
func (s *SessionStore) Save(cookies []playwright.Cookie) error {
	data, err := json.MarshalIndent(cookies, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding cookies: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating session directory: %w", err)
		}
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("writing session file: %w", err)
	}
	return nil
}

// SessionSurface is the slice of browser behavior the session broker needs:
// restore a stored session, report where the browser landed, block through an
// interactive login, and export the live cookies afterwards.
type SessionSurface interface {
	Restore(cookies []playwright.OptionalCookie) error
	Location() string
	AwaitLogin(ctx context.Context) error
	Export() ([]playwright.Cookie, error)
}

// browserSurface implements SessionSurface against the live browser context.
type browserSurface struct {
	browser     *Browser
	origin      string
	loginMarker string
	timeout     float64
}

// NewBrowserSurface wires the live browser to the session broker. origin is
// the authenticated site root; loginMarker is the URL substring that marks a
// login page.
func NewBrowserSurface(b *Browser, origin, loginMarker string, timeout float64) SessionSurface {
	return &browserSurface{
		browser:     b,
		origin:      origin,
		loginMarker: loginMarker,
		timeout:     timeout,
	}
}

// Restore injects the stored cookies, opens the origin, and forces a reload
// so the site re-evaluates the session. Where the browser ends up afterwards
// is the validation signal; see Location.
func (s *browserSurface) Restore(cookies []playwright.OptionalCookie) error {
	page := s.browser.Page()

	// Cookies can only be attached once the context has visited the domain.
	if _, err := page.Goto(s.origin, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
		Timeout:   playwright.Float(s.timeout),
	}); err != nil {
		return fmt.Errorf("opening origin: %w", err)
	}

	if err := s.browser.Context().AddCookies(cookies); err != nil {
		return fmt.Errorf("injecting cookies: %w", err)
	}

	if _, err := page.Reload(playwright.PageReloadOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
		Timeout:   playwright.Float(s.timeout),
	}); err != nil {
		return fmt.Errorf("reloading after cookie injection: %w", err)
	}

	return nil
}

// Location reports the browser's current URL.
func (s *browserSurface) Location() string {
	return s.browser.Page().URL()
}

// AwaitLogin opens the origin and blocks until the browser is no longer on a
// login surface, polling the URL. Cancellation aborts the wait.
func (s *browserSurface) AwaitLogin(ctx context.Context) error {
	page := s.browser.Page()

	if _, err := page.Goto(s.origin, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
		Timeout:   playwright.Float(s.timeout),
	}); err != nil {
		return fmt.Errorf("opening login page: %w", err)
	}

	for isLoginURL(page.URL(), s.loginMarker) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	return nil
}

// Export captures the live cookie set from the browser context.
func (s *browserSurface) Export() ([]playwright.Cookie, error) {
	return s.browser.Context().Cookies()
}

// isLoginURL reports whether the URL indicates a login surface.
func isLoginURL(url, marker string) bool {
	if marker == "" {
		marker = "login"
	}
	return strings.Contains(strings.ToLower(url), strings.ToLower(marker))
}

// SessionBroker drives the login-or-resume sequence: load the stored session,
// validate it against the live site, fall back to interactive login when it is
// absent or stale, and persist after login or any successful validation.
type SessionBroker struct {
	store       *SessionStore
	surface     SessionSurface
	loginMarker string
}

// NewSessionBroker creates a broker over the given store and surface.
func NewSessionBroker(store *SessionStore, surface SessionSurface, loginMarker string) *SessionBroker {
	return &SessionBroker{
		store:       store,
		surface:     surface,
		loginMarker: loginMarker,
	}
}

// Establish leaves the browser holding a validated session, or returns an
// error if login could not complete. Only validated sessions are trusted for
// publishing, so this must succeed before the first fetch.
func (b *SessionBroker) Establish(ctx context.Context) error {
	if cookies, ok := b.store.Load(); ok {
		log.Printf("[cookie] injecting stored session, validating against live site")
		if err := b.surface.Restore(cookies); err != nil {
			log.Printf("[cookie] restore failed: %v", err)
		} else if isLoginURL(b.surface.Location(), b.loginMarker) {
			log.Printf("[cookie] stored session is stale, login required")
		} else {
			log.Printf("[cookie] session validated, reusing")
			return b.persist()
		}
	} else {
		log.Printf("[cookie] no stored session found")
	}

	log.Printf("[login] complete the login in the browser window...")
	if err := b.surface.AwaitLogin(ctx); err != nil {
		return fmt.Errorf("interactive login: %w", err)
	}

	log.Printf("[login] login detected, saving session")
	return b.persist()
}

func (b *SessionBroker) persist() error {
	cookies, err := b.surface.Export()
	if err != nil {
		return fmt.Errorf("capturing live session: %w", err)
	}
	if err := b.store.Save(cookies); err != nil {
		return fmt.Errorf("persisting session: %w", err)
	}
	return nil
}
