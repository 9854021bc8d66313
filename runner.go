package main

import (
	"context"
	"fmt"
	"log"
	"time"
)

// FeedSource yields bounded batches of candidate items, newest-first.
type FeedSource interface {
	FetchBatch(ctx context.Context, limit int) []FeedItem
}

// PublishDriver pushes one item through the publish surface.
type PublishDriver interface {
	Publish(item FeedItem) AttemptResult
}

// sessionEstablisher leaves the browser holding a validated session.
type sessionEstablisher interface {
	Establish(ctx context.Context) error
}

// Runner drives the whole process: establish a session once, then poll,
// filter against the dedup marker, publish in order, and wait.
type Runner struct {
	feed     FeedSource
	driver   PublishDriver
	ledger   *Ledger
	session  sessionEstablisher
	limit    int
	interval time.Duration
}

// NewRunner wires the orchestrator together.
func NewRunner(feed FeedSource, driver PublishDriver, ledger *Ledger, session sessionEstablisher, limit int, interval time.Duration) *Runner {
	return &Runner{
		feed:     feed,
		driver:   driver,
		ledger:   ledger,
		session:  session,
		limit:    limit,
		interval: interval,
	}
}

// Run blocks until ctx is cancelled. No publish happens before the session is
// validated; a session that cannot be established is fatal.
func (r *Runner) Run(ctx context.Context) error {
	log.Printf("[boot] starting up")

	if err := r.session.Establish(ctx); err != nil {
		return fmt.Errorf("establishing session: %w", err)
	}

	for {
		published := r.runCycle(ctx)
		if ctx.Err() != nil {
			log.Printf("[exit] shutdown requested")
			return nil
		}
		if published == 0 {
			log.Printf("[idle] no new content, waiting...")
		}
		if !r.wait(ctx) {
			log.Printf("[exit] shutdown requested")
			return nil
		}
	}
}

// runCycle fetches one batch and publishes everything new, in the order
// received. The dedup marker is compared as it stood at the start of the
// cycle: an item matching it was the last success and is skipped; everything
// else is a candidate. Processing halts at the first failure so a broken
// attempt never interleaves with later items against the same browser
// context; the unattempted tail comes back next cycle.
func (r *Runner) runCycle(ctx context.Context) int {
	batch := r.feed.FetchBatch(ctx, r.limit)
	if len(batch) == 0 {
		return 0
	}

	marker := r.ledger.Last()
	published := 0

	for _, item := range batch {
		// Shutdown is honored between items, never mid-attempt.
		if ctx.Err() != nil {
			break
		}
		if item.ID == marker {
			debugLog("item %s already published, skipping", item.ID)
			continue
		}

		log.Printf("[main] new content detected: %s", item.ID)
		result := r.driver.Publish(item)
		if !result.OK {
			log.Printf("[main] publish failed (stage=%s): %v; halting batch until next cycle", result.Stage, result.Err)
			break
		}

		if err := r.ledger.Commit(item.ID); err != nil {
			// The post is live but the marker is not durable; halting
			// here keeps the damage to at most one duplicate.
			log.Printf("[ledger] marker commit failed: %v; halting batch", err)
			break
		}
		published++
		log.Printf("[main] published %s (%d this cycle)", item.ID, published)
	}

	return published
}

// wait sleeps for the polling interval. It returns false when shutdown was
// requested during the wait.
func (r *Runner) wait(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(r.interval):
		return true
	}
}
