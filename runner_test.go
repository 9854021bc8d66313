package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFeed serves scripted batches, one per cycle, then empties.
type fakeFeed struct {
	batches [][]FeedItem
	calls   int
	onFetch func()
}

func (f *fakeFeed) FetchBatch(ctx context.Context, limit int) []FeedItem {
	if f.onFetch != nil {
		f.onFetch()
	}
	if f.calls >= len(f.batches) {
		f.calls++
		return nil
	}
	batch := f.batches[f.calls]
	f.calls++
	return batch
}

// fakeDriver records attempts and fails the ids it is told to fail.
type fakeDriver struct {
	failIDs   map[string]bool
	attempts  []string
	onPublish func(id string)
}

func (d *fakeDriver) Publish(item FeedItem) AttemptResult {
	d.attempts = append(d.attempts, item.ID)
	if d.onPublish != nil {
		d.onPublish(item.ID)
	}
	if d.failIDs[item.ID] {
		return failure(StageConfirm, assert.AnError)
	}
	return success()
}

type fakeBroker struct {
	err         error
	onEstablish func()
}

func (b *fakeBroker) Establish(ctx context.Context) error {
	if b.onEstablish != nil {
		b.onEstablish()
	}
	return b.err
}

func items(ids ...string) []FeedItem {
	out := make([]FeedItem, len(ids))
	for i, id := range ids {
		out[i] = FeedItem{
			ID: id,
			Multilingual: map[string]LocalizedContent{
				"zh": {Title: "标题" + id, Summary: Paragraphs{"正文" + id}},
			},
		}
	}
	return out
}

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	return NewLedger(filepath.Join(t.TempDir(), "marker.txt"))
}

func TestCycleNewestFirstBatchAgainstMarker(t *testing.T) {
	ledger := newTestLedger(t)
	require.NoError(t, ledger.Commit("1"))

	feed := &fakeFeed{batches: [][]FeedItem{items("3", "2", "1")}}
	driver := &fakeDriver{}
	runner := NewRunner(feed, driver, ledger, &fakeBroker{}, 10, time.Millisecond)

	published := runner.runCycle(context.Background())

	assert.Equal(t, []string{"3", "2"}, driver.attempts, "only items ahead of the marker are attempted, in order")
	assert.Equal(t, 2, published)
	assert.Equal(t, "2", ledger.Last())
}

func TestCycleFailureHaltsBatchAndKeepsMarker(t *testing.T) {
	ledger := newTestLedger(t)
	require.NoError(t, ledger.Commit("1"))

	feed := &fakeFeed{batches: [][]FeedItem{items("3", "2", "1")}}
	driver := &fakeDriver{failIDs: map[string]bool{"2": true}}
	runner := NewRunner(feed, driver, ledger, &fakeBroker{}, 10, time.Millisecond)

	published := runner.runCycle(context.Background())

	assert.Equal(t, []string{"3", "2"}, driver.attempts, "items after the failed one are not attempted")
	assert.Equal(t, 1, published)
	assert.Equal(t, "3", ledger.Last(), "marker stays at the last confirmed success")
}

func TestCycleFailureAtFirstItemLeavesMarkerUntouched(t *testing.T) {
	ledger := newTestLedger(t)
	require.NoError(t, ledger.Commit("1"))

	feed := &fakeFeed{batches: [][]FeedItem{items("3", "2")}}
	driver := &fakeDriver{failIDs: map[string]bool{"3": true}}
	runner := NewRunner(feed, driver, ledger, &fakeBroker{}, 10, time.Millisecond)

	published := runner.runCycle(context.Background())

	assert.Equal(t, []string{"3"}, driver.attempts)
	assert.Zero(t, published)
	assert.Equal(t, "1", ledger.Last())
}

func TestCycleEmptyBatchAdvancesNothing(t *testing.T) {
	ledger := newTestLedger(t)
	require.NoError(t, ledger.Commit("7"))

	feed := &fakeFeed{}
	driver := &fakeDriver{}
	runner := NewRunner(feed, driver, ledger, &fakeBroker{}, 10, time.Millisecond)

	published := runner.runCycle(context.Background())

	assert.Zero(t, published)
	assert.Empty(t, driver.attempts)
	assert.Equal(t, "7", ledger.Last())
}

func TestCycleMarkerIsDurablePerItem(t *testing.T) {
	ledgerPath := filepath.Join(t.TempDir(), "marker.txt")
	ledger := NewLedger(ledgerPath)

	feed := &fakeFeed{batches: [][]FeedItem{items("2", "1")}}
	driver := &fakeDriver{failIDs: map[string]bool{"1": true}}
	driver.onPublish = func(id string) {
		if id == "1" {
			// By the time the second attempt starts, the first success
			// must already be on disk.
			assert.Equal(t, "2", NewLedger(ledgerPath).Last())
		}
	}
	runner := NewRunner(feed, driver, ledger, &fakeBroker{}, 10, time.Millisecond)

	runner.runCycle(context.Background())
	assert.Equal(t, "2", ledger.Last())
}

func TestCycleSkipsLastPublishedAcrossCycles(t *testing.T) {
	ledger := newTestLedger(t)

	feed := &fakeFeed{batches: [][]FeedItem{items("1"), items("1")}}
	driver := &fakeDriver{}
	runner := NewRunner(feed, driver, ledger, &fakeBroker{}, 10, time.Millisecond)

	runner.runCycle(context.Background())
	runner.runCycle(context.Background())

	assert.Equal(t, []string{"1"}, driver.attempts, "an item matching the marker is never re-submitted")
	assert.Equal(t, "1", ledger.Last())
}

func TestCycleHonorsShutdownBetweenItems(t *testing.T) {
	ledger := newTestLedger(t)

	ctx, cancel := context.WithCancel(context.Background())
	feed := &fakeFeed{batches: [][]FeedItem{items("2", "1")}}
	driver := &fakeDriver{onPublish: func(id string) { cancel() }}
	runner := NewRunner(feed, driver, ledger, &fakeBroker{}, 10, time.Millisecond)

	runner.runCycle(ctx)

	assert.Equal(t, []string{"2"}, driver.attempts, "shutdown is honored between items, not mid-attempt")
	assert.Equal(t, "2", ledger.Last(), "the attempt already underway still commits")
}

func TestRunEstablishesSessionBeforeFirstFetch(t *testing.T) {
	ledger := newTestLedger(t)

	var order []string
	ctx, cancel := context.WithCancel(context.Background())

	broker := &fakeBroker{onEstablish: func() { order = append(order, "session") }}
	feed := &fakeFeed{onFetch: func() {
		order = append(order, "fetch")
		cancel()
	}}
	runner := NewRunner(feed, &fakeDriver{}, ledger, broker, 10, time.Millisecond)

	require.NoError(t, runner.Run(ctx))
	assert.Equal(t, []string{"session", "fetch"}, order)
}

func TestRunFailedSessionIsFatal(t *testing.T) {
	ledger := newTestLedger(t)

	feed := &fakeFeed{onFetch: func() { t.Fatal("fetch must not run without a validated session") }}
	broker := &fakeBroker{err: assert.AnError}
	runner := NewRunner(feed, &fakeDriver{}, ledger, broker, 10, time.Millisecond)

	err := runner.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestRunStopsOnShutdownDuringWait(t *testing.T) {
	ledger := newTestLedger(t)

	ctx, cancel := context.WithCancel(context.Background())
	cycles := 0
	feed := &fakeFeed{onFetch: func() {
		cycles++
		if cycles == 2 {
			cancel()
		}
	}}
	runner := NewRunner(feed, &fakeDriver{}, ledger, &fakeBroker{}, 10, time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not stop after shutdown")
	}
	assert.GreaterOrEqual(t, cycles, 2)
}
