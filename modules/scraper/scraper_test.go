package scraper

import (
	"context"
	"flag"
	"strings"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapunion/visibility/pkg/content"
	"github.com/leapunion/visibility/pkg/model"
)

type fakeRender struct {
	calls   int
	results []func() (content.RawScrape, error)
}

func (f *fakeRender) Scrape(ctx context.Context, url string) (content.RawScrape, error) {
	res := f.results[f.calls]
	f.calls++
	return res()
}

func okScrape(text string) func() (content.RawScrape, error) {
	return func() (content.RawScrape, error) {
		return content.RawScrape{
			URL:        "https://chatgpt.com/search?q=test",
			Content:    text,
			StatusCode: 200,
			ScrapedAt:  time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC),
		}, nil
	}
}

func failScrape(msg string) func() (content.RawScrape, error) {
	return func() (content.RawScrape, error) {
		return content.RawScrape{}, errors.New(msg)
	}
}

type fakeSnapshots struct {
	inserted []model.Snapshot
}

func (f *fakeSnapshots) InsertSnapshot(ctx context.Context, snap model.Snapshot) (string, error) {
	f.inserted = append(f.inserted, snap)
	return "66cf01ab12cd34ef56ab78cd", nil
}

type fakeCosts struct {
	total float64
	adds  int
}

func (f *fakeCosts) Add(ctx context.Context, amountUSD float64) (float64, error) {
	f.total += amountUSD
	f.adds++
	return f.total, nil
}

func testScraper(t *testing.T, render *fakeRender) (*PlatformScraper, *fakeSnapshots, *fakeCosts) {
	t.Helper()

	cfg := &Config{}
	cfg.RegisterFlagsAndApplyDefaults("", flag.NewFlagSet("", flag.PanicOnError))
	cfg.RetryDelays = nil

	snaps := &fakeSnapshots{}
	costs := &fakeCosts{}
	s := NewPlatformScraper(model.PlatformChatGPT, cfg, render, snaps, costs, log.NewNopLogger())
	return s, snaps, costs
}

func TestScrapeSuccess(t *testing.T) {
	text := strings.Repeat("The Levoit Core 300S is a strong pick for small rooms. ", 4)
	render := &fakeRender{results: []func() (content.RawScrape, error){okScrape(text)}}
	s, snaps, costs := testScraper(t, render)

	processed, err := s.Scrape(context.Background(), "best air purifier 2025")
	require.NoError(t, err)

	assert.Equal(t, "66cf01ab12cd34ef56ab78cd", processed.SnapshotID)
	assert.NotEmpty(t, processed.CleanText)
	assert.Equal(t, 1, render.calls)
	assert.Equal(t, 1, costs.adds)

	require.Len(t, snaps.inserted, 1)
	snap := snaps.inserted[0]
	assert.Equal(t, "best air purifier 2025", snap.QueryText)
	assert.Equal(t, model.PlatformChatGPT, snap.Platform)
	assert.Equal(t, content.Hash(text), snap.ContentHash)
}

func TestScrapeQuarantineNotRetried(t *testing.T) {
	render := &fakeRender{results: []func() (content.RawScrape, error){okScrape("")}}
	s, snaps, _ := testScraper(t, render)

	_, err := s.Scrape(context.Background(), "best air purifier 2025")
	qe, ok := content.AsQuarantine(err)
	require.True(t, ok)
	assert.Equal(t, content.KindEmptyContent, qe.Kind)

	// One render call only, and the raw snapshot is still persisted.
	assert.Equal(t, 1, render.calls)
	assert.Len(t, snaps.inserted, 1)
}

func TestScrapeRetriesTransientFailures(t *testing.T) {
	text := strings.Repeat("Dyson and Coway both appear in most round-ups this year. ", 4)
	render := &fakeRender{results: []func() (content.RawScrape, error){
		failScrape("connection refused"),
		failScrape("connection refused"),
		okScrape(text),
	}}
	s, _, costs := testScraper(t, render)

	processed, err := s.Scrape(context.Background(), "top rated HEPA air purifiers")
	require.NoError(t, err)
	assert.NotEmpty(t, processed.CleanText)
	assert.Equal(t, 3, render.calls)
	assert.Equal(t, 1, costs.adds, "failed render calls record no cost")
}

func TestScrapeExhaustsAttempts(t *testing.T) {
	render := &fakeRender{results: []func() (content.RawScrape, error){
		failScrape("boom"),
		failScrape("boom"),
		failScrape("boom"),
	}}
	s, snaps, _ := testScraper(t, render)

	_, err := s.Scrape(context.Background(), "best air purifier 2025")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, 3, render.calls)
	assert.Empty(t, snaps.inserted)
}

func TestScrapeCancelledDuringRetryWait(t *testing.T) {
	render := &fakeRender{results: []func() (content.RawScrape, error){
		failScrape("boom"),
	}}
	s, _, _ := testScraper(t, render)
	s.cfg.RetryDelays = []time.Duration{time.Minute}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := s.Scrape(ctx, "best air purifier 2025")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, render.calls)
}

func TestSearchURL(t *testing.T) {
	q := "best air purifier 2025"

	assert.Equal(t, "https://chatgpt.com/search?q=best+air+purifier+2025", SearchURL(model.PlatformChatGPT, q))
	assert.Equal(t, "https://www.perplexity.ai/search?q=best+air+purifier+2025", SearchURL(model.PlatformPerplexity, q))
	assert.Equal(t, "https://www.google.com/search?q=best+air+purifier+2025", SearchURL(model.PlatformGoogleAI, q))
}
