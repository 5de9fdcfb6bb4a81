package market

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"marketalerts/internal/logger"
	"marketalerts/internal/metrics"
	"marketalerts/internal/models"
)

// MarketsFetcher is the raw provider surface the ingestor wraps.
type MarketsFetcher interface {
	FetchMarkets(ctx context.Context, symbols []string) ([]Quote, error)
}

// SnapshotWriter persists one cycle's snapshots. The whole batch must be
// written atomically so readers never see a partial cycle.
type SnapshotWriter interface {
	PutBatch(ctx context.Context, snapshots []models.Snapshot) error
}

// SymbolSource supplies the symbols referenced by active alerts.
type SymbolSource interface {
	ActiveSymbols(ctx context.Context) ([]string, error)
}

// FeedPublisher mirrors each normalized snapshot onto a downstream feed.
type FeedPublisher interface {
	PublishSnapshot(snapshot models.Snapshot) error
}

// Ingestor wraps the provider client with retry, backoff, and error
// classification, producing normalized snapshots for the store. It never
// mutates alert state.
type Ingestor struct {
	client      MarketsFetcher
	snapshots   SnapshotWriter
	symbols     SymbolSource
	feed        FeedPublisher // nil when the feed is disabled
	extra       []string
	maxAttempts int
	retryDelay  time.Duration
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
}

func NewIngestor(client MarketsFetcher, snapshots SnapshotWriter, symbols SymbolSource, opts ...IngestorOption) *Ingestor {
	ingestor := &Ingestor{
		client:      client,
		snapshots:   snapshots,
		symbols:     symbols,
		maxAttempts: 3,
		retryDelay:  time.Second,
		now:         time.Now,
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(ingestor)
	}
	return ingestor
}

type IngestorOption func(*Ingestor)

func WithRetry(maxAttempts int, delay time.Duration) IngestorOption {
	return func(i *Ingestor) {
		if maxAttempts > 0 {
			i.maxAttempts = maxAttempts
		}
		if delay > 0 {
			i.retryDelay = delay
		}
	}
}

func WithFeed(feed FeedPublisher) IngestorOption {
	return func(i *Ingestor) { i.feed = feed }
}

// WithExtraSymbols adds always-refreshed symbols beyond the alert set.
func WithExtraSymbols(symbols []string) IngestorOption {
	return func(i *Ingestor) { i.extra = symbols }
}

// WithClock replaces the wall clock, for tests.
func WithClock(now func() time.Time) IngestorOption {
	return func(i *Ingestor) { i.now = now }
}

// WithSleep replaces the retry delay wait, for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) IngestorOption {
	return func(i *Ingestor) { i.sleep = sleep }
}

// FetchSnapshots fetches quotes for the given symbols, retrying transient
// failures. Rate-limited attempts back off linearly (attempt * delay);
// other retryable failures wait a fixed delay. Non-retryable failures and
// the final failed attempt surface the classified error.
func (i *Ingestor) FetchSnapshots(ctx context.Context, symbols []string) ([]models.Snapshot, error) {
	var lastErr error

	for attempt := 1; attempt <= i.maxAttempts; attempt++ {
		quotes, err := i.client.FetchMarkets(ctx, symbols)
		if err == nil {
			return i.normalize(quotes), nil
		}
		lastErr = err

		fetchErr, ok := AsFetchError(err)
		if !ok || !fetchErr.Retryable() || attempt == i.maxAttempts {
			break
		}

		delay := i.retryDelay
		if fetchErr.Kind == KindRateLimit {
			delay = time.Duration(attempt) * i.retryDelay
		}

		metrics.FetchRetriesTotal.Inc()
		logger.Log.Warn("retrying market fetch",
			zap.Int("attempt", attempt),
			zap.String("kind", string(fetchErr.Kind)),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		if err := i.sleep(ctx, delay); err != nil {
			return nil, classifyTransportError(err)
		}
	}

	if fetchErr, ok := AsFetchError(lastErr); ok {
		metrics.FetchFailuresTotal.WithLabelValues(string(fetchErr.Kind)).Inc()
	}
	return nil, lastErr
}

// Refresh runs one full ingestion cycle: collect the watched symbols,
// fetch quotes, and upsert the batch. It returns the number of snapshots
// written. A failed cycle writes nothing, leaving prior snapshots in
// place.
func (i *Ingestor) Refresh(ctx context.Context) (int, error) {
	symbols, err := i.watchedSymbols(ctx)
	if err != nil {
		return 0, err
	}
	if len(symbols) == 0 {
		return 0, nil
	}

	snapshots, err := i.FetchSnapshots(ctx, symbols)
	if err != nil {
		return 0, err
	}
	if len(snapshots) == 0 {
		return 0, nil
	}

	if err := i.snapshots.PutBatch(ctx, snapshots); err != nil {
		return 0, err
	}
	metrics.SnapshotsUpsertedTotal.Add(float64(len(snapshots)))

	if i.feed != nil {
		for _, snapshot := range snapshots {
			if err := i.feed.PublishSnapshot(snapshot); err != nil {
				logger.Log.Warn("snapshot feed publish failed",
					zap.String("symbol", snapshot.Symbol),
					zap.Error(err),
				)
			}
		}
	}

	logger.Log.Info("ingestion cycle complete", zap.Int("snapshots", len(snapshots)))
	return len(snapshots), nil
}

func (i *Ingestor) watchedSymbols(ctx context.Context) ([]string, error) {
	seen := map[string]bool{}
	var symbols []string

	add := func(symbol string) {
		symbol = strings.ToUpper(symbol)
		if symbol != "" && !seen[symbol] {
			seen[symbol] = true
			symbols = append(symbols, symbol)
		}
	}

	active, err := i.symbols.ActiveSymbols(ctx)
	if err != nil {
		return nil, err
	}
	for _, symbol := range active {
		add(symbol)
	}
	for _, symbol := range i.extra {
		add(symbol)
	}

	sort.Strings(symbols)
	return symbols, nil
}

func (i *Ingestor) normalize(quotes []Quote) []models.Snapshot {
	observedAt := i.now()
	snapshots := make([]models.Snapshot, 0, len(quotes))

	for _, quote := range quotes {
		if quote.Price == nil {
			continue
		}
		symbol := strings.ToUpper(quote.Symbol)
		if mapped, ok := SymbolForID(quote.ID); ok {
			symbol = mapped
		}
		snapshots = append(snapshots, models.Snapshot{
			Symbol:       symbol,
			Price:        *quote.Price,
			Change24h:    quote.Change24h,
			ChangePct24h: quote.ChangePct24h,
			Volume:       quote.Volume24h,
			MarketCap:    quote.MarketCap,
			ObservedAt:   observedAt,
		})
	}

	return snapshots
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
