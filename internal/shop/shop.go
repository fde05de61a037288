// Package shop wires the catalog, the stock ledger, the transaction history,
// reconciliation sessions and the assistant collaborators into one object
// that the API and the CLI drive. State is loaded from the document store at
// startup and written back through a background persistence queue.
package shop

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/shopkeeper/internal/assistant"
	"github.com/dvloznov/shopkeeper/internal/catalog"
	"github.com/dvloznov/shopkeeper/internal/domain"
	"github.com/dvloznov/shopkeeper/internal/export"
	infraBQ "github.com/dvloznov/shopkeeper/internal/infra/bigquery"
	"github.com/dvloznov/shopkeeper/internal/jobs"
	"github.com/dvloznov/shopkeeper/internal/jobs/inmemory"
	"github.com/dvloznov/shopkeeper/internal/ledger"
	"github.com/dvloznov/shopkeeper/internal/logger"
	"github.com/dvloznov/shopkeeper/internal/metrics"
	"github.com/dvloznov/shopkeeper/internal/sales"
	"github.com/dvloznov/shopkeeper/internal/search"
	"github.com/dvloznov/shopkeeper/internal/store"
)

// DefaultSessionRetention is how long closed sessions are kept so that late
// calls get ErrSessionClosed instead of ErrSessionNotFound.
const DefaultSessionRetention = 30 * time.Minute

// Options configures a Shop. Only Store is required.
type Options struct {
	Store store.Store

	// Transcriber defaults to the mock transcriber.
	Transcriber assistant.Transcriber
	// Suggester defaults to the local combination search.
	Suggester assistant.Suggester
	// Chat defaults to an unconfigured chat that answers with an apology.
	Chat assistant.Chat
	// Mirror receives every committed sale when set.
	Mirror  infraBQ.SalesRepository
	Metrics *metrics.Metrics

	// Profile is used until a profile has been saved.
	Profile  domain.ShopProfile
	Currency string
	Location *time.Location
	Search   search.Config
	Queue    inmemory.Config

	SessionRetention time.Duration
	Now              func() time.Time
	NewID            func() string
}

func (o Options) withDefaults() Options {
	if o.Search == (search.Config{}) {
		o.Search = search.DefaultConfig()
	}
	if o.Transcriber == nil {
		o.Transcriber = assistant.NewMockTranscriber()
	}
	if o.Suggester == nil {
		o.Suggester = assistant.NewLocalSuggester(o.Search)
	}
	if o.Chat == nil {
		o.Chat = assistant.NewGeminiChat(nil)
	}
	if o.Currency == "" {
		o.Currency = "INR"
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.SessionRetention <= 0 {
		o.SessionRetention = DefaultSessionRetention
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.NewID == nil {
		o.NewID = uuid.NewString
	}
	return o
}

// Shop is the running shop.
type Shop struct {
	opts Options

	catalog  *catalog.Catalog
	stock    *ledger.Stock
	history  *ledger.History
	recorder *ledger.Recorder
	sales    *sales.Aggregator

	queue     *inmemory.Queue
	jobStore  *inmemory.Store
	persister *Persister

	profileMu sync.RWMutex
	profile   domain.ShopProfile

	// syncMu orders catalog-driven stock syncs.
	syncMu sync.Mutex

	sessions *registry
}

// New loads the shop state from opts.Store and starts the persistence queue.
// Absent documents start empty.
func New(ctx context.Context, opts Options) (*Shop, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("New: %w: store is required", domain.ErrInput)
	}
	opts = opts.withDefaults()
	log := logger.FromContext(ctx)

	var (
		profile  = opts.Profile
		products []domain.Product
		items    []domain.StockItem
		txs      []domain.Transaction
	)
	docs := []struct {
		key string
		v   any
	}{
		{store.KeyShopProfile, &profile},
		{store.KeyProducts, &products},
		{store.KeyInventory, &items},
		{store.KeyTransactions, &txs},
	}
	for _, d := range docs {
		found, err := store.LoadJSON(ctx, opts.Store, d.key, d.v)
		if err != nil {
			return nil, fmt.Errorf("New: %w", err)
		}
		log.Debug().Str("key", d.key).Bool("found", found).Msg("Loaded document")
	}

	s := &Shop{
		opts:     opts,
		catalog:  catalog.New(products),
		stock:    ledger.NewStock(items),
		history:  ledger.NewHistory(txs),
		profile:  profile,
		jobStore: inmemory.NewStore(),
		sessions: newRegistry(opts.SessionRetention, opts.Now),
	}
	s.stock.Sync(s.catalog.List())
	s.recorder = ledger.NewRecorder(s.stock, s.history)
	s.sales = sales.NewAggregator(s.history, s.stock,
		sales.WithLocation(opts.Location),
		sales.WithClock(opts.Now),
	)

	s.queue = inmemory.NewQueue(opts.Queue, s.jobStore)
	s.persister = NewPersister(opts.Store, s.queue, PersisterOptions{
		Mirror:   opts.Mirror,
		Currency: opts.Currency,
		Location: opts.Location,
		Metrics:  opts.Metrics,
	})
	if err := s.queue.Start(context.WithoutCancel(ctx), s.persister.Handle); err != nil {
		return nil, fmt.Errorf("New: start persistence queue: %w", err)
	}

	s.catalog.OnChange(func(_ []domain.Product) { s.onCatalogChange(ctx) })
	s.recorder.OnCommit(s.onCommit)

	log.Info().
		Int("products", len(products)).
		Int("stock_items", len(items)).
		Int("transactions", len(txs)).
		Msg("Shop state loaded")
	return s, nil
}

// Close stops the persistence queue after draining queued writes.
func (s *Shop) Close(ctx context.Context) error {
	if err := s.queue.Stop(ctx); err != nil {
		return fmt.Errorf("Close: %w", err)
	}
	return nil
}

func (s *Shop) onCatalogChange(ctx context.Context) {
	s.syncMu.Lock()
	s.stock.Sync(s.catalog.List())
	s.syncMu.Unlock()

	s.persister.SaveDocument(ctx, store.KeyProducts, func() any { return s.catalog.List() })
	s.persister.SaveDocument(ctx, store.KeyInventory, func() any { return s.stock.List() })
}

func (s *Shop) onCommit(ctx context.Context, tx domain.Transaction) {
	s.persister.SaveDocument(ctx, store.KeyTransactions, func() any { return s.history.List() })
	s.persister.SaveDocument(ctx, store.KeyInventory, func() any { return s.stock.List() })
	s.persister.MirrorSale(ctx, tx)

	if m := s.opts.Metrics; m != nil {
		m.Commits.WithLabelValues(tx.SourceMethod.PaymentType()).Inc()
		amount, _ := tx.Amount.Float64()
		m.CommitAmount.Add(amount)
	}
}

// Profile returns the shop profile.
func (s *Shop) Profile() domain.ShopProfile {
	s.profileMu.RLock()
	defer s.profileMu.RUnlock()
	return s.profile
}

// SetProfile replaces the shop profile.
func (s *Shop) SetProfile(ctx context.Context, p domain.ShopProfile) domain.ShopProfile {
	s.profileMu.Lock()
	s.profile = p
	s.profileMu.Unlock()

	s.persister.SaveDocument(ctx, store.KeyShopProfile, func() any { return s.Profile() })
	return p
}

// Products lists the catalog.
func (s *Shop) Products() []domain.Product {
	return s.catalog.List()
}

// AddProduct adds p to the catalog and creates its stock item.
func (s *Shop) AddProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	added, err := s.catalog.Add(p)
	if err != nil {
		return domain.Product{}, fmt.Errorf("AddProduct: %w", err)
	}
	log := logger.FromContext(ctx)
	log.Info().Str("product_id", added.ID).Str("name", added.Name).Msg("Product added")
	return added, nil
}

// UpdateProduct renames or reprices a product.
func (s *Shop) UpdateProduct(ctx context.Context, id, name string, price decimal.Decimal) (domain.Product, error) {
	p, err := s.catalog.Update(id, name, price)
	if err != nil {
		return domain.Product{}, fmt.Errorf("UpdateProduct: %w", err)
	}
	log := logger.FromContext(ctx)
	log.Info().Str("product_id", id).Msg("Product updated")
	return p, nil
}

// RemoveProduct deletes a product and its stock item.
func (s *Shop) RemoveProduct(ctx context.Context, id string) error {
	if err := s.catalog.Remove(id); err != nil {
		return fmt.Errorf("RemoveProduct: %w", err)
	}
	log := logger.FromContext(ctx)
	log.Info().Str("product_id", id).Msg("Product removed")
	return nil
}

// Inventory lists stock items.
func (s *Shop) Inventory() []domain.StockItem {
	return s.stock.List()
}

// UpdateStock sets quantity, reorder threshold and expiry of a stock item.
func (s *Shop) UpdateStock(ctx context.Context, productID string, quantity, reorderThreshold int, expiry *time.Time) (domain.StockItem, error) {
	it, err := s.stock.Update(productID, quantity, reorderThreshold, expiry)
	if err != nil {
		return domain.StockItem{}, fmt.Errorf("UpdateStock: %w", err)
	}
	s.persister.SaveDocument(ctx, store.KeyInventory, func() any { return s.stock.List() })
	return it, nil
}

// Dashboard returns the sales reports.
func (s *Shop) Dashboard() sales.Dashboard {
	return s.sales.Dashboard()
}

// Sales returns the report aggregator.
func (s *Shop) Sales() *sales.Aggregator {
	return s.sales
}

// Transactions lists the history, newest first, narrowed by f.
func (s *Shop) Transactions(f export.Filters) []domain.Transaction {
	if f.Location == nil {
		f.Location = s.opts.Location
	}
	return export.Filter(s.history.List(), f)
}

// Export writes the history narrowed by f as CSV.
func (s *Shop) Export(w io.Writer, f export.Filters) error {
	if f.Location == nil {
		f.Location = s.opts.Location
	}
	if err := export.WriteCSV(w, s.history.List(), f); err != nil {
		return fmt.Errorf("Export: %w", err)
	}
	return nil
}

// Transaction returns one committed transaction.
func (s *Shop) Transaction(id string) (domain.Transaction, error) {
	tx, ok := s.history.Get(id)
	if !ok {
		return domain.Transaction{}, fmt.Errorf("Transaction: %w: %s", domain.ErrNotFound, id)
	}
	return tx, nil
}

// OpenSessions counts sessions that are neither confirmed nor cancelled.
func (s *Shop) OpenSessions() int {
	return s.sessions.open()
}

// Location is the time zone calendar dates are evaluated in.
func (s *Shop) Location() *time.Location {
	return s.opts.Location
}

// Ask answers a question about the shop. It never fails; an unavailable
// chat backend yields an apology.
func (s *Shop) Ask(ctx context.Context, question string) string {
	snap := assistant.Snapshot{
		Profile:    s.Profile(),
		Inventory:  s.stock.List(),
		Recent:     s.history.List(),
		TodayTotal: s.sales.TotalForDay(s.opts.Now()),
		Location:   s.opts.Location,
	}
	answer := assistant.Answer(ctx, s.opts.Chat, question, snap)
	if answer == assistant.ApologyUnconfigured || answer == assistant.ApologyFailed {
		s.countFallback("chat")
	}
	return answer
}

// Jobs lists persistence jobs.
func (s *Shop) Jobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.Job, error) {
	list, err := s.jobStore.ListJobs(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("Jobs: %w", err)
	}
	return list, nil
}

// JobStore exposes the persistence job store.
func (s *Shop) JobStore() jobs.JobStore {
	return s.jobStore
}

// Job returns one persistence job.
func (s *Shop) Job(ctx context.Context, id string) (*jobs.Job, error) {
	job, err := s.jobStore.GetJob(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("Job: %w", err)
	}
	return job, nil
}

func (s *Shop) countFallback(backend string) {
	if s.opts.Metrics != nil {
		s.opts.Metrics.BackendFallbacks.WithLabelValues(backend).Inc()
	}
}
