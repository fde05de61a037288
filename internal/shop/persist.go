package shop

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/shopkeeper/internal/domain"
	infraBQ "github.com/dvloznov/shopkeeper/internal/infra/bigquery"
	"github.com/dvloznov/shopkeeper/internal/jobs"
	"github.com/dvloznov/shopkeeper/internal/logger"
	"github.com/dvloznov/shopkeeper/internal/metrics"
	"github.com/dvloznov/shopkeeper/internal/store"
)

// Persister turns state changes into background jobs and executes them.
// Every scheduled document gets a per-key version; a job whose version is
// not newer than the last written one is skipped, so a stale snapshot never
// overwrites a newer one even when retries reorder the queue.
type Persister struct {
	store     store.Store
	publisher jobs.Publisher
	mirror    infraBQ.SalesRepository
	currency  string
	loc       *time.Location
	metrics   *metrics.Metrics

	// publishMu orders version assignment with publishing. It is never
	// taken by job handlers, so a full queue cannot deadlock the workers.
	publishMu sync.Mutex
	scheduled map[string]uint64

	mu       sync.Mutex
	written  map[string]uint64
	keyLocks map[string]*sync.Mutex
}

// PersisterOptions configures a Persister. Mirror and Metrics may be nil.
type PersisterOptions struct {
	Mirror   infraBQ.SalesRepository
	Currency string
	Location *time.Location
	Metrics  *metrics.Metrics
}

// NewPersister creates a persister writing to s through publisher.
func NewPersister(s store.Store, publisher jobs.Publisher, opts PersisterOptions) *Persister {
	return &Persister{
		store:     s,
		publisher: publisher,
		mirror:    opts.Mirror,
		currency:  opts.Currency,
		loc:       opts.Location,
		metrics:   opts.Metrics,
		scheduled: make(map[string]uint64),
		written:   make(map[string]uint64),
		keyLocks:  make(map[string]*sync.Mutex),
	}
}

// SaveDocument queues the document returned by snapshot for writing under
// key. snapshot runs under the scheduling lock, so a later version always
// carries later state. Failures are logged; in-memory state stays
// authoritative.
func (p *Persister) SaveDocument(ctx context.Context, key string, snapshot func() any) {
	log := logger.FromContext(ctx)

	p.publishMu.Lock()
	defer p.publishMu.Unlock()

	payload, err := json.Marshal(snapshot())
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to encode document")
		p.count(key, "encode_failed")
		return
	}

	p.scheduled[key]++
	job := &jobs.Job{
		Type:    jobs.JobTypePersistDocument,
		Key:     key,
		Payload: payload,
		Version: p.scheduled[key],
	}
	if err := p.publisher.Publish(context.WithoutCancel(ctx), job); err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to queue document write")
		p.count(key, "queue_failed")
	}
}

// MirrorSale queues tx for the warehouse mirror when one is configured.
func (p *Persister) MirrorSale(ctx context.Context, tx domain.Transaction) {
	if p.mirror == nil {
		return
	}
	payload, err := json.Marshal(tx)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Str("transaction_id", tx.ID).Msg("Failed to encode sale")
		return
	}
	job := &jobs.Job{Type: jobs.JobTypeMirrorSale, Key: tx.ID, Payload: payload}
	if err := p.publisher.Publish(context.WithoutCancel(ctx), job); err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Str("transaction_id", tx.ID).Msg("Failed to queue sale mirror")
		p.count("mirror", "queue_failed")
	}
}

// Handle is the jobs.JobHandler for persistence and mirror jobs.
func (p *Persister) Handle(ctx context.Context, job *jobs.Job) error {
	switch job.Type {
	case jobs.JobTypePersistDocument:
		return p.writeDocument(ctx, job)
	case jobs.JobTypeMirrorSale:
		return p.mirrorSale(ctx, job)
	default:
		return &jobs.ErrSkipped{Reason: fmt.Sprintf("unknown job type %q", job.Type)}
	}
}

func (p *Persister) writeDocument(ctx context.Context, job *jobs.Job) error {
	lock := p.keyLock(job.Key)
	lock.Lock()
	defer lock.Unlock()

	p.mu.Lock()
	written := p.written[job.Key]
	p.mu.Unlock()
	if job.Version <= written {
		p.count(job.Key, "stale")
		return &jobs.ErrSkipped{Reason: fmt.Sprintf("version %d superseded by %d", job.Version, written)}
	}

	if err := p.store.Put(ctx, job.Key, job.Payload); err != nil {
		p.count(job.Key, "failed")
		return fmt.Errorf("writeDocument: %w: %v", domain.ErrPersistence, err)
	}

	p.mu.Lock()
	if job.Version > p.written[job.Key] {
		p.written[job.Key] = job.Version
	}
	p.mu.Unlock()
	p.count(job.Key, "written")
	return nil
}

func (p *Persister) mirrorSale(ctx context.Context, job *jobs.Job) error {
	if p.mirror == nil {
		return &jobs.ErrSkipped{Reason: "no mirror configured"}
	}
	var tx domain.Transaction
	if err := json.Unmarshal(job.Payload, &tx); err != nil {
		return &jobs.ErrSkipped{Reason: fmt.Sprintf("undecodable sale: %v", err)}
	}
	if err := p.mirror.InsertSale(ctx, infraBQ.SaleRowFromTransaction(tx, p.currency, p.loc)); err != nil {
		p.count("mirror", "failed")
		return fmt.Errorf("mirrorSale: %w", err)
	}
	p.count("mirror", "written")
	return nil
}

// WrittenVersion reports the last version written for key.
func (p *Persister) WrittenVersion(key string) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written[key]
}

func (p *Persister) keyLock(key string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.keyLocks[key]
	if !ok {
		l = &sync.Mutex{}
		p.keyLocks[key] = l
	}
	return l
}

func (p *Persister) count(key, result string) {
	if p.metrics != nil {
		p.metrics.PersistenceResults.WithLabelValues(key, result).Inc()
	}
}
