package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scottrconsulting/DoorPro-CRM-v2-sub000/internal/domain"
	"github.com/scottrconsulting/DoorPro-CRM-v2-sub000/internal/event"
	"github.com/scottrconsulting/DoorPro-CRM-v2-sub000/internal/repository"
)

// defaultAuditBuffer is the channel capacity when none is configured.
const defaultAuditBuffer = 1024

// defaultAuditWriteTimeout bounds each audit insert.
const defaultAuditWriteTimeout = 5 * time.Second

// AuditRecorder accepts audit entries without ever blocking or failing the
// operation being audited. Entries go through a buffered channel to a single
// background writer; when the buffer is full the entry is counted as dropped
// and the request proceeds.
type AuditRecorder struct {
	repo         repository.AuditRepository
	producer     *event.Producer
	logger       *slog.Logger
	entries      chan domain.AuditEntry
	done         chan struct{}
	writeTimeout time.Duration

	// mu serializes sends against the channel close: a Record that saw the
	// recorder open finishes its send before Close can close the channel.
	mu     sync.RWMutex
	closed bool
}

// NewAuditRecorder creates an audit recorder and starts its background
// writer. bufferSize <= 0 selects the default capacity.
func NewAuditRecorder(
	repo repository.AuditRepository,
	producer *event.Producer,
	logger *slog.Logger,
	bufferSize int,
) *AuditRecorder {
	if bufferSize <= 0 {
		bufferSize = defaultAuditBuffer
	}

	r := &AuditRecorder{
		repo:         repo,
		producer:     producer,
		logger:       logger,
		entries:      make(chan domain.AuditEntry, bufferSize),
		done:         make(chan struct{}),
		writeTimeout: defaultAuditWriteTimeout,
	}

	go r.run()
	return r
}

// Record queues an audit entry. It never blocks: if the buffer is full the
// entry is dropped and counted. Missing ID and Timestamp fields are filled in.
func (r *AuditRecorder) Record(entry domain.AuditEntry) {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		auditEntriesDropped.Inc()
		return
	}

	select {
	case r.entries <- entry:
	default:
		auditEntriesDropped.Inc()
		r.logger.Warn("audit buffer full, entry dropped",
			slog.String("action", string(entry.Action)),
			slog.String("resource", entry.Resource),
		)
	}
}

// List returns audit entries matching the filter, newest first. Reads go
// straight to the store; they do not wait for buffered entries to land.
func (r *AuditRecorder) List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEntry, error) {
	return r.repo.List(ctx, filter)
}

// Close stops accepting entries and waits for the buffer to drain, bounded
// by the context. It is safe to call more than once.
func (r *AuditRecorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.entries)
	}
	r.mu.Unlock()

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the background writer. It exits when the entries channel is closed
// and drained.
func (r *AuditRecorder) run() {
	defer close(r.done)

	for entry := range r.entries {
		r.persist(entry)
	}
}

func (r *AuditRecorder) persist(entry domain.AuditEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), r.writeTimeout)
	defer cancel()

	if err := r.repo.Append(ctx, &entry); err != nil {
		auditEntriesDropped.Inc()
		r.logger.Error("failed to persist audit entry",
			slog.String("entry_id", entry.ID),
			slog.String("action", string(entry.Action)),
			slog.String("error", err.Error()),
		)
		return
	}

	auditEntriesRecorded.Inc()

	if r.producer != nil {
		if err := r.producer.PublishAuditRecorded(ctx, &entry); err != nil {
			r.logger.Warn("failed to publish audit event",
				slog.String("entry_id", entry.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}
