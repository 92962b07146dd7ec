package activity

import (
	"context"
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/juju/loggo"

	"agency-hub/internal/model"
)

var logger = loggo.GetLogger("agencyhub.activity")

// Appender is the durable destination of activity entries.
type Appender interface {
	Append(ctx context.Context, e Entry) (*model.ActivityLog, error)
}

// Forwarder receives a copy of every entry once it is stored. Forwarding is
// best effort.
type Forwarder interface {
	Forward(ctx context.Context, log model.ActivityLog) error
}

// Status of one Record call.
type Status int

const (
	// Stored means the entry was written.
	Stored Status = iota
	// Queued means the write failed and the entry waits for a retry.
	Queued
	// Dropped means the write failed and the retry queue was full. The
	// entry has been logged at ERROR level.
	Dropped
)

func (s Status) String() string {
	switch s {
	case Stored:
		return "stored"
	case Queued:
		return "queued"
	case Dropped:
		return "dropped"
	}
	return "unknown"
}

// Receipt reports what happened to a recorded entry.
type Receipt struct {
	Status Status
	Err    error
}

func (r Receipt) Stored() bool { return r.Status == Stored }

// Recorder writes activity entries outside of the change they describe.
// Failed writes are retried from a bounded queue.
type Recorder struct {
	store      Appender
	forwarders []Forwarder
	queueSize  int

	mu      sync.Mutex
	pending []Entry
}

func NewRecorder(store Appender, queueSize int, forwarders ...Forwarder) *Recorder {
	return &Recorder{
		store:      store,
		forwarders: forwarders,
		queueSize:  queueSize,
	}
}

// AddForwarder registers f for entries stored from now on.
func (r *Recorder) AddForwarder(f Forwarder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.forwarders = append(r.forwarders, f)
}

// Record writes e. Invalid entries are rejected outright; storage failures
// queue the entry for Run or Flush.
func (r *Recorder) Record(ctx context.Context, e Entry) Receipt {
	if err := e.Validate(); err != nil {
		return Receipt{Status: Dropped, Err: err}
	}
	rec, err := r.store.Append(ctx, e)
	if err == nil {
		r.forward(ctx, *rec)
		return Receipt{Status: Stored}
	}

	logger.Warningf("activity %q not stored, will retry: %v", e.Description, err)
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.pending) >= r.queueSize {
		logger.Errorf("activity queue full, dropping %q (subaccount=%q agency=%q)", e.Description, e.SubAccountID, e.AgencyID)
		return Receipt{Status: Dropped, Err: err}
	}
	r.pending = append(r.pending, e)
	return Receipt{Status: Queued, Err: err}
}

// Pending returns the number of entries waiting for a retry.
func (r *Recorder) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Flush retries every queued entry once. Entries that fail again stay queued.
func (r *Recorder) Flush(ctx context.Context) error {
	r.mu.Lock()
	batch := r.pending
	r.pending = nil
	r.mu.Unlock()

	var failed []Entry
	var lastErr error
	for _, e := range batch {
		rec, err := r.store.Append(ctx, e)
		if err != nil {
			failed = append(failed, e)
			lastErr = err
			continue
		}
		r.forward(ctx, *rec)
	}
	if len(failed) == 0 {
		return nil
	}

	r.mu.Lock()
	r.pending = append(failed, r.pending...)
	r.mu.Unlock()
	return errors.Annotatef(lastErr, "%d activity entries still pending", len(failed))
}

// Run retries queued entries every interval until ctx is done.
func (r *Recorder) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if n := r.Pending(); n > 0 {
				logger.Errorf("stopping with %d activity entries unwritten", n)
			}
			return
		case <-ticker.C:
			if r.Pending() == 0 {
				continue
			}
			if err := r.Flush(ctx); err != nil {
				logger.Warningf("%v", err)
			}
		}
	}
}

func (r *Recorder) forward(ctx context.Context, rec model.ActivityLog) {
	r.mu.Lock()
	forwarders := r.forwarders
	r.mu.Unlock()
	for _, f := range forwarders {
		if err := f.Forward(ctx, rec); err != nil {
			logger.Warningf("forwarding activity %d: %v", rec.ID, err)
		}
	}
}
