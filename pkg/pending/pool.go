package pending

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Default configuration values.
const (
	DefaultTimeout             = 10 * time.Second
	DefaultMaxPendingPerClient = 10000

	maxCheckInterval = time.Second
)

// Errors returned by AddRequests.
var (
	// ErrDuplicateID indicates a request ID that is already pending.
	ErrDuplicateID = errors.New("duplicate request ID")

	// ErrTooManyPending indicates the client reached its pending limit.
	ErrTooManyPending = errors.New("too many pending requests")

	// ErrClosed indicates the pool no longer accepts requests.
	ErrClosed = errors.New("request pool closed")
)

// ClientID identifies the owner of a request group.
type ClientID = uuid.UUID

// TimeoutCallback receives the IDs of a group that did not finish in time,
// in ascending order.
type TimeoutCallback func(requestIDs []int64)

// Config configures a RequestPool.
type Config struct {
	Timeout             time.Duration
	MaxPendingPerClient int
	Logger              *slog.Logger
}

// DefaultConfig returns the default pool configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:             DefaultTimeout,
		MaxPendingPerClient: DefaultMaxPendingPerClient,
	}
}

type requestGroup struct {
	ids      map[int64]struct{}
	deadline time.Time
	callback TimeoutCallback
}

func (g *requestGroup) sortedIDs() []int64 {
	out := make([]int64, 0, len(g.ids))
	for id := range g.ids {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// RequestPool holds pending requests. It is safe for concurrent use.
type RequestPool struct {
	config Config
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	byClient map[ClientID][]*requestGroup
	closed   bool

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewRequestPool creates a pool and starts its reaper goroutine.
func NewRequestPool(cfg Config) *RequestPool {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxPendingPerClient <= 0 {
		cfg.MaxPendingPerClient = DefaultMaxPendingPerClient
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	p := &RequestPool{
		config:   cfg,
		logger:   logger,
		now:      time.Now,
		byClient: make(map[ClientID][]*requestGroup),
		stopCh:   make(chan struct{}),
	}
	p.wg.Add(1)
	go p.reapLoop()
	return p
}

// AddRequests registers a group of request IDs for a client. It fails
// without changing any state if an ID is already pending for the client,
// repeats within the group, or the client would exceed its limit.
func (p *RequestPool) AddRequests(client ClientID, requestIDs []int64, onTimeout TimeoutCallback) error {
	ids := make(map[int64]struct{}, len(requestIDs))
	for _, id := range requestIDs {
		if _, dup := ids[id]; dup {
			return fmt.Errorf("%w: %d", ErrDuplicateID, id)
		}
		ids[id] = struct{}{}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}

	count := 0
	for _, g := range p.byClient[client] {
		for id := range ids {
			if _, ok := g.ids[id]; ok {
				return fmt.Errorf("%w: %d", ErrDuplicateID, id)
			}
		}
		count += len(g.ids)
	}
	if count+len(ids) > p.config.MaxPendingPerClient {
		return fmt.Errorf("%w: %d pending, limit %d", ErrTooManyPending, count, p.config.MaxPendingPerClient)
	}

	p.byClient[client] = append(p.byClient[client], &requestGroup{
		ids:      ids,
		deadline: p.now().Add(p.config.Timeout),
		callback: onTimeout,
	})
	return nil
}

// IsRequestPending reports whether requestID is pending for client.
func (p *RequestPool) IsRequestPending(client ClientID, requestID int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, g := range p.byClient[client] {
		if _, ok := g.ids[requestID]; ok {
			return true
		}
	}
	return false
}

// TryFinishRequests removes the given IDs and returns, in ascending
// order, those that were actually pending.
func (p *RequestPool) TryFinishRequests(client ClientID, requestIDs []int64) []int64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	groups := p.byClient[client]
	var finished []int64
	for _, id := range requestIDs {
		for _, g := range groups {
			if _, ok := g.ids[id]; ok {
				delete(g.ids, id)
				finished = append(finished, id)
				break
			}
		}
	}

	groups = slices.DeleteFunc(groups, func(g *requestGroup) bool { return len(g.ids) == 0 })
	if len(groups) == 0 {
		delete(p.byClient, client)
	} else {
		p.byClient[client] = groups
	}

	slices.Sort(finished)
	return finished
}

// CountPendingRequests returns the number of pending IDs across clients.
func (p *RequestPool) CountPendingRequests() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, groups := range p.byClient {
		for _, g := range groups {
			n += len(g.ids)
		}
	}
	return n
}

// CountPendingRequestsFor returns the number of pending IDs of one client.
func (p *RequestPool) CountPendingRequestsFor(client ClientID) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, g := range p.byClient[client] {
		n += len(g.ids)
	}
	return n
}

// FlushClient expires every pending group of one client immediately.
func (p *RequestPool) FlushClient(client ClientID) {
	p.mu.Lock()
	groups := p.byClient[client]
	delete(p.byClient, client)
	p.mu.Unlock()

	p.fire(groups)
}

// Close stops the reaper and fires the timeout callback of every pending
// group before returning. Later AddRequests calls fail with ErrClosed.
func (p *RequestPool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	close(p.stopCh)
	p.wg.Wait()

	p.mu.Lock()
	var groups []*requestGroup
	for client, gs := range p.byClient {
		groups = append(groups, gs...)
		delete(p.byClient, client)
	}
	p.mu.Unlock()

	p.fire(groups)
}

func (p *RequestPool) reapLoop() {
	defer p.wg.Done()

	interval := min(p.config.Timeout, maxCheckInterval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.fire(p.collectExpired())
		}
	}
}

func (p *RequestPool) collectExpired() []*requestGroup {
	now := p.now()

	p.mu.Lock()
	defer p.mu.Unlock()

	var expired []*requestGroup
	for client, groups := range p.byClient {
		remaining := groups[:0]
		for _, g := range groups {
			if now.Before(g.deadline) {
				remaining = append(remaining, g)
				continue
			}
			expired = append(expired, g)
		}
		if len(remaining) == 0 {
			delete(p.byClient, client)
		} else {
			p.byClient[client] = remaining
		}
	}
	return expired
}

func (p *RequestPool) fire(groups []*requestGroup) {
	for _, g := range groups {
		if len(g.ids) == 0 || g.callback == nil {
			continue
		}
		ids := g.sortedIDs()
		p.logger.Debug("pending requests timed out", slog.Int("count", len(ids)))
		g.callback(ids)
	}
}

// String summarizes the pool for debug dumps.
func (p *RequestPool) String() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return fmt.Sprintf("clients=%d timeout=%s", len(p.byClient), p.config.Timeout)
}
