package period

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// DefaultStorageKey is the key-value entry holding the persisted window.
const DefaultStorageKey = "carteira.period"

// Ports for the two persistence side channels.
type (
	// QueryStringPort is a shareable, bookmarkable representation (a URL query).
	QueryStringPort interface {
		Query() string
		SetQuery(q string) error
	}

	// KeyValuePort is durable storage. Writes are last-wins.
	KeyValuePort interface {
		Get(ctx context.Context, key string) (value string, ok bool, err error)
		Set(ctx context.Context, key, value string) error
	}
)

// Container owns the active window. Every transition writes through to
// both ports.
type Container struct {
	mu    sync.RWMutex
	state State
	query QueryStringPort
	kv    KeyValuePort
	key   string
}

// Options configures a Container. Nil ports disable the matching side effect.
type Options struct {
	Query QueryStringPort
	Store KeyValuePort
	// StorageKey defaults to DefaultStorageKey.
	StorageKey string
	// Now provides the fallback month and year; defaults to time.Now.
	Now func() time.Time
}

// NewContainer resolves the initial window field by field: the query
// representation wins over durable storage, which wins over today's date.
// A failing storage read degrades to defaults and is returned alongside the
// usable container.
func NewContainer(ctx context.Context, opts Options) (*Container, error) {
	if opts.StorageKey == "" {
		opts.StorageKey = DefaultStorageKey
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	c := &Container{query: opts.Query, kv: opts.Store, key: opts.StorageKey}

	now := opts.Now()
	state := State{Mode: Monthly, Month: int(now.Month()), Year: now.Year()}

	var readErr error
	if c.kv != nil {
		raw, ok, err := c.kv.Get(ctx, c.key)
		switch {
		case err != nil:
			readErr = fmt.Errorf("read stored period: %w", err)
		case ok:
			state = DecodeStored(raw).Apply(state)
		}
	}
	if c.query != nil {
		state = DecodeQuery(c.query.Query()).Apply(state)
	}

	c.state = state
	return c, readErr
}

// Get returns the current window.
func (c *Container) Get() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Range resolves the current window.
func (c *Container) Range() DateRange {
	return Range(c.Get())
}

// Set applies a partial transition. Invalid partials are rejected without
// changing state. Port failures do not roll the transition back; they are
// joined into the returned error.
func (c *Container) Set(ctx context.Context, p Partial) (State, error) {
	if err := p.Validate(); err != nil {
		return c.Get(), err
	}

	c.mu.Lock()
	next := p.Apply(c.state)
	c.state = next
	c.mu.Unlock()

	return next, c.persist(ctx, next)
}

func (c *Container) SetMode(ctx context.Context, m Mode) (State, error) {
	return c.Set(ctx, Partial{Mode: &m})
}

func (c *Container) SetMonth(ctx context.Context, month int) (State, error) {
	return c.Set(ctx, Partial{Month: &month})
}

func (c *Container) SetYear(ctx context.Context, year int) (State, error) {
	return c.Set(ctx, Partial{Year: &year})
}

// QueryString returns the canonical shareable form of the current window.
func (c *Container) QueryString() string {
	existing := ""
	if c.query != nil {
		existing = c.query.Query()
	}
	return EncodeQuery(existing, c.Get())
}

func (c *Container) persist(ctx context.Context, s State) error {
	var errs []error
	if c.kv != nil {
		raw, err := EncodeStored(s)
		if err == nil {
			err = c.kv.Set(ctx, c.key, raw)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("store period: %w", err))
		}
	}
	if c.query != nil {
		if err := c.query.SetQuery(EncodeQuery(c.query.Query(), s)); err != nil {
			errs = append(errs, fmt.Errorf("write period query: %w", err))
		}
	}
	return errors.Join(errs...)
}
