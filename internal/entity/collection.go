package entity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/mesh-intelligence/apexdraft/pkg/types"
)

// fetchParallelism bounds concurrent record reads while building a page.
const fetchParallelism = 8

const tracerName = "github.com/mesh-intelligence/apexdraft/internal/entity"

// OpObserver receives the outcome of every collection operation.
type OpObserver interface {
	ObserveOp(collection, op string, err error, elapsed time.Duration)
}

// Options tune a collection. Zero values select defaults.
type Options struct {
	PageSize    int // used when List is called with limit <= 0
	MaxPageSize int // upper clamp for List limits
	Logger      *slog.Logger
	Observer    OpObserver
	NewID       func() string
	Now         func() time.Time
}

func (o Options) withDefaults() Options {
	if o.PageSize <= 0 {
		o.PageSize = types.DefaultPageSize
	}
	if o.MaxPageSize <= 0 {
		o.MaxPageSize = types.DefaultMaxPageSize
	}
	if o.PageSize > o.MaxPageSize {
		o.PageSize = o.MaxPageSize
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	if o.NewID == nil {
		o.NewID = NewID
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Collection is a named, paginated set of records of one kind.
type Collection[T any] struct {
	name   string
	kv     types.KV
	cas    types.CompareAndSwapper // nil when the backend cannot swap atomically
	idOf   func(T) string
	seed   []T
	opts   Options
	log    *slog.Logger
	tracer trace.Tracer
}

// NewCollection builds a collection named name over kv. idOf extracts the
// record id; seed is written by EnsureSeed on first access.
func NewCollection[T any](name string, kv types.KV, idOf func(T) string, seed []T, opts Options) *Collection[T] {
	opts = opts.withDefaults()
	c := &Collection[T]{
		name:   name,
		kv:     kv,
		idOf:   idOf,
		seed:   slices.Clone(seed),
		opts:   opts,
		log:    opts.Logger.With("collection", name),
		tracer: otel.Tracer(tracerName),
	}
	if cas, ok := kv.(types.CompareAndSwapper); ok {
		c.cas = cas
	}
	return c
}

// start opens a span for op and returns a func that closes it and reports
// the outcome to the observer.
func (c *Collection[T]) start(ctx context.Context, op string) (context.Context, func(*error)) {
	began := time.Now()
	ctx, span := c.tracer.Start(ctx, "entity."+op,
		trace.WithAttributes(attribute.String("apexdraft.collection", c.name)))
	return ctx, func(errp *error) {
		err := *errp
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		if c.opts.Observer != nil {
			c.opts.Observer.ObserveOp(c.name, op, err, time.Since(began))
		}
	}
}

// EnsureSeed writes the seed records and the index if the index does not
// exist yet. Later calls are no-ops, including after every record has been
// deleted: an empty index still marks the collection as seeded.
func (c *Collection[T]) EnsureSeed(ctx context.Context) (err error) {
	ctx, end := c.start(ctx, "ensure_seed")
	defer end(&err)

	_, _, exists, err := c.loadIndex(ctx)
	if err != nil || exists {
		return err
	}

	ids := make([]string, 0, len(c.seed))
	for _, rec := range c.seed {
		id := c.idOf(rec)
		if slices.Contains(ids, id) {
			continue
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode seed %s %q: %w", c.name, id, err)
		}
		if err := c.kv.Put(ctx, c.recordKey(id), data); err != nil {
			return err
		}
		ids = append(ids, id)
	}

	// Records go first so the index never names a missing record.
	data, err := json.Marshal(index{Version: 1, IDs: ids})
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	if c.cas == nil {
		if err := c.kv.Put(ctx, c.indexKey(), data); err != nil {
			return err
		}
	} else {
		ok, err := c.cas.CompareAndSwap(ctx, c.indexKey(), nil, data)
		if err != nil {
			return err
		}
		if !ok {
			// Another writer created the index first.
			return nil
		}
	}
	c.log.Info("seeded collection", "records", len(ids))
	return nil
}

// Create stores rec and appends its id to the index. The id must be set by
// the caller and must not already exist.
func (c *Collection[T]) Create(ctx context.Context, rec T) (_ T, err error) {
	ctx, end := c.start(ctx, "create")
	defer end(&err)

	var zero T
	id := c.idOf(rec)
	if strings.TrimSpace(id) == "" {
		return zero, fmt.Errorf("%w: %s id required", types.ErrValidation, c.name)
	}

	idx, _, _, err := c.loadIndex(ctx)
	if err != nil {
		return zero, err
	}
	if slices.Contains(idx.IDs, id) {
		return zero, fmt.Errorf("%w: %s %q already exists", types.ErrConflict, c.name, id)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return zero, fmt.Errorf("%w: encode %s: %v", types.ErrValidation, c.name, err)
	}
	if c.cas == nil {
		if err := c.kv.Put(ctx, c.recordKey(id), data); err != nil {
			return zero, err
		}
	} else {
		ok, err := c.cas.CompareAndSwap(ctx, c.recordKey(id), nil, data)
		if err != nil {
			return zero, err
		}
		if !ok {
			return zero, fmt.Errorf("%w: %s %q already exists", types.ErrConflict, c.name, id)
		}
	}

	err = c.updateIndex(ctx, func(ids []string) ([]string, error) {
		if slices.Contains(ids, id) {
			return nil, fmt.Errorf("%w: %s %q already exists", types.ErrConflict, c.name, id)
		}
		return append(ids, id), nil
	})
	if err != nil {
		if c.cas != nil {
			// The record was written by this call; do not leave it unindexed.
			if _, derr := c.kv.Delete(ctx, c.recordKey(id)); derr != nil {
				c.log.Warn("remove unindexed record", "id", id, "error", derr)
			}
		}
		return zero, err
	}
	return rec, nil
}

// Get returns the record with the given id or ErrNotFound.
func (c *Collection[T]) Get(ctx context.Context, id string) (_ T, err error) {
	ctx, end := c.start(ctx, "get")
	defer end(&err)

	rec, _, err := c.read(ctx, id)
	return rec, err
}

// read fetches and decodes one record, returning the raw bytes as well.
func (c *Collection[T]) read(ctx context.Context, id string) (T, []byte, error) {
	var rec T
	if id == "" {
		return rec, nil, fmt.Errorf("%w: %s id required", types.ErrValidation, c.name)
	}
	raw, err := c.kv.Get(ctx, c.recordKey(id))
	if errors.Is(err, types.ErrKeyNotFound) {
		return rec, nil, fmt.Errorf("%s %q: %w", c.name, id, types.ErrNotFound)
	}
	if err != nil {
		return rec, nil, err
	}
	if err := json.Unmarshal(raw, &rec); err != nil {
		return rec, nil, types.NewStorageError("decode", c.recordKey(id), err)
	}
	return rec, raw, nil
}

// List returns up to limit records starting at cursor, in index order.
// An empty cursor starts at the beginning. limit <= 0 selects the default
// page size; larger limits are clamped to the maximum page size.
func (c *Collection[T]) List(ctx context.Context, cursor string, limit int) (_ types.Page[T], err error) {
	ctx, end := c.start(ctx, "list")
	defer end(&err)

	if limit <= 0 {
		limit = c.opts.PageSize
	}
	limit = min(limit, c.opts.MaxPageSize)

	var tok cursorToken
	if cursor != "" {
		if tok, err = decodeCursor(c.name, cursor); err != nil {
			return types.Page[T]{}, err
		}
	}

	idx, _, _, err := c.loadIndex(ctx)
	if err != nil {
		return types.Page[T]{}, err
	}

	from := 0
	if cursor != "" {
		from = tok.resolve(idx.IDs)
	}
	to := min(from+limit, len(idx.IDs))
	ids := idx.IDs[from:to]

	recs := make([]T, len(ids))
	found := make([]bool, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchParallelism)
	for i, id := range ids {
		g.Go(func() error {
			rec, _, err := c.read(gctx, id)
			if errors.Is(err, types.ErrNotFound) {
				c.log.Warn("index names a missing record", "id", id)
				return nil
			}
			if err != nil {
				return err
			}
			recs[i], found[i] = rec, true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return types.Page[T]{}, err
	}

	page := types.Page[T]{Items: make([]T, 0, len(ids))}
	for i := range recs {
		if found[i] {
			page.Items = append(page.Items, recs[i])
		}
	}
	if to < len(idx.IDs) {
		next := encodeCursor(c.name, to, idx.IDs[to-1])
		page.Next = &next
	}
	return page, nil
}

// Update applies fn to the stored record and writes it back.
// Returns ErrNotFound if the record does not exist.
func (c *Collection[T]) Update(ctx context.Context, id string, fn func(*T) error) (_ T, err error) {
	ctx, end := c.start(ctx, "update")
	defer end(&err)

	var zero T
	for attempt := 1; ; attempt++ {
		rec, raw, err := c.read(ctx, id)
		if err != nil {
			return zero, err
		}
		if err := fn(&rec); err != nil {
			return zero, err
		}
		if got := c.idOf(rec); got != id {
			return zero, fmt.Errorf("%w: %s id is immutable", types.ErrValidation, c.name)
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return zero, fmt.Errorf("%w: encode %s: %v", types.ErrValidation, c.name, err)
		}

		if c.cas == nil {
			if err := c.kv.Put(ctx, c.recordKey(id), data); err != nil {
				return zero, err
			}
			return rec, nil
		}
		ok, err := c.cas.CompareAndSwap(ctx, c.recordKey(id), raw, data)
		if err != nil {
			return zero, err
		}
		if ok {
			return rec, nil
		}
		if attempt >= maxCASAttempts {
			return zero, fmt.Errorf("%w: concurrent update of %s %q", types.ErrConflict, c.name, id)
		}
	}
}

// Delete removes id from the index and deletes the record. It reports
// whether a record was removed; deleting an absent id is not an error.
func (c *Collection[T]) Delete(ctx context.Context, id string) (_ bool, err error) {
	ctx, end := c.start(ctx, "delete")
	defer end(&err)

	if id == "" {
		return false, fmt.Errorf("%w: %s id required", types.ErrValidation, c.name)
	}
	n, err := c.deleteIDs(ctx, []string{id})
	return n > 0, err
}

// DeleteMany deletes every id and returns how many records were actually
// removed. Absent and repeated ids are skipped.
func (c *Collection[T]) DeleteMany(ctx context.Context, ids []string) (_ int, err error) {
	ctx, end := c.start(ctx, "delete_many")
	defer end(&err)

	return c.deleteIDs(ctx, ids)
}

func (c *Collection[T]) deleteIDs(ctx context.Context, ids []string) (int, error) {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id != "" {
			drop[id] = true
		}
	}
	if len(drop) == 0 {
		return 0, nil
	}

	// Index first: a crash between the two steps leaves an unreachable record
	// rather than an index entry pointing at nothing.
	err := c.updateIndex(ctx, func(cur []string) ([]string, error) {
		kept := slices.DeleteFunc(cur, func(id string) bool { return drop[id] })
		if len(kept) == len(cur) {
			return nil, errUnchanged
		}
		return kept, nil
	})
	if err != nil {
		return 0, err
	}

	removed := 0
	for id := range drop {
		ok, err := c.kv.Delete(ctx, c.recordKey(id))
		if err != nil {
			return removed, err
		}
		if ok {
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of ids in the index.
func (c *Collection[T]) Len(ctx context.Context) (int, error) {
	idx, _, _, err := c.loadIndex(ctx)
	return len(idx.IDs), err
}
