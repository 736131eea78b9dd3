package service

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vecdb/vecdb/collection"
	"github.com/vecdb/vecdb/core"
	"github.com/vecdb/vecdb/knn"
	"github.com/vecdb/vecdb/metric"
	"github.com/vecdb/vecdb/persistence"
	"github.com/vecdb/vecdb/registry"
	"github.com/vecdb/vecdb/walpkg"
)

var collectionNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Service is the stable operation surface every external caller (the
// HTTP API, the CLI, an embedding Go program) depends on. Every method
// times the call, translates the resulting error into the stable Kind
// taxonomy, records a metric, and logs — mirroring the teacher's façade
// methods one-for-one.
type Service struct {
	reg atomic.Pointer[registry.Registry]
	wal *walpkg.WAL
	mgr *persistence.Manager

	snapMu sync.Mutex   // serializes SaveSnapshot/LoadSnapshot against each other
	mutMu  sync.RWMutex // held for read across each mutation's WAL append + apply, for write while a snapshot reads the WAL sequence and copies collection content, so the two stay mutually consistent

	// nameLocks serializes WAL-append-then-apply per collection name: two
	// concurrent writers to the same collection must apply in the same
	// order their WAL records were assigned, or a crash replay (always
	// strictly sequence-ordered) would disagree with the live in-memory
	// state. mutMu's shared RLock alone does not guarantee that ordering
	// across two RLock holders racing each other; this closes that gap
	// the way the teacher's engine.Insert holds one exclusive lock across
	// both LSN assignment and the index mutation.
	nameLocks sync.Map // name string -> *sync.Mutex

	opts options
}

// lockName serializes writers to the same collection name across the
// WAL-append-then-apply critical section. The returned func releases it.
func (s *Service) lockName(name string) func() {
	v, _ := s.nameLocks.LoadOrStore(name, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (s *Service) registry() *registry.Registry {
	return s.reg.Load()
}

// Open recovers registry state from snapshotPath/walPath (if present)
// and opens the WAL for further appends, continuing sequence numbering
// from wherever recovery left off. ctx bounds the recovery's WAL replay,
// which polls it between frames.
func Open(ctx context.Context, snapshotPath, walPath string, opts ...Option) (*Service, error) {
	o := applyOptions(opts)
	mgr := persistence.New(snapshotPath, walPath)

	reg, lastSeq, err := mgr.Recover(ctx)
	if err != nil {
		o.logger.LogRecovery(ctx, 0, 0, err)
		return nil, translateError(err)
	}

	interval := time.Duration(o.walGroupCommitGap) * time.Millisecond
	wal, err := walpkg.Open(walPath, lastSeq, o.walFsyncMode, interval)
	if err != nil {
		return nil, translateError(err)
	}

	o.logger.LogRecovery(ctx, len(reg.List()), lastSeq, nil)

	svc := &Service{wal: wal, mgr: mgr, opts: o}
	svc.reg.Store(reg)
	return svc, nil
}

// Close flushes and closes the underlying WAL.
func (s *Service) Close() error {
	return s.wal.Close()
}

// CreateCollection creates a new, empty collection fixed at dimension.
func (s *Service) CreateCollection(ctx context.Context, name string, dimension int) error {
	err := s.createCollection(ctx, name, dimension)
	s.opts.logger.LogCreateCollection(ctx, name, dimension, err)
	s.opts.metricsCollector.RecordCreateCollection(err)
	return err
}

func (s *Service) createCollection(ctx context.Context, name string, dimension int) error {
	if !collectionNamePattern.MatchString(name) {
		return newError(KindInvalidCollectionName, "collection name must match "+collectionNamePattern.String(), nil)
	}
	if dimension <= 0 {
		return newError(KindInvalidDimension, "dimension must be positive", nil)
	}

	body, err := walpkg.MarshalCollection(walpkg.CollectionBody{Name: name, Dimension: dimension})
	if err != nil {
		return newError(KindIOFailure, "failed to encode WAL record", err)
	}

	unlock := s.lockName(name)
	defer unlock()

	s.mutMu.RLock()
	defer s.mutMu.RUnlock()

	if _, err := s.wal.Append(ctx, walpkg.RecordCreateCollection, body); err != nil {
		return translateError(err)
	}

	if _, err := s.registry().Create(name, dimension); err != nil {
		return translateError(err)
	}
	return nil
}

// DropCollection removes a collection and every record in it.
func (s *Service) DropCollection(ctx context.Context, name string) error {
	err := s.dropCollection(ctx, name)
	s.opts.logger.LogDropCollection(ctx, name, err)
	s.opts.metricsCollector.RecordDropCollection(err)
	return err
}

func (s *Service) dropCollection(ctx context.Context, name string) error {
	body, err := walpkg.MarshalCollection(walpkg.CollectionBody{Name: name})
	if err != nil {
		return newError(KindIOFailure, "failed to encode WAL record", err)
	}

	unlock := s.lockName(name)
	defer unlock()

	s.mutMu.RLock()
	defer s.mutMu.RUnlock()

	if _, err := s.wal.Append(ctx, walpkg.RecordDropCollection, body); err != nil {
		return translateError(err)
	}
	if err := s.registry().Drop(name); err != nil {
		return translateError(err)
	}
	return nil
}

// ListCollections returns a stats summary for every collection, in
// lexicographic order by name.
func (s *Service) ListCollections(context.Context) ([]collection.Stats, error) {
	all := s.registry().All()
	out := make([]collection.Stats, len(all))
	for i, c := range all {
		out[i] = c.Stats()
	}
	return out, nil
}

// DefaultCollectionName is the reserved collection the wire protocol
// falls back to when a request omits its collection query parameter.
const DefaultCollectionName = "default"

// EnsureDefaultCollection creates the reserved default collection at
// dimension if it does not already exist. Its dimension is fixed at
// this first creation just like any other collection: a later restart
// with a different Config.DefaultDimension never resizes it.
func (s *Service) EnsureDefaultCollection(ctx context.Context, dimension int) error {
	if _, err := s.registry().Get(DefaultCollectionName); err == nil {
		return nil
	}
	err := s.CreateCollection(ctx, DefaultCollectionName, dimension)
	if err != nil {
		var svcErr *Error
		if errors.As(err, &svcErr) && svcErr.Kind == KindCollectionAlreadyExists {
			return nil
		}
	}
	return err
}

// Clear drops every collection in the registry, WAL-logging each drop
// individually so recovery reproduces the same end state. It does not
// recreate the default collection; callers that need it back call
// EnsureDefaultCollection again.
func (s *Service) Clear(ctx context.Context) error {
	for _, name := range s.registry().List() {
		if err := s.DropCollection(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

// Upsert inserts or replaces a record by ID.
func (s *Service) Upsert(ctx context.Context, collectionName, id string, vector []float32, metadata map[string]any) error {
	start := time.Now()
	err := s.upsert(ctx, collectionName, id, vector, metadata)
	s.opts.logger.LogUpsert(ctx, collectionName, id, err)
	s.opts.metricsCollector.RecordUpsert(time.Since(start), err)
	return err
}

func (s *Service) upsert(ctx context.Context, collectionName, id string, vector []float32, metadata map[string]any) error {
	c, err := s.registry().Get(collectionName)
	if err != nil {
		return translateError(err)
	}
	if err := core.Validate(id, vector, c.Dimension()); err != nil {
		return translateError(err)
	}

	body, err := walpkg.MarshalUpsert(walpkg.UpsertBody{Collection: collectionName, ID: id, Vector: vector, Metadata: metadata})
	if err != nil {
		return newError(KindIOFailure, "failed to encode WAL record", err)
	}

	unlock := s.lockName(collectionName)
	defer unlock()

	s.mutMu.RLock()
	defer s.mutMu.RUnlock()

	if _, err := s.wal.Append(ctx, walpkg.RecordUpsert, body); err != nil {
		return translateError(err)
	}

	if err := c.Upsert(id, vector, metadata); err != nil {
		return translateError(err)
	}
	return nil
}

// Delete removes a record by ID. Deleting a record that does not exist
// returns RECORD_NOT_FOUND.
func (s *Service) Delete(ctx context.Context, collectionName, id string) error {
	start := time.Now()
	err := s.delete(ctx, collectionName, id)
	s.opts.logger.LogDelete(ctx, collectionName, id, err)
	s.opts.metricsCollector.RecordDelete(time.Since(start), err)
	return err
}

func (s *Service) delete(ctx context.Context, collectionName, id string) error {
	c, err := s.registry().Get(collectionName)
	if err != nil {
		return translateError(err)
	}
	if _, ok := c.Get(id); !ok {
		return newError(KindRecordNotFound, "record not found", nil)
	}

	body, err := walpkg.MarshalDelete(walpkg.DeleteBody{Collection: collectionName, ID: id})
	if err != nil {
		return newError(KindIOFailure, "failed to encode WAL record", err)
	}

	unlock := s.lockName(collectionName)
	defer unlock()

	s.mutMu.RLock()
	defer s.mutMu.RUnlock()

	if _, err := s.wal.Append(ctx, walpkg.RecordDelete, body); err != nil {
		return translateError(err)
	}

	c.Delete(id)
	return nil
}

// Get returns a single record by ID.
func (s *Service) Get(_ context.Context, collectionName, id string) (*core.VectorRecord, error) {
	c, err := s.registry().Get(collectionName)
	if err != nil {
		return nil, translateError(err)
	}
	rec, ok := c.Get(id)
	if !ok {
		return nil, newError(KindRecordNotFound, "record not found", nil)
	}
	return rec, nil
}

// Search runs an exact k-NN search against a collection.
func (s *Service) Search(ctx context.Context, collectionName string, query []float32, k int, m metric.Name, filter map[string]any) ([]knn.Result, error) {
	start := time.Now()
	results, err := s.search(ctx, collectionName, query, k, m, filter)
	s.opts.logger.LogSearch(ctx, collectionName, k, len(results), err)
	s.opts.metricsCollector.RecordSearch(k, time.Since(start), err)
	return results, err
}

func (s *Service) search(ctx context.Context, collectionName string, query []float32, k int, m metric.Name, filter map[string]any) ([]knn.Result, error) {
	if k <= 0 {
		return nil, newError(KindInvalidK, "k must be positive", nil)
	}

	c, err := s.registry().Get(collectionName)
	if err != nil {
		return nil, translateError(err)
	}
	if err := validateQuery(query, c.Dimension()); err != nil {
		return nil, translateError(err)
	}

	qNorm := core.Magnitude(query)
	results, err := knn.Search(ctx, c.Snapshot(), query, qNorm, k, m, filter)
	if err != nil {
		if ctx.Err() != nil {
			return nil, newError(KindCancelled, "search cancelled", err)
		}
		return nil, newError(KindIOFailure, "search failed", err)
	}
	return results, nil
}

func validateQuery(query []float32, dimension int) error {
	if len(query) != dimension {
		return &core.DimensionMismatchError{Expected: dimension, Actual: len(query)}
	}
	for _, c := range query {
		if !metric.IsFinite(c) {
			return core.ErrNonFiniteComponent
		}
	}
	return nil
}

// Stats returns a point-in-time summary of a collection.
func (s *Service) Stats(_ context.Context, collectionName string) (collection.Stats, error) {
	c, err := s.registry().Get(collectionName)
	if err != nil {
		return collection.Stats{}, translateError(err)
	}
	return c.Stats(), nil
}

// walSeq reports the highest WAL sequence number appended so far, the
// point a new snapshot should be tagged at.
func (s *Service) walSeq() uint64 {
	return s.wal.CurrentSeq()
}

// SaveSnapshot atomically writes every collection to the configured
// snapshot file and drops the WAL frames it now durably captures. It
// returns the WAL sequence the snapshot was tagged at.
//
// The sequence read and the collection content copied must describe the
// exact same moment: mutMu's write lock blocks every Upsert/Delete/
// CreateCollection/DropCollection for the duration of that read, so no
// mutation can land in between and end up neither reflected in the
// snapshot nor retained in the WAL tail Checkpoint keeps afterwards.
func (s *Service) SaveSnapshot(ctx context.Context) (uint64, error) {
	start := time.Now()
	s.snapMu.Lock()
	defer s.snapMu.Unlock()

	s.mutMu.Lock()
	seq := s.walSeq()
	err := s.mgr.SaveSnapshot(s.registry(), seq)
	s.mutMu.Unlock()

	if err == nil {
		err = s.wal.Checkpoint(seq)
	}

	s.opts.logger.LogSnapshot(ctx, s.mgr.SnapshotPath, err)
	s.opts.metricsCollector.RecordSnapshot(time.Since(start), err)
	if err != nil {
		return 0, newError(KindIOFailure, "snapshot failed", err)
	}
	return seq, nil
}

// LoadSnapshot discards all in-memory state and reloads the registry
// from the snapshot file plus any WAL records written after it — the
// same recovery path Open uses at startup, callable on a running
// service. It returns the WAL sequence recovery settled on.
func (s *Service) LoadSnapshot(ctx context.Context) (uint64, error) {
	s.snapMu.Lock()
	defer s.snapMu.Unlock()

	reg, lastSeq, err := s.mgr.Recover(ctx)
	s.opts.logger.LogRecovery(ctx, len(func() []string {
		if reg != nil {
			return reg.List()
		}
		return nil
	}()), lastSeq, err)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return 0, newError(KindCancelled, "load cancelled", err)
		}
		if errors.Is(err, persistence.ErrCorruptSnapshot) || errors.Is(err, persistence.ErrInvalidMagic) || errors.Is(err, persistence.ErrInvalidVersion) {
			return 0, newError(KindCorruptSnapshot, "snapshot is corrupt or incompatible", err)
		}
		return 0, newError(KindIOFailure, "failed to load snapshot", err)
	}

	s.swapRegistry(reg)
	s.wal.Bump(lastSeq)
	return lastSeq, nil
}

func (s *Service) swapRegistry(reg *registry.Registry) {
	s.reg.Store(reg)
}
