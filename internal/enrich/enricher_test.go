package enrich

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hardwarelens-api/internal/cache"
	"hardwarelens-api/internal/model"
)

type fakeResolver struct {
	name    string
	out     model.PartialRecord
	calls   atomic.Int32
	barrier *sync.WaitGroup
	release chan struct{}
}

func (f *fakeResolver) Name() string { return f.name }

func (f *fakeResolver) Resolve(ctx context.Context, barcode string) model.PartialRecord {
	f.calls.Add(1)
	if f.barrier != nil {
		f.barrier.Done()
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return model.PartialRecord{}
		}
	}
	return f.out
}

// failingStore fails every operation.
type failingStore struct{ cache.Store }

var errStoreDown = errors.New("store down")

func (failingStore) Get(context.Context, string) ([]byte, error) { return nil, errStoreDown }
func (failingStore) Set(context.Context, string, []byte, time.Duration) error {
	return errStoreDown
}

func newStore(t *testing.T) *cache.MemoryStore {
	t.Helper()
	s := cache.NewMemoryStore()
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestEnricher_ResolveAndCache(t *testing.T) {
	store := newStore(t)
	scrape := &fakeResolver{name: "scrape", out: model.PartialRecord{model.FieldCPU: "Intel Core i7"}}
	upc := &fakeResolver{name: "upcitemdb", out: model.PartialRecord{model.FieldBrand: "Lenovo"}}
	off := &fakeResolver{name: "openfoodfacts", out: model.PartialRecord{}}
	e := NewEnricher(store, time.Hour, nil, scrape, upc, off)

	first, err := e.Resolve(context.Background(), "0012345678905")
	require.NoError(t, err)
	assert.Equal(t, "0012345678905", first.Barcode)
	assert.Empty(t, first.Timestamp)
	assert.Equal(t, "Lenovo", model.Deref(first.Brand))
	assert.Equal(t, "Intel Core i7", model.Deref(first.CPU))

	second, err := e.Resolve(context.Background(), "0012345678905")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	for _, r := range []*fakeResolver{scrape, upc, off} {
		assert.Equal(t, int32(1), r.calls.Load(), r.name)
	}

	var stored model.EnrichmentRecord
	require.NoError(t, cache.GetJSON(context.Background(), store, "scrape:0012345678905", &stored))
	assert.Equal(t, first, stored)
}

func TestEnricher_CachedRecordIsReturnedUnchanged(t *testing.T) {
	store := newStore(t)
	seeded := model.EnrichmentRecord{
		Barcode: "0012345678905",
		Brand:   model.Value("Seeded"),
		Notes:   model.Value("from cache"),
	}
	require.NoError(t, cache.SetJSON(context.Background(), store, CacheKey("0012345678905"), seeded, time.Hour))

	r := &fakeResolver{name: "scrape", out: model.PartialRecord{model.FieldBrand: "Fresh"}}
	e := NewEnricher(store, time.Hour, nil, r)

	got, err := e.Resolve(context.Background(), "0012345678905")
	require.NoError(t, err)
	assert.Equal(t, seeded, got)
	assert.Zero(t, r.calls.Load())
}

func TestEnricher_ResolversRunConcurrently(t *testing.T) {
	var barrier sync.WaitGroup
	barrier.Add(3)
	release := make(chan struct{})
	rs := []*fakeResolver{
		{name: "scrape", barrier: &barrier, release: release},
		{name: "upcitemdb", barrier: &barrier, release: release},
		{name: "openfoodfacts", barrier: &barrier, release: release},
	}
	e := NewEnricher(newStore(t), time.Hour, nil, rs[0], rs[1], rs[2])

	done := make(chan error, 1)
	go func() {
		_, err := e.Resolve(context.Background(), "0012345678905")
		done <- err
	}()

	started := make(chan struct{})
	go func() {
		barrier.Wait()
		close(started)
	}()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("resolvers did not run concurrently")
	}
	close(release)
	require.NoError(t, <-done)
}

func TestEnricher_CollapsesConcurrentMisses(t *testing.T) {
	release := make(chan struct{})
	r := &fakeResolver{name: "scrape", out: model.PartialRecord{model.FieldBrand: "Acme"}, release: release}
	e := NewEnricher(newStore(t), time.Hour, nil, r)

	const callers = 5
	var wg sync.WaitGroup
	results := make([]model.EnrichmentRecord, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec, err := e.Resolve(context.Background(), "0012345678905")
			assert.NoError(t, err)
			results[i] = rec
		}(i)
	}

	require.Eventually(t, func() bool { return r.calls.Load() >= 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), r.calls.Load())
	for _, rec := range results {
		assert.Equal(t, "Acme", model.Deref(rec.Brand))
	}
}

func TestEnricher_StoreFailuresAreNotFatal(t *testing.T) {
	r := &fakeResolver{name: "openfoodfacts", out: model.PartialRecord{model.FieldModel: "Laptop X"}}
	e := NewEnricher(failingStore{}, time.Hour, nil, r)

	rec, err := e.Resolve(context.Background(), "0012345678905")
	require.NoError(t, err)
	assert.Equal(t, "Laptop X", model.Deref(rec.Model))
	assert.Equal(t, DefaultNotes, model.Deref(rec.Notes))
}

func TestEnricher_CancelledContextIsNotCached(t *testing.T) {
	store := newStore(t)
	r := &fakeResolver{name: "scrape", release: make(chan struct{})}
	e := NewEnricher(store, time.Hour, nil, r)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Resolve(ctx, "0012345678905")
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, r.calls.Load())

	_, err = store.Get(context.Background(), CacheKey("0012345678905"))
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
}

func TestEnricher_CallerLeavingDoesNotFailOthers(t *testing.T) {
	store := newStore(t)
	release := make(chan struct{})
	r := &fakeResolver{name: "openfoodfacts", out: model.PartialRecord{model.FieldBrand: "Acme"}, release: release}
	e := NewEnricher(store, time.Hour, nil, r)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := e.Resolve(ctxA, "0012345678905")
		errA <- err
	}()
	require.Eventually(t, func() bool { return r.calls.Load() == 1 }, time.Second, time.Millisecond)

	type result struct {
		rec model.EnrichmentRecord
		err error
	}
	resB := make(chan result, 1)
	go func() {
		rec, err := e.Resolve(context.Background(), "0012345678905")
		resB <- result{rec, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelA()
	assert.ErrorIs(t, <-errA, context.Canceled)

	close(release)
	b := <-resB
	require.NoError(t, b.err)
	assert.Equal(t, "Acme", model.Deref(b.rec.Brand))
	assert.Equal(t, int32(1), r.calls.Load())

	var stored model.EnrichmentRecord
	require.NoError(t, cache.GetJSON(context.Background(), store, CacheKey("0012345678905"), &stored))
	assert.Equal(t, b.rec, stored)
}

func TestEnricher_TTL(t *testing.T) {
	assert.Equal(t, DefaultTTL, NewEnricher(newStore(t), 0, nil).ttl)
	assert.Equal(t, time.Minute, NewEnricher(newStore(t), time.Minute, nil).ttl)
}
