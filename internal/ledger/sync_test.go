package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hardwarelens-api/internal/cache"
	"hardwarelens-api/internal/model"
)

// memSheet is an in-memory Sheet that counts calls.
type memSheet struct {
	mu           sync.Mutex
	header       []string
	rows         [][]string
	headerWrites int
	rowReads     int
	appendErr    error
}

func (m *memSheet) ReadHeader(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.header...), nil
}

func (m *memSheet) WriteHeader(_ context.Context, header []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.headerWrites++
	m.header = append([]string(nil), header...)
	return nil
}

func (m *memSheet) AppendRow(_ context.Context, row []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return m.appendErr
	}
	m.rows = append(m.rows, append([]string(nil), row...))
	return nil
}

func (m *memSheet) ReadRows(context.Context) ([][]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rowReads++
	return m.rows, nil
}

func (m *memSheet) Close() error { return nil }

// deleteFailingStore fails Delete only.
type deleteFailingStore struct{ cache.Store }

func (deleteFailingStore) Delete(context.Context, string) error { return errors.New("store down") }

func newTestSync(t *testing.T, sheet Sheet) (*Sync, *cache.MemoryStore) {
	t.Helper()
	store := cache.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })
	return NewSync(sheet, store, SyncConfig{}, nil), store
}

func record(barcode, brand string) model.EnrichmentRecord {
	return model.EnrichmentRecord{
		Timestamp: "2024-05-01T12:00:00.000Z",
		Barcode:   barcode,
		Brand:     model.Value(brand),
		Notes:     model.Value("Auto-enriched"),
	}
}

func TestEnsureHeader_Idempotent(t *testing.T) {
	sheet := &memSheet{}
	s, _ := newTestSync(t, sheet)

	require.NoError(t, s.EnsureHeader(context.Background()))
	assert.Equal(t, 1, sheet.headerWrites)
	assert.Equal(t, model.Header, sheet.header)

	require.NoError(t, s.EnsureHeader(context.Background()))
	assert.Equal(t, 1, sheet.headerWrites)
}

func TestEnsureHeader_RewritesMismatch(t *testing.T) {
	tests := []struct {
		name     string
		existing []string
	}{
		{name: "reordered", existing: append([]string{model.FieldBarcode, model.FieldTimestamp}, model.Header[2:]...)},
		{name: "truncated", existing: model.Header[:12]},
		{name: "foreign", existing: []string{"id", "name"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sheet := &memSheet{header: tc.existing}
			s, _ := newTestSync(t, sheet)

			require.NoError(t, s.EnsureHeader(context.Background()))
			assert.Equal(t, 1, sheet.headerWrites)
			assert.Equal(t, model.Header, sheet.header)
		})
	}
}

func TestAppend_WritesProjectedRow(t *testing.T) {
	sheet := &memSheet{}
	s, _ := newTestSync(t, sheet)

	require.NoError(t, s.Append(context.Background(), record("0012345678905", "Acme")))

	require.Len(t, sheet.rows, 1)
	row := sheet.rows[0]
	require.Len(t, row, len(model.Header))
	assert.Equal(t, "2024-05-01T12:00:00.000Z", row[0])
	assert.Equal(t, "0012345678905", row[1])
	assert.Equal(t, "Acme", row[2])
	assert.Equal(t, "", row[3])
	assert.Equal(t, "Auto-enriched", row[12])
}

func TestAppend_InvalidatesRecent(t *testing.T) {
	sheet := &memSheet{}
	s, store := newTestSync(t, sheet)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, record("11111111", "First")))

	recent, err := s.Recent(ctx)
	require.NoError(t, err)
	require.Len(t, recent, 1)

	_, err = store.Get(ctx, RecentKey)
	require.NoError(t, err, "recent scans should be cached")

	require.NoError(t, s.Append(ctx, record("22222222", "Second")))

	_, err = store.Get(ctx, RecentKey)
	assert.ErrorIs(t, err, cache.ErrCacheMiss)

	recent, err = s.Recent(ctx)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "22222222", recent[0].Barcode)
	assert.Equal(t, "11111111", recent[1].Barcode)
}

func TestAppend_FailureLeavesCacheAlone(t *testing.T) {
	sheet := &memSheet{appendErr: &APIError{Op: "append", StatusCode: 500, Body: "boom"}}
	s, store := newTestSync(t, sheet)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, RecentKey, []byte(`[]`), time.Minute))

	err := s.Append(ctx, record("0012345678905", "Acme"))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)

	_, err = store.Get(ctx, RecentKey)
	assert.NoError(t, err)
}

func TestAppend_InvalidationFailureIsNotReturned(t *testing.T) {
	sheet := &memSheet{}
	store := cache.NewMemoryStore()
	defer store.Close()
	s := NewSync(sheet, deleteFailingStore{store}, SyncConfig{}, nil)

	require.NoError(t, s.Append(context.Background(), record("0012345678905", "Acme")))
	assert.Len(t, sheet.rows, 1)
}

func TestRecent_NewestFirstAndLimited(t *testing.T) {
	sheet := &memSheet{}
	for i := 0; i < 15; i++ {
		sheet.rows = append(sheet.rows, []string{"ts", fmt.Sprintf("%08d", i)})
	}
	s, _ := newTestSync(t, sheet)

	recent, err := s.Recent(context.Background())
	require.NoError(t, err)
	require.Len(t, recent, DefaultRecentLimit)
	assert.Equal(t, "00000014", recent[0].Barcode)
	assert.Equal(t, "00000005", recent[9].Barcode)
}

func TestRecent_ShortRowsLeaveTrailingFieldsNull(t *testing.T) {
	sheet := &memSheet{rows: [][]string{{"2024-05-01T12:00:00.000Z", "0012345678905", "Acme"}}}
	s, _ := newTestSync(t, sheet)

	recent, err := s.Recent(context.Background())
	require.NoError(t, err)
	require.Len(t, recent, 1)

	rec := recent[0]
	assert.Equal(t, "0012345678905", rec.Barcode)
	assert.Equal(t, "Acme", model.Deref(rec.Brand))
	assert.Nil(t, rec.Model)
	assert.Nil(t, rec.Notes)
}

func TestRecent_ServesWarmCache(t *testing.T) {
	sheet := &memSheet{rows: [][]string{{"ts", "12345678"}}}
	s, _ := newTestSync(t, sheet)
	ctx := context.Background()

	first, err := s.Recent(ctx)
	require.NoError(t, err)
	second, err := s.Recent(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, sheet.rowReads)
}

func TestRecent_EmptyLedger(t *testing.T) {
	s, _ := newTestSync(t, &memSheet{})

	recent, err := s.Recent(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, recent)
	assert.Empty(t, recent)
}
