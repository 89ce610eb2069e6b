package rates

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/jask/moneysync/internal/database"
	"github.com/jask/moneysync/internal/database/repository"
)

func TestHTTPProviderFallsBack(t *testing.T) {
	var primaryHits atomic.Int32
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		primaryHits.Add(1)
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer primary.Close()
	fallback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/eur.json", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"date":"2024-03-01","eur":{"usd":1.09,"gbp":0.85,"eur":1}}`))
	}))
	defer fallback.Close()

	p := NewHTTPProvider(primary.URL, fallback.URL+"/", time.Second, zaptest.NewLogger(t))
	table, err := p.RatesFor(context.Background(), "EUR")
	require.NoError(t, err)
	assert.Equal(t, 1.09, table["usd"])
	assert.Equal(t, int32(1), primaryHits.Load())
}

func TestHTTPProviderUnavailable(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"date":"2024-03-01"}`))
	}))
	defer bad.Close()

	p := NewHTTPProvider(bad.URL, bad.URL, time.Second, nil)
	_, err := p.RatesFor(context.Background(), "usd")
	require.ErrorIs(t, err, ErrUnavailable)
}

type fakeProvider struct {
	tables map[string]map[string]float64
	calls  atomic.Int32
}

func (f *fakeProvider) RatesFor(_ context.Context, base string) (map[string]float64, error) {
	f.calls.Add(1)
	t, ok := f.tables[base]
	if !ok {
		return nil, ErrUnavailable
	}
	return t, nil
}

func newHandle(t *testing.T) *database.Handle {
	t.Helper()
	h, err := database.Load(context.Background(), database.Options{
		Path:   filepath.Join(t.TempDir(), "rates.db"),
		Logger: zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close(context.Background()) })
	return h
}

func addBudgets(t *testing.T, h *database.Handle, currencies ...string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, h.Write(ctx, func(q repository.Querier) error {
		for i, c := range currencies {
			if _, err := repository.NewBudgetRepo(q).Insert(ctx, repository.Budget{
				Entity: repository.Entity{Name: "B" + c, Currency: c, SortOrder: i},
			}); err != nil {
				return err
			}
		}
		return nil
	}))
}

func fixedNow() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }

func TestRefreshStoresAllPairs(t *testing.T) {
	h := newHandle(t)
	addBudgets(t, h, "EUR", "GBP")
	p := &fakeProvider{tables: map[string]map[string]float64{
		"EUR": {"usd": 1.09, "gbp": 0.85, "jpy": 160},
		"GBP": {"usd": 1.27, "eur": 1.17},
		"USD": {"eur": 0.92, "gbp": 0.79, "chf": 0},
	}}
	r := NewRefresher(h, p, fixedNow, zaptest.NewLogger(t))

	n, err := r.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	n, err = r.Refresh(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "complete N*(N-1) table skips the fetch")
	assert.Equal(t, int32(3), p.calls.Load())

	require.NoError(t, h.Read(context.Background(), func(q repository.Querier) error {
		all, err := repository.NewRateRepo(q).All(context.Background())
		require.NoError(t, err)
		assert.Len(t, all, 6)
		for _, x := range all {
			assert.Equal(t, "2024-03-01", x.Date)
		}
		return nil
	}))
}

func TestRefreshSkipsUnavailableBase(t *testing.T) {
	h := newHandle(t)
	addBudgets(t, h, "EUR")
	p := &fakeProvider{tables: map[string]map[string]float64{
		"USD": {"eur": 0.92},
	}}
	r := NewRefresher(h, p, fixedNow, nil)

	n, err := r.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = r.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n, "incomplete table triggers another fetch")
	assert.Equal(t, int32(4), p.calls.Load())
}

func TestRefreshNothingToDo(t *testing.T) {
	h := newHandle(t)
	addBudgets(t, h, "USD")
	p := &fakeProvider{}
	n, err := NewRefresher(h, p, fixedNow, nil).Refresh(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, p.calls.Load())
}

func TestRefreshNoRatesDoesNotWrite(t *testing.T) {
	h := newHandle(t)
	addBudgets(t, h, "EUR")
	g := h.Generation()
	n, err := NewRefresher(h, &fakeProvider{}, fixedNow, nil).Refresh(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, g, h.Generation())
}

func TestRefreshHonoursCancellation(t *testing.T) {
	h := newHandle(t)
	addBudgets(t, h, "EUR")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewRefresher(h, cancelledProvider{}, fixedNow, nil).Refresh(ctx)
	require.True(t, errors.Is(err, context.Canceled))
}

type cancelledProvider struct{}

func (cancelledProvider) RatesFor(ctx context.Context, _ string) (map[string]float64, error) {
	return nil, ctx.Err()
}
