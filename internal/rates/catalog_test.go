package rates

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/jask/moneysync/internal/database"
	"github.com/jask/moneysync/internal/database/repository"
)

type staticNames map[string]string

func (s staticNames) CurrencyNames(context.Context) (map[string]string, error) {
	if len(s) == 0 {
		return nil, ErrUnavailable
	}
	return s, nil
}

func catalog(t *testing.T, h *database.Handle) []repository.CurrencyInfo {
	t.Helper()
	var out []repository.CurrencyInfo
	err := h.Read(context.Background(), func(q repository.Querier) error {
		var err error
		out, err = repository.NewCurrencyRepo(q).List(context.Background())
		return err
	})
	require.NoError(t, err)
	return out
}

func TestHTTPProviderCurrencyNames(t *testing.T) {
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer primary.Close()
	fallback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/currencies.json", r.URL.Path)
		_, _ = w.Write([]byte(`{"eur":"Euro","usd":"US Dollar","1inch":"1inch Network"}`))
	}))
	defer fallback.Close()

	p := NewHTTPProvider(primary.URL+"/v1/currencies", fallback.URL+"/v1/currencies", time.Second, zaptest.NewLogger(t))
	names, err := p.CurrencyNames(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Euro", names["eur"])
}

func TestRefreshCatalogStoresThreeLetterCodes(t *testing.T) {
	ctx := context.Background()
	h := newHandle(t)
	stored, fellBack, err := RefreshCatalog(ctx, h, staticNames{
		"eur":   "Euro",
		"usd":   "US Dollar",
		"1inch": "1inch Network",
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.False(t, fellBack)
	assert.Equal(t, 2, stored)

	got := catalog(t, h)
	require.Len(t, got, 2)
	assert.Equal(t, "EUR", got[0].Code)
	assert.Equal(t, "Euro", got[0].Name)
	assert.Equal(t, "USD", got[1].Code)
}

func TestRefreshCatalogFallsBackToBuiltIn(t *testing.T) {
	ctx := context.Background()
	h := newHandle(t)
	stored, fellBack, err := RefreshCatalog(ctx, h, staticNames{}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.True(t, fellBack)
	assert.Greater(t, stored, 10)

	codes := map[string]bool{}
	for _, c := range catalog(t, h) {
		codes[c.Code] = true
	}
	assert.True(t, codes["USD"])
	assert.True(t, codes["EUR"])
}

func TestEnsureCatalogKeepsExistingRows(t *testing.T) {
	ctx := context.Background()
	h := newHandle(t)
	require.NoError(t, EnsureCatalog(ctx, h, staticNames{"gbp": "British Pound"}, nil))
	require.NoError(t, EnsureCatalog(ctx, h, staticNames{"jpy": "Japanese Yen"}, nil))

	got := catalog(t, h)
	require.Len(t, got, 1)
	assert.Equal(t, "GBP", got[0].Code)
}
