package exchange

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"marketbot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCreds = models.Credentials{APIKey: "test-key", APISecret: "test-secret"}

func TestPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ticker/price", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		// public endpoint: no key header
		assert.Empty(t, r.Header.Get("X-MBX-APIKEY"))
		_, _ = w.Write([]byte(`{"symbol":"BTCUSDT","price":"65432.10"}`))
	}))
	defer srv.Close()

	p, err := NewClient(srv.URL).Price(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.InDelta(t, 65432.10, p, 1e-9)
}

func TestBalancesSignsRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/account", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-MBX-APIKEY"))
		q := r.URL.Query()
		assert.NotEmpty(t, q.Get("timestamp"))
		assert.Len(t, q.Get("signature"), 64) // hex-encoded HMAC-SHA256
		_, _ = w.Write([]byte(`{"balances":[
			{"asset":"BTC","free":"0.5","locked":"0.25"},
			{"asset":"ETH","free":"0","locked":"0"}
		]}`))
	}))
	defer srv.Close()

	rows, err := NewClient(srv.URL).Balances(context.Background(), testCreds)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "BTC", rows[0].Asset)
	assert.InDelta(t, 0.75, rows[0].Total, 1e-9)
	assert.Equal(t, 0.0, rows[1].Total)
}

func TestMyTradesPagingParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "BTCUSDT", q.Get("symbol"))
		assert.Equal(t, "500", q.Get("limit"))
		assert.Equal(t, "42", q.Get("fromId"))
		_, _ = w.Write([]byte(`[
			{"id":42,"price":"100.0","qty":"1.0","quoteQty":"100.0",
			 "commission":"0.1","commissionAsset":"USDT","isBuyer":true,"time":1700000000000}
		]`))
	}))
	defer srv.Close()

	rows, err := NewClient(srv.URL).MyTrades(context.Background(), testCreds, "BTCUSDT", 500, 42)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(42), rows[0].ID)
	assert.True(t, rows[0].IsBuyer)
	assert.Equal(t, "USDT", rows[0].CommissionAsset)
}

func TestMyTradesOmitsZeroFromID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok := r.URL.Query()["fromId"]
		assert.False(t, ok)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	rows, err := NewClient(srv.URL).MyTrades(context.Background(), testCreds, "BTCUSDT", 500, 0)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestHTTPErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Price(context.Background(), "NOPEUSDT")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "418")
}
