package pricing

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Shr1mpTop/Singapore-Major-Fan-Consensus-Protocol/internal/logger"
	"github.com/Shr1mpTop/Singapore-Major-Fan-Consensus-Protocol/internal/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Collectible{}))
	return db
}

func TestETHUSDPrefersBinance(t *testing.T) {
	binance := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"symbol":"ETHUSDT","price":"3501.42"}`))
	}))
	defer binance.Close()

	o := NewSpotOracle(time.Second, logger.NewNop(),
		WithBinanceURL(binance.URL),
		WithCoinbaseURL("http://127.0.0.1:0/unreachable"))
	assert.InDelta(t, 3501.42, o.ETHUSD(context.Background()), 0.001)
}

func TestETHUSDFallsBackToCoinbase(t *testing.T) {
	coinbase := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"base":"ETH","currency":"USD","amount":"3600.10"}}`))
	}))
	defer coinbase.Close()

	o := NewSpotOracle(time.Second, logger.NewNop(),
		WithBinanceURL("http://127.0.0.1:0/unreachable"),
		WithCoinbaseURL(coinbase.URL))
	assert.InDelta(t, 3600.10, o.ETHUSD(context.Background()), 0.001)
}

func TestETHUSDStaticFallback(t *testing.T) {
	o := NewSpotOracle(time.Second, logger.NewNop(),
		WithBinanceURL("http://127.0.0.1:0/unreachable"),
		WithCoinbaseURL("http://127.0.0.1:0/unreachable"))
	assert.Equal(t, FallbackETHUSD, o.ETHUSD(context.Background()))
}

func TestRefreshSelectsPlatformByPriority(t *testing.T) {
	db := openTestDB(t)

	price := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[
			{"platform":"STEAM","sellPrice":200,"sellCount":10},
			{"platform":"BUFF","sellPrice":100,"sellCount":3},
			{"platform":"C5","sellPrice":50,"sellCount":8}
		]}`))
	}))
	defer price.Close()
	fx := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"rates":{"USD":0.2}}`))
	}))
	defer fx.Close()

	tr := NewCollectibleTracker(db, time.Second, logger.NewNop(),
		WithPriceURL(price.URL+"/"),
		WithFXURL(fx.URL),
		WithItems([]string{"AWP | Dragon Lore (Factory New)"}))
	require.NoError(t, tr.Refresh(context.Background()))

	rows, err := tr.Prices()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	// BUFF wins over STEAM despite a higher STEAM price; 100 CNY * 0.2.
	assert.InDelta(t, 20.0, rows[0].PriceUSD, 0.001)
}

func TestRefreshSkipsDeadListings(t *testing.T) {
	db := openTestDB(t)

	price := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[
			{"platform":"BUFF","sellPrice":100,"sellCount":0},
			{"platform":"YOUPIN","sellPrice":80,"sellCount":2}
		]}`))
	}))
	defer price.Close()
	fx := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"rates":{"USD":0.14}}`))
	}))
	defer fx.Close()

	tr := NewCollectibleTracker(db, time.Second, logger.NewNop(),
		WithPriceURL(price.URL+"/"),
		WithFXURL(fx.URL),
		WithItems([]string{"MAC-10 | Tatter (Well-Worn)"}))
	require.NoError(t, tr.Refresh(context.Background()))

	rows, err := tr.Prices()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	// No stock on BUFF, YOUPIN fills in: 80 CNY * 0.14.
	assert.InDelta(t, 11.2, rows[0].PriceUSD, 0.001)
}

func TestRefreshKeepsCachedPriceOnFetchFailure(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Create(&models.Collectible{
		HashName: "Tec-9 | Groundwater (Battle-Scarred)",
		PriceUSD: 1.5,
	}).Error)

	price := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer price.Close()
	fx := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"rates":{"USD":0.14}}`))
	}))
	defer fx.Close()

	tr := NewCollectibleTracker(db, time.Second, logger.NewNop(),
		WithPriceURL(price.URL+"/"),
		WithFXURL(fx.URL),
		WithItems([]string{"Tec-9 | Groundwater (Battle-Scarred)"}))
	require.NoError(t, tr.Refresh(context.Background()))

	rows, err := tr.Prices()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.InDelta(t, 1.5, rows[0].PriceUSD, 0.001, "stale cache survives upstream outage")
}

func TestExchangeRateFallback(t *testing.T) {
	tr := NewCollectibleTracker(nil, time.Second, logger.NewNop(),
		WithFXURL("http://127.0.0.1:0/unreachable"))
	assert.Equal(t, FallbackCNYUSD, tr.exchangeRate(context.Background()))
}
