// Package pricing feeds the cosmetic "prize pool in collectible-equivalents"
// display. Nothing here participates in payout correctness, so every failure
// path degrades to a cached or static value instead of an error.
package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// FallbackETHUSD is the static spot price used when every provider fails.
const FallbackETHUSD = 3000.0

// SpotOracle resolves the ETH/USD spot price through a provider chain:
// Binance first, Coinbase second, static fallback last.
type SpotOracle struct {
	http        *http.Client
	log         *zap.SugaredLogger
	binanceURL  string
	coinbaseURL string
}

// SpotOption configures a SpotOracle.
type SpotOption func(*SpotOracle)

// WithBinanceURL overrides the Binance endpoint (tests).
func WithBinanceURL(u string) SpotOption {
	return func(o *SpotOracle) { o.binanceURL = u }
}

// WithCoinbaseURL overrides the Coinbase endpoint (tests).
func WithCoinbaseURL(u string) SpotOption {
	return func(o *SpotOracle) { o.coinbaseURL = u }
}

func NewSpotOracle(timeout time.Duration, log *zap.SugaredLogger, opts ...SpotOption) *SpotOracle {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	o := &SpotOracle{
		http:        &http.Client{Timeout: timeout},
		log:         log,
		binanceURL:  "https://api.binance.com/api/v3/ticker/price?symbol=ETHUSDT",
		coinbaseURL: "https://api.coinbase.com/v2/prices/ETH-USD/spot",
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ETHUSD never fails: it walks the provider chain and answers the static
// fallback when no provider responds.
func (o *SpotOracle) ETHUSD(ctx context.Context) float64 {
	if p, err := o.fromBinance(ctx); err == nil && p > 0 {
		return p
	} else if err != nil {
		o.log.Debugw("binance spot price failed", "err", err)
	}
	if p, err := o.fromCoinbase(ctx); err == nil && p > 0 {
		return p
	} else if err != nil {
		o.log.Debugw("coinbase spot price failed", "err", err)
	}
	o.log.Warnw("all spot price providers failed, using fallback", "fallback", FallbackETHUSD)
	return FallbackETHUSD
}

func (o *SpotOracle) fromBinance(ctx context.Context) (float64, error) {
	var payload struct {
		Price string `json:"price"`
	}
	if err := o.getJSON(ctx, o.binanceURL, &payload); err != nil {
		return 0, err
	}
	return strconv.ParseFloat(payload.Price, 64)
}

func (o *SpotOracle) fromCoinbase(ctx context.Context) (float64, error) {
	var payload struct {
		Data struct {
			Amount string `json:"amount"`
		} `json:"data"`
	}
	if err := o.getJSON(ctx, o.coinbaseURL, &payload); err != nil {
		return 0, err
	}
	return strconv.ParseFloat(payload.Data.Amount, 64)
}

func (o *SpotOracle) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := o.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
