package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Shr1mpTop/Singapore-Major-Fan-Consensus-Protocol/internal/models"
)

// FallbackCNYUSD is the static CNY to USD rate used when the FX API fails.
const FallbackCNYUSD = 0.14

// DefaultItems is the tracked collectible set.
var DefaultItems = []string{
	"AWP | Dragon Lore (Factory New)",
	"★ Butterfly Knife | Crimson Web (Factory New)",
	"★ Karambit | Gamma Doppler (Factory New)",
	"★ Sport Gloves | Nocts (Field-Tested)",
	"StatTrak™ AK-47 | Vulcan (Well-Worn)",
	"M4A4 | Hellish (Minimal Wear)",
	"Souvenir Galil AR | CAUTION! (Factory New)",
	"Crasswater The Forgotten | Guerrilla Warfare",
	"StatTrak™ Music Kit | TWERL and Ekko & Sidetrack, Under Bright Lights",
	"MAC-10 | Tatter (Well-Worn)",
	"Tec-9 | Groundwater (Battle-Scarred)",
}

// platformPriority orders marketplaces when an item is listed on several.
var platformPriority = []string{"BUFF", "C5", "YOUPIN", "STEAM"}

// CollectibleTracker refreshes USD prices for the tracked items and caches
// them in the collectibles table so API handlers never block on upstream.
type CollectibleTracker struct {
	db       *gorm.DB
	http     *http.Client
	log      *zap.SugaredLogger
	priceURL string
	fxURL    string
	items    []string
}

// TrackerOption configures a CollectibleTracker.
type TrackerOption func(*CollectibleTracker)

// WithPriceURL overrides the price API base URL (tests).
func WithPriceURL(u string) TrackerOption {
	return func(t *CollectibleTracker) { t.priceURL = u }
}

// WithFXURL overrides the exchange rate endpoint (tests).
func WithFXURL(u string) TrackerOption {
	return func(t *CollectibleTracker) { t.fxURL = u }
}

// WithItems overrides the tracked item set.
func WithItems(items []string) TrackerOption {
	return func(t *CollectibleTracker) { t.items = items }
}

func NewCollectibleTracker(db *gorm.DB, timeout time.Duration, log *zap.SugaredLogger, opts ...TrackerOption) *CollectibleTracker {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	t := &CollectibleTracker{
		db:       db,
		http:     &http.Client{Timeout: timeout},
		log:      log,
		priceURL: "https://buffotte.hezhili.online/api/bufftracker/price/",
		fxURL:    "https://api.frankfurter.app/latest?from=CNY&to=USD",
		items:    DefaultItems,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

type platformQuote struct {
	Platform  string  `json:"platform"`
	SellPrice float64 `json:"sellPrice"`
	SellCount int     `json:"sellCount"`
}

// Refresh fetches prices for every tracked item and upserts the cache rows.
// Per-item failures are logged and skipped; stale rows keep their last price.
func (t *CollectibleTracker) Refresh(ctx context.Context) error {
	if t.db == nil {
		return nil
	}
	rate := t.exchangeRate(ctx)

	var updated, failed int
	for _, name := range t.items {
		priceCNY, platform, err := t.fetchPrice(ctx, name)
		if err != nil {
			t.log.Warnw("collectible price fetch failed", "item", name, "err", err)
			failed++
			continue
		}
		if priceCNY <= 0 {
			t.log.Debugw("no valid listing for collectible", "item", name)
			failed++
			continue
		}
		row := models.Collectible{
			HashName:    name,
			PriceUSD:    priceCNY * rate,
			LastUpdated: time.Now().UTC(),
		}
		if err := t.db.Save(&row).Error; err != nil {
			return fmt.Errorf("save collectible price: %w", err)
		}
		t.log.Debugw("collectible price updated",
			"item", name, "platform", platform, "cny", priceCNY, "usd", row.PriceUSD)
		updated++
	}
	t.log.Infow("collectible prices refreshed", "updated", updated, "failed", failed)
	return nil
}

// fetchPrice returns the CNY price for one item, preferring platforms in
// priority order and falling back to any platform with a live listing.
func (t *CollectibleTracker) fetchPrice(ctx context.Context, name string) (float64, string, error) {
	var payload struct {
		Data []platformQuote `json:"data"`
	}
	u := t.priceURL + url.PathEscape(name)
	if err := t.getJSON(ctx, u, &payload); err != nil {
		return 0, "", err
	}

	byPlatform := make(map[string]platformQuote, len(payload.Data))
	for _, q := range payload.Data {
		if q.Platform != "" {
			byPlatform[q.Platform] = q
		}
	}
	for _, platform := range platformPriority {
		if q, ok := byPlatform[platform]; ok && q.SellPrice > 0 && q.SellCount > 0 {
			return q.SellPrice, platform, nil
		}
	}
	for _, q := range payload.Data {
		if q.SellPrice > 0 && q.SellCount > 0 {
			return q.SellPrice, q.Platform, nil
		}
	}
	return 0, "", nil
}

func (t *CollectibleTracker) exchangeRate(ctx context.Context) float64 {
	var payload struct {
		Rates map[string]float64 `json:"rates"`
	}
	if err := t.getJSON(ctx, t.fxURL, &payload); err != nil {
		t.log.Warnw("exchange rate fetch failed, using fallback", "err", err, "fallback", FallbackCNYUSD)
		return FallbackCNYUSD
	}
	if rate, ok := payload.Rates["USD"]; ok && rate > 0 {
		return rate
	}
	return FallbackCNYUSD
}

func (t *CollectibleTracker) getJSON(ctx context.Context, u string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := t.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Prices returns all cached collectible rows.
func (t *CollectibleTracker) Prices() ([]models.Collectible, error) {
	if t.db == nil {
		return nil, nil
	}
	var rows []models.Collectible
	if err := t.db.Order("hash_name").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
