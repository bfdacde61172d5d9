package models

import "time"

// Collectible caches the market price of one display item for the cosmetic
// "prize pool in collectible-equivalents" section. Never part of payout math.
type Collectible struct {
	HashName    string  `gorm:"size:255;primaryKey"`
	PriceUSD    float64 `gorm:"default:0"`
	LastUpdated time.Time
}
