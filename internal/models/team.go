package models

import (
	"math/big"
	"time"
)

// Team is the derived per-team rollup. It is cache, never a source of truth:
// the projector may drop and recompute every row from the vote table.
type Team struct {
	ID              uint   `gorm:"primaryKey;autoIncrement:false"`
	Name            string `gorm:"size:100"`
	TotalVoteAmount string `gorm:"size:50;default:0"` // decimal string, wei
	SupporterCount  int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Total returns the team's wagered total in wei.
func (t Team) Total() *big.Int {
	n, ok := new(big.Int).SetString(t.TotalVoteAmount, 10)
	if !ok {
		return new(big.Int)
	}
	return n
}
