package models

import (
	"math/big"
	"time"
)

// Status is the game lifecycle state as reported by the contract.
type Status int

const (
	StatusOpen      Status = 0
	StatusStopped   Status = 1
	StatusFinished  Status = 2
	StatusRefunding Status = 3
)

// Terminal reports whether the game accepts no further meaningful votes.
func (s Status) Terminal() bool {
	return s == StatusFinished || s == StatusRefunding
}

func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "Open"
	case StatusStopped:
		return "Stopped"
	case StatusFinished:
		return "Finished"
	case StatusRefunding:
		return "Refunding"
	default:
		return "Unknown"
	}
}

// GameStateID is the fixed primary key of the singleton GameState row.
const GameStateID = 1

// GameState is the singleton global game record, mutated only by the game
// status controller for the life of one round.
type GameState struct {
	ID             uint   `gorm:"primaryKey;autoIncrement:false"`
	Status         Status `gorm:"default:0"`
	TotalPrizePool string `gorm:"size:50;default:0"` // decimal string, wei
	WinningTeamID  *uint
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Pool returns the prize pool in wei.
func (g GameState) Pool() *big.Int {
	n, ok := new(big.Int).SetString(g.TotalPrizePool, 10)
	if !ok {
		return new(big.Int)
	}
	return n
}
