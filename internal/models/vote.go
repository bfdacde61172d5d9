// Package models defines the database models for the fan consensus backend.
package models

import (
	"math/big"
	"time"
)

// UserVote is one accepted on-chain vote. Identity is the (hash, time_stamp)
// pair exactly as received from the explorer feed; the composite unique index
// is the dedup correctness boundary, the in-memory ledger is only a shortcut
// in front of it. Rows are immutable once written, except that a provisional
// client-filed row is settled in place when its feed copy arrives.
type UserVote struct {
	ID          uint   `gorm:"primaryKey"`
	Hash        string `gorm:"size:66;index:ux_tx_identity,unique;not null"`
	TimeStamp   string `gorm:"size:20;index:ux_tx_identity,unique;not null"`
	UserAddress string `gorm:"size:42;index"` // lower-cased canonical form
	TeamID      uint   `gorm:"index"`
	AmountWei   string `gorm:"size:50"` // decimal string, wei
	BlockNumber string `gorm:"size:50;index"`
	VoteTime    time.Time
	Provisional bool   `gorm:"index"` // client-filed, chain timestamp still unknown

	// Passthrough explorer fields, kept for audit/export only.
	Nonce             string `gorm:"size:50"`
	BlockHash         string `gorm:"size:66"`
	TransactionIndex  string `gorm:"size:50"`
	Gas               string `gorm:"size:50"`
	GasPrice          string `gorm:"size:50"`
	IsError           string `gorm:"size:10"`
	TxReceiptStatus   string `gorm:"size:10"`
	InputData         string `gorm:"type:text"`
	ContractAddress   string `gorm:"size:42"`
	CumulativeGasUsed string `gorm:"size:50"`
	GasUsed           string `gorm:"size:50"`
	Confirmations     string `gorm:"size:50"`
	MethodID          string `gorm:"size:10"`
	FunctionName      string `gorm:"size:255"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Amount returns the wagered amount in wei. A malformed stored value counts
// as zero rather than corrupting aggregate math.
func (v UserVote) Amount() *big.Int {
	n, ok := new(big.Int).SetString(v.AmountWei, 10)
	if !ok {
		return new(big.Int)
	}
	return n
}

// WeiToETH converts an integer wei amount for the reporting boundary.
// Aggregate and payout math never touch the float form.
func WeiToETH(wei *big.Int) float64 {
	if wei == nil {
		return 0
	}
	f := new(big.Float).SetInt(wei)
	f.Quo(f, big.NewFloat(1e18))
	out, _ := f.Float64()
	return out
}
