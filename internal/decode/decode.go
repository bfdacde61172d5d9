// Package decode turns raw explorer transaction records into typed vote
// candidates. Pure functions, no I/O.
package decode

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/Shr1mpTop/Singapore-Major-Fan-Consensus-Protocol/internal/explorer"
)

const (
	selectorHexLen = 8  // 4-byte method selector
	wordHexLen     = 64 // one 32-byte ABI parameter slot
)

// Candidate is a decoded vote transaction ready for the dedup gate.
type Candidate struct {
	Hash         string
	TimeStamp    string // raw source string, identity component
	VoterAddress string // lower-cased
	TeamID       uint
	AmountWei    string
	BlockNumber  string
	VoteTime     time.Time
	Provisional  bool // client-filed ahead of the feed, no chain timestamp yet
	Raw          explorer.RawTx
}

// Parse inspects one raw transaction. It returns (nil, nil) when the record
// is simply not a vote (wrong method, failed on chain, too-short input);
// that is the common case, not an error. A record that matches the vote
// selector but carries an undecodable parameter is a decode error; callers
// skip it and continue the batch.
func Parse(tx explorer.RawTx, methodID string) (*Candidate, error) {
	if !succeeded(tx) {
		return nil, nil
	}

	want := strings.ToLower(strings.TrimPrefix(methodID, "0x"))
	input := strings.ToLower(strings.TrimPrefix(tx.Input, "0x"))
	if len(input) < selectorHexLen || input[:selectorHexLen] != want {
		return nil, nil
	}
	if len(input) < selectorHexLen+wordHexLen {
		// Matches the selector prefix but cannot carry a team id parameter;
		// treated as not-a-vote, same as any other foreign transaction.
		return nil, nil
	}

	word := input[selectorHexLen : selectorHexLen+wordHexLen]
	teamID, ok := new(big.Int).SetString(word, 16)
	if !ok {
		return nil, fmt.Errorf("tx %s: team id parameter is not valid hex", tx.Hash)
	}
	if !teamID.IsUint64() || teamID.Uint64() > uint64(^uint(0)) {
		return nil, fmt.Errorf("tx %s: team id %s out of range", tx.Hash, teamID)
	}

	return &Candidate{
		Hash:         tx.Hash,
		TimeStamp:    tx.TimeStamp,
		VoterAddress: strings.ToLower(tx.From),
		TeamID:       uint(teamID.Uint64()),
		AmountWei:    tx.Value,
		BlockNumber:  tx.BlockNumber,
		VoteTime:     parseUnix(tx.TimeStamp),
		Raw:          tx,
	}, nil
}

// succeeded reports whether the transaction executed successfully on chain.
// An empty receipt status (pre-receipt explorer rows) does not fail a tx that
// isError marks as clean.
func succeeded(tx explorer.RawTx) bool {
	if tx.IsError != "0" {
		return false
	}
	return tx.TxReceiptStatus != "0"
}

// parseUnix converts the source timestamp for display and ordering only; the
// identity keeps the raw string, bit-compatible with what the feed repeats.
func parseUnix(ts string) time.Time {
	sec, err := strconv.ParseInt(strings.TrimSpace(ts), 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
