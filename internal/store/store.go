// Package store implements the durable vote store and its dedup ledger.
package store

import (
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Shr1mpTop/Singapore-Major-Fan-Consensus-Protocol/internal/decode"
	"github.com/Shr1mpTop/Singapore-Major-Fan-Consensus-Protocol/internal/models"
)

// Result is the outcome of a TryAccept call. Callers branch on data, never on
// sentinel errors: AlreadyPresent and Rejected are both idempotent no-ops.
type Result int

const (
	// Accepted means the vote was durably written for the first time.
	Accepted Result = iota
	// AlreadyPresent means the identity is already stored; nothing changed.
	AlreadyPresent
	// Rejected means a concurrent writer won the unique-constraint race;
	// the vote is stored (by someone), nothing changed here.
	Rejected
)

func (r Result) String() string {
	switch r {
	case Accepted:
		return "accepted"
	case AlreadyPresent:
		return "already-present"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// DefaultCacheSize bounds the in-memory identity set.
const DefaultCacheSize = 10000

// VoteStore writes votes at most once, keyed by the composite
// (hash, raw timestamp) identity. The LRU set in front of the table only
// saves lookups; the unique index decides.
type VoteStore struct {
	db   *gorm.DB
	log  *zap.SugaredLogger
	seen *lru.Cache[string, struct{}]
}

func New(db *gorm.DB, cacheSize int, log *zap.SugaredLogger) (*VoteStore, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	seen, err := lru.New[string, struct{}](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("init dedup cache: %w", err)
	}
	return &VoteStore{db: db, log: log, seen: seen}, nil
}

func identityKey(hash, timeStamp string) string {
	return hash + "|" + timeStamp
}

// TryAccept applies a candidate at most once. On Accepted the stored row is
// returned so callers can fold it into the aggregates. A provisional
// candidate deduplicates by hash alone, and a feed candidate settles a
// matching provisional row in place instead of opening a second identity.
// Only genuinely unexpected storage failures return a non-nil error.
func (s *VoteStore) TryAccept(cand *decode.Candidate) (Result, *models.UserVote, error) {
	key := identityKey(cand.Hash, cand.TimeStamp)
	if s.seen.Contains(key) {
		return AlreadyPresent, nil, nil
	}

	var existing models.UserVote
	err := s.db.Where("hash = ? AND time_stamp = ?", cand.Hash, cand.TimeStamp).
		First(&existing).Error
	switch {
	case err == nil:
		s.seen.Add(key, struct{}{})
		return AlreadyPresent, nil, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return Rejected, nil, fmt.Errorf("lookup vote %s: %w", cand.Hash, err)
	}

	if cand.Provisional {
		// A client-filed vote carries a fabricated timestamp; any stored
		// row with the same hash already covers the transaction.
		var n int64
		if err := s.db.Model(&models.UserVote{}).
			Where("hash = ?", cand.Hash).Count(&n).Error; err != nil {
			return Rejected, nil, fmt.Errorf("lookup vote %s: %w", cand.Hash, err)
		}
		if n > 0 {
			s.seen.Add(key, struct{}{})
			return AlreadyPresent, nil, nil
		}
	} else {
		settled, err := s.settleProvisional(cand, key)
		if err != nil {
			return Rejected, nil, err
		}
		if settled {
			return AlreadyPresent, nil, nil
		}
	}

	vote := voteFromCandidate(cand)
	if err := s.db.Create(&vote).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost the insert race to a concurrent poller; the row exists.
			s.seen.Add(key, struct{}{})
			s.log.Debugw("vote insert lost constraint race", "hash", cand.Hash)
			return Rejected, nil, nil
		}
		return Rejected, nil, fmt.Errorf("insert vote %s: %w", cand.Hash, err)
	}

	s.seen.Add(key, struct{}{})
	return Accepted, &vote, nil
}

// CacheLen reports the current identity-cache occupancy.
func (s *VoteStore) CacheLen() int {
	return s.seen.Len()
}

// ResetCache drops the in-memory identity set, e.g. after an administrative
// reset emptied the table underneath it.
func (s *VoteStore) ResetCache() {
	s.seen.Purge()
}

// settleProvisional adopts the feed copy of a client-filed vote into the
// provisional row, so one transaction never occupies two identities.
func (s *VoteStore) settleProvisional(cand *decode.Candidate, key string) (bool, error) {
	var prov models.UserVote
	err := s.db.Where("hash = ? AND provisional = ?", cand.Hash, true).First(&prov).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup provisional vote %s: %w", cand.Hash, err)
	}

	settled := voteFromCandidate(cand)
	settled.ID = prov.ID
	settled.CreatedAt = prov.CreatedAt
	if err := s.db.Save(&settled).Error; err != nil {
		return false, fmt.Errorf("settle vote %s: %w", cand.Hash, err)
	}
	s.seen.Add(key, struct{}{})
	s.log.Debugw("provisional vote settled by feed copy", "hash", cand.Hash)
	return true, nil
}

func voteFromCandidate(cand *decode.Candidate) models.UserVote {
	raw := cand.Raw
	return models.UserVote{
		Hash:        cand.Hash,
		TimeStamp:   cand.TimeStamp,
		Provisional: cand.Provisional,
		UserAddress: cand.VoterAddress,
		TeamID:      cand.TeamID,
		AmountWei:   cand.AmountWei,
		BlockNumber: cand.BlockNumber,
		VoteTime:    cand.VoteTime,

		Nonce:             raw.Nonce,
		BlockHash:         raw.BlockHash,
		TransactionIndex:  raw.TransactionIndex,
		Gas:               raw.Gas,
		GasPrice:          raw.GasPrice,
		IsError:           raw.IsError,
		TxReceiptStatus:   raw.TxReceiptStatus,
		InputData:         raw.Input,
		ContractAddress:   raw.To,
		CumulativeGasUsed: raw.CumulativeGasUsed,
		GasUsed:           raw.GasUsed,
		Confirmations:     raw.Confirmations,
		MethodID:          raw.MethodID,
		FunctionName:      raw.FunctionName,
	}
}
