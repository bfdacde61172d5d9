// Package syncer owns the background reconciliation loops: pulling the
// transaction feed, mirroring chain status, and restoring the whole derived
// state after resets or transitions.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Shr1mpTop/Singapore-Major-Fan-Consensus-Protocol/internal/config"
	"github.com/Shr1mpTop/Singapore-Major-Fan-Consensus-Protocol/internal/contract"
	"github.com/Shr1mpTop/Singapore-Major-Fan-Consensus-Protocol/internal/db"
	"github.com/Shr1mpTop/Singapore-Major-Fan-Consensus-Protocol/internal/decode"
	"github.com/Shr1mpTop/Singapore-Major-Fan-Consensus-Protocol/internal/explorer"
	"github.com/Shr1mpTop/Singapore-Major-Fan-Consensus-Protocol/internal/game"
	"github.com/Shr1mpTop/Singapore-Major-Fan-Consensus-Protocol/internal/models"
	"github.com/Shr1mpTop/Singapore-Major-Fan-Consensus-Protocol/internal/projector"
	"github.com/Shr1mpTop/Singapore-Major-Fan-Consensus-Protocol/internal/store"
	"github.com/Shr1mpTop/Singapore-Major-Fan-Consensus-Protocol/internal/tui"
)

// UpdateChannelBuffer sizes the dashboard update channel; sends are
// non-blocking, a slow terminal just drops frames.
const UpdateChannelBuffer = 64

// ChainReader is the contract surface the syncer needs. *contract.Client
// satisfies it.
type ChainReader interface {
	game.StatusReader
	Teams(ctx context.Context) ([]contract.TeamInfo, error)
}

// Syncer coordinates the vote feed, the chain-status mirror, and the full
// reconciliation sweep. It is the game controller's Reconciler.
type Syncer struct {
	cfg      config.Config
	db       *gorm.DB
	store    *store.VoteStore
	proj     *projector.Projector
	feed     *explorer.Client
	chain    ChainReader
	ctrl     *game.Controller
	log      *zap.SugaredLogger
	updates  chan<- interface{}

	mu        sync.Mutex
	lastBlock int64
	lastSync  time.Time
}

func New(
	cfg config.Config,
	gdb *gorm.DB,
	st *store.VoteStore,
	proj *projector.Projector,
	feed *explorer.Client,
	chain ChainReader,
	log *zap.SugaredLogger,
	updates chan<- interface{},
) *Syncer {
	s := &Syncer{
		cfg:     cfg,
		db:      gdb,
		store:   st,
		proj:    proj,
		feed:    feed,
		chain:   chain,
		log:     log,
		updates: updates,
	}
	s.ctrl = game.NewController(gdb, chain, s, log)
	return s
}

// Controller exposes the game-status controller built around this syncer.
func (s *Syncer) Controller() *game.Controller {
	return s.ctrl
}

// SyncVotes pulls the feed forward from the last seen block, admits every new
// vote through the dedup gate and folds accepted ones into the aggregates.
func (s *Syncer) SyncVotes(ctx context.Context) error {
	from := s.LastBlock()
	if from > 0 {
		from++
	}
	txs, err := s.feed.ListTransactions(ctx, from)
	if err != nil {
		return fmt.Errorf("list transactions: %w", err)
	}

	var accepted, duplicate, skipped int
	maxBlock := s.LastBlock()
	for _, tx := range txs {
		if bn, err := strconv.ParseInt(tx.BlockNumber, 10, 64); err == nil && bn > maxBlock {
			maxBlock = bn
		}

		cand, err := decode.Parse(tx, s.cfg.VoteMethodID)
		if err != nil {
			s.log.Warnw("undecodable vote transaction skipped", "hash", tx.Hash, "err", err)
			skipped++
			continue
		}
		if cand == nil {
			continue
		}

		res, vote, err := s.store.TryAccept(cand)
		if err != nil {
			return fmt.Errorf("admit vote %s: %w", cand.Hash, err)
		}
		switch res {
		case store.Accepted:
			if err := s.proj.ApplyVote(*vote); err != nil {
				return fmt.Errorf("apply vote %s: %w", cand.Hash, err)
			}
			accepted++
		default:
			duplicate++
		}
	}

	s.setLastBlock(maxBlock)
	s.mu.Lock()
	s.lastSync = time.Now()
	s.mu.Unlock()
	if accepted > 0 || skipped > 0 {
		s.log.Infow("vote sync finished",
			"fetched", len(txs), "accepted", accepted, "duplicate", duplicate,
			"skipped", skipped, "last_block", maxBlock)
	} else {
		s.log.Debugw("vote sync finished", "fetched", len(txs), "last_block", maxBlock)
	}

	s.publishUpdate()
	return nil
}

// SyncStatus mirrors the on-chain game status; transitions trigger a full
// reconciliation sweep inside the controller before they are persisted.
func (s *Syncer) SyncStatus(ctx context.Context) error {
	if err := s.ctrl.Sync(ctx); err != nil {
		return err
	}
	s.publishUpdate()
	return nil
}

// ReconcileAll re-lists the feed from genesis, replays every vote through the
// dedup gate and rebuilds the aggregates from the complete vote table. Safe to
// run at any time; already-present votes are no-ops.
func (s *Syncer) ReconcileAll(ctx context.Context) error {
	txs, err := s.feed.ListTransactions(ctx, 0)
	if err != nil {
		return fmt.Errorf("list transactions from genesis: %w", err)
	}

	var accepted int
	maxBlock := s.LastBlock()
	for _, tx := range txs {
		if bn, err := strconv.ParseInt(tx.BlockNumber, 10, 64); err == nil && bn > maxBlock {
			maxBlock = bn
		}
		cand, err := decode.Parse(tx, s.cfg.VoteMethodID)
		if err != nil {
			s.log.Warnw("undecodable vote transaction skipped", "hash", tx.Hash, "err", err)
			continue
		}
		if cand == nil {
			continue
		}
		res, _, err := s.store.TryAccept(cand)
		if err != nil {
			return fmt.Errorf("admit vote %s: %w", cand.Hash, err)
		}
		if res == store.Accepted {
			accepted++
		}
	}

	pool, err := s.proj.RebuildAll()
	if err != nil {
		return fmt.Errorf("rebuild aggregates: %w", err)
	}
	s.setLastBlock(maxBlock)

	s.log.Infow("full reconciliation finished",
		"fetched", len(txs), "recovered", accepted, "pool_wei", pool.String())
	return nil
}

// Reset wipes votes, teams and game state, reseeds the team table from the
// contract and drops the dedup cache. Collectible prices survive.
func (s *Syncer) Reset(ctx context.Context) error {
	if err := db.Reset(s.db); err != nil {
		return fmt.Errorf("reset database: %w", err)
	}
	s.store.ResetCache()
	s.setLastBlock(0)

	if err := s.SeedTeams(ctx); err != nil {
		s.log.Warnw("team reseed after reset failed", "err", err)
	}
	s.log.Infow("database reset complete")
	return nil
}

// SeedTeams copies the contract's team registry into the teams table so names
// are correct before any vote arrives. Existing totals are kept.
func (s *Syncer) SeedTeams(ctx context.Context) error {
	infos, err := s.chain.Teams(ctx)
	if err != nil {
		return fmt.Errorf("read contract teams: %w", err)
	}
	for _, info := range infos {
		if info.Id == nil || !info.Id.IsUint64() {
			continue
		}
		id := uint(info.Id.Uint64())
		var team models.Team
		err := s.db.First(&team, id).Error
		switch {
		case err == nil:
			team.Name = info.Name
		case errors.Is(err, gorm.ErrRecordNotFound):
			team = models.Team{ID: id, Name: info.Name, TotalVoteAmount: "0"}
		default:
			return fmt.Errorf("load team %d: %w", id, err)
		}
		if err := s.db.Save(&team).Error; err != nil {
			return fmt.Errorf("save team %d: %w", id, err)
		}
	}
	s.log.Infow("teams seeded from contract", "count", len(infos))
	return nil
}

// LastBlock reports the highest block number observed in the feed.
func (s *Syncer) LastBlock() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastBlock
}

func (s *Syncer) setLastBlock(n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > s.lastBlock {
		s.lastBlock = n
	} else if n == 0 {
		s.lastBlock = 0
	}
}

// publishUpdate pushes a dashboard snapshot; dropped when nobody listens or
// the channel is full.
func (s *Syncer) publishUpdate() {
	if s.updates == nil {
		return
	}

	state, err := s.ctrl.State()
	if err != nil {
		s.log.Debugw("dashboard snapshot skipped", "err", err)
		return
	}

	var teams []models.Team
	if err := s.db.Order("id").Find(&teams).Error; err != nil {
		s.log.Debugw("dashboard snapshot skipped", "err", err)
		return
	}
	var voteCount int64
	if err := s.db.Model(&models.UserVote{}).Count(&voteCount).Error; err != nil {
		s.log.Debugw("dashboard snapshot skipped", "err", err)
		return
	}
	var participants int64
	if err := s.db.Model(&models.UserVote{}).
		Distinct("user_address").Count(&participants).Error; err != nil {
		s.log.Debugw("dashboard snapshot skipped", "err", err)
		return
	}

	total := new(big.Int)
	for _, t := range teams {
		total.Add(total, t.Total())
	}

	winner := ""
	if state.WinningTeamID != nil {
		for _, t := range teams {
			if t.ID == *state.WinningTeamID {
				winner = t.Name
			}
		}
	}

	s.mu.Lock()
	lastTxSync := s.lastSync
	s.mu.Unlock()

	info := tui.GameInfo{
		Status:       state.Status.String(),
		PoolETH:      models.WeiToETH(state.Pool()),
		WinningTeam:  winner,
		LastBlock:    s.LastBlock(),
		VoteCount:    voteCount,
		Participants: participants,
		ChainID:      s.cfg.ChainID,
		Contract:     s.cfg.ContractAddress,
		LastTxSync:   lastTxSync,
	}

	standings := make([]tui.TeamStanding, 0, len(teams))
	for _, t := range teams {
		share := 0.0
		if total.Sign() > 0 {
			amount := new(big.Float).SetInt(t.Total())
			sum := new(big.Float).SetInt(total)
			shareF, _ := new(big.Float).Quo(amount, sum).Float64()
			share = shareF * 100
		}
		standings = append(standings, tui.TeamStanding{
			ID:             t.ID,
			Name:           t.Name,
			TotalETH:       models.WeiToETH(t.Total()),
			SupporterCount: t.SupporterCount,
			SharePercent:   share,
		})
	}

	for _, msg := range []interface{}{info, standings} {
		select {
		case s.updates <- msg:
		default:
		}
	}
}
