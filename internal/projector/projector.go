// Package projector maintains the derived per-team aggregates and the global
// pool sum. Aggregates are cache: every value here is recomputable from the
// vote table, and the full rebuild is the self-healing primitive.
package projector

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Shr1mpTop/Singapore-Major-Fan-Consensus-Protocol/internal/models"
)

// Projector writes are serialized by mu so an incremental apply never
// interleaves with a full rebuild.
type Projector struct {
	db  *gorm.DB
	log *zap.SugaredLogger
	mu  sync.Mutex
}

func New(db *gorm.DB, log *zap.SugaredLogger) *Projector {
	return &Projector{db: db, log: log}
}

// ApplyVote refreshes the aggregate row for the voted team from the stored
// votes. The team row is created lazily on first contact. Recomputing the
// single team from the table keeps incremental applies and full rebuilds
// convergent regardless of the order they land in.
func (p *Projector) ApplyVote(vote models.UserVote) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.db.Transaction(func(tx *gorm.DB) error {
		var votes []models.UserVote
		if err := tx.Where("team_id = ?", vote.TeamID).Find(&votes).Error; err != nil {
			return fmt.Errorf("scan team %d votes: %w", vote.TeamID, err)
		}
		total := new(big.Int)
		supporters := make(map[string]struct{})
		for _, v := range votes {
			total.Add(total, v.Amount())
			supporters[v.UserAddress] = struct{}{}
		}

		var team models.Team
		err := tx.First(&team, vote.TeamID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			team = models.Team{
				ID:   vote.TeamID,
				Name: fmt.Sprintf("Team %d", vote.TeamID),
			}
		} else if err != nil {
			return fmt.Errorf("load team %d: %w", vote.TeamID, err)
		}

		team.TotalVoteAmount = total.String()
		team.SupporterCount = len(supporters)
		if err := tx.Save(&team).Error; err != nil {
			return fmt.Errorf("save team %d: %w", vote.TeamID, err)
		}
		return nil
	})
}

// RebuildAll recomputes every team aggregate from a complete scan of the
// vote store and replaces the prior derived values in one transaction.
// Teams with no votes keep their row (and name) but are zeroed. Returns the
// global sum over all teams.
func (p *Projector) RebuildAll() (*big.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pool := new(big.Int)
	err := p.db.Transaction(func(tx *gorm.DB) error {
		var votes []models.UserVote
		if err := tx.Find(&votes).Error; err != nil {
			return fmt.Errorf("scan votes: %w", err)
		}

		totals := make(map[uint]*big.Int)
		supporters := make(map[uint]map[string]struct{})
		for _, v := range votes {
			t, ok := totals[v.TeamID]
			if !ok {
				t = new(big.Int)
				totals[v.TeamID] = t
				supporters[v.TeamID] = make(map[string]struct{})
			}
			t.Add(t, v.Amount())
			supporters[v.TeamID][v.UserAddress] = struct{}{}
		}

		var teams []models.Team
		if err := tx.Find(&teams).Error; err != nil {
			return fmt.Errorf("scan teams: %w", err)
		}
		known := make(map[uint]struct{}, len(teams))
		for i := range teams {
			team := &teams[i]
			known[team.ID] = struct{}{}
			if t, ok := totals[team.ID]; ok {
				team.TotalVoteAmount = t.String()
				team.SupporterCount = len(supporters[team.ID])
			} else {
				team.TotalVoteAmount = "0"
				team.SupporterCount = 0
			}
			if err := tx.Save(team).Error; err != nil {
				return fmt.Errorf("save team %d: %w", team.ID, err)
			}
		}

		// Teams observed only in votes (no contract seed) are created here.
		for id, t := range totals {
			if _, ok := known[id]; ok {
				continue
			}
			team := models.Team{
				ID:              id,
				Name:            fmt.Sprintf("Team %d", id),
				TotalVoteAmount: t.String(),
				SupporterCount:  len(supporters[id]),
			}
			if err := tx.Create(&team).Error; err != nil {
				return fmt.Errorf("create team %d: %w", id, err)
			}
		}

		for _, t := range totals {
			pool.Add(pool, t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	p.log.Debugw("aggregates rebuilt", "pool_wei", pool.String())
	return pool, nil
}
