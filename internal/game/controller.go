// Package game owns the game-status state machine. Transitions come only
// from authoritative contract reads; nothing here infers state locally.
package game

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Shr1mpTop/Singapore-Major-Fan-Consensus-Protocol/internal/models"
)

// StatusReader is the slice of the contract surface the controller needs.
type StatusReader interface {
	Status(ctx context.Context) (uint8, error)
	TotalPrizePool(ctx context.Context) (*big.Int, error)
	WinningTeamID(ctx context.Context) (*big.Int, error)
}

// Reconciler runs a full transaction re-scan plus aggregate rebuild. The
// syncer provides it; an interface keeps the dependency one-directional.
type Reconciler interface {
	ReconcileAll(ctx context.Context) error
}

type Controller struct {
	db     *gorm.DB
	reader StatusReader
	rec    Reconciler
	log    *zap.SugaredLogger
}

func NewController(db *gorm.DB, reader StatusReader, rec Reconciler, log *zap.SugaredLogger) *Controller {
	return &Controller{db: db, reader: reader, rec: rec, log: log}
}

// State returns the singleton game state, creating the initial Open record
// on first touch.
func (c *Controller) State() (models.GameState, error) {
	var state models.GameState
	err := c.db.First(&state, models.GameStateID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		state = models.GameState{
			ID:             models.GameStateID,
			Status:         models.StatusOpen,
			TotalPrizePool: "0",
		}
		if err := c.db.Create(&state).Error; err != nil {
			return state, fmt.Errorf("init game state: %w", err)
		}
		return state, nil
	}
	if err != nil {
		return state, fmt.Errorf("load game state: %w", err)
	}
	return state, nil
}

// Sync polls the contract once. A failed external read leaves local state
// untouched; the next scheduled poll retries. A transition out of Open runs
// one full reconciliation sweep before the new status is persisted, so a
// failed sweep is re-attempted on the next poll instead of leaving a gap.
func (c *Controller) Sync(ctx context.Context) error {
	raw, err := c.reader.Status(ctx)
	if err != nil {
		return fmt.Errorf("read contract status: %w", err)
	}
	newStatus := models.Status(raw)

	state, err := c.State()
	if err != nil {
		return err
	}

	if newStatus != state.Status {
		c.log.Infow("game status changed",
			"from", state.Status.String(),
			"to", newStatus.String(),
		)

		if newStatus == models.StatusFinished {
			winner, err := c.reader.WinningTeamID(ctx)
			if err != nil {
				return fmt.Errorf("read winning team: %w", err)
			}
			id := uint(winner.Uint64())
			state.WinningTeamID = &id
			c.log.Infow("winner selected", "team_id", id)
		}
		if newStatus == models.StatusRefunding {
			state.WinningTeamID = nil
		}

		// Leaving Open means the betting window is closed somewhere behind
		// us; re-list everything so no vote the incremental poller missed
		// stays lost.
		if newStatus != models.StatusOpen {
			if err := c.rec.ReconcileAll(ctx); err != nil {
				return fmt.Errorf("reconcile on %s: %w", newStatus, err)
			}
		}

		state.Status = newStatus
	}

	if pool, err := c.reader.TotalPrizePool(ctx); err != nil {
		c.log.Warnw("prize pool read failed, keeping last value", "err", err)
	} else {
		state.TotalPrizePool = pool.String()
	}

	if err := c.db.Save(&state).Error; err != nil {
		return fmt.Errorf("save game state: %w", err)
	}
	return nil
}
