// Package payout computes per-vote returns. Everything here is pure and
// integer-only: amounts stay in wei until the reporting boundary.
package payout

import (
	"math/big"

	"github.com/Shr1mpTop/Singapore-Major-Fan-Consensus-Protocol/internal/models"
)

// Outcome labels a vote's settlement state.
type Outcome string

const (
	OutcomePending  Outcome = "Pending"
	OutcomeWon      Outcome = "Won"
	OutcomeLost     Outcome = "Lost"
	OutcomeRefunded Outcome = "Refunded"
)

// DefaultCommissionPct is the share of the pool withheld before pro-rata
// distribution.
const DefaultCommissionPct = 10

var hundred = big.NewInt(100)

// ComputeReturn maps one vote against the current game state to a settlement
// outcome and payout amount in wei. It is evaluated per request and never
// persisted, so late-discovered votes shift every payout without a
// migration. A winning team with zero recorded total would divide by zero;
// that vote settles as Lost with zero payout and the caller reports the
// inconsistency.
func ComputeReturn(vote models.UserVote, state models.GameState, winningTeam *models.Team, commissionPct int64) (Outcome, *big.Int) {
	switch state.Status {
	case models.StatusFinished:
		if state.WinningTeamID == nil || vote.TeamID != *state.WinningTeamID {
			return OutcomeLost, new(big.Int)
		}
		if winningTeam == nil {
			return OutcomeLost, new(big.Int)
		}
		winnerTotal := winningTeam.Total()
		if winnerTotal.Sign() <= 0 {
			return OutcomeLost, new(big.Int)
		}
		if commissionPct < 0 || commissionPct > 100 {
			commissionPct = DefaultCommissionPct
		}

		distributable := new(big.Int).Mul(state.Pool(), big.NewInt(100-commissionPct))
		distributable.Quo(distributable, hundred)

		amount := new(big.Int).Mul(vote.Amount(), distributable)
		amount.Quo(amount, winnerTotal)
		return OutcomeWon, amount

	case models.StatusRefunding:
		return OutcomeRefunded, vote.Amount()

	default: // Open, Stopped
		return OutcomePending, new(big.Int)
	}
}

// Distributable returns the pool share paid out to winners after commission.
func Distributable(pool *big.Int, commissionPct int64) *big.Int {
	if commissionPct < 0 || commissionPct > 100 {
		commissionPct = DefaultCommissionPct
	}
	d := new(big.Int).Mul(pool, big.NewInt(100-commissionPct))
	return d.Quo(d, hundred)
}
