// Package api exposes the read-model and admin surface over HTTP.
// All monetary values cross this boundary as ETH floats; everything below it
// stays integer wei.
package api

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Shr1mpTop/Singapore-Major-Fan-Consensus-Protocol/internal/config"
	"github.com/Shr1mpTop/Singapore-Major-Fan-Consensus-Protocol/internal/decode"
	"github.com/Shr1mpTop/Singapore-Major-Fan-Consensus-Protocol/internal/explorer"
	"github.com/Shr1mpTop/Singapore-Major-Fan-Consensus-Protocol/internal/game"
	"github.com/Shr1mpTop/Singapore-Major-Fan-Consensus-Protocol/internal/models"
	"github.com/Shr1mpTop/Singapore-Major-Fan-Consensus-Protocol/internal/payout"
	"github.com/Shr1mpTop/Singapore-Major-Fan-Consensus-Protocol/internal/pricing"
	"github.com/Shr1mpTop/Singapore-Major-Fan-Consensus-Protocol/internal/projector"
	"github.com/Shr1mpTop/Singapore-Major-Fan-Consensus-Protocol/internal/store"
	"github.com/Shr1mpTop/Singapore-Major-Fan-Consensus-Protocol/internal/syncer"
)

type Controller struct {
	cfg     config.Config
	db      *gorm.DB
	store   *store.VoteStore
	proj    *projector.Projector
	sync    *syncer.Syncer
	ctrl    *game.Controller
	oracle  *pricing.SpotOracle
	tracker *pricing.CollectibleTracker
	log     *zap.SugaredLogger
}

func NewController(
	cfg config.Config,
	db *gorm.DB,
	st *store.VoteStore,
	proj *projector.Projector,
	sync *syncer.Syncer,
	oracle *pricing.SpotOracle,
	tracker *pricing.CollectibleTracker,
	log *zap.SugaredLogger,
) *Controller {
	return &Controller{
		cfg:     cfg,
		db:      db,
		store:   st,
		proj:    proj,
		sync:    sync,
		ctrl:    sync.Controller(),
		oracle:  oracle,
		tracker: tracker,
		log:     log,
	}
}

// WithCORS is a middleware that adds CORS headers to the response.
func WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", http.MethodGet+", "+http.MethodPost+", "+http.MethodOptions)

		// Fast-path the preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// NewRouter returns a new router with all the routes defined in this package.
func (c *Controller) NewRouter() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/health", c.HandleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/status", c.HandleStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/teams", c.HandleTeams).Methods(http.MethodGet)
	r.HandleFunc("/api/stats", c.HandleStats).Methods(http.MethodGet)
	r.HandleFunc("/api/voting_history/{address}", c.HandleVotingHistory).Methods(http.MethodGet)
	r.HandleFunc("/api/record_vote", c.HandleRecordVote).Methods(http.MethodPost)
	r.Handle("/api/admin/reset", c.requireAdmin(http.HandlerFunc(c.HandleAdminReset))).Methods(http.MethodPost)

	return r
}

func (c *Controller) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		c.log.Warnw("response encode failed", "err", err)
	}
}

func (c *Controller) writeError(w http.ResponseWriter, status int, msg string) {
	c.writeJSON(w, status, map[string]string{"error": msg})
}

// requireAdmin guards mutating admin routes with the bearer token from config.
func (c *Controller) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c.cfg.AdminToken == "" {
			c.writeError(w, http.StatusForbidden, "admin API disabled")
			return
		}
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token != c.cfg.AdminToken {
			c.writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (c *Controller) HandleHealth(w http.ResponseWriter, r *http.Request) {
	c.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (c *Controller) HandleStatus(w http.ResponseWriter, r *http.Request) {
	state, err := c.ctrl.State()
	if err != nil {
		c.log.Errorw("load game state", "err", err)
		c.writeError(w, http.StatusInternalServerError, "failed to load game state")
		return
	}
	c.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":               int(state.Status),
		"status_text":          state.Status.String(),
		"total_prize_pool_eth": models.WeiToETH(state.Pool()),
		"winning_team_id":      state.WinningTeamID,
	})
}

func (c *Controller) HandleTeams(w http.ResponseWriter, r *http.Request) {
	var teams []models.Team
	if err := c.db.Order("id").Find(&teams).Error; err != nil {
		c.log.Errorw("list teams", "err", err)
		c.writeError(w, http.StatusInternalServerError, "failed to list teams")
		return
	}

	result := make([]map[string]interface{}, 0, len(teams))
	for _, t := range teams {
		result = append(result, map[string]interface{}{
			"id":                    t.ID,
			"name":                  t.Name,
			"logo_url":              logoURL(t.Name),
			"total_vote_amount_eth": models.WeiToETH(t.Total()),
			"supporter_count":       t.SupporterCount,
		})
	}
	c.writeJSON(w, http.StatusOK, result)
}

func (c *Controller) HandleStats(w http.ResponseWriter, r *http.Request) {
	var participants int64
	if err := c.db.Model(&models.UserVote{}).
		Distinct("user_address").Count(&participants).Error; err != nil {
		c.log.Errorw("count participants", "err", err)
		c.writeError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}
	var voteCount int64
	if err := c.db.Model(&models.UserVote{}).Count(&voteCount).Error; err != nil {
		c.log.Errorw("count votes", "err", err)
		c.writeError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}

	poolETH := 0.0
	if state, err := c.ctrl.State(); err == nil {
		poolETH = models.WeiToETH(state.Pool())
	} else {
		c.log.Warnw("game state unavailable for stats", "err", err)
	}

	c.writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_unique_participants": participants,
		"total_votes":               voteCount,
		"total_prize_pool_eth":      poolETH,
		"collectible_equivalents":   c.collectibleEquivalents(r, poolETH),
	})
}

// collectibleEquivalents expresses the pool as counts of tracked collectibles,
// cheapest first. Pricing failures degrade to an empty list, never an error.
func (c *Controller) collectibleEquivalents(r *http.Request, poolETH float64) []map[string]interface{} {
	equivalents := make([]map[string]interface{}, 0)

	rows, err := c.tracker.Prices()
	if err != nil {
		c.log.Warnw("collectible prices unavailable", "err", err)
		return equivalents
	}
	if len(rows) == 0 {
		return equivalents
	}

	poolUSD := poolETH * c.oracle.ETHUSD(r.Context())
	for _, item := range rows {
		if item.PriceUSD <= 0 {
			continue
		}
		count := poolUSD / item.PriceUSD
		rawCount := int(count)
		equivalents = append(equivalents, map[string]interface{}{
			"name":      item.HashName,
			"count":     count,
			"raw_count": rawCount,
			"progress":  (count - float64(rawCount)) * 100,
			"price_usd": item.PriceUSD,
			"img":       collectibleImage(item.HashName),
		})
	}
	sort.Slice(equivalents, func(i, j int) bool {
		return equivalents[i]["price_usd"].(float64) < equivalents[j]["price_usd"].(float64)
	})
	return equivalents
}

func (c *Controller) HandleVotingHistory(w http.ResponseWriter, r *http.Request) {
	address := strings.ToLower(mux.Vars(r)["address"])

	state, err := c.ctrl.State()
	if err != nil {
		c.log.Errorw("load game state", "err", err)
		c.writeError(w, http.StatusInternalServerError, "failed to load game state")
		return
	}

	var teams []models.Team
	if err := c.db.Find(&teams).Error; err != nil {
		c.log.Errorw("list teams", "err", err)
		c.writeError(w, http.StatusInternalServerError, "failed to list teams")
		return
	}
	teamsByID := make(map[uint]*models.Team, len(teams))
	for i := range teams {
		teamsByID[teams[i].ID] = &teams[i]
	}
	var winningTeam *models.Team
	if state.WinningTeamID != nil {
		winningTeam = teamsByID[*state.WinningTeamID]
	}

	var votes []models.UserVote
	if err := c.db.Where("user_address = ?", address).Find(&votes).Error; err != nil {
		c.log.Errorw("list votes", "err", err)
		c.writeError(w, http.StatusInternalServerError, "failed to list votes")
		return
	}
	if len(votes) == 0 {
		c.writeJSON(w, http.StatusOK, map[string]interface{}{
			"total_votes":        0,
			"total_invested_eth": 0,
			"total_returned_eth": 0,
			"total_profit_eth":   0,
			"votes":              []interface{}{},
		})
		return
	}

	var invested, returned float64
	var winCount int
	history := make([]map[string]interface{}, 0, len(votes))
	for _, vote := range votes {
		amountETH := models.WeiToETH(vote.Amount())
		invested += amountETH

		teamName := fmt.Sprintf("Team %d", vote.TeamID)
		if t, ok := teamsByID[vote.TeamID]; ok {
			teamName = t.Name
		}

		outcome, ret := payout.ComputeReturn(vote, state, winningTeam, c.cfg.CommissionPct)
		retETH := models.WeiToETH(ret)
		returned += retETH
		if outcome == payout.OutcomeWon {
			winCount++
		}

		var ts interface{}
		if !vote.VoteTime.IsZero() {
			ts = vote.VoteTime.Format(time.RFC3339)
		}
		history = append(history, map[string]interface{}{
			"team_id":    vote.TeamID,
			"team_name":  teamName,
			"amount_eth": amountETH,
			"status":     string(outcome),
			"payout_eth": retETH,
			"timestamp":  ts,
		})
	}

	c.writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_votes":        len(votes),
		"total_invested_eth": invested,
		"total_returned_eth": returned,
		"total_profit_eth":   returned - invested,
		"win_rate":           float64(winCount) / float64(len(votes)) * 100,
		"votes":              history,
	})
}

type recordVoteRequest struct {
	UserAddress string `json:"userAddress"`
	TeamID      uint   `json:"teamId"`
	Amount      string `json:"amount"`
	TxHash      string `json:"txHash"`
}

// HandleRecordVote lets the frontend push a just-submitted vote without
// waiting for the next feed poll. The vote is stored provisionally; the
// eventual feed copy settles it in place under its chain timestamp rather
// than counting a second time.
func (c *Controller) HandleRecordVote(w http.ResponseWriter, r *http.Request) {
	var req recordVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		c.writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if req.TxHash == "" || req.UserAddress == "" {
		c.writeError(w, http.StatusBadRequest, "txHash and userAddress are required")
		return
	}
	if _, ok := new(big.Int).SetString(req.Amount, 10); !ok {
		c.writeError(w, http.StatusBadRequest, "amount must be an integer wei string")
		return
	}

	now := time.Now().UTC()
	cand := &decode.Candidate{
		Hash:         strings.ToLower(req.TxHash),
		TimeStamp:    fmt.Sprintf("%d", now.Unix()),
		VoterAddress: strings.ToLower(req.UserAddress),
		TeamID:       req.TeamID,
		AmountWei:    req.Amount,
		VoteTime:     now,
		Provisional:  true,
		Raw: explorer.RawTx{
			Hash:     strings.ToLower(req.TxHash),
			From:     strings.ToLower(req.UserAddress),
			Value:    req.Amount,
			IsError:  "0",
			MethodID: c.cfg.VoteMethodID,
		},
	}

	res, vote, err := c.store.TryAccept(cand)
	if err != nil {
		c.log.Errorw("record vote", "hash", req.TxHash, "err", err)
		c.writeError(w, http.StatusInternalServerError, "failed to record vote")
		return
	}
	if res == store.Accepted {
		if err := c.proj.ApplyVote(*vote); err != nil {
			c.log.Errorw("apply recorded vote", "hash", req.TxHash, "err", err)
			c.writeError(w, http.StatusInternalServerError, "failed to update aggregates")
			return
		}
	}

	c.writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "vote recorded",
		"result":  res.String(),
	})
}

// HandleAdminReset wipes the derived state and replays the feed from genesis.
func (c *Controller) HandleAdminReset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := c.sync.Reset(ctx); err != nil {
		c.log.Errorw("admin reset", "err", err)
		c.writeError(w, http.StatusInternalServerError, "reset failed")
		return
	}
	if err := c.sync.ReconcileAll(ctx); err != nil {
		c.log.Warnw("post-reset reconciliation failed, next sweep will recover", "err", err)
	}
	if err := c.tracker.Refresh(ctx); err != nil {
		c.log.Warnw("post-reset price refresh failed", "err", err)
	}
	c.writeJSON(w, http.StatusOK, map[string]string{"message": "reset complete"})
}
