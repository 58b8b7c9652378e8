package engine

import (
	"errors"
	"time"

	"github.com/whalefuse/whalefuse/internal/logger"
	"github.com/whalefuse/whalefuse/internal/models"
	"github.com/whalefuse/whalefuse/internal/tracker"
)

// Engine wires the fusion core together and runs one synchronous decision
// cycle per market: refresh lead scores, forecast the trajectory, fuse, and
// size. It performs no I/O; trades and samples are supplied by the caller.
type Engine struct {
	tracker    *tracker.Tracker
	leadlag    *LeadLagAnalyzer
	forecaster *TrajectoryForecaster
	fusion     *FusionEngine
}

// New assembles an engine from its components.
func New(t *tracker.Tracker, ll *LeadLagAnalyzer, fc *TrajectoryForecaster, fu *FusionEngine) *Engine {
	return &Engine{tracker: t, leadlag: ll, forecaster: fc, fusion: fu}
}

// RunCycle produces the fusion result for one market from its observed whale
// trades and momentum samples (samples oldest first; trades in any order).
// Lead scores computed this cycle are written through to the tracker before
// the consensus prior is built, so the freshest estimates weight the votes.
func (e *Engine) RunCycle(marketID, question string, trades []models.WhaleTrade, samples []models.MomentumSample, now time.Time) models.FusionResult {
	category := models.DetectCategory(question)

	byWallet := make(map[string][]models.WhaleTrade)
	for _, t := range trades {
		if t.MarketID != marketID {
			continue
		}
		byWallet[t.Wallet] = append(byWallet[t.Wallet], t)
	}
	for wallet, walletTrades := range byWallet {
		score := e.leadlag.LeadScore(walletTrades, samples)
		e.tracker.SetLeadScore(wallet, score)
	}

	forecast := e.forecaster.Forecast(samples)
	if forecast.Degenerate {
		logger.Debug("forecast for market %s degenerate (%d samples), using fallback", marketID, len(samples))
	}

	result := e.fusion.Fuse(marketID, category, trades, e.tracker.Snapshot(), forecast, now)
	logger.Debug("cycle %s: prior=%.3f likelihood=%.3f posterior=%.3f direction=%s whales=%d",
		marketID, result.Prior, result.Likelihood, result.Posterior, result.Direction, result.WhaleCount)
	return result
}

// ResolveOutcome records a settled trade for a whale. tradeID keys the
// resolved (whale, trade) pair; resubmitting the same pair is a logged no-op.
// The performance signal fed to the rolling-weight EMA is 1 for a win and 0
// for a loss.
func (e *Engine) ResolveOutcome(wallet, tradeID string, category models.Category, won bool) error {
	signal := 0.0
	if won {
		signal = 1.0
	}
	err := e.tracker.RecordOutcome(wallet, wallet+":"+tradeID, category, won, signal)
	if errors.Is(err, tracker.ErrDuplicateOutcome) {
		logger.Debug("outcome %s:%s already recorded, ignoring", wallet, tradeID)
		return nil
	}
	return err
}
