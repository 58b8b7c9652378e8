package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/whalefuse/whalefuse/internal/config"
	"github.com/whalefuse/whalefuse/internal/engine"
	"github.com/whalefuse/whalefuse/internal/journal"
	"github.com/whalefuse/whalefuse/internal/logger"
	"github.com/whalefuse/whalefuse/internal/models"
	"github.com/whalefuse/whalefuse/internal/polymarket"
	"github.com/whalefuse/whalefuse/internal/telegram"
	"github.com/whalefuse/whalefuse/internal/tracker"
)

var configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")
var resetState = flag.Bool("reset-state", false, "Discard the persisted whale stats and start fresh")

// tradeID identifies one observed trade for settlement bookkeeping. Side and
// outcome disambiguate multiple same-second trades by one wallet in one market.
func tradeID(t *models.WhaleTrade) string {
	return fmt.Sprintf("%s@%d:%s:%s", t.MarketID, t.Timestamp.Unix(), t.Side, t.Outcome)
}

// addPending records trades awaiting settlement, keyed per market by wallet
// and trade ID. The feed returns the full lookback window every poll, so the
// same trade arrives on every cycle until its market settles; keying by
// identity keeps pending bounded by distinct trades, not by poll count.
func addPending(pending map[string]map[string]models.WhaleTrade, marketID string, trades []models.WhaleTrade) {
	byKey := pending[marketID]
	if byKey == nil {
		byKey = make(map[string]models.WhaleTrade)
		pending[marketID] = byKey
	}
	for _, t := range trades {
		byKey[t.Wallet+":"+tradeID(&t)] = t
	}
}

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	// Whale performance tracker with durable state
	track, err := tracker.New(cfg.Engine.RecentWindow, cfg.Engine.EMAAlpha, cfg.Storage.StatsFilePath)
	if err != nil {
		logger.Fatal("Failed to initialize tracker: %v", err)
	}
	if *resetState {
		if err := track.Reset(); err != nil {
			logger.Fatal("Failed to reset whale stats: %v", err)
		}
		logger.Info("Whale stats reset on request")
	}
	if err := track.Load(); err != nil {
		var corrupt *tracker.CorruptStateError
		if errors.As(err, &corrupt) {
			// Refusing to guess: corrupted history is never discarded
			// implicitly. Rerun with -reset-state to start over.
			logger.Fatal("Whale stats unusable: %v", corrupt)
		}
		logger.Fatal("Failed to load whale stats: %v", err)
	}

	// Signal/outcome journal
	jnl, err := journal.Open(cfg.Storage.JournalDBPath)
	if err != nil {
		logger.Fatal("Failed to open journal: %v", err)
	}
	defer func() {
		if err := jnl.Close(); err != nil {
			logger.Error("Failed to close journal: %v", err)
		}
	}()

	// Data feed
	feed := polymarket.NewClient(cfg.Feed.APIBaseURL, cfg.Feed.Timeout, cfg.Feed.MinTradeUSD, cfg.Feed.MaxRetries)

	// Fusion engine assembly
	decay, err := engine.NewDecayWeighter(cfg.Engine.DecayHalfLife)
	if err != nil {
		logger.Fatal("Failed to build decay weighter: %v", err)
	}
	eng := engine.New(
		track,
		engine.NewLeadLagAnalyzer(cfg.Engine.MinLeadLagSamples),
		engine.NewTrajectoryForecaster(cfg.Engine.ForecastScale),
		engine.NewFusionEngine(decay, cfg.Engine.ConsensusLookback),
	)

	// Telegram notifier
	var notifier *telegram.Client
	if cfg.Telegram.Enabled {
		notifier, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		logger.Info("Telegram client initialized")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	// Graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	logger.Info("Starting whale fusion service (poll: %v, half-life: %v, lookback: %v, window: %d)",
		cfg.Feed.PollInterval, cfg.Engine.DecayHalfLife, cfg.Engine.ConsensusLookback, cfg.Engine.RecentWindow)

	ticker := time.NewTicker(cfg.Feed.PollInterval)
	defer ticker.Stop()
	persistTicker := time.NewTicker(cfg.Storage.PersistInterval)
	defer persistTicker.Stop()

	// Trades seen per market, awaiting settlement
	pending := make(map[string]map[string]models.WhaleTrade)

	runCycle(ctx, cfg, eng, feed, jnl, notifier, pending)
	for {
		select {
		case <-ctx.Done():
			if err := track.Persist(); err != nil {
				logger.Error("Final persist failed: %v", err)
			}
			logger.Info("Shutdown complete")
			return
		case <-persistTicker.C:
			if err := track.Persist(); err != nil {
				logger.Error("Failed to persist whale stats: %v", err)
			}
		case <-ticker.C:
			runCycle(ctx, cfg, eng, feed, jnl, notifier, pending)
		}
	}
}

// runCycle executes one full decision pass: fetch trades and prices, run the
// engine per market, journal and notify, then settle any resolved markets.
func runCycle(
	ctx context.Context,
	cfg *config.Config,
	eng *engine.Engine,
	feed *polymarket.Client,
	jnl *journal.Journal,
	notifier *telegram.Client,
	pending map[string]map[string]models.WhaleTrade,
) {
	markets, err := feed.FetchWhaleTrades(ctx, cfg.Engine.ConsensusLookback)
	if err != nil {
		logger.Warn("Trade fetch failed, abstaining this cycle: %v", err)
		return
	}

	now := time.Now()
	var actionable []models.FusionResult

	for marketID, activity := range markets {
		samples, err := feed.FetchPriceHistory(ctx, marketID, cfg.Engine.ConsensusLookback)
		if err != nil {
			logger.Warn("Price history for %s unavailable, forecasting from nothing: %v", marketID, err)
			samples = nil
		}

		result := eng.RunCycle(marketID, activity.Question, activity.Trades, samples, now)
		if err := jnl.RecordSignal(&result); err != nil {
			logger.Error("Failed to journal signal for %s: %v", marketID, err)
		}
		if result.Actionable() && result.Confidence >= cfg.Engine.MinNotifConfidence {
			actionable = append(actionable, result)
		}

		addPending(pending, marketID, activity.Trades)
	}

	if notifier != nil && len(actionable) > 0 {
		if err := notifier.Send(actionable); err != nil {
			logger.Error("Failed to send notifications: %v", err)
		}
	}

	settleResolved(ctx, eng, feed, jnl, pending)
	logger.Info("Cycle complete: %d markets, %d actionable signals", len(markets), len(actionable))
}

// settleResolved records outcomes for whales whose markets have settled.
func settleResolved(
	ctx context.Context,
	eng *engine.Engine,
	feed *polymarket.Client,
	jnl *journal.Journal,
	pending map[string]map[string]models.WhaleTrade,
) {
	if len(pending) == 0 {
		return
	}
	ids := make([]string, 0, len(pending))
	for id := range pending {
		ids = append(ids, id)
	}

	resolutions, err := feed.FetchResolutions(ctx, ids)
	if err != nil {
		logger.Warn("Resolution check failed, retrying next cycle: %v", err)
		return
	}

	for _, res := range resolutions {
		winnerBullish := winnerIsBullish(res.WinningOutcome)
		for _, t := range pending[res.MarketID] {
			won := (t.Direction() > 0) == winnerBullish
			id := tradeID(&t)
			if err := eng.ResolveOutcome(t.Wallet, id, t.Category, won); err != nil {
				logger.Error("Failed to record outcome for %s: %v", t.Wallet, err)
				continue
			}
			if err := jnl.RecordOutcome(t.Wallet+":"+id, t.Wallet, t.MarketID, t.Category, won, time.Now()); err != nil {
				logger.Error("Failed to journal outcome for %s: %v", t.Wallet, err)
			}
		}
		delete(pending, res.MarketID)
		logger.Info("Market %s settled (%s), outcomes recorded", res.MarketID, res.WinningOutcome)
	}
}

// winnerIsBullish maps a winning outcome label to the bullish direction.
func winnerIsBullish(outcome string) bool {
	switch strings.ToUpper(outcome) {
	case "YES", "UP":
		return true
	}
	return false
}
