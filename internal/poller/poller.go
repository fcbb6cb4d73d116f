// Package poller refreshes the dashboard on a fixed interval. Every tick runs
// one independent fetch-transform-store operation per view region.
package poller

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rewired-gh/marketstate/internal/logger"
	"github.com/rewired-gh/marketstate/internal/models"
	"github.com/rewired-gh/marketstate/internal/simclient"
	"github.com/rewired-gh/marketstate/internal/view"
)

// Source is the simulation server API the poller reads from.
type Source interface {
	NextStep(ctx context.Context) (float64, error)
	CurrentSimulationTime(ctx context.Context) (float64, error)
	Balances(ctx context.Context) (models.Balances, error)
	ParticipantMap(ctx context.Context) (models.ParticipantMap, error)
	Demand(ctx context.Context) (models.DemandSeries, error)
	AuctionResults(ctx context.Context) ([]models.AuctionResult, error)
	OpenAuctions(ctx context.Context) ([]models.AuctionParams, error)
}

// Notifier receives out-of-band events. Implementations may block; the
// poller calls them off the tick path.
type Notifier interface {
	SendError(region string, err error) error
	SendRecovery(region string, failures int) error
	SendAuctionResult(card view.AuctionCard) error
}

type Config struct {
	Interval      time.Duration
	NotifyResults bool
}

func DefaultConfig() Config {
	return Config{
		Interval:      time.Second,
		NotifyResults: true,
	}
}

// applyFunc replaces one region's content in the view-model.
type applyFunc func(vm *view.ViewModel)

type operation struct {
	region view.Region
	run    func(ctx context.Context) (applyFunc, error)
}

type regionState struct {
	inFlight atomic.Bool
	failures int
}

// TickReport summarizes one tick.
type TickReport struct {
	Seq     uint64
	Ran     []view.Region
	Skipped []view.Region
	Failed  map[view.Region]error
}

type Poller struct {
	source   Source
	store    *view.Store
	notifier Notifier
	config   Config

	seq     atomic.Uint64
	ops     []operation
	regions map[view.Region]*regionState

	mu            sync.Mutex
	lastResultKey string
	resultPrimed  bool

	ticks   sync.WaitGroup
	notifyW sync.WaitGroup
}

// New creates a poller writing into store. notifier may be nil.
func New(source Source, store *view.Store, notifier Notifier, config Config) *Poller {
	if config.Interval <= 0 {
		config.Interval = time.Second
	}
	p := &Poller{
		source:   source,
		store:    store,
		notifier: notifier,
		config:   config,
		regions:  make(map[view.Region]*regionState),
	}
	p.ops = []operation{
		{region: view.RegionNextStep, run: p.refreshNextStep},
		{region: view.RegionSimTime, run: p.refreshSimTime},
		{region: view.RegionAuctions, run: p.refreshAuctions},
		{region: view.RegionBalances, run: p.refreshBalances},
		{region: view.RegionDemand, run: p.refreshDemand},
	}
	for _, op := range p.ops {
		p.regions[op.region] = &regionState{}
	}
	return p
}

// Run ticks until ctx is cancelled, starting with an immediate tick. Ticks do
// not wait for each other; a region whose previous refresh is still running
// sits the tick out.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	logger.Info("Polling every %v", p.config.Interval)
	p.startTick(ctx)

	for {
		select {
		case <-ctx.Done():
			p.ticks.Wait()
			p.notifyW.Wait()
			logger.Info("Poller stopped after %d ticks", p.seq.Load())
			return
		case <-ticker.C:
			p.startTick(ctx)
		}
	}
}

func (p *Poller) startTick(ctx context.Context) {
	p.ticks.Add(1)
	go func() {
		defer p.ticks.Done()
		p.Tick(ctx)
	}()
}

// Tick runs every region operation concurrently and waits for those it started.
func (p *Poller) Tick(ctx context.Context) TickReport {
	start := time.Now()
	seq := p.seq.Add(1)
	report := TickReport{Seq: seq, Failed: make(map[view.Region]error)}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, op := range p.ops {
		state := p.regions[op.region]
		if !state.inFlight.CompareAndSwap(false, true) {
			report.Skipped = append(report.Skipped, op.region)
			logger.Debug("Tick %d: %s still refreshing, skipped", seq, op.region)
			continue
		}
		report.Ran = append(report.Ran, op.region)

		wg.Add(1)
		go func(op operation, state *regionState) {
			defer wg.Done()
			defer state.inFlight.Store(false)

			if err := p.refresh(ctx, seq, op); err != nil {
				mu.Lock()
				report.Failed[op.region] = err
				mu.Unlock()
			}
		}(op, state)
	}
	wg.Wait()

	logger.Debug("Tick %d completed in %v: %d ran, %d skipped, %d failed",
		seq, time.Since(start), len(report.Ran), len(report.Skipped), len(report.Failed))
	return report
}

func (p *Poller) refresh(ctx context.Context, seq uint64, op operation) error {
	apply, err := op.run(ctx)
	if err != nil {
		if ctx.Err() != nil {
			// shutting down, not a backend failure
			return err
		}
		p.store.Fail(op.region, seq, simclient.KindOf(err).String(), err)
		p.recordFailure(op.region, err)
		return err
	}
	p.store.Apply(op.region, seq, apply)
	p.recordSuccess(op.region)
	return nil
}

func (p *Poller) recordFailure(region view.Region, err error) {
	p.mu.Lock()
	state := p.regions[region]
	state.failures++
	first := state.failures == 1
	p.mu.Unlock()

	if !first {
		logger.Debug("Refreshing %s still failing: %v", region, err)
		return
	}
	logger.Error("Refreshing %s failed: %v", region, err)
	p.notify(func(n Notifier) error { return n.SendError(string(region), err) }, "error")
}

func (p *Poller) recordSuccess(region view.Region) {
	p.mu.Lock()
	state := p.regions[region]
	failures := state.failures
	state.failures = 0
	p.mu.Unlock()

	if failures == 0 {
		return
	}
	logger.Info("Refreshing %s recovered after %d consecutive failure(s)", region, failures)
	p.notify(func(n Notifier) error { return n.SendRecovery(string(region), failures) }, "recovery")
}

// Failures returns the current consecutive failure count of a region.
func (p *Poller) Failures(region view.Region) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if state, ok := p.regions[region]; ok {
		return state.failures
	}
	return 0
}

func (p *Poller) notify(send func(n Notifier) error, what string) {
	if p.notifier == nil {
		return
	}
	p.notifyW.Add(1)
	go func() {
		defer p.notifyW.Done()
		if err := send(p.notifier); err != nil {
			logger.Warn("Failed to send %s notification: %v", what, err)
		}
	}()
}

func (p *Poller) refreshNextStep(ctx context.Context) (applyFunc, error) {
	v, err := p.source.NextStep(ctx)
	if err != nil {
		return nil, err
	}
	text := models.FormatNextStep(v)
	return func(vm *view.ViewModel) { vm.NextStep.Value = text }, nil
}

func (p *Poller) refreshSimTime(ctx context.Context) (applyFunc, error) {
	v, err := p.source.CurrentSimulationTime(ctx)
	if err != nil {
		return nil, err
	}
	text := models.FormatSimulationTime(v)
	return func(vm *view.ViewModel) { vm.SimTime.Value = text }, nil
}

func (p *Poller) refreshBalances(ctx context.Context) (applyFunc, error) {
	balances, err := p.source.Balances(ctx)
	if err != nil {
		return nil, err
	}
	pm, err := p.source.ParticipantMap(ctx)
	if err != nil {
		return nil, err
	}
	rows := view.BuildBalanceRows(balances, pm)
	return func(vm *view.ViewModel) { vm.Balances.Rows = rows }, nil
}

func (p *Poller) refreshDemand(ctx context.Context) (applyFunc, error) {
	series, err := p.source.Demand(ctx)
	if err != nil {
		return nil, err
	}
	return func(vm *view.ViewModel) { vm.Demand.Series = series }, nil
}

func (p *Poller) refreshAuctions(ctx context.Context) (applyFunc, error) {
	pm, err := p.source.ParticipantMap(ctx)
	if err != nil {
		return nil, err
	}
	results, err := p.source.AuctionResults(ctx)
	if err != nil {
		return nil, err
	}
	open, err := p.source.OpenAuctions(ctx)
	if err != nil {
		return nil, err
	}
	if len(open) > view.UpcomingSlots {
		logger.Debug("Server reports %d open auctions, showing the first %d", len(open), view.UpcomingSlots)
	}

	panel, err := view.BuildAuctions(open, results, pm)
	if err != nil {
		return nil, &simclient.FetchError{Endpoint: simclient.PathOpenAuctions, Kind: simclient.KindMalformed, Err: err}
	}

	key := ""
	if len(results) > 0 {
		key = results[len(results)-1].Key()
	}
	p.checkNewResult(key, panel.Result)

	return func(vm *view.ViewModel) {
		status := vm.Auctions.Status
		vm.Auctions = panel
		vm.Auctions.Status = status
	}, nil
}

// checkNewResult notifies once per newly cleared auction. The first result
// seen after startup only primes the tracker.
func (p *Poller) checkNewResult(key string, card view.AuctionCard) {
	p.mu.Lock()
	primed := p.resultPrimed
	changed := key != "" && key != p.lastResultKey
	p.resultPrimed = true
	p.lastResultKey = key
	p.mu.Unlock()

	if !primed || !changed {
		return
	}
	logger.Info("New auction result: %s", key)
	if !p.config.NotifyResults {
		return
	}
	p.notify(func(n Notifier) error { return n.SendAuctionResult(card) }, fmt.Sprintf("auction result %s", key))
}
