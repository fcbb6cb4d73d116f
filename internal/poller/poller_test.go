package poller

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rewired-gh/marketstate/internal/models"
	"github.com/rewired-gh/marketstate/internal/simclient"
	"github.com/rewired-gh/marketstate/internal/view"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu sync.Mutex

	nextStep    float64
	simTime     float64
	balances    string
	participant string
	demand      models.DemandSeries
	results     []models.AuctionResult
	open        []models.AuctionParams

	nextStepErr error
	balancesErr error
	block       chan struct{}
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		nextStep:    -1,
		simTime:     5400,
		balances:    `{"a2": 3, "a1": 10}`,
		participant: `{"a1": "Alpha01", "a2": "Beta01"}`,
	}
}

func (f *fakeSource) NextStep(ctx context.Context) (float64, error) {
	f.mu.Lock()
	block := f.block
	v, err := f.nextStep, f.nextStepErr
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	return v, err
}

func (f *fakeSource) CurrentSimulationTime(ctx context.Context) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.simTime, nil
}

func (f *fakeSource) Balances(ctx context.Context) (models.Balances, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.balancesErr != nil {
		return nil, f.balancesErr
	}
	return models.DecodeBalances([]byte(f.balances))
}

func (f *fakeSource) ParticipantMap(ctx context.Context) (models.ParticipantMap, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return models.DecodeParticipantMap([]byte(f.participant))
}

func (f *fakeSource) Demand(ctx context.Context) (models.DemandSeries, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.demand, nil
}

func (f *fakeSource) AuctionResults(ctx context.Context) ([]models.AuctionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.results, nil
}

func (f *fakeSource) OpenAuctions(ctx context.Context) ([]models.AuctionParams, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open, nil
}

type fakeNotifier struct {
	mu         sync.Mutex
	errors     []string
	recoveries map[string]int
	results    []view.AuctionCard
}

func (n *fakeNotifier) SendError(region string, err error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, region)
	return nil
}

func (n *fakeNotifier) SendRecovery(region string, failures int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.recoveries == nil {
		n.recoveries = make(map[string]int)
	}
	n.recoveries[region] = failures
	return nil
}

func (n *fakeNotifier) SendAuctionResult(card view.AuctionCard) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.results = append(n.results, card)
	return nil
}

func auctionParams(amount, closure, supply string) models.AuctionParams {
	return models.AuctionParams{
		TenderAmountKW:       json.Number(amount),
		MinimumOrderAmountKW: json.Number("10"),
		GateClosureTime:      json.Number(closure),
		SupplyStartTime:      json.Number(supply),
	}
}

func auctionResult(amount, supply string, agents ...string) models.AuctionResult {
	p := auctionParams(amount, "0", supply)
	return models.AuctionResult{
		Params:        &p,
		ClearingPrice: decimal.NewNullDecimal(decimal.RequireFromString("12")),
		AwardedOrders: []models.AwardedOrder{{Agents: agents}},
	}
}

func TestTickRefreshesEveryRegion(t *testing.T) {
	src := newFakeSource()
	src.open = []models.AuctionParams{auctionParams("500", "3600", "7200")}
	store := view.NewStore()
	p := New(src, store, nil, DefaultConfig())

	report := p.Tick(context.Background())
	assert.Equal(t, uint64(1), report.Seq)
	assert.Len(t, report.Ran, len(view.Regions))
	assert.Empty(t, report.Skipped)
	assert.Empty(t, report.Failed)

	vm := store.Snapshot()
	assert.Equal(t, "Pause", vm.NextStep.Value)
	assert.Equal(t, "1.5h", vm.SimTime.Value)
	require.Len(t, vm.Balances.Rows, 2)
	assert.Equal(t, "Alpha", vm.Balances.Rows[0].Name)
	assert.Equal(t, "Beta", vm.Balances.Rows[1].Name)
	assert.Equal(t, "500", vm.Auctions.Upcoming[0].Rows[0].Value)
	assert.Equal(t, view.NoAuctionPlaceholder, vm.Auctions.Upcoming[1].Placeholder)
	assert.Equal(t, view.NoResultPlaceholder, vm.Auctions.Result.Placeholder)
	for _, r := range view.Regions {
		assert.Equal(t, uint64(1), vm.StatusOf(r).Seq, "region %s", r)
	}
}

func TestTickFailureKeepsOtherRegions(t *testing.T) {
	src := newFakeSource()
	store := view.NewStore()
	n := &fakeNotifier{}
	p := New(src, store, n, DefaultConfig())

	p.Tick(context.Background())

	src.mu.Lock()
	src.nextStepErr = &simclient.FetchError{Endpoint: simclient.PathNextStep, Kind: simclient.KindTransport, Err: errors.New("connection refused")}
	src.simTime = 7200
	src.mu.Unlock()

	report := p.Tick(context.Background())
	require.Contains(t, report.Failed, view.RegionNextStep)
	assert.Len(t, report.Failed, 1)

	vm := store.Snapshot()
	assert.Equal(t, "Pause", vm.NextStep.Value, "last good value stays")
	assert.True(t, vm.NextStep.Status.Stale)
	assert.Equal(t, "transport", vm.NextStep.Status.ErrKind)
	assert.Equal(t, "2.0h", vm.SimTime.Value)
	assert.False(t, vm.SimTime.Status.Stale)
}

func TestFailureStreakNotifiesOnceAndRecovers(t *testing.T) {
	src := newFakeSource()
	src.balancesErr = &simclient.FetchError{Endpoint: simclient.PathBalances, Kind: simclient.KindMalformed, Err: models.ErrMalformed}
	n := &fakeNotifier{}
	p := New(src, view.NewStore(), n, DefaultConfig())

	for i := 0; i < 3; i++ {
		p.Tick(context.Background())
	}
	assert.Equal(t, 3, p.Failures(view.RegionBalances))

	src.mu.Lock()
	src.balancesErr = nil
	src.mu.Unlock()
	p.Tick(context.Background())
	p.notifyW.Wait()

	assert.Equal(t, 0, p.Failures(view.RegionBalances))
	n.mu.Lock()
	defer n.mu.Unlock()
	assert.Equal(t, []string{string(view.RegionBalances)}, n.errors)
	assert.Equal(t, 3, n.recoveries[string(view.RegionBalances)])
}

func TestTickSkipsRegionStillInFlight(t *testing.T) {
	src := newFakeSource()
	blocker := make(chan struct{})
	src.block = blocker
	store := view.NewStore()
	p := New(src, store, nil, DefaultConfig())

	first := make(chan TickReport, 1)
	go func() { first <- p.Tick(context.Background()) }()

	require.Eventually(t, func() bool {
		return store.Snapshot().SimTime.Status.Seq == 1
	}, time.Second, 5*time.Millisecond)

	src.mu.Lock()
	src.block = nil
	src.nextStep = 4
	src.mu.Unlock()

	second := p.Tick(context.Background())
	assert.Equal(t, []view.Region{view.RegionNextStep}, second.Skipped)
	assert.Equal(t, uint64(2), store.Snapshot().SimTime.Status.Seq)

	close(blocker)
	report := <-first
	assert.Empty(t, report.Skipped)

	// tick 1 finished after tick 2 but tick 2 never touched the region
	vm := store.Snapshot()
	assert.Equal(t, "Pause", vm.NextStep.Value)
	assert.Equal(t, uint64(1), vm.NextStep.Status.Seq)

	p.Tick(context.Background())
	vm = store.Snapshot()
	assert.Equal(t, "4", vm.NextStep.Value)
	assert.Equal(t, uint64(3), vm.NextStep.Status.Seq)
}

func TestNewAuctionResultNotifiesAfterPriming(t *testing.T) {
	src := newFakeSource()
	src.results = []models.AuctionResult{auctionResult("100", "3600", "a1")}
	n := &fakeNotifier{}
	p := New(src, view.NewStore(), n, DefaultConfig())

	p.Tick(context.Background())
	p.Tick(context.Background())
	p.notifyW.Wait()
	n.mu.Lock()
	assert.Empty(t, n.results, "result present at startup is not announced")
	n.mu.Unlock()

	src.mu.Lock()
	src.results = append(src.results, auctionResult("200", "7200", "a2"))
	src.mu.Unlock()
	p.Tick(context.Background())
	p.Tick(context.Background())
	p.notifyW.Wait()

	n.mu.Lock()
	defer n.mu.Unlock()
	require.Len(t, n.results, 1)
	assert.Equal(t, []string{"Beta"}, n.results[0].Awarded)
}

func TestNewAuctionResultRespectsConfig(t *testing.T) {
	src := newFakeSource()
	n := &fakeNotifier{}
	p := New(src, view.NewStore(), n, Config{Interval: time.Second, NotifyResults: false})

	p.Tick(context.Background())
	src.mu.Lock()
	src.results = []models.AuctionResult{auctionResult("100", "3600", "a1")}
	src.mu.Unlock()
	p.Tick(context.Background())
	p.notifyW.Wait()

	n.mu.Lock()
	defer n.mu.Unlock()
	assert.Empty(t, n.results)
}

func TestRunStopsOnCancel(t *testing.T) {
	src := newFakeSource()
	store := view.NewStore()
	p := New(src, store, nil, Config{Interval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return store.Snapshot().NextStep.Status.Seq >= 3
	}, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, "Pause", store.Snapshot().NextStep.Value)
}
