// Package view holds the dashboard view-model, the per-region store that the
// poller writes into, and the pure HTML projection served to browsers.
//
// Panels are always replaced wholesale and never mutated in place, so a
// snapshot may share slices with the live model.
package view

import (
	"time"

	"github.com/rewired-gh/marketstate/internal/models"
	"github.com/shopspring/decimal"
)

// Region names one independently refreshed part of the page. The value is
// also the DOM id of the region's container.
type Region string

const (
	RegionNextStep Region = "step-time"
	RegionSimTime  Region = "current-simulation-time"
	RegionAuctions Region = "auctions"
	RegionBalances Region = "balances"
	RegionDemand   Region = "demand"
)

// Regions lists every region in page order.
var Regions = []Region{RegionNextStep, RegionSimTime, RegionAuctions, RegionBalances, RegionDemand}

// ParseRegion validates a region name.
func ParseRegion(s string) (Region, bool) {
	for _, r := range Regions {
		if string(r) == s {
			return r, true
		}
	}
	return "", false
}

// Status tracks freshness of one region.
type Status struct {
	Seq       uint64    `json:"seq"`
	UpdatedAt time.Time `json:"updated_at"`
	Stale     bool      `json:"stale"`
	ErrKind   string    `json:"error_kind,omitempty"`
	Err       string    `json:"error,omitempty"`
	FailedAt  time.Time `json:"failed_at"`
}

// Loaded reports whether the region ever received good data.
func (s Status) Loaded() bool {
	return !s.UpdatedAt.IsZero()
}

// TextPanel is a single-value card such as the simulation clock.
type TextPanel struct {
	Value  string `json:"value"`
	Status Status `json:"status"`
}

// BalanceRow is one line of the ranking table.
type BalanceRow struct {
	Name    string          `json:"name"`
	Balance decimal.Decimal `json:"balance"`
}

// BalancesPanel is the ranking table, richest first.
type BalancesPanel struct {
	Rows   []BalanceRow `json:"rows"`
	Status Status       `json:"status"`
}

// DemandPanel feeds the three demand charts.
type DemandPanel struct {
	Series models.DemandSeries `json:"series"`
	Status Status              `json:"status"`
}

// Row is a label/value line inside an auction card.
type Row struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// AuctionCard is one of the five auction slots. A card with a Placeholder
// has no rows.
type AuctionCard struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Placeholder string   `json:"placeholder,omitempty"`
	Rows        []Row    `json:"rows,omitempty"`
	Awarded     []string `json:"awarded,omitempty"`
}

// UpcomingSlots is how many open auctions the page shows.
const UpcomingSlots = 4

// AuctionsPanel holds the upcoming auctions (index 0 is processed in the next
// step) and the most recent result.
type AuctionsPanel struct {
	Upcoming [UpcomingSlots]AuctionCard `json:"upcoming"`
	Result   AuctionCard                `json:"result"`
	Status   Status                     `json:"status"`
}

// DisplayOrder returns the cards left to right: furthest auction first, the
// last result at the end.
func (p AuctionsPanel) DisplayOrder() []AuctionCard {
	cards := make([]AuctionCard, 0, UpcomingSlots+1)
	for i := UpcomingSlots - 1; i >= 0; i-- {
		cards = append(cards, p.Upcoming[i])
	}
	return append(cards, p.Result)
}

// ViewModel is everything the page shows.
type ViewModel struct {
	NextStep TextPanel     `json:"next_step"`
	SimTime  TextPanel     `json:"simulation_time"`
	Auctions AuctionsPanel `json:"auctions"`
	Balances BalancesPanel `json:"balances"`
	Demand   DemandPanel   `json:"demand"`
}

// NewViewModel returns the model shown before the first tick completes.
func NewViewModel() ViewModel {
	return ViewModel{
		Auctions: EmptyAuctions(),
		Balances: BalancesPanel{Rows: []BalanceRow{}},
	}
}

func (vm *ViewModel) status(r Region) *Status {
	switch r {
	case RegionNextStep:
		return &vm.NextStep.Status
	case RegionSimTime:
		return &vm.SimTime.Status
	case RegionAuctions:
		return &vm.Auctions.Status
	case RegionBalances:
		return &vm.Balances.Status
	case RegionDemand:
		return &vm.Demand.Status
	}
	return nil
}

// StatusOf returns the freshness of a region.
func (vm ViewModel) StatusOf(r Region) Status {
	if s := vm.status(r); s != nil {
		return *s
	}
	return Status{}
}
