package models

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// AuctionParams describes a tender as reported by /market/auction/open and
// inside each auction result. Times are simulation seconds.
type AuctionParams struct {
	TenderAmountKW       json.Number `json:"tender_amount_kw"`
	MinimumOrderAmountKW json.Number `json:"minimum_order_amount_kw"`
	GateClosureTime      json.Number `json:"gate_closure_time"`
	SupplyStartTime      json.Number `json:"supply_start_time"`
}

// Validate checks that every field the dashboard shows is present.
func (p AuctionParams) Validate() error {
	fields := []struct {
		name  string
		value json.Number
	}{
		{"tender_amount_kw", p.TenderAmountKW},
		{"minimum_order_amount_kw", p.MinimumOrderAmountKW},
		{"gate_closure_time", p.GateClosureTime},
		{"supply_start_time", p.SupplyStartTime},
	}
	for _, f := range fields {
		if f.value == "" {
			return missingField(f.name)
		}
	}
	return nil
}

// GateClosureHours formats the gate closure time as simulation hours.
func (p AuctionParams) GateClosureHours() (string, error) {
	return hoursOf("gate_closure_time", p.GateClosureTime)
}

// SupplyStartHours formats the supply start time as simulation hours.
func (p AuctionParams) SupplyStartHours() (string, error) {
	return hoursOf("supply_start_time", p.SupplyStartTime)
}

func hoursOf(name string, n json.Number) (string, error) {
	v, err := ParseNumber(n.String())
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return FormatSimulationTime(v), nil
}

// AwardedOrder is one winning order of a cleared auction.
type AwardedOrder struct {
	Agents []string `json:"agents"`
}

// AuctionResult is a cleared auction from /ui/auction/results.
type AuctionResult struct {
	Params        *AuctionParams      `json:"params"`
	ClearingPrice decimal.NullDecimal `json:"clearing_price"`
	AwardedOrders []AwardedOrder      `json:"awarded_orders"`
}

// Validate checks the nested params and the presence of the awarded orders.
func (r AuctionResult) Validate() error {
	if r.Params == nil {
		return missingField("params")
	}
	if err := r.Params.Validate(); err != nil {
		return fmt.Errorf("params: %w", err)
	}
	if r.AwardedOrders == nil {
		return missingField("awarded_orders")
	}
	for i, o := range r.AwardedOrders {
		if o.Agents == nil {
			return fmt.Errorf("awarded_orders[%d]: %w", i, missingField("agents"))
		}
	}
	return nil
}

// Key identifies a result well enough to notice when a newer one arrives.
func (r AuctionResult) Key() string {
	if r.Params == nil {
		return ""
	}
	return strings.Join([]string{
		r.Params.GateClosureTime.String(),
		r.Params.SupplyStartTime.String(),
		r.Params.TenderAmountKW.String(),
	}, "|")
}

// AwardedParticipants lists the winners, deduplicated in first-seen order.
// A single-agent order is translated through the participant map; an order
// placed by several agents is kept as the raw list of agent ids.
func (r AuctionResult) AwardedParticipants(pm ParticipantMap) []string {
	seen := make(map[string]bool)
	var out []string
	for _, o := range r.AwardedOrders {
		var name string
		if len(o.Agents) == 1 {
			name = pm.Translate(o.Agents[0])
		} else {
			name = "[" + strings.Join(o.Agents, ", ") + "]"
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

type openAuctionsResponse struct {
	Auctions []AuctionParams `json:"auctions"`
}

// DecodeOpenAuctions decodes a /market/auction/open body. Auctions come back
// ordered by how many steps remain until they are processed.
func DecodeOpenAuctions(body []byte) ([]AuctionParams, error) {
	var resp openAuctionsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, malformed(err)
	}
	if resp.Auctions == nil {
		return nil, missingField("auctions")
	}
	for i, a := range resp.Auctions {
		if err := a.Validate(); err != nil {
			return nil, fmt.Errorf("auctions[%d]: %w", i, err)
		}
	}
	return resp.Auctions, nil
}

type auctionResultsResponse struct {
	Results []AuctionResult `json:"results"`
}

// DecodeAuctionResults decodes a /ui/auction/results body, oldest first.
func DecodeAuctionResults(body []byte) ([]AuctionResult, error) {
	var resp auctionResultsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, malformed(err)
	}
	if resp.Results == nil {
		return nil, missingField("results")
	}
	for i, r := range resp.Results {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("results[%d]: %w", i, err)
		}
	}
	return resp.Results, nil
}
