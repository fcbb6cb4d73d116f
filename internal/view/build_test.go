package view

import (
	"encoding/json"
	"testing"

	"github.com/rewired-gh/marketstate/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func params(amount, minimum, closure, supply string) models.AuctionParams {
	return models.AuctionParams{
		TenderAmountKW:       json.Number(amount),
		MinimumOrderAmountKW: json.Number(minimum),
		GateClosureTime:      json.Number(closure),
		SupplyStartTime:      json.Number(supply),
	}
}

func TestBuildAuctionsNoData(t *testing.T) {
	p, err := BuildAuctions(nil, nil, models.ParticipantMap{})
	require.NoError(t, err)

	for i, card := range p.Upcoming {
		assert.Equal(t, NoAuctionPlaceholder, card.Placeholder, "slot %d", i+1)
		assert.Empty(t, card.Rows)
	}
	assert.Equal(t, NoResultPlaceholder, p.Result.Placeholder)
}

func TestBuildAuctionsTwoOpen(t *testing.T) {
	open := []models.AuctionParams{
		params("500", "50", "3600", "7200"),
		params("250", "25", "7200", "10800"),
	}
	p, err := BuildAuctions(open, nil, models.ParticipantMap{})
	require.NoError(t, err)

	assert.Empty(t, p.Upcoming[0].Placeholder)
	assert.Empty(t, p.Upcoming[1].Placeholder)
	assert.Equal(t, NoAuctionPlaceholder, p.Upcoming[2].Placeholder)
	assert.Equal(t, NoAuctionPlaceholder, p.Upcoming[3].Placeholder)

	assert.Equal(t, "auction-1", p.Upcoming[0].ID)
	assert.Equal(t, []Row{
		{Label: "Amount", Value: "500"},
		{Label: "Minimum", Value: "50"},
		{Label: "Closure", Value: "1.0h"},
		{Label: "Supply", Value: "2.0h"},
	}, p.Upcoming[0].Rows)
	assert.Equal(t, "250", p.Upcoming[1].Rows[0].Value)
}

func TestBuildAuctionsIgnoresExtraOpenAuctions(t *testing.T) {
	var open []models.AuctionParams
	for i := 0; i < 6; i++ {
		open = append(open, params("1", "1", "0", "0"))
	}
	p, err := BuildAuctions(open, nil, models.ParticipantMap{})
	require.NoError(t, err)
	for _, card := range p.Upcoming {
		assert.Empty(t, card.Placeholder)
	}
}

func TestBuildAuctionsResultUsesLastEntry(t *testing.T) {
	first := params("1", "1", "0", "3600")
	last := params("900", "90", "3600", "5400")
	results := []models.AuctionResult{
		{Params: &first, AwardedOrders: []models.AwardedOrder{}},
		{
			Params:        &last,
			ClearingPrice: decimal.NewNullDecimal(decimal.RequireFromString("42.5")),
			AwardedOrders: []models.AwardedOrder{
				{Agents: []string{"a1"}},
				{Agents: []string{"a1"}},
				{Agents: []string{"a2", "a3"}},
			},
		},
	}
	var pm models.ParticipantMap
	pm.Set("a1", "SolarCo01")

	p, err := BuildAuctions(nil, results, pm)
	require.NoError(t, err)

	assert.Empty(t, p.Result.Placeholder)
	assert.Equal(t, "auction-0", p.Result.ID)
	assert.Equal(t, []string{"SolarCo", "[a2, a3]"}, p.Result.Awarded)
	assert.Equal(t, []Row{
		{Label: "Amount", Value: "900"},
		{Label: "Awarded", Value: "SolarCo, [a2, a3]"},
		{Label: "Clearing Price", Value: "42.5"},
		{Label: "Supply", Value: "1.5h"},
	}, p.Result.Rows)
}

func TestResultCardWithoutPriceOrWinners(t *testing.T) {
	pp := params("1", "1", "0", "0")
	card, err := ResultCard(models.AuctionResult{Params: &pp, AwardedOrders: []models.AwardedOrder{}}, models.ParticipantMap{})
	require.NoError(t, err)
	assert.Equal(t, "none", card.Rows[1].Value)
	assert.Equal(t, "n/a", card.Rows[2].Value)
}

func TestBuildAuctionsRejectsBadTimes(t *testing.T) {
	_, err := BuildAuctions([]models.AuctionParams{params("1", "1", "soon", "0")}, nil, models.ParticipantMap{})
	assert.ErrorIs(t, err, models.ErrMalformed)
}

func TestDisplayOrder(t *testing.T) {
	ids := []string{}
	for _, c := range EmptyAuctions().DisplayOrder() {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"auction-4", "auction-3", "auction-2", "auction-1", "auction-0"}, ids)
}

func TestBuildBalanceRows(t *testing.T) {
	b, err := models.DecodeBalances([]byte(`{"a2": 5, "a1": 12.5, "bank": 5}`))
	require.NoError(t, err)
	pm, err := models.DecodeParticipantMap([]byte(`{"a1": "Alpha01", "a2": "Beta01"}`))
	require.NoError(t, err)

	rows := BuildBalanceRows(b, pm)
	require.Len(t, rows, 3)
	assert.Equal(t, "Alpha", rows[0].Name)
	assert.Equal(t, "12.5", rows[0].Balance.String())
	assert.Equal(t, "Beta", rows[1].Name)
	assert.Equal(t, "bank", rows[2].Name)
}

func TestParseRegion(t *testing.T) {
	for _, r := range Regions {
		got, ok := ParseRegion(string(r))
		assert.True(t, ok)
		assert.Equal(t, r, got)
	}
	_, ok := ParseRegion("sidebar")
	assert.False(t, ok)
}
