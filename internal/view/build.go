package view

import (
	"fmt"
	"strings"

	"github.com/rewired-gh/marketstate/internal/models"
)

const (
	NoAuctionPlaceholder = "No auction yet"
	NoResultPlaceholder  = "No result yet."
)

// BuildBalanceRows translates actor ids and orders accounts richest first.
func BuildBalanceRows(b models.Balances, pm models.ParticipantMap) []BalanceRow {
	sorted := b.SortedDesc()
	rows := make([]BalanceRow, 0, len(sorted))
	for _, e := range sorted {
		rows = append(rows, BalanceRow{
			Name:    pm.Translate(e.ActorID),
			Balance: e.Amount,
		})
	}
	return rows
}

// EmptyAuctions returns the auctions panel with every slot on its placeholder.
func EmptyAuctions() AuctionsPanel {
	var p AuctionsPanel
	for i := range p.Upcoming {
		p.Upcoming[i] = upcomingFrame(i)
		p.Upcoming[i].Placeholder = NoAuctionPlaceholder
	}
	p.Result = resultFrame()
	p.Result.Placeholder = NoResultPlaceholder
	return p
}

// BuildAuctions fills the four upcoming slots from open auctions in response
// order and the result slot from the last cleared auction. Open auctions
// beyond the fourth are not shown.
func BuildAuctions(open []models.AuctionParams, results []models.AuctionResult, pm models.ParticipantMap) (AuctionsPanel, error) {
	p := EmptyAuctions()
	for i, a := range open {
		if i >= UpcomingSlots {
			break
		}
		card, err := OpenAuctionCard(i, a)
		if err != nil {
			return AuctionsPanel{}, fmt.Errorf("open auction %d: %w", i, err)
		}
		p.Upcoming[i] = card
	}
	if len(results) > 0 {
		card, err := ResultCard(results[len(results)-1], pm)
		if err != nil {
			return AuctionsPanel{}, fmt.Errorf("auction result: %w", err)
		}
		p.Result = card
	}
	return p, nil
}

// OpenAuctionCard formats an open auction for the given slot (0 = next step).
func OpenAuctionCard(slot int, a models.AuctionParams) (AuctionCard, error) {
	closure, err := a.GateClosureHours()
	if err != nil {
		return AuctionCard{}, err
	}
	supply, err := a.SupplyStartHours()
	if err != nil {
		return AuctionCard{}, err
	}

	card := upcomingFrame(slot)
	card.Rows = []Row{
		{Label: "Amount", Value: a.TenderAmountKW.String()},
		{Label: "Minimum", Value: a.MinimumOrderAmountKW.String()},
		{Label: "Closure", Value: closure},
		{Label: "Supply", Value: supply},
	}
	return card, nil
}

// ResultCard formats a cleared auction. Awarded participants take the place
// of the minimum order and the clearing price takes the place of the closure.
func ResultCard(r models.AuctionResult, pm models.ParticipantMap) (AuctionCard, error) {
	if r.Params == nil {
		return AuctionCard{}, fmt.Errorf("%w: params", models.ErrMissingField)
	}
	supply, err := r.Params.SupplyStartHours()
	if err != nil {
		return AuctionCard{}, err
	}

	price := "n/a"
	if r.ClearingPrice.Valid {
		price = r.ClearingPrice.Decimal.String()
	}

	awarded := r.AwardedParticipants(pm)
	awardedText := "none"
	if len(awarded) > 0 {
		awardedText = strings.Join(awarded, ", ")
	}

	card := resultFrame()
	card.Awarded = awarded
	card.Rows = []Row{
		{Label: "Amount", Value: r.Params.TenderAmountKW.String()},
		{Label: "Awarded", Value: awardedText},
		{Label: "Clearing Price", Value: price},
		{Label: "Supply", Value: supply},
	}
	return card, nil
}

func upcomingFrame(slot int) AuctionCard {
	steps := slot + 1
	desc := fmt.Sprintf("The auction which will be processed in the %d steps", steps)
	if steps == 1 {
		desc = "The auction which will be processed in the next step"
	}
	return AuctionCard{
		ID:          fmt.Sprintf("auction-%d", steps),
		Title:       fmt.Sprintf("Auction %d", steps),
		Description: desc,
	}
}

func resultFrame() AuctionCard {
	return AuctionCard{
		ID:          "auction-0",
		Title:       "Last Auction Result",
		Description: "The auction has been processed in the current step",
	}
}
