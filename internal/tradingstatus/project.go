package tradingstatus

import (
	"sort"

	"github.com/shopspring/decimal"

	"discordmessenger/internal/host"
	"discordmessenger/internal/model"
)

// pricePlaces is the rounding applied to every reported price.
const pricePlaces = 2

// round uses banker's rounding: 4500.125 reports as 4500.12.
func round(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).RoundBank(pricePlaces)
}

// ProjectPositions maps host positions into the reported model.
func ProjectPositions(in []host.Position) []model.Position {
	out := make([]model.Position, 0, len(in))
	for _, p := range in {
		out = append(out, model.Position{
			Instrument:     p.Instrument,
			Quantity:       p.Quantity,
			AveragePrice:   round(p.AveragePrice),
			MarketPosition: p.MarketPosition,
		})
	}
	return out
}

// orderPrice is the stop price for stop-family orders, the limit price otherwise.
func orderPrice(o host.Order) float64 {
	if o.Type.StopFamily() {
		return o.StopPrice
	}
	return o.LimitPrice
}

// ProjectOrders keeps Accepted/Working orders, merges entries sharing
// (type, rounded price) by summing quantity and returns them sorted by
// descending price. Equal prices keep discovery order.
func ProjectOrders(in []host.Order) []model.OrderEntry {
	out := make([]model.OrderEntry, 0, len(in))
	for _, o := range in {
		if !o.State.Live() {
			continue
		}
		price := round(orderPrice(o))
		typ := string(o.Type)

		merged := false
		for i := range out {
			if out[i].Type == typ && out[i].Price.Equal(price) {
				out[i].Quantity += o.Quantity
				merged = true
				break
			}
		}
		if merged {
			continue
		}
		out = append(out, model.OrderEntry{
			Instrument: o.Instrument,
			Quantity:   o.Quantity,
			Price:      price,
			Type:       typ,
			Action:     o.Action,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Price.GreaterThan(out[j].Price)
	})
	return out
}
