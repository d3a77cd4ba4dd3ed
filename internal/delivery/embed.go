package delivery

import (
	"fmt"
	"strings"

	"discordmessenger/internal/model"
)

const (
	embedTitle = "Trading Status"

	// DefaultColor is used when no usable color is configured.
	DefaultColor = 0xFFFFFF
)

// Payload is the payload_json body of a webhook message.
type Payload struct {
	Embeds []Embed `json:"embeds"`
}

type Embed struct {
	Title  string  `json:"title"`
	Color  int     `json:"color"`
	Fields []Field `json:"fields"`
}

type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

func codeBlock(s string) string { return "```" + s + "```" }

// BuildEmbed renders one snapshot. Positions come first, then orders; each is
// grouped by instrument in first-seen order. An empty section renders a
// placeholder field instead of disappearing.
func BuildEmbed(snap model.Snapshot, color int) Embed {
	e := Embed{Title: embedTitle, Color: color}
	add := func(name, value string) {
		e.Fields = append(e.Fields, Field{Name: name, Value: codeBlock(value)})
	}

	if len(snap.Positions) == 0 {
		add("**Positions**", "No Positions")
	} else {
		groupBy(snap.Positions,
			func(p model.Position) string { return p.Instrument },
			func(inst string, lines []string) { add(fmt.Sprintf("**%s Positions**", inst), strings.Join(lines, "\n")) },
			func(p model.Position) string {
				return fmt.Sprintf("Quantity: %d\nAvg Price: %s\nPosition: %s", p.Quantity, p.AveragePrice.String(), p.MarketPosition)
			},
		)
	}

	if len(snap.Orders) == 0 {
		add("**Active Orders**", "No Active Orders")
	} else {
		groupBy(snap.Orders,
			func(o model.OrderEntry) string { return o.Instrument },
			func(inst string, lines []string) { add(fmt.Sprintf("**%s Active Orders**", inst), strings.Join(lines, "\n")) },
			func(o model.OrderEntry) string {
				return fmt.Sprintf("Quantity: %d\nPrice: %s\nAction: %s\nType: %s", o.Quantity, o.Price.String(), o.Action, o.Type)
			},
		)
	}
	return e
}

func groupBy[T any](items []T, key func(T) string, emit func(string, []string), line func(T) string) {
	var order []string
	groups := make(map[string][]string)
	for _, it := range items {
		k := key(it)
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], line(it))
	}
	for _, k := range order {
		emit(k, groups[k])
	}
}
