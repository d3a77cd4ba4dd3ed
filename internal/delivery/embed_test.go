package delivery

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"discordmessenger/internal/model"
)

func TestBuildEmbedPlaceholders(t *testing.T) {
	e := BuildEmbed(model.Snapshot{}, 0x1E90FF)

	assert.Equal(t, "Trading Status", e.Title)
	assert.Equal(t, 0x1E90FF, e.Color)
	require.Len(t, e.Fields, 2)
	assert.Equal(t, Field{Name: "**Positions**", Value: "```No Positions```"}, e.Fields[0])
	assert.Equal(t, Field{Name: "**Active Orders**", Value: "```No Active Orders```"}, e.Fields[1])
}

func TestBuildEmbedGroupsByInstrumentInFirstSeenOrder(t *testing.T) {
	snap := model.Snapshot{
		Positions: []model.Position{
			{Instrument: "NQ", Quantity: 1, AveragePrice: decimal.RequireFromString("15000.25"), MarketPosition: "Long"},
			{Instrument: "ES", Quantity: 2, AveragePrice: decimal.RequireFromString("4500.5"), MarketPosition: "Short"},
			{Instrument: "NQ", Quantity: 3, AveragePrice: decimal.RequireFromString("15001"), MarketPosition: "Long"},
		},
		Orders: []model.OrderEntry{
			{Instrument: "ES", Quantity: 1, Price: decimal.RequireFromString("4510"), Type: "Limit", Action: "Sell"},
		},
	}
	e := BuildEmbed(snap, 1)

	require.Len(t, e.Fields, 3)
	assert.Equal(t, "**NQ Positions**", e.Fields[0].Name)
	assert.Equal(t, "```Quantity: 1\nAvg Price: 15000.25\nPosition: Long\nQuantity: 3\nAvg Price: 15001\nPosition: Long```", e.Fields[0].Value)
	assert.Equal(t, "**ES Positions**", e.Fields[1].Name)
	assert.Equal(t, "**ES Active Orders**", e.Fields[2].Name)
	assert.Equal(t, "```Quantity: 1\nPrice: 4510\nAction: Sell\nType: Limit```", e.Fields[2].Value)
	for _, f := range e.Fields {
		assert.False(t, f.Inline)
	}
}

func TestPayloadJSONShape(t *testing.T) {
	raw, err := json.Marshal(Payload{Embeds: []Embed{BuildEmbed(model.Snapshot{}, 255)}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"embeds":[{"title":"Trading Status","color":255,"fields":[
		{"name":"**Positions**","value":"`+"```No Positions```"+`","inline":false},
		{"name":"**Active Orders**","value":"`+"```No Active Orders```"+`","inline":false}]}]}`, string(raw))
}
