// Package model holds the immutable values passed between the messenger's
// services: projected positions and orders, recent-event entries and the
// small enums that steer the delivery flow.
package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status classifies the outcome of a delivery or a health check.
type Status string

const (
	StatusSuccess        Status = "Success"
	StatusFailed         Status = "Failed"
	StatusPartialSuccess Status = "PartialSuccess"
)

// ProcessType tells whether a screenshot/send was requested by the operator
// or by the automatic post-debounce flow.
type ProcessType string

const (
	ProcessManual ProcessType = "Manual"
	ProcessAuto   ProcessType = "Auto"
)

// ParseProcessType accepts "manual"/"auto" in any case. Unknown values map to Manual.
func ParseProcessType(s string) ProcessType {
	if strings.EqualFold(strings.TrimSpace(s), "auto") {
		return ProcessAuto
	}
	return ProcessManual
}

// AutoMode governs whether order updates trigger automatic delivery.
type AutoMode string

const (
	AutoEnabled  AutoMode = "Enabled"
	AutoDisabled AutoMode = "Disabled"
)

func AutoModeFromBool(enabled bool) AutoMode {
	if enabled {
		return AutoEnabled
	}
	return AutoDisabled
}

// Position is one account position as of an aggregation cycle.
type Position struct {
	Instrument     string          `json:"instrument"`
	Quantity       int             `json:"quantity"`
	AveragePrice   decimal.Decimal `json:"average_price"`
	MarketPosition string          `json:"market_position"`
}

// OrderEntry is one working order line; orders sharing (type, price) are merged.
type OrderEntry struct {
	Instrument string          `json:"instrument"`
	Quantity   int             `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	Type       string          `json:"type"`
	Action     string          `json:"action"`
}

// Snapshot is the (positions, orders) pair published once per aggregation.
type Snapshot struct {
	Positions []Position
	Orders    []OrderEntry
}

// EventLog is a single recent-event entry.
type EventLog struct {
	Status  Status    `json:"status"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}
