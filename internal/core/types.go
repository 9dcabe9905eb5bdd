package core

import (
	"math"
	"time"
)

// Status is the lifecycle state of a signal.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusActive  Status = "ACTIVE"
	StatusClosed  Status = "CLOSED"
)

// OpenStatuses are the statuses the lifecycle evaluator may still mutate.
var OpenStatuses = []Status{StatusActive, StatusPending}

// IsOpen reports whether the status is PENDING or ACTIVE.
func (s Status) IsOpen() bool {
	return s == StatusPending || s == StatusActive
}

// EventKind identifies a threshold crossing.
type EventKind string

const (
	EventTP1     EventKind = "TP1"
	EventTP2     EventKind = "TP2"
	EventTP3     EventKind = "TP3"
	EventSL      EventKind = "SL"
	EventExpired EventKind = "EXPIRED"
)

// AllEventKinds lists every event kind in evaluation order.
var AllEventKinds = []EventKind{EventTP1, EventTP2, EventTP3, EventSL, EventExpired}

// Closing reports whether the event closes the position.
func (k EventKind) Closing() bool {
	return k == EventTP3 || k == EventSL || k == EventExpired
}

// Quote is a single poll result for one symbol. It is never persisted.
type Quote struct {
	Symbol        string
	Price         float64
	ChangePercent float64
	TradingDate   time.Time
	Source        string
}

// Valid checks the quote carries a usable price.
func (q Quote) Valid() bool {
	if q.Symbol == "" {
		return false
	}
	if math.IsNaN(q.Price) || math.IsInf(q.Price, 0) {
		return false
	}
	return q.Price > 0
}

// HitEvent is emitted by the evaluator the first time a threshold is crossed.
type HitEvent struct {
	SignalID      string    `json:"signal_id"`
	Symbol        string    `json:"symbol"`
	Exchange      string    `json:"exchange"`
	Kind          EventKind `json:"event"`
	Price         float64   `json:"price"`
	ChangePercent float64   `json:"change_percent"`
	At            time.Time `json:"at"`
}

// DisplayStatus is the coarse status code shown to readers of a signal.
type DisplayStatus int

const (
	DisplayNoZone DisplayStatus = iota
	DisplayBuyZone
	DisplayTakeProfit1
	DisplayTakeProfit2
	DisplayTakeProfit3
	DisplayStopLoss
)

func (d DisplayStatus) String() string {
	switch d {
	case DisplayBuyZone:
		return "BUY_ZONE"
	case DisplayTakeProfit1:
		return "TAKE_PROFIT_1"
	case DisplayTakeProfit2:
		return "TAKE_PROFIT_2"
	case DisplayTakeProfit3:
		return "TAKE_PROFIT_3"
	case DisplayStopLoss:
		return "STOP_LOSS"
	default:
		return "NO_ZONE"
	}
}
