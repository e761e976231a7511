package rebalance

import (
	"time"

	"github.com/rustyeddy/levered/risk"
)

// Action is the trade direction of one proposal position.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// QuantityThreshold is the smallest quantity change that is not a HOLD.
const QuantityThreshold = 0.0001

// ProposalPosition is the proposed change to one asset.
type ProposalPosition struct {
	Symbol          string  `json:"symbol"`
	CurrentQuantity float64 `json:"current_quantity"`
	TargetQuantity  float64 `json:"target_quantity"`
	Delta           float64 `json:"delta"`
	Action          Action  `json:"action"`
	CurrentValue    float64 `json:"current_value"`
	TargetValue     float64 `json:"target_value"`
	CurrentWeight   float64 `json:"current_weight"`
	TargetWeight    float64 `json:"target_weight"`
	Price           float64 `json:"price"`
}

// Summary is the portfolio after the proposal is applied.
type Summary struct {
	NewEquity      float64 `json:"new_equity"`
	NewExposure    float64 `json:"new_exposure"`
	NewLeverage    float64 `json:"new_leverage"`
	EquityUsed     float64 `json:"equity_used"`
	BorrowIncrease float64 `json:"borrow_increase"`
}

// Proposal is a computed rebalance. It is never modified after assembly.
type Proposal struct {
	ID          string    `json:"id"`
	PortfolioID string    `json:"portfolio_id"`
	CreatedAt   time.Time `json:"created_at"`
	// BaseVersion is the positions version the proposal was computed from.
	BaseVersion int64 `json:"base_version"`

	State          risk.State          `json:"state"`
	TargetLeverage float64             `json:"target_leverage"`
	TargetExposure float64             `json:"target_exposure"`
	ExposureBranch risk.ExposureBranch `json:"exposure_branch"`
	Signals        risk.Signals        `json:"signals"`

	Positions []ProposalPosition `json:"positions"`
	Summary   Summary            `json:"summary"`

	WeightsUsed            map[string]float64 `json:"weights_used"`
	DynamicWeightsComputed bool               `json:"dynamic_weights_computed"`
}

// PositionUpdate overwrites one persisted position on accept.
type PositionUpdate struct {
	Symbol   string  `json:"symbol"`
	Quantity float64 `json:"quantity"`
	AvgPrice float64 `json:"avg_price"`
	Exposure float64 `json:"exposure"`
}
