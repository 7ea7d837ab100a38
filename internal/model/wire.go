package model

import "encoding/json"

// wirePriceLevel mirrors Binance's [price, quantity] string pair, the same
// shape as the teacher's binance.PriceLevel in pkg/exchange/binance/ws_model.go.
type wirePriceLevel [2]string

func (p wirePriceLevel) toLevel() PriceLevel {
	return PriceLevel{Price: p[0], Quantity: p[1]}
}

func toLevels(raw []wirePriceLevel) []PriceLevel {
	out := make([]PriceLevel, len(raw))
	for i, lvl := range raw {
		out[i] = lvl.toLevel()
	}
	return out
}

// wireEventEnvelope is decoded first to recover just the event type, since
// depth-diff and trade frames share a stream but not a schema.
type wireEventEnvelope struct {
	EventType string `json:"e"`
}

// wireDepthUpdate mirrors Binance's differential depth event
// ("depthUpdate"), shaped like the teacher's WSDepthUpdateEvent.
type wireDepthUpdate struct {
	EventType     string           `json:"e"`
	EventTime     int64            `json:"E"`
	Symbol        string           `json:"s"`
	FirstUpdateID int64            `json:"U"`
	FinalUpdateID int64            `json:"u"`
	Bids          []wirePriceLevel `json:"b"`
	Asks          []wirePriceLevel `json:"a"`
}

// wireTrade mirrors Binance's raw trade event ("trade"), shaped like the
// teacher's WSTradeEvent.
type wireTrade struct {
	EventType    string `json:"e"`
	EventTime    int64  `json:"E"`
	Symbol       string `json:"s"`
	TradeID      int64  `json:"t"`
	Price        string `json:"p"`
	Quantity     string `json:"q"`
	IsBuyerMaker bool   `json:"m"`
}

// wireSnapshot mirrors the REST depth-snapshot response.
type wireSnapshot struct {
	LastUpdateID int64            `json:"lastUpdateId"`
	Bids         []wirePriceLevel `json:"bids"`
	Asks         []wirePriceLevel `json:"asks"`
}

// FrameKind discriminates the decoded variant produced by DecodeFrame, so
// that pipeline code switches on a tag instead of inspecting raw JSON
// (spec.md §9, "Dynamic dict payloads → tagged records").
type FrameKind int

const (
	FrameUnknown FrameKind = iota
	FrameDepthUpdate
	FrameTrade
)

// Frame is the tagged-union result of decoding one inbound text frame.
// Exactly one of Depth / Trade is populated, selected by Kind.
type Frame struct {
	Kind  FrameKind
	Depth DepthUpdate
	Trade Trade
}

// DecodeFrame parses a raw inbound text frame and classifies it. Frames
// whose "e" field is neither "depthUpdate" nor "trade" decode to
// FrameUnknown and are silently ignored by callers (spec.md §6, §4.5 step 2,
// §4.6). localTimestamp is the caller-stamped arrival time.
func DecodeFrame(raw []byte, localTimestamp int64) (Frame, error) {
	var envelope wireEventEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return Frame{}, err
	}

	switch envelope.EventType {
	case "depthUpdate":
		var w wireDepthUpdate
		if err := json.Unmarshal(raw, &w); err != nil {
			return Frame{}, err
		}
		return Frame{
			Kind: FrameDepthUpdate,
			Depth: DepthUpdate{
				EventTimestamp: w.EventTime,
				LocalTimestamp: localTimestamp,
				Symbol:         w.Symbol,
				FirstUpdateID:  w.FirstUpdateID,
				LastUpdateID:   w.FinalUpdateID,
				Bids:           toLevels(w.Bids),
				Asks:           toLevels(w.Asks),
			},
		}, nil
	case "trade":
		var w wireTrade
		if err := json.Unmarshal(raw, &w); err != nil {
			return Frame{}, err
		}
		return Frame{
			Kind: FrameTrade,
			Trade: Trade{
				TradeID:        w.TradeID,
				EventTimestamp: w.EventTime,
				LocalTimestamp: localTimestamp,
				Symbol:         w.Symbol,
				Price:          w.Price,
				Quantity:       w.Quantity,
				Side:           AggressorSide(w.IsBuyerMaker),
			},
		}, nil
	default:
		return Frame{Kind: FrameUnknown}, nil
	}
}

// DecodeSnapshot parses a REST depth-snapshot response body.
func DecodeSnapshot(raw []byte) (BookSnapshot, error) {
	var w wireSnapshot
	if err := json.Unmarshal(raw, &w); err != nil {
		return BookSnapshot{}, err
	}
	return BookSnapshot{
		LastUpdateID: w.LastUpdateID,
		Bids:         toLevels(w.Bids),
		Asks:         toLevels(w.Asks),
	}, nil
}
