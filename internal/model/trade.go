package model

// TradeSide is the aggressor (taker) side of a trade.
type TradeSide string

const (
	TradeSideBuy  TradeSide = "buy"
	TradeSideSell TradeSide = "sell"
)

// Trade is a single exchange trade event.
type Trade struct {
	TradeID        int64
	EventTimestamp int64
	LocalTimestamp int64
	Symbol         string
	Price          string
	Quantity       string
	Side           TradeSide
}

// TradeRecord is the persisted shape of a trade: one row per event.
type TradeRecord struct {
	EventTimestamp int64
	LocalTimestamp int64
	TradeID        int64
	Price          string
	Quantity       string
	Side           TradeSide
}

func (t Trade) ToRecord() TradeRecord {
	return TradeRecord{
		EventTimestamp: t.EventTimestamp,
		LocalTimestamp: t.LocalTimestamp,
		TradeID:        t.TradeID,
		Price:          t.Price,
		Quantity:       t.Quantity,
		Side:           t.Side,
	}
}

// AggressorSide converts Binance's "buyer is market maker" flag into an
// aggressor side: if the buyer is the market maker, the taker sold.
func AggressorSide(buyerIsMarketMaker bool) TradeSide {
	if buyerIsMarketMaker {
		return TradeSideSell
	}
	return TradeSideBuy
}
