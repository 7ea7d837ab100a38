package model

// PriceLevel is a single order-book level as the exchange emits it: a
// decimal price and quantity preserved as strings. Numeric interpretation
// is a consumer's concern, never this package's.
type PriceLevel struct {
	Price    string
	Quantity string
}

// Side identifies which side of the book a level or a trade belongs to.
type Side string

const (
	SideBid Side = "bid"
	SideAsk Side = "ask"
)

// DepthUpdate is a diff from the exchange's depth-diff stream.
type DepthUpdate struct {
	EventTimestamp int64 // ms, exchange-assigned
	LocalTimestamp int64 // ms, local arrival
	Symbol         string
	FirstUpdateID  int64
	LastUpdateID   int64
	Bids           []PriceLevel
	Asks           []PriceLevel
}

// BookSnapshot is a REST-fetched full book.
type BookSnapshot struct {
	LastUpdateID int64
	Bids         []PriceLevel
	Asks         []PriceLevel
}

// FirstUpdateToApply reports whether u is a valid "first update to apply"
// relative to this snapshot: u.FirstUpdateID <= snapshot.LastUpdateID+1 <=
// u.LastUpdateID.
func (s *BookSnapshot) FirstUpdateToApply(u DepthUpdate) bool {
	target := s.LastUpdateID + 1
	return u.FirstUpdateID <= target && target <= u.LastUpdateID
}

// DepthRecord is a flattened, persisted row: one per (price, quantity)
// level touched by either the initial snapshot or a live update.
type DepthRecord struct {
	EventTimestamp int64
	LocalTimestamp int64
	Side           Side
	Price          string
	Quantity       string
	IsSnapshot     bool
}

// FlattenUpdate flattens a DepthUpdate into DepthRecord rows, sorted by
// (EventTimestamp, Side) per spec.md §4.5. EventTimestamp is constant across
// a single update's rows, so this reduces to asks (alphabetically first)
// then bids.
func FlattenUpdate(u DepthUpdate, isSnapshot bool) []DepthRecord {
	rows := make([]DepthRecord, 0, len(u.Bids)+len(u.Asks))
	for _, lvl := range u.Asks {
		rows = append(rows, DepthRecord{
			EventTimestamp: u.EventTimestamp,
			LocalTimestamp: u.LocalTimestamp,
			Side:           SideAsk,
			Price:          lvl.Price,
			Quantity:       lvl.Quantity,
			IsSnapshot:     isSnapshot,
		})
	}
	for _, lvl := range u.Bids {
		rows = append(rows, DepthRecord{
			EventTimestamp: u.EventTimestamp,
			LocalTimestamp: u.LocalTimestamp,
			Side:           SideBid,
			Price:          lvl.Price,
			Quantity:       lvl.Quantity,
			IsSnapshot:     isSnapshot,
		})
	}
	return rows
}

// FlattenSnapshot flattens a BookSnapshot into DepthRecord rows, all
// stamped with the same timestamp and IsSnapshot=true (spec.md §4.5 step 4a).
func FlattenSnapshot(snap BookSnapshot, timestamp int64) []DepthRecord {
	rows := make([]DepthRecord, 0, len(snap.Bids)+len(snap.Asks))
	for _, lvl := range snap.Asks {
		rows = append(rows, DepthRecord{
			EventTimestamp: timestamp,
			LocalTimestamp: timestamp,
			Side:           SideAsk,
			Price:          lvl.Price,
			Quantity:       lvl.Quantity,
			IsSnapshot:     true,
		})
	}
	for _, lvl := range snap.Bids {
		rows = append(rows, DepthRecord{
			EventTimestamp: timestamp,
			LocalTimestamp: timestamp,
			Side:           SideBid,
			Price:          lvl.Price,
			Quantity:       lvl.Quantity,
			IsSnapshot:     true,
		})
	}
	return rows
}
