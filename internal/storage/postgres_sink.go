package storage

import (
	"sync"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/anselumana/binance-etl/internal/model"
)

// depthRow is the gorm model backing the depth_records table, shaped after
// model.DepthRecord with the symbol column added for a shared table across
// all subscriptions.
type depthRow struct {
	ID             uint64 `gorm:"primaryKey;autoIncrement"`
	Symbol         string `gorm:"index:idx_depth_symbol_time"`
	Market         string
	EventTimestamp int64 `gorm:"index:idx_depth_symbol_time"`
	LocalTimestamp int64
	Side           string
	Price          string
	Quantity       string
	IsSnapshot     bool
}

func (depthRow) TableName() string { return "depth_records" }

// tradeRow is the gorm model backing the trade_records table.
type tradeRow struct {
	ID             uint64 `gorm:"primaryKey;autoIncrement"`
	Symbol         string `gorm:"index:idx_trade_symbol_time"`
	Market         string
	EventTimestamp int64 `gorm:"index:idx_trade_symbol_time"`
	LocalTimestamp int64
	TradeID        int64
	Price          string
	Quantity       string
	Side           string
}

func (tradeRow) TableName() string { return "trade_records" }

// PostgresSink is the alternative storage backend described in spec.md
// §6 ("storage.backend: postgres"): depth and trade records for all
// symbols are buffered in memory, one shared buffer per record type with
// the symbol kept as a column, and flushed via gorm's batch CreateInBatches, the same
// buffer-then-bulk-insert shape the CSVSink uses, differing only in the
// write target.
type PostgresSink struct {
	db        *gorm.DB
	batchSize int
	log       zerolog.Logger

	mu        sync.Mutex
	depthRows []depthRow
	tradeRows []tradeRow
}

// PostgresConfig configures the underlying gorm connection.
type PostgresConfig struct {
	DSN       string
	BatchSize int
}

// NewPostgresSink opens a connection described by cfg.DSN and auto-migrates
// the depth_records/trade_records tables.
func NewPostgresSink(cfg PostgresConfig, log zerolog.Logger) (*PostgresSink, error) {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&depthRow{}, &tradeRow{}); err != nil {
		return nil, err
	}

	return &PostgresSink{
		db:        db,
		batchSize: batchSize,
		log:       log,
	}, nil
}

// AddDepthUpdates appends symbol's depth rows to the in-memory buffer,
// flushing once the batch threshold is reached.
func (s *PostgresSink) AddDepthUpdates(symbol, market string, records []model.DepthRecord) error {
	s.mu.Lock()
	for _, r := range records {
		s.depthRows = append(s.depthRows, depthRow{
			Symbol:         symbol,
			Market:         market,
			EventTimestamp: r.EventTimestamp,
			LocalTimestamp: r.LocalTimestamp,
			Side:           string(r.Side),
			Price:          r.Price,
			Quantity:       r.Quantity,
			IsSnapshot:     r.IsSnapshot,
		})
	}
	shouldFlush := len(s.depthRows) >= s.batchSize
	s.mu.Unlock()

	if shouldFlush {
		return s.flushDepth()
	}
	return nil
}

// AddTrades appends symbol's trade rows to the in-memory buffer, flushing
// once the batch threshold is reached.
func (s *PostgresSink) AddTrades(symbol, market string, records []model.TradeRecord) error {
	s.mu.Lock()
	for _, r := range records {
		s.tradeRows = append(s.tradeRows, tradeRow{
			Symbol:         symbol,
			Market:         market,
			EventTimestamp: r.EventTimestamp,
			LocalTimestamp: r.LocalTimestamp,
			TradeID:        r.TradeID,
			Price:          r.Price,
			Quantity:       r.Quantity,
			Side:           string(r.Side),
		})
	}
	shouldFlush := len(s.tradeRows) >= s.batchSize
	s.mu.Unlock()

	if shouldFlush {
		return s.flushTrade()
	}
	return nil
}

func (s *PostgresSink) flushDepth() error {
	s.mu.Lock()
	rows := s.depthRows
	s.depthRows = nil
	s.mu.Unlock()

	if len(rows) == 0 {
		return nil
	}
	if err := s.db.CreateInBatches(rows, s.batchSize).Error; err != nil {
		return err
	}
	s.log.Debug().Int("rows", len(rows)).Msg("flushed depth records to postgres")
	return nil
}

func (s *PostgresSink) flushTrade() error {
	s.mu.Lock()
	rows := s.tradeRows
	s.tradeRows = nil
	s.mu.Unlock()

	if len(rows) == 0 {
		return nil
	}
	if err := s.db.CreateInBatches(rows, s.batchSize).Error; err != nil {
		return err
	}
	s.log.Debug().Int("rows", len(rows)).Msg("flushed trade records to postgres")
	return nil
}

// Flush forces both buffers to write out regardless of batch size.
func (s *PostgresSink) Flush() error {
	if err := s.flushDepth(); err != nil {
		return err
	}
	return s.flushTrade()
}

// Close flushes remaining rows and releases the underlying connection pool.
func (s *PostgresSink) Close() error {
	if err := s.Flush(); err != nil {
		return err
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
