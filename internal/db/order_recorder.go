// Package db adapts blackholedex's MySQLRecorder — originally a
// gorm-backed mirror of CurrentAssetSnapshot rows — into a best-effort
// audit trail of filled orders. It is a mirror only: the cache package
// never reads back from this store on the hot path. The in-memory cache
// stays authoritative; storage is observational.
package db

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	ftypes "github.com/ChoSanghyuk/intentfiller/pkg/types"
)

// OrderRecord is the database model for one intent-fill attempt, the
// order-domain analogue of blackholedex's AssetSnapshotRecord.
type OrderRecord struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"`
	OrderID     string    `gorm:"type:varchar(66);uniqueIndex;not null;comment:commitment hash hex"`
	SourceChain string    `gorm:"type:varchar(64);not null"`
	DestChain   string    `gorm:"type:varchar(64);not null"`
	Success     bool      `gorm:"not null"`
	TxHash      string    `gorm:"type:varchar(66)"`
	GasUsed     string    `gorm:"type:varchar(78);not null;comment:big.Int as string"`
	StrategyName string   `gorm:"type:varchar(64);not null"`
	Error       string    `gorm:"type:text"`
	RecordedAt  time.Time `gorm:"index;not null"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

func (OrderRecord) TableName() string {
	return "order_fills"
}

// SnapshotRecorder mirrors completed order-fill results into MySQL via GORM,
// the same Open/AutoMigrate/Create lifecycle blackholedex's MySQLRecorder
// used for asset snapshots.
type SnapshotRecorder struct {
	db *gorm.DB
}

// NewSnapshotRecorder dials dsn and migrates the order_fills schema.
// dsn format: "user:password@tcp(host:port)/dbname?charset=utf8mb4&parseTime=True&loc=Local"
func NewSnapshotRecorder(dsn string) (*SnapshotRecorder, error) {
	gdb, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
	})
	if err != nil {
		return nil, fmt.Errorf("connect mysql: %w", err)
	}

	if err := gdb.AutoMigrate(&OrderRecord{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return &SnapshotRecorder{db: gdb}, nil
}

// NewSnapshotRecorderWithDB wraps an already-open GORM connection, for
// tests that set one up against go-sqlmock.
func NewSnapshotRecorderWithDB(gdb *gorm.DB) (*SnapshotRecorder, error) {
	if err := gdb.AutoMigrate(&OrderRecord{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &SnapshotRecorder{db: gdb}, nil
}

// RecordFill mirrors one completed fill attempt. Errors are returned for
// the caller to log, never to block or retry the fill itself — the cache
// already holds the authoritative result.
func (r *SnapshotRecorder) RecordFill(orderID string, order ftypes.Order, result ftypes.ExecutionResult) error {
	errMsg := ""
	if result.Error != nil {
		errMsg = result.Error.Error()
	}

	record := OrderRecord{
		OrderID:      orderID,
		SourceChain:  order.SourceChain,
		DestChain:    order.DestChain,
		Success:      result.Success,
		TxHash:       result.TxHash.Hex(),
		GasUsed:      fmt.Sprintf("%d", result.GasUsed),
		StrategyName: result.StrategyName,
		Error:        errMsg,
		RecordedAt:   time.Now(),
	}

	if err := r.db.Create(&record).Error; err != nil {
		return fmt.Errorf("record fill %s: %w", orderID, err)
	}
	return nil
}

// GetByOrderID looks up the mirrored record for an order, used by
// operator tooling and tests, never by the hot fill path.
func (r *SnapshotRecorder) GetByOrderID(orderID string) (*OrderRecord, error) {
	var record OrderRecord
	if err := r.db.Where("order_id = ?", orderID).First(&record).Error; err != nil {
		return nil, fmt.Errorf("get record %s: %w", orderID, err)
	}
	return &record, nil
}

// CountFills returns the total number of mirrored fill attempts.
func (r *SnapshotRecorder) CountFills() (int64, error) {
	var count int64
	if err := r.db.Model(&OrderRecord{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count fills: %w", err)
	}
	return count, nil
}

// Close closes the underlying connection pool.
func (r *SnapshotRecorder) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("get underlying db: %w", err)
	}
	return sqlDB.Close()
}
