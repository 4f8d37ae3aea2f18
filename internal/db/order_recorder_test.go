package db

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ethereum/go-ethereum/common"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	ftypes "github.com/ChoSanghyuk/intentfiller/pkg/types"
)

func TestSnapshotRecorder_RecordFill(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer sqlDB.Close()

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to create gorm DB: %v", err)
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `order_fills`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	recorder := &SnapshotRecorder{db: gormDB}

	order := ftypes.Order{SourceChain: "ethereum", DestChain: "arbitrum"}
	result := ftypes.ExecutionResult{
		Success:      true,
		TxHash:       common.HexToHash("0xabc"),
		GasUsed:      210000,
		StrategyName: "BasicFiller",
		WallTimeMs:   time.Now().UnixMilli(),
	}

	if err := recorder.RecordFill("0xorder1", order, result); err != nil {
		t.Errorf("RecordFill failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestOrderRecord_TableName(t *testing.T) {
	record := OrderRecord{}
	expected := "order_fills"
	if record.TableName() != expected {
		t.Errorf("TableName() = %v, want %v", record.TableName(), expected)
	}
}
