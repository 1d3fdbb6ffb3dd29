package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"collateral-lending/internal/domain/loan"
)

var (
	borrower = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	lender   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
)

// openTestDB opens a private in-memory SQLite database with the ledger schema.
// A single connection keeps every statement on the same in-memory database.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func makeLoan() *loan.Loan {
	return &loan.Loan{
		Borrower:         borrower,
		CollateralAmount: *uint256.MustFromDecimal("10000000000000000000"),
		LoanAmount:       *uint256.MustFromDecimal("5000000000000000000"),
		InterestRate:     10,
		DueDate:          time.Date(2026, 1, 16, 0, 0, 0, 0, time.UTC),
		CreatedAt:        time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}
