package sqlstore

import (
	"context"

	"gorm.io/gorm"
)

const loanSequence = "loans"

// Migrate creates the ledger tables and seeds the loan id sequence at zero.
func Migrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(
		&loanRecord{}, &sequenceRecord{}, &balanceRecord{}, &transferRecord{}, &eventRecord{},
	); err != nil {
		return err
	}
	seq := sequenceRecord{Name: loanSequence}
	return db.WithContext(ctx).Where(sequenceRecord{Name: loanSequence}).FirstOrCreate(&seq).Error
}
