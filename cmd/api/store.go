package main

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"collateral-lending/internal/adapter/repository/memory"
	"collateral-lending/internal/adapter/repository/sqlstore"
	"collateral-lending/internal/config"
	"collateral-lending/internal/domain/uow"
	"collateral-lending/internal/infrastructure/db"
)

// openLedger builds the unit of work for the configured store; release closes it.
func openLedger(ctx context.Context, cfg *config.Config) (tx uow.UnitOfWork, release func(), err error) {
	var gdb *gorm.DB
	switch cfg.StoreDriver {
	case config.StoreMemory:
		return memory.NewUoW(memory.NewStore()), func() {}, nil
	case config.StoreSQLite:
		gdb, err = db.OpenSQLite(cfg.SQLitePath, logger.Warn)
	case config.StoreMySQL:
		gdb, err = db.OpenGorm(cfg.MySQLDSN(), logger.Warn)
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
	if err != nil {
		return nil, nil, err
	}
	if err := sqlstore.Migrate(ctx, gdb); err != nil {
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, nil, err
	}
	return sqlstore.NewGormUoW(gdb), func() { _ = sqlDB.Close() }, nil
}
