package server

import (
	"context"

	"hrpay/internal/platform/db"
	"hrpay/internal/store/memory"
	"hrpay/internal/store/sqlite"
)

// seedSQLite loads the default catalog into an empty database.
func seedSQLite(ctx context.Context, store *sqlite.Store) error {
	brackets, err := store.ListTaxBrackets(ctx)
	if err != nil || len(brackets) > 0 {
		return err
	}
	for _, item := range db.DefaultBenefitTypes() {
		if _, err := store.AddBenefitType(ctx, item); err != nil {
			return err
		}
	}
	for _, item := range db.DefaultWithholdingTypes() {
		if _, err := store.AddWithholdingType(ctx, item); err != nil {
			return err
		}
	}
	for _, item := range db.DefaultTaxBrackets() {
		if _, err := store.AddTaxBracket(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

func seedMemory(store *memory.Store) {
	for _, item := range db.DefaultBenefitTypes() {
		store.AddBenefitType(item)
	}
	for _, item := range db.DefaultWithholdingTypes() {
		store.AddWithholdingType(item)
	}
	for _, item := range db.DefaultTaxBrackets() {
		store.AddTaxBracket(item)
	}
}
