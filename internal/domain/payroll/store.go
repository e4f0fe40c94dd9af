package payroll

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	cryptoutil "hrpay/internal/platform/crypto"
)

const pgUniqueViolation = "23505"

// Store is the Postgres implementation of StoreAPI.
type Store struct {
	DB     *pgxpool.Pool
	Crypto *cryptoutil.Service
}

func NewStore(db *pgxpool.Pool, crypto *cryptoutil.Service) *Store {
	return &Store{DB: db, Crypto: crypto}
}

var _ StoreAPI = (*Store)(nil)

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

var errSalaryKeyMissing = errors.New("salary is encrypted but DATA_ENCRYPTION_KEY is not set")

// decryptSalary prefers the encrypted column and falls back to the plain one.
// Only an employee with neither column set has a zero salary.
func decryptSalary(crypto *cryptoutil.Service, encrypted []byte, plain *string) (decimal.Decimal, error) {
	if len(encrypted) > 0 {
		if !crypto.Configured() {
			return decimal.Zero, errSalaryKeyMissing
		}
		value, err := crypto.DecryptDecimal(encrypted)
		if err != nil {
			return decimal.Zero, fmt.Errorf("decrypt salary: %w", err)
		}
		return value, nil
	}
	if plain == nil {
		return decimal.Zero, nil
	}
	parsed, err := decimal.NewFromString(*plain)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse salary %q: %w", *plain, err)
	}
	return parsed, nil
}

func nullableInt64(value *int64) any {
	if value == nil {
		return nil
	}
	return *value
}
