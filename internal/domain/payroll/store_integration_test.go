package payroll_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrpay/internal/domain/payroll"
	"hrpay/internal/platform/config"
	cryptoutil "hrpay/internal/platform/crypto"
	"hrpay/internal/platform/db"
)

const integrationKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func integrationPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := db.Connect(ctx, config.Config{DatabaseURL: dbURL, PayrollWorkers: 4})
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, db.Migrate(ctx, pool, "../../../migrations"))
	require.NoError(t, db.Seed(ctx, pool))
	return pool
}

func insertEmployee(t *testing.T, pool *pgxpool.Pool, crypto *cryptoutil.Service, salary string) int64 {
	t.Helper()
	sealed, err := crypto.EncryptDecimal(d(salary))
	require.NoError(t, err)
	var id int64
	err = pool.QueryRow(context.Background(), `
    INSERT INTO employees (full_name, salary_enc, is_active)
    VALUES ($1, $2, true)
    RETURNING id
  `, fmt.Sprintf("Integration %d", time.Now().UnixNano()), sealed).Scan(&id)
	require.NoError(t, err)
	return id
}

func TestPostgresStoreGeneratesAndGuardsSlips(t *testing.T) {
	pool := integrationPool(t)
	ctx := context.Background()
	crypto, err := cryptoutil.New(integrationKey)
	require.NoError(t, err)
	store := payroll.NewStore(pool, crypto)
	svc := payroll.NewService(store, payroll.EngineOptions{}, 4)

	employeeID := insertEmployee(t, pool, crypto, "2000")
	var housingID int64
	require.NoError(t, pool.QueryRow(ctx, "SELECT id FROM benefit_types ORDER BY id LIMIT 1").Scan(&housingID))
	_, err = pool.Exec(ctx, `
    INSERT INTO benefit_records (employee_id, benefit_type_id, calculation_type, amount)
    VALUES ($1, $2, 'percentage', '10')
  `, employeeID, housingID)
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created []payroll.SalarySlip
		dups    int
	)
	for range 6 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			slip, err := svc.GenerateSlip(ctx, employeeID, march2024)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				created = append(created, slip)
				return
			}
			if assert.ErrorIs(t, err, payroll.ErrDuplicateSlip) {
				dups++
			}
		}()
	}
	wg.Wait()
	require.Len(t, created, 1)
	assert.Equal(t, 5, dups)

	stored, err := store.GetSlipByReference(ctx, created[0].Reference)
	require.NoError(t, err)
	assert.True(t, stored.BasicSalary.Equal(d("2000")))
	require.Len(t, stored.Benefits, 1)
	assert.True(t, stored.Benefits[0].Amount.Equal(d("200")))
	assert.True(t, stored.TotalEarnings.Equal(d("2200")))
	assert.True(t, stored.NetPayable.Equal(stored.TotalEarnings.Sub(stored.TotalDeductions)))
	assert.True(t, payroll.SumLines(stored.Deductions).Equal(stored.TotalDeductions))

	_, err = svc.Cancel(ctx, stored.ID)
	require.NoError(t, err)
	again, err := svc.GenerateSlip(ctx, employeeID, march2024)
	require.NoError(t, err)
	assert.NotEqual(t, stored.ID, again.ID)

	slips, total, err := svc.ListSlips(ctx, payroll.SlipFilter{EmployeeID: employeeID}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, slips, 2)

	_, err = pool.Exec(ctx, `UPDATE salary_slips SET warnings_json = '{"flag":"negative_net"}' WHERE id = $1`, again.ID)
	require.NoError(t, err)
	_, err = store.GetSlip(ctx, again.ID)
	assert.Error(t, err, "malformed warnings must not read back as a clean slip")
}

func TestPostgresStoreRejectsUnreadableSalary(t *testing.T) {
	pool := integrationPool(t)
	ctx := context.Background()
	crypto, err := cryptoutil.New(integrationKey)
	require.NoError(t, err)
	rotated, err := cryptoutil.New("1f1e1d1c1b1a191817161514131211100f0e0d0c0b0a09080706050403020100")
	require.NoError(t, err)

	employeeID := insertEmployee(t, pool, crypto, "10000")
	svc := payroll.NewService(payroll.NewStore(pool, rotated), payroll.EngineOptions{}, 2)

	_, err = svc.GenerateSlip(ctx, employeeID, march2024)
	require.Error(t, err)
	assert.ErrorIs(t, err, payroll.ErrPersistence)

	slips, total, err := svc.ListSlips(ctx, payroll.SlipFilter{EmployeeID: employeeID}, 10, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, slips)
}
