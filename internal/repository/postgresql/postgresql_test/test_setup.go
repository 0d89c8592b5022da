package postgresql_test

import (
	"context"
	"os"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/staffma/staffma-backend/internal/pkg/database"
	"github.com/staffma/staffma-backend/migrations"
	"github.com/stretchr/testify/require"
)

const testCompanyID = "0190a6a8-0000-7000-8000-000000000001"
const otherCompanyID = "0190a6a8-0000-7000-8000-000000000002"

// newTestDB connects to TEST_DATABASE_URL, applies migrations and clears the
// payroll tables. Tests are skipped when the variable is unset.
func newTestDB(t *testing.T) *database.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	sqlDB, err := goose.OpenDBWithDriver("pgx", dsn)
	require.NoError(t, err)
	goose.SetBaseFS(migrations.FS)
	goose.SetTableName("schema_migrations")
	require.NoError(t, goose.UpContext(t.Context(), sqlDB, "."))
	require.NoError(t, sqlDB.Close())

	db, err := database.NewPostgreSQLDB(t.Context(), dsn, database.PoolOptions{MaxConns: 4})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	truncateAll(t, db)
	return db
}

func truncateAll(t *testing.T, db *database.DB) {
	t.Helper()
	_, err := db.Exec(context.Background(), `
		TRUNCATE TABLE payroll_records, payroll_settings, employee_bank_accounts, employee_wallets, employees CASCADE
	`)
	require.NoError(t, err)
}

type seedEmployee struct {
	code       string
	status     string
	salary     *string
	walletID   *string
	bankNumber *string
	primary    bool
}

func insertEmployee(t *testing.T, db *database.DB, companyID string, e seedEmployee) string {
	t.Helper()
	ctx := context.Background()

	if e.status == "" {
		e.status = "active"
	}

	var id string
	err := db.QueryRow(ctx, `
		INSERT INTO employees (company_id, employee_code, full_name, employment_status, base_salary)
		VALUES ($1, $2, $3, $4, $5::numeric)
		RETURNING id
	`, companyID, e.code, "Employee "+e.code, e.status, e.salary).Scan(&id)
	require.NoError(t, err)

	if e.walletID != nil {
		_, err = db.Exec(ctx, `INSERT INTO employee_wallets (employee_id, wallet_id, phone_number) VALUES ($1, $2, '+254700000000')`, id, *e.walletID)
		require.NoError(t, err)
	}
	if e.bankNumber != nil {
		_, err = db.Exec(ctx, `
			INSERT INTO employee_bank_accounts (employee_id, bank_name, bank_code, account_number, account_holder_name, is_primary)
			VALUES ($1, 'Equity Bank', '68', $2, $3, $4)
		`, id, *e.bankNumber, "Employee "+e.code, e.primary)
		require.NoError(t, err)
	}
	return id
}

func strPtr(s string) *string { return &s }
