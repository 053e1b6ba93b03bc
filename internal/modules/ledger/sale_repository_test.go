package ledger

import (
	"database/sql"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericscottllc/triggergrain/internal/domain"
	tgtesting "github.com/ericscottllc/triggergrain/internal/testing"
)

func newTestSaleRepo(t *testing.T) (*SaleRepository, *sql.DB, func()) {
	t.Helper()
	db, cleanup := tgtesting.NewTestDB(t, "scenario")
	insertScenarioRow(t, db.Conn(), "scn-1")
	return NewSaleRepository(db.Conn(), zerolog.Nop()), db.Conn(), cleanup
}

// insertScenarioRow satisfies the foreign key without pulling in the scenario package
func insertScenarioRow(t *testing.T, db *sql.DB, id string) {
	t.Helper()
	now := time.Now().Unix()
	_, err := db.Exec(`
		INSERT INTO scenarios (id, name, start_date, end_date, production_estimate, status, created_by, created_at, updated_at)
		VALUES (?, 'test', ?, ?, 100000, 'active', 'tester', ?, ?)`,
		id, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).Unix(),
		time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC).Unix(), now, now)
	require.NoError(t, err)
}

func TestSaleRepositoryCreateAndGet(t *testing.T) {
	repo, _, cleanup := newTestSaleRepo(t)
	defer cleanup()

	cash := 12.50
	futures := 12.00
	created, err := repo.Create(domain.VirtualSale{
		ScenarioID:    "scn-1",
		SaleDate:      time.Date(2025, time.February, 10, 0, 0, 0, 0, time.UTC),
		VolumeBushels: 15000,
		PriceType:     domain.PriceTypeManual,
		CashPrice:     &cash,
		FuturesPrice:  &futures,
		CreatedBy:     "tester",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	loaded, err := repo.GetByID(created.ID)
	require.NoError(t, err)
	assert.Equal(t, 15000.0, loaded.VolumeBushels)
	require.NotNil(t, loaded.CashPrice)
	assert.Equal(t, 12.50, *loaded.CashPrice)
	require.NotNil(t, loaded.Basis())
	assert.InDelta(t, 0.50, *loaded.Basis(), 0.0001)
}

func TestSaleRepositoryGetByScenarioOrdersByDate(t *testing.T) {
	repo, _, cleanup := newTestSaleRepo(t)
	defer cleanup()

	price := 12.0
	later := domain.VirtualSale{
		ScenarioID:    "scn-1",
		SaleDate:      time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC),
		VolumeBushels: 5000,
		PriceType:     domain.PriceTypeManual,
		CashPrice:     &price,
		CreatedBy:     "tester",
	}
	earlier := later
	earlier.SaleDate = time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC)

	_, err := repo.Create(later)
	require.NoError(t, err)
	_, err = repo.Create(earlier)
	require.NoError(t, err)

	sales, err := repo.GetByScenario("scn-1")
	require.NoError(t, err)
	require.Len(t, sales, 2)
	assert.True(t, sales[0].SaleDate.Before(sales[1].SaleDate))
}

func TestSaleRepositoryDelete(t *testing.T) {
	repo, _, cleanup := newTestSaleRepo(t)
	defer cleanup()

	price := 12.0
	created, err := repo.Create(domain.VirtualSale{
		ScenarioID:    "scn-1",
		SaleDate:      time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC),
		VolumeBushels: 5000,
		PriceType:     domain.PriceTypeManual,
		CashPrice:     &price,
		CreatedBy:     "tester",
	})
	require.NoError(t, err)

	require.NoError(t, repo.Delete(created.ID))

	_, err = repo.GetByID(created.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSaleRepositoryCascadeDelete(t *testing.T) {
	repo, db, cleanup := newTestSaleRepo(t)
	defer cleanup()

	price := 12.0
	_, err := repo.Create(domain.VirtualSale{
		ScenarioID:    "scn-1",
		SaleDate:      time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC),
		VolumeBushels: 5000,
		PriceType:     domain.PriceTypeManual,
		CashPrice:     &price,
		CreatedBy:     "tester",
	})
	require.NoError(t, err)

	_, err = db.Exec(`DELETE FROM scenarios WHERE id = 'scn-1'`)
	require.NoError(t, err)

	sales, err := repo.GetByScenario("scn-1")
	require.NoError(t, err)
	assert.Empty(t, sales)
}
