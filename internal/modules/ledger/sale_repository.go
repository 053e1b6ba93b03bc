package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ericscottllc/triggergrain/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SaleRepository handles virtual sale database operations
type SaleRepository struct {
	db  *sql.DB // scenario.db
	log zerolog.Logger
}

// NewSaleRepository creates a new sale repository
func NewSaleRepository(db *sql.DB, log zerolog.Logger) *SaleRepository {
	return &SaleRepository{
		db:  db,
		log: log.With().Str("repository", "sale").Logger(),
	}
}

const saleColumns = `id, scenario_id, sale_date, volume_bushels, price_type,
	cash_price, futures_price, grain_entry_id, elevator_id, town_id,
	contract_month, created_by, created_at`

// Create inserts a new virtual sale and returns it with its generated id.
// Sales are immutable once created; there is deliberately no Update.
func (r *SaleRepository) Create(sale domain.VirtualSale) (*domain.VirtualSale, error) {
	sale.ID = uuid.New().String()
	sale.CreatedAt = time.Now().UTC()

	_, err := r.db.Exec(`
		INSERT INTO virtual_sales (`+saleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sale.ID,
		sale.ScenarioID,
		sale.SaleDate.Unix(),
		sale.VolumeBushels,
		string(sale.PriceType),
		sale.CashPrice,
		sale.FuturesPrice,
		sale.GrainEntryID,
		sale.ElevatorID,
		sale.TownID,
		sale.ContractMonth,
		sale.CreatedBy,
		sale.CreatedAt.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert virtual sale: %w", err)
	}

	r.log.Debug().Str("sale_id", sale.ID).Str("scenario_id", sale.ScenarioID).Msg("Virtual sale recorded")
	return &sale, nil
}

// GetByScenario returns all sales for a scenario ordered by sale date
func (r *SaleRepository) GetByScenario(scenarioID string) ([]domain.VirtualSale, error) {
	rows, err := r.db.Query(`
		SELECT `+saleColumns+`
		FROM virtual_sales
		WHERE scenario_id = ?
		ORDER BY sale_date ASC, created_at ASC`,
		scenarioID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query virtual sales: %w", err)
	}
	defer rows.Close()

	var sales []domain.VirtualSale
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan virtual sale: %w", err)
		}
		sales = append(sales, sale)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating virtual sales: %w", err)
	}

	return sales, nil
}

// GetByID returns a single sale, or domain.ErrNotFound
func (r *SaleRepository) GetByID(id string) (*domain.VirtualSale, error) {
	row := r.db.QueryRow(`SELECT `+saleColumns+` FROM virtual_sales WHERE id = ?`, id)

	sale, err := scanSale(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get virtual sale %s: %w", id, err)
	}
	return &sale, nil
}

// Delete removes a sale. Delete + re-add is the documented correction path.
func (r *SaleRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM virtual_sales WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete virtual sale %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}

	r.log.Debug().Str("sale_id", id).Msg("Virtual sale deleted")
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows for shared scan logic
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSale(s scanner) (domain.VirtualSale, error) {
	var sale domain.VirtualSale
	var saleDate, createdAt int64
	var priceType string
	var cashPrice, futuresPrice sql.NullFloat64
	var grainEntryID, elevatorID, townID sql.NullString

	err := s.Scan(
		&sale.ID,
		&sale.ScenarioID,
		&saleDate,
		&sale.VolumeBushels,
		&priceType,
		&cashPrice,
		&futuresPrice,
		&grainEntryID,
		&elevatorID,
		&townID,
		&sale.ContractMonth,
		&sale.CreatedBy,
		&createdAt,
	)
	if err != nil {
		return domain.VirtualSale{}, err
	}

	sale.SaleDate = time.Unix(saleDate, 0).UTC()
	sale.CreatedAt = time.Unix(createdAt, 0).UTC()
	sale.PriceType = domain.PriceType(priceType)
	if cashPrice.Valid {
		sale.CashPrice = &cashPrice.Float64
	}
	if futuresPrice.Valid {
		sale.FuturesPrice = &futuresPrice.Float64
	}
	if grainEntryID.Valid {
		sale.GrainEntryID = &grainEntryID.String
	}
	if elevatorID.Valid {
		sale.ElevatorID = &elevatorID.String
	}
	if townID.Valid {
		sale.TownID = &townID.String
	}

	return sale, nil
}
