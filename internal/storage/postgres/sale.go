package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/tillpoint/internal/domain/cart"
	"github.com/xenking/tillpoint/internal/domain/customer"
	"github.com/xenking/tillpoint/internal/domain/payment"
	"github.com/xenking/tillpoint/internal/domain/sale"
)

const (
	insertSaleSQL = `INSERT INTO sales
		(id, lines, total, customer_id, customer_name, customer_tier, method, tendered, change, operator_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	getSaleByIDSQL = `SELECT id, lines, total, customer_id, customer_name, customer_tier,
		method, tendered, change, operator_id, created_at
		FROM sales WHERE id = $1`
)

var (
	_ sale.Sink    = (*SaleRepository)(nil)
	_ sale.Archive = (*SaleRepository)(nil)
)

// SaleRepository implements sale.Sink and sale.Archive backed by PostgreSQL.
// Line snapshots are serialized to a JSONB column.
type SaleRepository struct {
	pool *pgxpool.Pool
}

// NewSaleRepository returns a SaleRepository that uses the given pool.
func NewSaleRepository(pool *pgxpool.Pool) *SaleRepository {
	return &SaleRepository{pool: pool}
}

// Record persists a finalized sale.
func (r *SaleRepository) Record(ctx context.Context, s *sale.Sale) error {
	linesJSON, err := json.Marshal(s.Lines)
	if err != nil {
		return fmt.Errorf("marshaling sale lines: %w", err)
	}

	_, err = r.pool.Exec(ctx, insertSaleSQL,
		s.ID, linesJSON, s.Total,
		s.Customer.ID, s.Customer.Name, s.Customer.Tier,
		string(s.Method), s.Tendered, s.Change,
		s.OperatorID, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("recording sale %q: %w", s.ID, err)
	}

	return nil
}

// GetByID returns a recorded sale by its identifier.
func (r *SaleRepository) GetByID(ctx context.Context, id string) (*sale.Sale, error) {
	rows, err := r.pool.Query(ctx, getSaleByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting sale %q: %w", id, err)
	}

	s, err := pgx.CollectExactlyOneRow(rows, scanSale)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sale.ErrNotFound
		}
		return nil, fmt.Errorf("getting sale %q: %w", id, err)
	}
	return &s, nil
}

func scanSale(row pgx.CollectableRow) (sale.Sale, error) {
	var (
		s         sale.Sale
		linesJSON []byte
		cust      customer.Customer
		method    string
		tendered  decimal.Decimal
		change    decimal.Decimal
		createdAt time.Time
	)

	err := row.Scan(
		&s.ID, &linesJSON, &s.Total,
		&cust.ID, &cust.Name, &cust.Tier,
		&method, &tendered, &change,
		&s.OperatorID, &createdAt,
	)
	if err != nil {
		return sale.Sale{}, err
	}

	var lines []cart.Line
	if err := json.Unmarshal(linesJSON, &lines); err != nil {
		return sale.Sale{}, fmt.Errorf("unmarshaling sale lines: %w", err)
	}

	s.Lines = lines
	s.Customer = cust
	s.Method = payment.Method(method)
	s.Tendered = tendered
	s.Change = change
	s.CreatedAt = createdAt
	return s, nil
}
