package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/nianhua/banquet-reservation/internal/model"
)

// GoodsRepo provides read access to the purchasable catalog.  The
// booking engine only ever reads goods; catalog management is owned
// elsewhere.
type GoodsRepo struct {
	db *sql.DB
}

// NewGoodsRepo returns a GoodsRepo bound to the given database.
func NewGoodsRepo(db *sql.DB) *GoodsRepo { return &GoodsRepo{db: db} }

// GetByIDs loads the goods rows for the given ids in one query.
// Inactive and soft-deleted rows are included so that expiry
// restoration can resolve goods that were retired after a booking was
// made; both surface as Active=false, so callers that create bookings
// must check the Active flag themselves.  Missing ids simply do not
// appear in the result.
func (r *GoodsRepo) GetByIDs(ctx context.Context, ids []uint64) ([]model.Goods, error) {
	if len(ids) == 0 {
		return []model.Goods{}, nil
	}
	placeholders := make([]string, 0, len(ids))
	args := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		placeholders = append(placeholders, "?")
		args = append(args, id)
	}
	query := `SELECT id, name, description, category, price_cents,
	                 COALESCE(zone_consumption, ''), status, is_deleted, created_at, updated_at
	          FROM goods
	          WHERE id IN (` + strings.Join(placeholders, ",") + `)`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var goods []model.Goods
	for rows.Next() {
		var g model.Goods
		var status, deleted int
		if err := rows.Scan(&g.ID, &g.Name, &g.Description, &g.Category, &g.PriceCents,
			&g.ZoneConsumption, &status, &deleted, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		g.Active = status == 1 && deleted == 0
		goods = append(goods, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return goods, nil
}
