package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("not found")

// Shop is an installed store and the offline Admin API token granted at install.
type Shop struct {
	ID                 int64
	ShopDomain         string
	OfflineAccessToken string
	Scopes             string
	InstalledAt        time.Time
	UpdatedAt          time.Time
}

// ShopRepository reads installed shops. This service never writes to it;
// rows are owned by the install flow.
type ShopRepository struct {
	pool *pgxpool.Pool
}

func NewShopRepository(pool *pgxpool.Pool) *ShopRepository {
	return &ShopRepository{pool: pool}
}

// GetByDomain retrieves a shop by its domain from the database
func (r *ShopRepository) GetByDomain(ctx context.Context, shopDomain string) (*Shop, error) {
	const q = `
SELECT id, shop_domain, offline_access_token, scopes, installed_at, updated_at
FROM shops
WHERE shop_domain = $1
LIMIT 1;
`
	var s Shop
	err := r.pool.QueryRow(ctx, q, shopDomain).Scan(
		&s.ID,
		&s.ShopDomain,
		&s.OfflineAccessToken,
		&s.Scopes,
		&s.InstalledAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// AccessToken makes the repository usable as the admin client's token source
func (r *ShopRepository) AccessToken(ctx context.Context, shopDomain string) (string, error) {
	s, err := r.GetByDomain(ctx, shopDomain)
	if err != nil {
		return "", fmt.Errorf("lookup shop %s: %w", shopDomain, err)
	}
	if s.OfflineAccessToken == "" {
		return "", fmt.Errorf("shop %s has no offline access token", shopDomain)
	}
	return s.OfflineAccessToken, nil
}
