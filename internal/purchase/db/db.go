package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ms-livestream/internal/apperror"
	"ms-livestream/internal/inventory"
	inventorydb "ms-livestream/internal/inventory/db"
	"ms-livestream/internal/models"
	"ms-livestream/internal/purchase"

	"github.com/uptrace/bun"
)

// DB implements both purchase.Repository and purchase.TxRepository.
// Bun is the pool at the top level and the transaction inside WithinTx.
type DB struct {
	Bun bun.IDB
}

var (
	_ purchase.Repository   = (*DB)(nil)
	_ purchase.TxRepository = (*DB)(nil)
)

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, apperror.ErrPurchaseNotFound)
	}
	return err
}

func (d *DB) WithinTx(ctx context.Context, fn func(ctx context.Context, tx purchase.TxRepository) error) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &DB{Bun: tx})
	})
}

func (d *DB) Tickets() inventory.TicketStore {
	return &inventorydb.DB{Bun: d.Bun}
}

func (d *DB) CreatePurchase(ctx context.Context, p *models.Purchase) error {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	_, err := d.Bun.NewInsert().Model(p).Exec(ctx)
	return err
}

func (d *DB) GetPurchaseByID(ctx context.Context, id string) (*models.Purchase, error) {
	var p models.Purchase
	err := d.Bun.NewSelect().
		Model(&p).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, "purchase "+id)
	}
	return &p, nil
}

// GetPurchaseDetails loads the purchase with its ticket, event and artist.
func (d *DB) GetPurchaseDetails(ctx context.Context, id string) (*models.Purchase, error) {
	var p models.Purchase
	err := d.Bun.NewSelect().
		Model(&p).
		Relation("Ticket").
		Relation("Event").
		Relation("Event.Artist").
		Where("purchase.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, "purchase "+id)
	}
	return &p, nil
}

func (d *DB) GetPurchaseBySessionRef(ctx context.Context, sessionRef string) (*models.Purchase, error) {
	var p models.Purchase
	err := d.Bun.NewSelect().
		Model(&p).
		Where("checkout_session_id = ?", sessionRef).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, "checkout session "+sessionRef)
	}
	return &p, nil
}

func (d *DB) GetPurchaseByPaymentRef(ctx context.Context, paymentRef string) (*models.Purchase, error) {
	var p models.Purchase
	err := d.Bun.NewSelect().
		Model(&p).
		Where("payment_ref = ?", paymentRef).
		OrderExpr("created_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, "payment "+paymentRef)
	}
	return &p, nil
}

func (d *DB) ListPurchasesByBuyer(ctx context.Context, buyer models.BuyerIdentity) ([]models.Purchase, error) {
	var purchases []models.Purchase
	err := d.Bun.NewSelect().
		Model(&purchases).
		Relation("Ticket").
		Relation("Event").
		Relation("Event.Artist").
		Where("purchase.status != ?", models.PurchasePending).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			if buyer.UserID != "" {
				q = q.WhereOr("purchase.user_id = ?", buyer.UserID)
			}
			if buyer.Email != "" {
				q = q.WhereOr("purchase.email = ?", buyer.Email)
			}
			return q
		}).
		OrderExpr("purchase.created_at DESC").
		Scan(ctx)
	return purchases, err
}

func (d *DB) MarkCompleted(ctx context.Context, p *models.Purchase) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model(p).
		Column("status", "payment_ref", "email", "access_token", "access_token_expiry", "purchased_at", "updated_at").
		WherePK().
		Where("status = ?", models.PurchasePending).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (d *DB) MarkRefunded(ctx context.Context, p *models.Purchase) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model(p).
		Column("status", "refunded_at", "updated_at").
		WherePK().
		Where("status = ?", models.PurchaseCompleted).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}
