package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"syntra-floor/internal/database/models"
	"syntra-floor/internal/floor"
	"syntra-floor/internal/ledger"
	"syntra-floor/internal/logger"
)

var ErrArchiveNotFound = errors.New("archived check not found")

// Archiver persists settled checks. Archiving the same check twice replaces
// the earlier record.
type Archiver struct {
	db  *gorm.DB
	log *logger.Logger
	now func() time.Time
}

func NewArchiver(db *gorm.DB, log *logger.Logger) *Archiver {
	return &Archiver{db: db, log: log, now: time.Now}
}

func (a *Archiver) Archive(ctx context.Context, o ledger.Order, tables []floor.Table) error {
	record := ToArchive(o, tables, a.now())

	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.CheckArchive
		err := tx.Where("order_id = ?", o.ID).First(&existing).Error
		switch {
		case err == nil:
			if err := tx.Where("archive_id = ?", existing.ID).Delete(&models.CheckArchiveItem{}).Error; err != nil {
				return err
			}
			if err := tx.Where("archive_id = ?", existing.ID).Delete(&models.CheckArchivePayment{}).Error; err != nil {
				return err
			}
			if err := tx.Delete(&existing).Error; err != nil {
				return err
			}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}
		return tx.Create(&record).Error
	})
	if err != nil {
		return fmt.Errorf("archive check %s: %w", o.ID, err)
	}

	a.log.Info("ARCHIVE", "check archived", "order_id", o.ID, "items", len(record.Items), "paid", record.PaidAmount)
	return nil
}

func (a *Archiver) Find(ctx context.Context, orderID string) (*models.CheckArchive, error) {
	var rec models.CheckArchive
	err := a.db.WithContext(ctx).
		Preload("Items").
		Preload("Payments").
		Where("order_id = ?", orderID).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrArchiveNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// List returns checks archived at or after since, newest first.
func (a *Archiver) List(ctx context.Context, since time.Time, limit int) ([]models.CheckArchive, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var out []models.CheckArchive
	err := a.db.WithContext(ctx).
		Where("archived_at >= ?", since).
		Order("archived_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ToArchive flattens a check and the tables that served it into the archive
// row. Money is stored as fixed two-decimal strings.
func ToArchive(o ledger.Order, tables []floor.Table, at time.Time) models.CheckArchive {
	rec := models.CheckArchive{
		OrderID:     o.ID,
		TableID:     o.ServiceLocationID,
		OrderType:   string(o.OrderType),
		Guests:      int32(o.Guests),
		OrderStatus: string(o.Status),
		CheckStatus: string(o.CheckStatus),
		PaidStatus:  string(o.PaidStatus),
		Subtotal:    o.Subtotal().StringFixed(2),
		PaidAmount:  o.PaidAmount().StringFixed(2),
		Balance:     o.Balance().StringFixed(2),
		Notes:       strPtr(o.Notes),
		MergedFrom:  models.StringArray(o.MergedFrom),
		MergedInto:  strPtr(o.MergedInto),
		OpenedAt:    o.OpenedAt,
		ClosedAt:    o.ClosedAt,
		ReopenedAt:  o.ReopenedAt,
		ArchivedAt:  at,
	}
	for _, t := range tables {
		rec.TableNames = append(rec.TableNames, t.Name)
	}

	for _, it := range o.Items {
		var custom models.StringArray
		for _, c := range it.Customizations {
			custom = append(custom, c.Name)
		}
		rec.Items = append(rec.Items, models.CheckArchiveItem{
			ItemID:         it.ID,
			MenuItemID:     it.MenuItemID,
			Name:           it.Name,
			Quantity:       int32(it.Quantity),
			PaidQuantity:   int32(it.PaidQuantity),
			ItemStatus:     string(it.Status),
			UnitPrice:      it.UnitPrice().StringFixed(2),
			LineTotal:      it.LineTotal().StringFixed(2),
			Customizations: custom,
			Notes:          strPtr(it.Notes),
			AddedAt:        it.AddedAt,
		})
	}

	for _, p := range o.Payments {
		rec.Payments = append(rec.Payments, models.CheckArchivePayment{
			PaymentID: p.ID,
			Amount:    p.Amount.StringFixed(2),
			Method:    p.Method,
			Reference: strPtr(p.Reference),
			PaidAt:    p.At,
		})
	}
	return rec
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
