package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/venuedesk/go-venue-relay/internal/domain"
	"github.com/venuedesk/go-venue-relay/internal/repo"
)

func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("services_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestOrderService_PlaceOrder_PersistsOrderAndNotifiesStaff(t *testing.T) {
	db := newServiceDB(t)
	ctx := context.Background()
	svc := &OrderService{DB: db}

	for _, chat := range []int64{900, 901} {
		if _, err := repo.RegisterStaffChat(ctx, db, "cafe-1", chat); err != nil {
			t.Fatalf("RegisterStaffChat(%d): %v", chat, err)
		}
	}

	order, err := svc.PlaceOrder(ctx, "cafe-1", 555, "7", []domain.OrderItem{
		{Name: "Flat White", Quantity: 2},
		{Name: "Croissant", Quantity: 1},
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if order.ID == "" || order.VenueID != "cafe-1" || order.GuestChat != 555 || order.TableLabel != "7" {
		t.Fatalf("order fields unexpected: %+v", order)
	}
	if order.BatchSeq < 1 {
		t.Fatalf("expected assigned batch seq, got %d", order.BatchSeq)
	}

	var items []domain.OrderItem
	if err := db.Where("order_id = ?", order.ID).Find(&items).Error; err != nil {
		t.Fatalf("load items: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}

	// One outbox row per registered staff chat, carrying the order summary.
	var msgs []domain.OutboxMessage
	if err := db.Order("chat_id asc").Find(&msgs).Error; err != nil {
		t.Fatalf("load outbox: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 outbox rows, got %d", len(msgs))
	}
	for i, chat := range []int64{900, 901} {
		if msgs[i].ChatID != chat {
			t.Fatalf("outbox row %d chat = %d, want %d", i, msgs[i].ChatID, chat)
		}
		if !strings.Contains(msgs[i].Payload, "Flat White") {
			t.Fatalf("outbox row %d payload missing item: %s", i, msgs[i].Payload)
		}
	}
}

func TestOrderService_PlaceOrder_UnknownVenue_NothingPersisted(t *testing.T) {
	db := newServiceDB(t)
	svc := &OrderService{DB: db}

	_, err := svc.PlaceOrder(context.Background(), "ghost-venue", 555, "", []domain.OrderItem{{Name: "Tea"}})
	if !errors.Is(err, ErrUnknownVenue) {
		t.Fatalf("expected ErrUnknownVenue, got %v", err)
	}

	var orders, msgs int64
	if err := db.Model(&domain.Order{}).Count(&orders).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if err := db.Model(&domain.OutboxMessage{}).Count(&msgs).Error; err != nil {
		t.Fatalf("count outbox: %v", err)
	}
	if orders != 0 || msgs != 0 {
		t.Fatalf("expected rollback, got %d orders and %d outbox rows", orders, msgs)
	}
}

func TestOrderService_PlaceOrder_EmptyOrder(t *testing.T) {
	db := newServiceDB(t)
	svc := &OrderService{DB: db}

	if _, err := svc.PlaceOrder(context.Background(), "cafe-1", 555, "", nil); !errors.Is(err, ErrEmptyOrder) {
		t.Fatalf("expected ErrEmptyOrder, got %v", err)
	}
}

func TestOrderService_RegisterStaffChat(t *testing.T) {
	db := newServiceDB(t)
	ctx := context.Background()
	svc := &OrderService{DB: db}

	rec, err := svc.RegisterStaffChat(ctx, "cafe-1", 900)
	if err != nil {
		t.Fatalf("RegisterStaffChat: %v", err)
	}
	if rec.VenueID != "cafe-1" || rec.ChatID != 900 {
		t.Fatalf("record unexpected: %+v", rec)
	}

	if _, err := svc.RegisterStaffChat(ctx, "cafe-1", 900); !errors.Is(err, ErrDuplicateStaffChat) {
		t.Fatalf("expected ErrDuplicateStaffChat, got %v", err)
	}

	// Same chat may serve another venue.
	if _, err := svc.RegisterStaffChat(ctx, "cafe-2", 900); err != nil {
		t.Fatalf("RegisterStaffChat other venue: %v", err)
	}
}
