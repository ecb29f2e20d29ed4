package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/venuedesk/go-venue-relay/internal/config"
	"github.com/venuedesk/go-venue-relay/internal/domain"
	"github.com/venuedesk/go-venue-relay/internal/inbound"
	"github.com/venuedesk/go-venue-relay/internal/outbox"
	"github.com/venuedesk/go-venue-relay/internal/provider"
	"github.com/venuedesk/go-venue-relay/internal/repo"
	"github.com/venuedesk/go-venue-relay/internal/router"
)

const e2eToken = "e2e-token"

func newRelayEngine(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("httpapi_test_%d.db", time.Now().UnixNano()))
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

	cfg := config.Config{
		APIBasePath: "/api/v1",
		RateRPS:     1000,
		RateBurst:   1000,
		Bot:         config.BotConfig{Token: e2eToken},
	}
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, db, cfg)
	return r, db
}

// sentMessage is one sendMessage call observed by the fake provider.
type sentMessage struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

// newFakeProvider starts an HTTP server speaking the provider envelope and
// records every sendMessage payload it accepts.
func newFakeProvider(t *testing.T) (*provider.HTTPClient, func() []sentMessage) {
	t.Helper()

	var mu sync.Mutex
	var sent []sentMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/sendMessage") {
			t.Errorf("unexpected provider call: %s", r.URL.Path)
		}
		var msg sentMessage
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			t.Errorf("decode provider payload: %v", err)
		}
		mu.Lock()
		sent = append(sent, msg)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"ok":true,"result":{"message_id":1}}`)
	}))
	t.Cleanup(srv.Close)

	snapshot := func() []sentMessage {
		mu.Lock()
		defer mu.Unlock()
		return append([]sentMessage(nil), sent...)
	}
	return provider.NewHTTPClient(srv.URL, e2eToken, 2*time.Second), snapshot
}

func postJSON(t *testing.T, r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func webhookUpdate(t *testing.T, r *gin.Engine, updateID, chatID int64, text string) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"update_id": updateID,
		"message": map[string]any{
			"chat": map[string]any{"id": chatID},
			"text": text,
		},
	})
	if err != nil {
		t.Fatalf("marshal update: %v", err)
	}
	return postJSON(t, r, "/webhook/"+e2eToken, string(raw))
}

// TestEndToEnd_GuestOrderFlow walks the full relay path: staff registration
// over the venue API, guest updates arriving on the webhook, the inbound
// worker routing the dialog, and the outbox worker delivering every reply and
// the staff notification through the provider exactly once, redeliveries
// included.
func TestEndToEnd_GuestOrderFlow(t *testing.T) {
	r, db := newRelayEngine(t)
	client, sentCalls := newFakeProvider(t)
	ctx := context.Background()

	inboundWorker := &inbound.Worker{DB: db, Router: router.NewDialogRouter(db)}
	outboxWorker := &outbox.Worker{DB: db, Client: client}

	// Staff chat 900 watches cafe-9.
	if w := postJSON(t, r, "/api/v1/venues/cafe-9/staff-chats", `{"chat_id":900}`); w.Code != http.StatusCreated {
		t.Fatalf("register staff chat: status %d body %s", w.Code, w.Body)
	}

	// Guest 555 walks the dialog over the webhook.
	for i, text := range []string{"/start cafe-9", "/order", "2x Flat White\nCroissant"} {
		if w := webhookUpdate(t, r, int64(1001+i), 555, text); w.Code != http.StatusOK {
			t.Fatalf("webhook update %d: status %d body %s", 1001+i, w.Code, w.Body)
		}
	}
	// The provider redelivers the last update; it must be absorbed.
	if w := webhookUpdate(t, r, 1003, 555, "2x Flat White\nCroissant"); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"stored":false`) {
		t.Fatalf("redelivery not absorbed: status %d body %s", w.Code, w.Body)
	}

	// One inbound pass claims and routes all three updates in order.
	if n, err := inboundWorker.ProcessOnce(ctx); err != nil || n != 3 {
		t.Fatalf("inbound pass: n=%d err=%v", n, err)
	}

	// The order landed with its items.
	var order domain.Order
	if err := db.Preload("Items").First(&order).Error; err != nil {
		t.Fatalf("load order: %v", err)
	}
	if order.VenueID != "cafe-9" || order.GuestChat != 555 || len(order.Items) != 2 {
		t.Fatalf("order unexpected: %+v", order)
	}

	// Three guest replies plus one staff notification are queued.
	var queued int64
	if err := db.Model(&domain.OutboxMessage{}).Count(&queued).Error; err != nil {
		t.Fatalf("count outbox: %v", err)
	}
	if queued != 4 {
		t.Fatalf("expected 4 queued messages, got %d", queued)
	}

	// One outbox pass delivers everything.
	if n, err := outboxWorker.ProcessOnce(ctx); err != nil || n != 4 {
		t.Fatalf("outbox pass: n=%d err=%v", n, err)
	}
	var pending int64
	if err := db.Model(&domain.OutboxMessage{}).Where("status <> ?", domain.OutboxStatusSent).Count(&pending).Error; err != nil {
		t.Fatalf("count pending: %v", err)
	}
	if pending != 0 {
		t.Fatalf("expected all messages SENT, %d still pending", pending)
	}

	// The provider saw exactly four sends: three to the guest, one to staff.
	calls := sentCalls()
	if len(calls) != 4 {
		t.Fatalf("expected 4 provider calls, got %d: %+v", len(calls), calls)
	}
	var guest, staff int
	for _, c := range calls {
		switch c.ChatID {
		case 555:
			guest++
		case 900:
			staff++
			if !strings.Contains(c.Text, "Flat White") {
				t.Fatalf("staff notification missing items: %q", c.Text)
			}
		default:
			t.Fatalf("unexpected recipient %d", c.ChatID)
		}
	}
	if guest != 3 || staff != 1 {
		t.Fatalf("delivery split unexpected: guest=%d staff=%d", guest, staff)
	}

	// A second pass of either worker moves nothing.
	if n, err := inboundWorker.ProcessOnce(ctx); err != nil || n != 0 {
		t.Fatalf("second inbound pass: n=%d err=%v", n, err)
	}
	if n, err := outboxWorker.ProcessOnce(ctx); err != nil || n != 0 {
		t.Fatalf("second outbox pass: n=%d err=%v", n, err)
	}
	if got := len(sentCalls()); got != 4 {
		t.Fatalf("provider call count grew to %d", got)
	}

	// Ops surface reflects the drained queues.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/ops/stats", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("stats: status %d body %s", w.Code, w.Body)
	}
	body := w.Body.String()
	if !strings.Contains(body, `"PROCESSED":3`) || !strings.Contains(body, `"SENT":4`) {
		t.Fatalf("stats body unexpected: %s", body)
	}
}

func TestRegisterRoutes_HealthAndFallbacks(t *testing.T) {
	r, _ := newRelayEngine(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("health: status %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/nope", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound || !strings.Contains(w.Body.String(), "not_found") {
		t.Fatalf("no-route: status %d body %s", w.Code, w.Body)
	}

	req = httptest.NewRequest(http.MethodDelete, "/health", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("no-method: status %d", w.Code)
	}
}

func TestRegisterRoutes_WrongWebhookToken(t *testing.T) {
	r, db := newRelayEngine(t)

	w := postJSON(t, r, "/webhook/wrong", `{"update_id":1}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	var n int64
	if err := db.Model(&domain.InboundUpdate{}).Count(&n).Error; err != nil {
		t.Fatalf("count updates: %v", err)
	}
	if n != 0 {
		t.Fatalf("unauthorized webhook stored %d rows", n)
	}
}
