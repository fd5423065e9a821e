package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sofra-app/api/internal/service"
)

// fakeReconciler implements Reconciler and records what it was handed.
type fakeReconciler struct {
	applyFn func(ctx context.Context, event service.GatewayEvent) error
	events  []service.GatewayEvent
}

func (f *fakeReconciler) ApplyGatewayEvent(ctx context.Context, event service.GatewayEvent) error {
	f.events = append(f.events, event)
	if f.applyFn != nil {
		return f.applyFn(ctx, event)
	}
	return nil
}

func TestWebhookPayment_JSONBody(t *testing.T) {
	svc := &fakeReconciler{}
	h := NewWebhookHandler(svc)

	body := `{"obj":{"id":123456,"success":true,"amount_cents":29600,"order":{"id":987}}}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.Payment(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(svc.events) != 1 {
		t.Fatalf("expected one event, got %d", len(svc.events))
	}
	event := svc.events[0]
	if event.TransactionID != "123456" {
		t.Fatalf("expected transaction id 123456, got %q", event.TransactionID)
	}
	if event.GatewayOrderID != "987" {
		t.Fatalf("expected gateway order id 987, got %q", event.GatewayOrderID)
	}
	if !event.Success {
		t.Fatal("expected success flag set")
	}
	if event.AmountCents != 29600 {
		t.Fatalf("expected 29600 cents, got %d", event.AmountCents)
	}
	if string(event.Raw) != body {
		t.Fatal("expected the raw body preserved on the event")
	}
}

func TestWebhookPayment_QueryParams(t *testing.T) {
	svc := &fakeReconciler{}
	h := NewWebhookHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment?id=txn-9&order=gw-5&success=true&amount_cents=5000", nil)
	rec := httptest.NewRecorder()

	h.Payment(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(svc.events) != 1 {
		t.Fatalf("expected one event, got %d", len(svc.events))
	}
	event := svc.events[0]
	if event.TransactionID != "txn-9" || event.GatewayOrderID != "gw-5" || !event.Success || event.AmountCents != 5000 {
		t.Fatalf("unexpected event: %+v", event)
	}
}

func TestWebhookPayment_FormBody(t *testing.T) {
	svc := &fakeReconciler{}
	h := NewWebhookHandler(svc)

	body := "id=txn-3&order=gw-8&success=true&amount_cents=1200"
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	h.Payment(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(svc.events) != 1 {
		t.Fatalf("expected one event, got %d", len(svc.events))
	}
	event := svc.events[0]
	if event.TransactionID != "txn-3" || event.GatewayOrderID != "gw-8" || !event.Success || event.AmountCents != 1200 {
		t.Fatalf("unexpected event: %+v", event)
	}
}

func TestWebhookPayment_FailureFlag(t *testing.T) {
	svc := &fakeReconciler{}
	h := NewWebhookHandler(svc)

	body := `{"obj":{"id":42,"success":false,"amount_cents":100,"order":{"id":7}}}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.Payment(rec, req)

	if len(svc.events) != 1 || svc.events[0].Success {
		t.Fatal("expected a failure event")
	}
}

func TestWebhookPayment_MissingIDsIgnored(t *testing.T) {
	svc := &fakeReconciler{}
	h := NewWebhookHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()

	h.Payment(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("malformed webhooks are still acked with 200, got %d", rec.Code)
	}
	if len(svc.events) != 0 {
		t.Fatal("malformed webhooks must not reach the service")
	}
	if !strings.Contains(rec.Body.String(), "ignored") {
		t.Fatalf("expected ignored status, got %s", rec.Body.String())
	}
}

func TestWebhookPayment_ServiceErrorStillAcks(t *testing.T) {
	svc := &fakeReconciler{
		applyFn: func(ctx context.Context, event service.GatewayEvent) error {
			return errors.New("db down")
		},
	}
	h := NewWebhookHandler(svc)

	body := `{"obj":{"id":1,"success":true,"amount_cents":100,"order":{"id":2}}}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.Payment(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("the gateway retries non-2xx; expected 200, got %d", rec.Code)
	}
}
