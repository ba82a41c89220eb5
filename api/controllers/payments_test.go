package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/Killerbeez7/print-dungeon-backend/api/middleware"
	"github.com/Killerbeez7/print-dungeon-backend/internal/payments"
	pkgerrors "github.com/Killerbeez7/print-dungeon-backend/pkg/errors"
)

type stubPaymentsService struct {
	intentResult *payments.CreateIntentResult
	intentInput  payments.CreateIntentInput
	purchaseID   uuid.UUID
	finalizedID  string
	err          error
}

func (s *stubPaymentsService) CreateIntent(ctx context.Context, input payments.CreateIntentInput) (*payments.CreateIntentResult, error) {
	s.intentInput = input
	return s.intentResult, s.err
}

func (s *stubPaymentsService) FinalizeSuccess(ctx context.Context, buyerID uuid.UUID, stripeIntentID string) (uuid.UUID, error) {
	s.finalizedID = stripeIntentID
	return s.purchaseID, s.err
}

func (s *stubPaymentsService) ListUserPurchases(ctx context.Context, buyerID uuid.UUID) ([]payments.PurchaseDTO, error) {
	return nil, s.err
}

func (s *stubPaymentsService) ListSellerSales(ctx context.Context, sellerID uuid.UUID) ([]payments.SaleDTO, error) {
	return nil, s.err
}

func authedRequest(method, target, body string, userID uuid.UUID) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	return req.WithContext(middleware.WithUserID(req.Context(), userID.String()))
}

func TestPaymentsCreateIntentSuccess(t *testing.T) {
	buyerID := uuid.New()
	modelID := uuid.New()
	svc := &stubPaymentsService{
		intentResult: &payments.CreateIntentResult{
			ClientSecret:    "pi_secret",
			PaymentIntentID: "pi_123",
		},
	}
	handler := PaymentsCreateIntent(svc, nil)

	body := `{"model_id":"` + modelID.String() + `","amount":"19.99","currency":"usd"}`
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/api/v1/payments/intent", body, buyerID))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", resp.Code, resp.Body.String())
	}
	if svc.intentInput.BuyerID != buyerID || svc.intentInput.ModelID != modelID {
		t.Fatalf("unexpected intent input: %+v", svc.intentInput)
	}
	if svc.intentInput.Amount.String() != "19.99" {
		t.Fatalf("unexpected amount: %s", svc.intentInput.Amount)
	}

	var envelope struct {
		Data payments.CreateIntentResult `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.PaymentIntentID != "pi_123" {
		t.Fatalf("unexpected intent id: %s", envelope.Data.PaymentIntentID)
	}
}

func TestPaymentsCreateIntentValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"missing model id", `{"amount":"10.00"}`},
		{"bad model id", `{"model_id":"nope","amount":"10.00"}`},
		{"bad amount", `{"model_id":"` + uuid.NewString() + `","amount":"ten"}`},
		{"bad currency", `{"model_id":"` + uuid.NewString() + `","amount":"10.00","currency":"dollars"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := PaymentsCreateIntent(&stubPaymentsService{}, nil)
			resp := httptest.NewRecorder()
			handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/api/v1/payments/intent", tc.body, uuid.New()))
			if resp.Code != http.StatusBadRequest {
				t.Fatalf("expected 400 got %d (%s)", resp.Code, resp.Body.String())
			}
		})
	}
}

func TestPaymentsCreateIntentMissingAuth(t *testing.T) {
	handler := PaymentsCreateIntent(&stubPaymentsService{}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/intent", strings.NewReader(`{}`))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestPaymentsFinalizeSuccess(t *testing.T) {
	purchaseID := uuid.New()
	svc := &stubPaymentsService{purchaseID: purchaseID}
	handler := PaymentsFinalizeSuccess(svc, nil)

	body := `{"payment_intent_id":"pi_123"}`
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/api/v1/payments/success", body, uuid.New()))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", resp.Code, resp.Body.String())
	}
	if svc.finalizedID != "pi_123" {
		t.Fatalf("unexpected intent id: %s", svc.finalizedID)
	}

	var envelope struct {
		Data struct {
			PurchaseID uuid.UUID `json:"purchase_id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.PurchaseID != purchaseID {
		t.Fatalf("unexpected purchase id: %s", envelope.Data.PurchaseID)
	}
}

func TestPaymentsFinalizePrecondition(t *testing.T) {
	svc := &stubPaymentsService{
		err: pkgerrors.New(pkgerrors.CodePrecondition, "payment has not succeeded"),
	}
	handler := PaymentsFinalizeSuccess(svc, nil)

	body := `{"payment_intent_id":"pi_123"}`
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/api/v1/payments/success", body, uuid.New()))

	if resp.Code != http.StatusPreconditionFailed {
		t.Fatalf("expected 412 got %d (%s)", resp.Code, resp.Body.String())
	}
}
