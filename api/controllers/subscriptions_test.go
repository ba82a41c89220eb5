package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/Killerbeez7/print-dungeon-backend/internal/subscriptions"
)

type stubSubscriptionsService struct {
	input  subscriptions.CreateInput
	result *subscriptions.CreateResult
	err    error
}

func (s *stubSubscriptionsService) Create(ctx context.Context, input subscriptions.CreateInput) (*subscriptions.CreateResult, error) {
	s.input = input
	return s.result, s.err
}

func TestSubscriptionsCreateSuccess(t *testing.T) {
	userID := uuid.New()
	svc := &stubSubscriptionsService{
		result: &subscriptions.CreateResult{
			SubscriptionID: "sub_123",
			ClientSecret:   "seti_secret",
		},
	}
	handler := SubscriptionsCreate(svc, nil)

	body := `{"price_id":"price_123"}`
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/api/v1/subscriptions", body, userID))

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d (%s)", resp.Code, resp.Body.String())
	}
	if svc.input.UserID != userID || svc.input.PriceID != "price_123" {
		t.Fatalf("unexpected input: %+v", svc.input)
	}

	var envelope struct {
		Data subscriptions.CreateResult `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.SubscriptionID != "sub_123" {
		t.Fatalf("unexpected subscription id: %s", envelope.Data.SubscriptionID)
	}
}

func TestSubscriptionsCreateMissingPrice(t *testing.T) {
	handler := SubscriptionsCreate(&stubSubscriptionsService{}, nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/api/v1/subscriptions", `{}`, uuid.New()))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d (%s)", resp.Code, resp.Body.String())
	}
}
