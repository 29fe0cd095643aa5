package billing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sobersavings/sobersavings/internal/store"
	stripewebhook "github.com/stripe/stripe-go/v82/webhook"
)

const testWebhookSecret = "whsec_test_secret"

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestHandler(t *testing.T, s *store.Store) *WebhookHandler {
	t.Helper()
	return NewWebhookHandler(testWebhookSecret, NewReconciler(s))
}

func signedWebhookRequest(t *testing.T, secret, payload string) *http.Request {
	t.Helper()

	signed := stripewebhook.GenerateTestSignedPayload(&stripewebhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    secret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(signed.Payload))
	req.Header.Set("Stripe-Signature", signed.Header)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func deliver(t *testing.T, h *WebhookHandler, payload string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, signedWebhookRequest(t, testWebhookSecret, payload))
	return rec
}

func checkoutEvent(eventID string, created int64, userID int64, customerID string) string {
	return fmt.Sprintf(`{"id":"%s","object":"event","type":"checkout.session.completed","created":%d,"data":{"object":{"id":"cs_1","mode":"subscription","customer":"%s","subscription":"sub_1","metadata":{"user_id":"%d","product_id":"pro_monthly"}}}}`,
		eventID, created, customerID, userID)
}

func subscriptionEvent(eventID string, created int64, customerID, status string, periodEnd int64) string {
	return fmt.Sprintf(`{"id":"%s","object":"event","type":"customer.subscription.updated","created":%d,"data":{"object":{"id":"sub_1","customer":"%s","status":"%s","items":{"data":[{"current_period_end":%d,"price":{"id":"price_1"}}]}}}}`,
		eventID, created, customerID, status, periodEnd)
}

func TestWebhookRejectsMissingSignature(t *testing.T) {
	h := newTestHandler(t, newTestStore(t))

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d, want=%d", rec.Code, http.StatusBadRequest)
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	h := newTestHandler(t, newTestStore(t))

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Stripe-Signature", "t=123,v1=deadbeef")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d, want=%d", rec.Code, http.StatusBadRequest)
	}
}

func TestWebhookRejectsWhenSecretMissing(t *testing.T) {
	h := NewWebhookHandler("", NewReconciler(newTestStore(t)))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, signedWebhookRequest(t, testWebhookSecret, `{}`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d, want=%d", rec.Code, http.StatusBadRequest)
	}
}

func TestWebhookRejectsNonPost(t *testing.T) {
	h := newTestHandler(t, newTestStore(t))

	req := httptest.NewRequest(http.MethodGet, "/webhook", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status=%d, want=%d", rec.Code, http.StatusMethodNotAllowed)
	}
}

func TestWebhookTestEventShortCircuits(t *testing.T) {
	h := newTestHandler(t, newTestStore(t))

	rec := deliver(t, h, `{"id":"evt_test_webhook","object":"event","type":"checkout.session.completed","created":1700000000,"data":{"object":{}}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d, body=%q", rec.Code, rec.Body.String())
	}
	var resp map[string]bool
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp["verified"] {
		t.Errorf("response = %v, want verified=true", resp)
	}
}

func TestWebhookCheckoutCompletedGrantsPro(t *testing.T) {
	s := newTestStore(t)
	h := newTestHandler(t, s)

	u, err := s.UpsertUserByOpenID("oid-1", "Alice", "alice@example.com")
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}

	rec := deliver(t, h, checkoutEvent("evt_1", 1700000000, u.ID, "cus_1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d, body=%q", rec.Code, rec.Body.String())
	}

	got, _ := s.GetUser(u.ID)
	if !got.IsPro() || got.StripeCustomerID != "cus_1" || got.StripeSubscriptionID != "sub_1" {
		t.Errorf("user after checkout = %+v", got)
	}

	// Redelivery converges on the same state.
	rec = deliver(t, h, checkoutEvent("evt_1", 1700000000, u.ID, "cus_1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("redelivery status=%d", rec.Code)
	}
	again, _ := s.GetUser(u.ID)
	if !again.IsPro() {
		t.Errorf("redelivery changed state: %+v", again)
	}
}

func TestWebhookCheckoutWithoutUserIDIsDropped(t *testing.T) {
	s := newTestStore(t)
	h := newTestHandler(t, s)

	// No user_id metadata: retrying would never succeed, so acknowledge.
	payload := `{"id":"evt_2","object":"event","type":"checkout.session.completed","created":1700000000,"data":{"object":{"id":"cs_2","mode":"subscription","customer":"cus_2","subscription":"sub_2","metadata":{}}}}`
	rec := deliver(t, h, payload)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d, body=%q", rec.Code, rec.Body.String())
	}
}

func TestWebhookSubscriptionLifecycle(t *testing.T) {
	s := newTestStore(t)
	h := newTestHandler(t, s)

	u, err := s.UpsertUserByOpenID("oid-sub", "Bob", "bob@example.com")
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	base := int64(1700000000)
	if rec := deliver(t, h, checkoutEvent("evt_c", base, u.ID, "cus_sub")); rec.Code != http.StatusOK {
		t.Fatalf("checkout status=%d", rec.Code)
	}

	periodEnd := base + 30*24*3600

	// Trial keeps pro.
	rec := deliver(t, h, subscriptionEvent("evt_s1", base+10, "cus_sub", "trialing", periodEnd))
	if rec.Code != http.StatusOK {
		t.Fatalf("trialing status=%d", rec.Code)
	}
	got, _ := s.GetUser(u.ID)
	if !got.IsPro() || got.SubscriptionStatus != "trialing" {
		t.Errorf("after trialing: %+v", got)
	}
	if got.SubscriptionEndDate == nil || got.SubscriptionEndDate.Unix() != periodEnd {
		t.Errorf("period end = %v", got.SubscriptionEndDate)
	}

	// Past due downgrades but keeps the reported period end.
	rec = deliver(t, h, subscriptionEvent("evt_s2", base+20, "cus_sub", "past_due", periodEnd))
	if rec.Code != http.StatusOK {
		t.Fatalf("past_due status=%d", rec.Code)
	}
	got, _ = s.GetUser(u.ID)
	if got.IsPro() || got.SubscriptionStatus != "past_due" {
		t.Errorf("after past_due: %+v", got)
	}
	if got.SubscriptionEndDate == nil || got.SubscriptionEndDate.Unix() != periodEnd {
		t.Errorf("period end after past_due = %v, want %d", got.SubscriptionEndDate, periodEnd)
	}

	// Cancellation stays free.
	rec = deliver(t, h, subscriptionEvent("evt_s3", base+30, "cus_sub", "canceled", 0))
	if rec.Code != http.StatusOK {
		t.Fatalf("canceled status=%d", rec.Code)
	}
	got, _ = s.GetUser(u.ID)
	if got.IsPro() {
		t.Errorf("after canceled: %+v", got)
	}
}

func TestWebhookLapsedStatusKeepsReportedPeriodEnd(t *testing.T) {
	s := newTestStore(t)
	h := newTestHandler(t, s)

	u, err := s.UpsertUserByOpenID("oid-lapse", "Eve", "eve@example.com")
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	base := int64(1700000000)
	if rec := deliver(t, h, checkoutEvent("evt_c", base, u.ID, "cus_lapse")); rec.Code != http.StatusOK {
		t.Fatalf("checkout status=%d", rec.Code)
	}

	// The event reports when the paid period ran out; store it even though
	// the status downgrades the plan.
	periodEnd := base + 14*24*3600
	rec := deliver(t, h, subscriptionEvent("evt_l", base+10, "cus_lapse", "past_due", periodEnd))
	if rec.Code != http.StatusOK {
		t.Fatalf("past_due status=%d, body=%q", rec.Code, rec.Body.String())
	}
	got, _ := s.GetUser(u.ID)
	if got.IsPro() {
		t.Fatalf("past_due should downgrade: %+v", got)
	}
	if got.SubscriptionEndDate == nil || got.SubscriptionEndDate.Unix() != periodEnd {
		t.Errorf("period end = %v, want %d", got.SubscriptionEndDate, periodEnd)
	}
}

func TestWebhookOutOfOrderDeliveryDoesNotResurrectPro(t *testing.T) {
	s := newTestStore(t)
	h := newTestHandler(t, s)

	u, err := s.UpsertUserByOpenID("oid-ooo", "Carol", "carol@example.com")
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	base := int64(1700000000)
	if rec := deliver(t, h, checkoutEvent("evt_c", base, u.ID, "cus_ooo")); rec.Code != http.StatusOK {
		t.Fatalf("checkout status=%d", rec.Code)
	}

	// Newer cancellation arrives first.
	rec := deliver(t, h, subscriptionEvent("evt_new", base+100, "cus_ooo", "canceled", 0))
	if rec.Code != http.StatusOK {
		t.Fatalf("canceled status=%d", rec.Code)
	}

	// The older "active" event arrives late; it must be acknowledged but not applied.
	rec = deliver(t, h, subscriptionEvent("evt_old", base+50, "cus_ooo", "active", base+1000))
	if rec.Code != http.StatusOK {
		t.Fatalf("stale status=%d, body=%q", rec.Code, rec.Body.String())
	}
	got, _ := s.GetUser(u.ID)
	if got.IsPro() || got.SubscriptionStatus != "canceled" {
		t.Errorf("stale event resurrected entitlement: %+v", got)
	}
}

func TestWebhookUnknownCustomerIsDropped(t *testing.T) {
	h := newTestHandler(t, newTestStore(t))

	rec := deliver(t, h, subscriptionEvent("evt_u", 1700000000, "cus_nobody", "active", 0))
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d, body=%q", rec.Code, rec.Body.String())
	}
}

func TestWebhookSubscriptionMissingCustomerRetries(t *testing.T) {
	h := newTestHandler(t, newTestStore(t))

	payload := `{"id":"evt_bad","object":"event","type":"customer.subscription.updated","created":1700000000,"data":{"object":{"id":"sub_x","status":"active"}}}`
	rec := deliver(t, h, payload)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("first delivery status=%d, want=%d", rec.Code, http.StatusInternalServerError)
	}

	// Duplicate delivery must retry processing, not short-circuit as handled.
	rec = deliver(t, h, payload)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("duplicate delivery status=%d, want=%d", rec.Code, http.StatusInternalServerError)
	}
}

func TestWebhookIgnoresUnhandledEventTypes(t *testing.T) {
	h := newTestHandler(t, newTestStore(t))

	rec := deliver(t, h, `{"id":"evt_x","object":"event","type":"charge.refunded","created":1700000000,"data":{"object":{}}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	var resp map[string]bool
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp["received"] {
		t.Errorf("response = %v, want received=true", resp)
	}
}

func TestWebhookInvoicePaidIsInformational(t *testing.T) {
	s := newTestStore(t)
	h := newTestHandler(t, s)

	u, err := s.UpsertUserByOpenID("oid-inv", "Dan", "dan@example.com")
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	base := int64(1700000000)
	if rec := deliver(t, h, checkoutEvent("evt_c", base, u.ID, "cus_inv")); rec.Code != http.StatusOK {
		t.Fatalf("checkout status=%d", rec.Code)
	}
	if rec := deliver(t, h, subscriptionEvent("evt_pd", base+10, "cus_inv", "past_due", 0)); rec.Code != http.StatusOK {
		t.Fatalf("past_due status=%d", rec.Code)
	}

	// Entitlement follows subscription events only; a paid invoice is logged
	// and acknowledged without touching state.
	payload := fmt.Sprintf(`{"id":"evt_inv","object":"event","type":"invoice.paid","created":%d,"data":{"object":{"id":"in_1","customer":"cus_inv","subscription":"sub_1"}}}`, base+20)
	rec := deliver(t, h, payload)
	if rec.Code != http.StatusOK {
		t.Fatalf("invoice.paid status=%d, body=%q", rec.Code, rec.Body.String())
	}
	got, _ := s.GetUser(u.ID)
	if got.IsPro() || got.SubscriptionStatus != "past_due" {
		t.Errorf("invoice.paid mutated entitlement: %+v", got)
	}
}
