package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sobersavings/sobersavings/internal/auth"
	"github.com/sobersavings/sobersavings/internal/billing"
	"github.com/sobersavings/sobersavings/internal/store"
	stripelib "github.com/stripe/stripe-go/v82"
)

const testGatewaySecret = "gw_test_secret"

func newTestServer(t *testing.T) (*httptest.Server, *Deps) {
	t.Helper()

	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	sessions, err := auth.NewSessionStore(t.TempDir())
	if err != nil {
		t.Fatalf("open session store: %v", err)
	}
	t.Cleanup(sessions.Close)

	issuer := billing.NewSessionIssuerWithCalls("https://app.example.com",
		func(params *stripelib.CheckoutSessionParams) (*stripelib.CheckoutSession, error) {
			return &stripelib.CheckoutSession{URL: "https://checkout.stripe.com/c/pay/cs_test"}, nil
		},
		func(params *stripelib.BillingPortalSessionParams) (*stripelib.BillingPortalSession, error) {
			return &stripelib.BillingPortalSession{URL: "https://billing.stripe.com/p/session/bps_test"}, nil
		},
	)

	deps := &Deps{
		Config: &Config{
			BaseURL:             "https://app.example.com",
			StripeAPIKey:        "sk_test_x",
			StripeWebhookSecret: "whsec_test",
			AuthGatewaySecret:   testGatewaySecret,
		},
		Store:    st,
		Sessions: sessions,
		Issuer:   issuer,
		Version:  "test",
	}

	mux := http.NewServeMux()
	RegisterRoutes(mux, deps)
	srv := httptest.NewServer(securityHeaders(mux))
	t.Cleanup(srv.Close)
	return srv, deps
}

func doJSON(t *testing.T, method, url, token, body string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	data, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, data
}

func login(t *testing.T, srv *httptest.Server, openID string) (string, *store.User) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/auth/login",
		strings.NewReader(fmt.Sprintf(`{"open_id":"%s","name":"Test","email":"%s@example.com"}`, openID, openID)))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(authGatewayHeader, testGatewaySecret)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
	var lr loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return lr.Token, lr.User
}

func TestLoginRejectsBadGatewaySecret(t *testing.T) {
	srv, _ := newTestServer(t)

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/auth/login",
		strings.NewReader(`{"open_id":"oid-1"}`))
	req.Header.Set(authGatewayHeader, "wrong")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestAuthMe(t *testing.T) {
	srv, _ := newTestServer(t)
	token, user := login(t, srv, "oid-me")

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/auth/me", token, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, body)
	}
	var got store.User
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != user.ID || got.Plan != store.PlanFree {
		t.Errorf("me = %+v", got)
	}

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/auth/me", "", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d, want 401", resp.StatusCode)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	srv, _ := newTestServer(t)
	token, _ := login(t, srv, "oid-out")

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/auth/logout", token, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout status = %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/auth/me", token, "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("me after logout = %d, want 401", resp.StatusCode)
	}
}

func TestCheckoutEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	token, _ := login(t, srv, "oid-co")

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/billing/checkout", token, `{"product_id":"pro_monthly"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, body)
	}
	var cr checkoutResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.HasPrefix(cr.URL, "https://checkout.stripe.com/") {
		t.Errorf("url = %q", cr.URL)
	}

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/billing/checkout", token, `{"product_id":"enterprise"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown product status = %d, want 400", resp.StatusCode)
	}
}

func TestPortalRequiresBillingCustomer(t *testing.T) {
	srv, deps := newTestServer(t)
	token, user := login(t, srv, "oid-portal")

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/billing/portal", token, "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("portal without customer = %d, want 400", resp.StatusCode)
	}

	if err := deps.Store.ApplyCheckoutCompleted(user.ID, "cus_p", "sub_p", time.Now()); err != nil {
		t.Fatalf("seed checkout: %v", err)
	}
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/billing/portal", token, "")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("portal status = %d, body = %s", resp.StatusCode, body)
	}
}

func TestSubscriptionEndpointReflectsPlan(t *testing.T) {
	srv, deps := newTestServer(t)
	token, user := login(t, srv, "oid-subx")

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/billing/subscription", token, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var sub subscriptionResponse
	if err := json.Unmarshal(body, &sub); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sub.Plan != store.PlanFree || sub.IsPro || sub.Limits.AICoachEnabled {
		t.Errorf("free subscription = %+v", sub)
	}

	if err := deps.Store.ApplyCheckoutCompleted(user.ID, "cus_s", "sub_s", time.Now()); err != nil {
		t.Fatalf("seed checkout: %v", err)
	}
	_, body = doJSON(t, http.MethodGet, srv.URL+"/api/billing/subscription", token, "")
	if err := json.Unmarshal(body, &sub); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sub.Plan != store.PlanPro || !sub.IsPro || !sub.Limits.AICoachEnabled {
		t.Errorf("pro subscription = %+v", sub)
	}
}

func TestGoalCapForFreePlan(t *testing.T) {
	srv, deps := newTestServer(t)
	token, user := login(t, srv, "oid-goalcap")

	for i := 1; i <= 3; i++ {
		resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/goals", token,
			fmt.Sprintf(`{"title":"Goal %d","target_amount":10000}`, i))
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("goal %d status = %d, body = %s", i, resp.StatusCode, body)
		}
	}

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/goals", token, `{"title":"Goal 4","target_amount":10000}`)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("fourth goal status = %d, want 403", resp.StatusCode)
	}

	// Pro removes the cap.
	if err := deps.Store.ApplyCheckoutCompleted(user.ID, "cus_g", "sub_g", time.Now()); err != nil {
		t.Fatalf("seed checkout: %v", err)
	}
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/goals", token, `{"title":"Goal 4","target_amount":10000}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("pro fourth goal status = %d, want 201", resp.StatusCode)
	}
}

func TestGoalActivateAndDelete(t *testing.T) {
	srv, _ := newTestServer(t)
	token, _ := login(t, srv, "oid-goalops")

	_, body := doJSON(t, http.MethodPost, srv.URL+"/api/goals", token, `{"title":"Trip","target_amount":80000}`)
	var goal store.Goal
	if err := json.Unmarshal(body, &goal); err != nil {
		t.Fatalf("decode goal: %v", err)
	}

	resp, body := doJSON(t, http.MethodPost, srv.URL+fmt.Sprintf("/api/goals/%d/activate", goal.ID), token, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("activate status = %d, body = %s", resp.StatusCode, body)
	}

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+fmt.Sprintf("/api/goals/%d", goal.ID), token, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodDelete, srv.URL+fmt.Sprintf("/api/goals/%d", goal.ID), token, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("delete again status = %d, want 404", resp.StatusCode)
	}
}

func TestSavingsSummary(t *testing.T) {
	srv, _ := newTestServer(t)
	token, _ := login(t, srv, "oid-sav")

	start := time.Now().UTC().AddDate(0, 0, -10).Format(time.RFC3339)
	resp, body := doJSON(t, http.MethodPut, srv.URL+"/api/settings", token,
		fmt.Sprintf(`{"daily_target":1000,"start_date":"%s","currency":"¥"}`, start))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("settings status = %d, body = %s", resp.StatusCode, body)
	}

	if resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/savings/entries", token, `{"amount":500,"note":"skipped a round"}`); resp.StatusCode != http.StatusCreated {
		t.Fatalf("entry status = %d", resp.StatusCode)
	}

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/savings", token, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("summary status = %d", resp.StatusCode)
	}
	var summary savingsSummary
	if err := json.Unmarshal(body, &summary); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if summary.DaysSober != 10 {
		t.Errorf("days sober = %d, want 10", summary.DaysSober)
	}
	if summary.Total != 10*1000+500 {
		t.Errorf("total = %d, want 10500", summary.Total)
	}
}

func TestSavingsEntriesLimit(t *testing.T) {
	srv, _ := newTestServer(t)
	token, _ := login(t, srv, "oid-savlimit")

	for i := 1; i <= 3; i++ {
		date := time.Now().UTC().AddDate(0, 0, -i).Format(time.RFC3339)
		resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/savings/entries", token,
			fmt.Sprintf(`{"amount":%d,"date":"%s"}`, i*100, date))
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("entry %d status = %d", i, resp.StatusCode)
		}
	}

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/savings/entries?limit=2", token, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var entries []store.SavingsEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	if entries[0].Amount != 100 {
		t.Errorf("entries not newest first: %+v", entries)
	}

	// A bogus limit falls back to the default instead of erroring.
	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/savings/entries?limit=bogus", token, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("bogus limit status = %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, &entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("len(entries) = %d, want 3", len(entries))
	}
}

func TestCoachRequiresPro(t *testing.T) {
	srv, deps := newTestServer(t)
	token, user := login(t, srv, "oid-coach")

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/coach/messages", token, `{"content":"hard day"}`)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("free coach status = %d, want 403", resp.StatusCode)
	}

	if err := deps.Store.ApplyCheckoutCompleted(user.ID, "cus_c", "sub_c", time.Now()); err != nil {
		t.Fatalf("seed checkout: %v", err)
	}
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/coach/messages", token, `{"content":"hard day"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("pro coach status = %d, body = %s", resp.StatusCode, body)
	}
	var reply store.CoachMessage
	if err := json.Unmarshal(body, &reply); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if reply.Role != store.CoachRoleAssistant || reply.Content == "" {
		t.Errorf("reply = %+v", reply)
	}

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/coach/messages", token, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	var msgs []store.CoachMessage
	if err := json.Unmarshal(body, &msgs); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(msgs) != 2 {
		t.Errorf("len(msgs) = %d, want 2", len(msgs))
	}
}

func TestProductsEndpointIsPublic(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/products", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var got struct {
		Products     []json.RawMessage `json:"products"`
		FreeFeatures []string          `json:"free_features"`
	}
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Products) != 2 || len(got.FreeFeatures) == 0 {
		t.Errorf("products = %d, free features = %d", len(got.Products), len(got.FreeFeatures))
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz", "/status"} {
		resp, _ := doJSON(t, http.MethodGet, srv.URL+path, "", "")
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s status = %d", path, resp.StatusCode)
		}
	}
}

func TestSecurityHeaders(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/healthz", "", "")
	if got := resp.Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := resp.Header.Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q", got)
	}
}
