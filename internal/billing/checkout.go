package billing

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sobersavings/sobersavings/internal/products"
	"github.com/sobersavings/sobersavings/internal/store"
	stripelib "github.com/stripe/stripe-go/v82"
	portalsession "github.com/stripe/stripe-go/v82/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
)

var (
	// ErrUnknownProduct is returned for a checkout request naming a product
	// that is not in the catalog.
	ErrUnknownProduct = errors.New("unknown product")

	// ErrNoBillingCustomer is returned for a portal request from a user who
	// has never completed a checkout.
	ErrNoBillingCustomer = errors.New("no billing customer for user")
)

// SessionIssuer creates Stripe checkout and customer-portal sessions. The
// Stripe calls are held as function fields so tests can stub them out.
type SessionIssuer struct {
	baseURL string

	createCheckoutSession func(params *stripelib.CheckoutSessionParams) (*stripelib.CheckoutSession, error)
	createPortalSession   func(params *stripelib.BillingPortalSessionParams) (*stripelib.BillingPortalSession, error)
}

// NewSessionIssuer creates a SessionIssuer backed by the Stripe API. The key
// is scoped to this issuer's clients rather than set process-wide.
func NewSessionIssuer(apiKey, baseURL string) *SessionIssuer {
	backend := stripelib.GetBackend(stripelib.APIBackend)
	checkout := &checkoutsession.Client{B: backend, Key: apiKey}
	portal := &portalsession.Client{B: backend, Key: apiKey}
	return &SessionIssuer{
		baseURL:               strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		createCheckoutSession: checkout.New,
		createPortalSession:   portal.New,
	}
}

// NewSessionIssuerWithCalls creates a SessionIssuer with explicit Stripe call
// functions, letting tests stub out the API.
func NewSessionIssuerWithCalls(
	baseURL string,
	createCheckout func(params *stripelib.CheckoutSessionParams) (*stripelib.CheckoutSession, error),
	createPortal func(params *stripelib.BillingPortalSessionParams) (*stripelib.BillingPortalSession, error),
) *SessionIssuer {
	return &SessionIssuer{
		baseURL:               strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		createCheckoutSession: createCheckout,
		createPortalSession:   createPortal,
	}
}

// CreateCheckout creates a subscription checkout session for the user and
// product. Returns the hosted checkout URL.
func (si *SessionIssuer) CreateCheckout(user *store.User, productID string) (string, error) {
	product, ok := products.ByID(productID)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownProduct, productID)
	}

	params := &stripelib.CheckoutSessionParams{
		Mode:               stripelib.String(string(stripelib.CheckoutSessionModeSubscription)),
		PaymentMethodTypes: stripelib.StringSlice([]string{"card"}),
		SuccessURL:         stripelib.String(si.baseURL + "/settings?payment=success"),
		CancelURL:          stripelib.String(si.baseURL + "/pricing?payment=cancelled"),
		CustomerEmail:      stripelib.String(user.Email),
		ClientReferenceID:  stripelib.String(strconv.FormatInt(user.ID, 10)),
		LineItems: []*stripelib.CheckoutSessionLineItemParams{
			{
				PriceData: &stripelib.CheckoutSessionLineItemPriceDataParams{
					Currency: stripelib.String(product.Currency),
					ProductData: &stripelib.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripelib.String(product.Name),
						Description: stripelib.String(product.Description),
					},
					UnitAmount: stripelib.Int64(product.PriceAmount),
					Recurring: &stripelib.CheckoutSessionLineItemPriceDataRecurringParams{
						Interval: stripelib.String(string(product.Interval)),
					},
				},
				Quantity: stripelib.Int64(1),
			},
		},
		AllowPromotionCodes: stripelib.Bool(true),
		Metadata: map[string]string{
			"user_id":        strconv.FormatInt(user.ID, 10),
			"customer_email": user.Email,
			"customer_name":  user.Name,
			"product_id":     product.ID,
		},
	}

	session, err := si.createCheckoutSession(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	if session == nil || strings.TrimSpace(session.URL) == "" {
		return "", fmt.Errorf("stripe returned empty checkout URL")
	}
	return strings.TrimSpace(session.URL), nil
}

// CreatePortal creates a customer-portal session for the user's Stripe
// customer. Returns the hosted portal URL.
func (si *SessionIssuer) CreatePortal(user *store.User) (string, error) {
	customerID := strings.TrimSpace(user.StripeCustomerID)
	if customerID == "" {
		return "", ErrNoBillingCustomer
	}
	if !IsSafeStripeID(customerID) {
		return "", fmt.Errorf("invalid stripe customer id: %s", customerID)
	}

	params := &stripelib.BillingPortalSessionParams{
		Customer:  stripelib.String(customerID),
		ReturnURL: stripelib.String(si.baseURL + "/settings"),
	}

	session, err := si.createPortalSession(params)
	if err != nil {
		return "", fmt.Errorf("create portal session: %w", err)
	}
	if session == nil || strings.TrimSpace(session.URL) == "" {
		return "", fmt.Errorf("stripe returned empty portal URL")
	}
	return strings.TrimSpace(session.URL), nil
}
