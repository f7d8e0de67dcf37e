package paymentgateway

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79"
	stripeclient "github.com/stripe/stripe-go/v79/client"

	errors "github.com/Emolus-Dev/payments/internal"
	"github.com/Emolus-Dev/payments/internal/checkout"
	gatewaymodel "github.com/Emolus-Dev/payments/internal/core/datamodel/gateway"
	"github.com/Emolus-Dev/payments/pkg/logger"
)

// Factory builds one Stripe client per gateway configuration. Credentials
// come from the settings row, never from globals or the environment.
type Factory struct {
	RequestTimeout time.Duration
	logger         *slog.Logger
}

func NewFactory(requestTimeout time.Duration) *Factory {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Factory{RequestTimeout: requestTimeout, logger: lg}
}

// ClientFor implements checkout.ProviderFactory.
func (f *Factory) ClientFor(settings *gatewaymodel.Settings) checkout.ProviderAPI {
	return f.clientForKey(settings.SecretKey)
}

func (f *Factory) clientForKey(secretKey string) *Client {
	sc := &stripeclient.API{}
	sc.Init(secretKey, nil)
	return &Client{
		sc:      sc,
		timeout: f.RequestTimeout,
		logger:  f.logger,
	}
}

// VerifyCredentials implements gateway.CredentialVerifier with a balance
// retrieval, the cheapest authenticated call the API offers.
func (f *Factory) VerifyCredentials(ctx context.Context, secretKey string) error {
	c := f.clientForKey(secretKey)
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	params := &stripe.BalanceParams{}
	params.Context = ctx
	if _, err := c.sc.Balance.Get(params); err != nil {
		c.logger.Error("stripe credential probe failed", "error", err)
		return errors.ErrInvalidCredentials.WithCause(err)
	}
	return nil
}

// Client wraps one authenticated Stripe API handle behind the provider
// surface the checkout flow consumes.
type Client struct {
	sc      *stripeclient.API
	timeout time.Duration
	logger  *slog.Logger
}

func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Client) FindCustomerByEmail(ctx context.Context, email string) (*checkout.Customer, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	params := &stripe.CustomerListParams{Email: stripe.String(email)}
	params.Context = ctx
	params.Limit = stripe.Int64(1)

	iter := c.sc.Customers.List(params)
	for iter.Next() {
		cust := iter.Customer()
		return &checkout.Customer{ID: cust.ID, Email: cust.Email}, nil
	}
	if err := iter.Err(); err != nil {
		return nil, c.mapStripeError(err)
	}
	return nil, nil
}

func (c *Client) CreateCustomer(ctx context.Context, email, name, description string) (*checkout.Customer, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	params := &stripe.CustomerParams{
		Email:       stripe.String(email),
		Name:        stripe.String(name),
		Description: stripe.String(description),
	}
	params.Context = ctx

	cust, err := c.sc.Customers.New(params)
	if err != nil {
		return nil, c.mapStripeError(err)
	}
	return &checkout.Customer{ID: cust.ID, Email: cust.Email}, nil
}

func (c *Client) CreatePaymentMethodFromToken(ctx context.Context, token string) (*checkout.PaymentMethod, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	params := &stripe.PaymentMethodParams{
		Type: stripe.String("card"),
		Card: &stripe.PaymentMethodCardParams{Token: stripe.String(token)},
	}
	params.Context = ctx

	pm, err := c.sc.PaymentMethods.New(params)
	if err != nil {
		return nil, c.mapStripeError(err)
	}
	return &checkout.PaymentMethod{ID: pm.ID}, nil
}

func (c *Client) ListPaymentMethods(ctx context.Context, customerID string) ([]checkout.PaymentMethod, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	params := &stripe.PaymentMethodListParams{
		Customer: stripe.String(customerID),
		Type:     stripe.String("card"),
	}
	params.Context = ctx

	var methods []checkout.PaymentMethod
	iter := c.sc.PaymentMethods.List(params)
	for iter.Next() {
		methods = append(methods, checkout.PaymentMethod{ID: iter.PaymentMethod().ID})
	}
	if err := iter.Err(); err != nil {
		return nil, c.mapStripeError(err)
	}
	return methods, nil
}

func (c *Client) AttachPaymentMethod(ctx context.Context, paymentMethodID, customerID string) error {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	params := &stripe.PaymentMethodAttachParams{Customer: stripe.String(customerID)}
	params.Context = ctx

	if _, err := c.sc.PaymentMethods.Attach(paymentMethodID, params); err != nil {
		return c.mapStripeError(err)
	}
	return nil
}

// CreateIntentCharge runs the two-step path: create a payment intent against
// an attached payment method and confirm it immediately. The nested charge
// is expanded so receipt and capture details ride along in one call.
func (c *Client) CreateIntentCharge(ctx context.Context, p checkout.IntentChargeParams) (*checkout.IntentCharge, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(p.AmountMinor),
		Currency:      stripe.String(strings.ToLower(p.Currency)),
		Customer:      stripe.String(p.CustomerID),
		PaymentMethod: stripe.String(p.PaymentMethodID),
		Confirm:       stripe.Bool(true),
		Description:   stripe.String(p.Description),
		ReceiptEmail:  stripe.String(p.ReceiptEmail),
	}
	params.Context = ctx
	params.AddExpand("latest_charge")
	if p.IdempotencyKey != "" {
		params.IdempotencyKey = stripe.String(p.IdempotencyKey)
	}

	pi, err := c.sc.PaymentIntents.New(params)
	if err != nil {
		return nil, c.mapStripeError(err)
	}
	return intentChargeFromAPI(pi), nil
}

// CreateDirectCharge runs the legacy one-step path against a raw card token.
func (c *Client) CreateDirectCharge(ctx context.Context, p checkout.DirectChargeParams) (*checkout.DirectCharge, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	params := &stripe.ChargeParams{
		Amount:       stripe.Int64(p.AmountMinor),
		Currency:     stripe.String(strings.ToLower(p.Currency)),
		Description:  stripe.String(p.Description),
		ReceiptEmail: stripe.String(p.ReceiptEmail),
	}
	params.Context = ctx
	if err := params.SetSource(p.Token); err != nil {
		return nil, errors.NewValidationError("invalid card token", errors.ErrCodeValidationFailed).WithCause(err)
	}
	if p.IdempotencyKey != "" {
		params.IdempotencyKey = stripe.String(p.IdempotencyKey)
	}

	ch, err := c.sc.Charges.New(params)
	if err != nil {
		return nil, c.mapStripeError(err)
	}
	return directChargeFromAPI(ch), nil
}

// ChargeStatus re-queries one charge by id, accepting either a payment
// intent id or a raw charge id.
func (c *Client) ChargeStatus(ctx context.Context, chargeID string) (bool, string, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	if strings.HasPrefix(chargeID, "pi_") {
		params := &stripe.PaymentIntentParams{}
		params.Context = ctx
		params.AddExpand("latest_charge")
		pi, err := c.sc.PaymentIntents.Get(chargeID, params)
		if err != nil {
			return false, "", c.mapStripeError(err)
		}
		outcome := intentChargeFromAPI(pi)
		return outcome.Succeeded(), outcome.ReceiptLink(), nil
	}

	params := &stripe.ChargeParams{}
	params.Context = ctx
	ch, err := c.sc.Charges.Get(chargeID, params)
	if err != nil {
		return false, "", c.mapStripeError(err)
	}
	outcome := directChargeFromAPI(ch)
	return outcome.Succeeded(), outcome.ReceiptLink(), nil
}

func intentChargeFromAPI(pi *stripe.PaymentIntent) *checkout.IntentCharge {
	out := &checkout.IntentCharge{
		ID:          pi.ID,
		Status:      string(pi.Status),
		AmountMinor: pi.Amount,
	}
	if pi.ReceiptEmail != "" {
		out.ReceiptEmail = pi.ReceiptEmail
	}
	if pi.LastPaymentError != nil {
		out.FailureMessage = pi.LastPaymentError.Msg
	}
	if pi.LatestCharge != nil {
		out.Charge = &checkout.ChargeDetails{
			AmountCapturedMinor: pi.LatestCharge.AmountCaptured,
			AmountRefundedMinor: pi.LatestCharge.AmountRefunded,
			Currency:            string(pi.LatestCharge.Currency),
			ReceiptURL:          pi.LatestCharge.ReceiptURL,
		}
	}
	if pi.LastResponse != nil {
		out.Raw = pi.LastResponse.RawJSON
	}
	return out
}

func directChargeFromAPI(ch *stripe.Charge) *checkout.DirectCharge {
	out := &checkout.DirectCharge{
		ID:                  ch.ID,
		Captured:            ch.Captured,
		AmountMinor:         ch.Amount,
		AmountCapturedMinor: ch.AmountCaptured,
		AmountRefundedMinor: ch.AmountRefunded,
		Currency:            string(ch.Currency),
		ReceiptEmail:        ch.ReceiptEmail,
		ReceiptNumber:       ch.ReceiptNumber,
		ReceiptURL:          ch.ReceiptURL,
		FailureMessage:      ch.FailureMessage,
	}
	if ch.LastResponse != nil {
		out.Raw = ch.LastResponse.RawJSON
	}
	return out
}

// mapStripeError translates library errors into the local error taxonomy so
// stripe-go types never leak past this package.
func (c *Client) mapStripeError(err error) error {
	var stripeErr *stripe.Error
	if stderrors.As(err, &stripeErr) {
		switch stripeErr.Code {
		case stripe.ErrorCodeCardDeclined:
			return errors.ErrCardDeclined.WithCause(err)
		case stripe.ErrorCodeExpiredCard:
			return errors.NewExternalError("card has expired", errors.ErrCodeCardDeclined, err)
		case stripe.ErrorCodeBalanceInsufficient:
			return errors.NewExternalError("insufficient funds", errors.ErrCodeCardDeclined, err)
		}
		if stripeErr.HTTPStatusCode == http.StatusUnauthorized {
			return errors.ErrInvalidCredentials.WithCause(err)
		}
		if stripeErr.HTTPStatusCode >= http.StatusInternalServerError {
			return errors.ErrProviderDown.WithCause(err)
		}
		return errors.NewExternalError(stripeErr.Msg, errors.ErrCodeProviderError, err)
	}
	return errors.NewExternalError("payment provider request failed", errors.ErrCodeProviderError, err)
}
