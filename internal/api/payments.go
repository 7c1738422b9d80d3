package api

import (
	"clarity/internal/models"
	"clarity/internal/providers"
	"clarity/internal/structures"
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

type PaymentStatus struct {
	State   models.PaymentState `json:"state"`
	Plan    string              `json:"plan,omitempty"`
	Message string              `json:"message,omitempty"`
}

// ParsePaymentState maps the backend's status vocabulary onto the verifier
// states. Anything unrecognised is still pending.
func ParsePaymentState(s string) models.PaymentState {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "active", "success", "succeeded", "paid", "captured", "completed":
		return models.PaymentActive
	case "expired":
		return models.PaymentExpired
	case "failed", "failure", "declined", "cancelled", "canceled":
		return models.PaymentFailed
	}
	return models.PaymentPending
}

func adaptPaymentStatus(raw json.RawMessage) (PaymentStatus, error) {
	obj, err := decodeObject(raw)
	if err != nil {
		return PaymentStatus{}, err
	}
	return PaymentStatus{
		State:   ParsePaymentState(pickString(obj, "status", "paymentStatus", "subscription.status", "state")),
		Plan:    pickString(obj, "plan", "planType", "subscription.plan"),
		Message: pickString(obj, "message"),
	}, nil
}

func (c *Client) GetPaymentStatus(ctx context.Context, orderID string) models.Result[PaymentStatus] {
	return fetch(ctx, c, request{
		method:   http.MethodGet,
		path:     "/v1/payments/" + url.PathEscape(orderID) + "/status",
		endpoint: "payments_status",
	}, adaptPaymentStatus)
}

// PaymentVerifier polls an order's status until it settles.
//
//	pending ──► active | expired | failed      (backend verdict)
//	pending ──► verification_timeout           (timeout elapsed)
//	pending ──► cancelled                      (context done)
//
// Failed polls keep the state at pending; only the timeout ends them.
type PaymentVerifier struct {
	client   ClientInterface
	logger   providers.Logger
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

func NewPaymentVerifier(conf *structures.Config, client ClientInterface, logger providers.Logger) *PaymentVerifier {
	interval := conf.Payment.PollInterval
	if interval <= 0 {
		interval = 3 * time.Second
	}
	timeout := conf.Payment.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &PaymentVerifier{
		client:   client,
		logger:   logger,
		interval: interval,
		timeout:  timeout,
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

// SetClock replaces the time source and the sleep function.
func (v *PaymentVerifier) SetClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) {
	v.now = now
	v.sleep = sleep
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (v *PaymentVerifier) Verify(ctx context.Context, orderID string) models.PaymentVerification {
	result := models.PaymentVerification{OrderID: orderID, State: models.PaymentPending}
	deadline := v.now().Add(v.timeout)

	for {
		if ctx.Err() != nil {
			result.State = models.PaymentCancelled
			result.Message = "verification cancelled"
			return result
		}

		result.Attempts++
		r := v.client.GetPaymentStatus(ctx, orderID)
		if r.Success {
			result.State = r.Data.State
			result.Plan = r.Data.Plan
			result.Message = r.Data.Message
			if result.State.Terminal() {
				v.logger.Infof(providers.TypeApi, "Payment %s settled as %s after %d polls", orderID, result.State, result.Attempts)
				return result
			}
		} else {
			v.logger.Debugf(providers.TypeApi, "Payment %s poll %d failed: %s", orderID, result.Attempts, r.Message)
		}

		if !v.now().Add(v.interval).Before(deadline) {
			result.State = models.PaymentTimeout
			result.Message = "payment verification timed out"
			v.logger.Warnf(providers.TypeApi, "Payment %s not settled after %s", orderID, v.timeout)
			return result
		}
		if err := v.sleep(ctx, v.interval); err != nil {
			result.State = models.PaymentCancelled
			result.Message = "verification cancelled"
			return result
		}
	}
}
