package api

import (
	"clarity/internal/models"
	"clarity/internal/structures"
	"clarity/internal/testutil"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// statusClient serves scripted payment polls; every other fetcher is unused.
type statusClient struct {
	ClientInterface
	script []models.Result[PaymentStatus]
	calls  int
}

func (s *statusClient) GetPaymentStatus(_ context.Context, _ string) models.Result[PaymentStatus] {
	i := min(s.calls, len(s.script)-1)
	s.calls++
	return s.script[i]
}

func pending() models.Result[PaymentStatus] {
	return models.Ok(PaymentStatus{State: models.PaymentPending}, 200)
}

func newTestVerifier(client ClientInterface) (*PaymentVerifier, *testutil.Clock) {
	conf := &structures.Config{}
	conf.Payment.PollInterval = 3 * time.Second
	conf.Payment.Timeout = 10 * time.Second
	v := NewPaymentVerifier(conf, client, &testutil.MockLogger{})

	clock := testutil.NewClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	v.SetClock(clock.Now, func(ctx context.Context, d time.Duration) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		clock.Advance(d)
		return nil
	})
	return v, clock
}

func TestPaymentVerifier_Active(t *testing.T) {
	client := &statusClient{script: []models.Result[PaymentStatus]{
		pending(),
		models.Fail[PaymentStatus](502, "bad gateway"),
		models.Ok(PaymentStatus{State: models.PaymentActive, Plan: "yearly"}, 200),
	}}
	v, _ := newTestVerifier(client)

	res := v.Verify(context.Background(), "order-1")
	assert.Equal(t, models.PaymentActive, res.State)
	assert.Equal(t, "yearly", res.Plan)
	assert.Equal(t, 3, res.Attempts)
}

func TestPaymentVerifier_TerminalFailure(t *testing.T) {
	client := &statusClient{script: []models.Result[PaymentStatus]{
		models.Ok(PaymentStatus{State: models.PaymentExpired}, 200),
	}}
	v, _ := newTestVerifier(client)

	res := v.Verify(context.Background(), "order-1")
	assert.Equal(t, models.PaymentExpired, res.State)
	assert.Equal(t, 1, res.Attempts)
}

func TestPaymentVerifier_Timeout(t *testing.T) {
	client := &statusClient{script: []models.Result[PaymentStatus]{pending()}}
	v, clock := newTestVerifier(client)
	start := clock.Now()

	res := v.Verify(context.Background(), "order-1")
	assert.Equal(t, models.PaymentTimeout, res.State)
	assert.Equal(t, 4, res.Attempts)
	assert.Equal(t, 9*time.Second, clock.Now().Sub(start))
}

func TestPaymentVerifier_Cancelled(t *testing.T) {
	client := &statusClient{script: []models.Result[PaymentStatus]{pending()}}
	v, _ := newTestVerifier(client)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := v.Verify(ctx, "order-1")
	assert.Equal(t, models.PaymentCancelled, res.State)
	assert.Equal(t, 0, res.Attempts)
}
