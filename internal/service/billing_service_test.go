package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/essaypilot/essaypilot-api/internal/models"
	"github.com/essaypilot/essaypilot-api/internal/repository"
)

type billingRepoStub struct {
	recorded map[string]models.BillingEvent
}

func newBillingRepoStub() *billingRepoStub {
	return &billingRepoStub{recorded: make(map[string]models.BillingEvent)}
}

func (s *billingRepoStub) Record(_ context.Context, event *models.BillingEvent) error {
	if _, exists := s.recorded[event.EventID]; exists {
		return repository.ErrBillingEventExists
	}
	s.recorded[event.EventID] = *event
	return nil
}

func (s *billingRepoStub) Delete(_ context.Context, eventID string) error {
	delete(s.recorded, eventID)
	return nil
}

func newBillingFixture(t *testing.T) (BillingService, *billingRepoStub, *userRepoStub) {
	t.Helper()
	events := newBillingRepoStub()
	users := newUserRepoStub()
	svc, err := NewBillingService(events, NewCreditLedger(users, testLogger()), testLogger())
	require.NoError(t, err)
	return svc, events, users
}

func TestBillingWebhookAddsCredits(t *testing.T) {
	svc, events, users := newBillingFixture(t)

	payload := []byte(`{"event_id":"evt-1","event_type":"checkout.completed","user_id":"u1","credits":3,"reference":"order-42"}`)
	resp, err := svc.ProcessWebhook(context.Background(), payload)
	require.NoError(t, err)
	require.True(t, resp.Processed)
	require.Equal(t, int64(3), users.balances["u1"])
	require.Len(t, events.recorded, 1)

	recorded := events.recorded["evt-1"]
	require.Equal(t, "u1", recorded.UserID, "the event record carries the paying user")
	require.Equal(t, EventTypeCheckoutCompleted, recorded.EventType)
}

func TestBillingWebhookIsIdempotent(t *testing.T) {
	svc, _, users := newBillingFixture(t)

	payload := []byte(`{"event_id":"evt-1","event_type":"checkout.completed","user_id":"u1","credits":3}`)
	_, err := svc.ProcessWebhook(context.Background(), payload)
	require.NoError(t, err)

	resp, err := svc.ProcessWebhook(context.Background(), payload)
	require.NoError(t, err)
	require.False(t, resp.Processed, "replayed delivery is acknowledged but not reapplied")
	require.Equal(t, int64(3), users.balances["u1"])
}

func TestBillingWebhookIgnoresOtherEventTypes(t *testing.T) {
	svc, _, users := newBillingFixture(t)

	payload := []byte(`{"event_id":"evt-2","event_type":"checkout.expired","user_id":"u1","credits":3}`)
	resp, err := svc.ProcessWebhook(context.Background(), payload)
	require.NoError(t, err)
	require.False(t, resp.Processed)
	require.Zero(t, users.balances["u1"])
}

func TestBillingWebhookRejectsMalformedPayload(t *testing.T) {
	svc, _, _ := newBillingFixture(t)

	_, err := svc.ProcessWebhook(context.Background(), []byte(`{"event_type":"checkout.completed"}`))
	require.ErrorIs(t, err, ErrInvalidWebhookPayload)

	_, err = svc.ProcessWebhook(context.Background(), []byte(`not json`))
	require.ErrorIs(t, err, ErrInvalidWebhookPayload)
}
