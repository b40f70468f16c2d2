package redemption_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-checkin/internal/models"
	"ms-checkin/internal/redemption"
	"ms-checkin/internal/tickets/db"
	"ms-checkin/internal/token"
)

// MockTicketStore implements the store with the same atomic semantics the
// real conditional UPDATE provides: the check-and-set happens under one lock.
type MockTicketStore struct {
	mu          sync.Mutex
	tickets     map[string]*models.Ticket
	failOn      string
	errToReturn error
	redeemCalls int
}

func NewMockTicketStore() *MockTicketStore {
	return &MockTicketStore{tickets: make(map[string]*models.Ticket)}
}

func (m *MockTicketStore) add(ticket models.Ticket) {
	m.tickets[ticket.ID] = &ticket
}

func (m *MockTicketStore) GetTicketByID(ctx context.Context, id string) (*models.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn == "GetTicketByID" {
		return nil, m.errToReturn
	}
	ticket, ok := m.tickets[id]
	if !ok {
		return nil, db.ErrTicketNotFound
	}
	copied := *ticket
	return &copied, nil
}

func (m *MockTicketStore) GetTicketByCode(ctx context.Context, code string) (*models.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn == "GetTicketByCode" {
		return nil, m.errToReturn
	}
	for _, ticket := range m.tickets {
		if ticket.Code == code {
			copied := *ticket
			return &copied, nil
		}
	}
	return nil, db.ErrTicketNotFound
}

func (m *MockTicketStore) RedeemTicket(ctx context.Context, id string, at time.Time) (*models.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.redeemCalls++
	if m.failOn == "RedeemTicket" {
		return nil, m.errToReturn
	}
	ticket, ok := m.tickets[id]
	if !ok {
		return nil, db.ErrTicketNotFound
	}
	switch ticket.Status {
	case models.TicketStatusUsed:
		return nil, db.ErrAlreadyUsed
	case models.TicketStatusCancelled:
		return nil, db.ErrTicketCancelled
	}
	ticket.Status = models.TicketStatusUsed
	ticket.ValidatedAt = &at
	copied := *ticket
	return &copied, nil
}

// StubVerifier resolves tokens from a fixed table.
type StubVerifier struct {
	claims map[string]*token.Claims
	errs   map[string]error
}

func (v *StubVerifier) Verify(tokenString string) (*token.Claims, error) {
	if err, ok := v.errs[tokenString]; ok {
		return nil, err
	}
	if claims, ok := v.claims[tokenString]; ok {
		return claims, nil
	}
	return nil, token.ErrInvalidSignature
}

// RecordingPublisher captures published redemption events.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []models.TicketRedeemedEvent
}

func (p *RecordingPublisher) PublishTicketRedeemed(event models.TicketRedeemedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func setupService() (*redemption.Service, *MockTicketStore, *StubVerifier, *RecordingPublisher) {
	store := NewMockTicketStore()
	store.add(models.Ticket{
		ID:      "T1",
		EventID: "E1",
		UserID:  "U1",
		Code:    "TKT-AAAA-BBBB",
		Status:  models.TicketStatusValid,
	})

	verifier := &StubVerifier{
		claims: map[string]*token.Claims{
			"good-token":        {TicketID: "T1", EventID: "E1"},
			"cross-event-token": {TicketID: "T1", EventID: "E2"},
			"ghost-token":       {TicketID: "missing", EventID: "E1"},
		},
		errs: map[string]error{
			"expired-token": token.ErrTokenExpired,
		},
	}

	publisher := &RecordingPublisher{}
	svc := redemption.NewService(store, verifier, publisher, nil)
	return svc, store, verifier, publisher
}

func TestRedeemByTokenSuccess(t *testing.T) {
	svc, store, _, publisher := setupService()

	outcome, err := svc.Redeem(context.Background(), redemption.Attempt{
		Token:      "good-token",
		EventID:    "E1",
		OperatorID: "staff1",
	})
	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.Equal(t, redemption.ReasonSuccess, outcome.Reason)
	assert.Equal(t, "T1", outcome.TicketID)
	require.NotNil(t, outcome.Ticket)
	assert.Equal(t, models.TicketStatusUsed, outcome.Ticket.Status)

	require.Len(t, publisher.events, 1)
	assert.Equal(t, "T1", publisher.events[0].TicketID)
	assert.Equal(t, "staff1", publisher.events[0].OperatorID)

	stored, err := store.GetTicketByID(context.Background(), "T1")
	require.NoError(t, err)
	assert.Equal(t, models.TicketStatusUsed, stored.Status)
}

func TestRedeemByCodeSuccess(t *testing.T) {
	svc, _, _, _ := setupService()

	outcome, err := svc.Redeem(context.Background(), redemption.Attempt{
		Code:    "TKT-AAAA-BBBB",
		EventID: "E1",
	})
	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.Equal(t, "T1", outcome.TicketID)
}

func TestRedeemFailureReasons(t *testing.T) {
	tests := []struct {
		name    string
		attempt redemption.Attempt
		reason  redemption.Reason
	}{
		{
			name:    "expired token rejected before store access",
			attempt: redemption.Attempt{Token: "expired-token", EventID: "E1"},
			reason:  redemption.ReasonExpiredToken,
		},
		{
			name:    "tampered token rejected before store access",
			attempt: redemption.Attempt{Token: "forged-token", EventID: "E1"},
			reason:  redemption.ReasonInvalidSignature,
		},
		{
			name:    "token bound to another event",
			attempt: redemption.Attempt{Token: "cross-event-token", EventID: "E1"},
			reason:  redemption.ReasonWrongEvent,
		},
		{
			name:    "valid token submitted for the wrong gate",
			attempt: redemption.Attempt{Token: "good-token", EventID: "E2"},
			reason:  redemption.ReasonWrongEvent,
		},
		{
			name:    "token for a ticket that no longer exists",
			attempt: redemption.Attempt{Token: "ghost-token", EventID: "E1"},
			reason:  redemption.ReasonNotFound,
		},
		{
			name:    "unknown code",
			attempt: redemption.Attempt{Code: "TKT-XXXX-YYYY", EventID: "E1"},
			reason:  redemption.ReasonNotFound,
		},
		{
			name:    "code for another event",
			attempt: redemption.Attempt{Code: "TKT-AAAA-BBBB", EventID: "E2"},
			reason:  redemption.ReasonWrongEvent,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, store, _, _ := setupService()

			outcome, err := svc.Redeem(context.Background(), tc.attempt)
			require.NoError(t, err)
			assert.False(t, outcome.Success)
			assert.Equal(t, tc.reason, outcome.Reason)

			// No failure path may consume the ticket.
			stored, err := store.GetTicketByID(context.Background(), "T1")
			require.NoError(t, err)
			assert.Equal(t, models.TicketStatusValid, stored.Status)
		})
	}
}

func TestRedeemCancelledTicket(t *testing.T) {
	svc, store, _, _ := setupService()
	store.tickets["T1"].Status = models.TicketStatusCancelled

	outcome, err := svc.Redeem(context.Background(), redemption.Attempt{
		Token:   "good-token",
		EventID: "E1",
	})
	require.NoError(t, err)
	assert.False(t, outcome.Success)
	assert.Equal(t, redemption.ReasonCancelled, outcome.Reason)
	assert.Equal(t, models.TicketStatusCancelled, store.tickets["T1"].Status)
}

func TestRedeemRescanDoesNotTouchValidatedAt(t *testing.T) {
	svc, store, _, _ := setupService()

	first, err := svc.Redeem(context.Background(), redemption.Attempt{Token: "good-token", EventID: "E1"})
	require.NoError(t, err)
	require.True(t, first.Success)
	firstValidatedAt := *store.tickets["T1"].ValidatedAt

	second, err := svc.Redeem(context.Background(), redemption.Attempt{Token: "good-token", EventID: "E1"})
	require.NoError(t, err)
	assert.False(t, second.Success)
	assert.Equal(t, redemption.ReasonAlreadyUsed, second.Reason)
	assert.Equal(t, firstValidatedAt, *store.tickets["T1"].ValidatedAt)
}

func TestRedeemBadAttempt(t *testing.T) {
	svc, _, _, _ := setupService()

	_, err := svc.Redeem(context.Background(), redemption.Attempt{EventID: "E1"})
	assert.ErrorIs(t, err, redemption.ErrBadAttempt)

	_, err = svc.Redeem(context.Background(), redemption.Attempt{Code: "c", Token: "t", EventID: "E1"})
	assert.ErrorIs(t, err, redemption.ErrBadAttempt)
}

func TestRedeemStoreFailurePropagates(t *testing.T) {
	svc, store, _, _ := setupService()
	store.failOn = "RedeemTicket"
	store.errToReturn = errors.New("connection reset")

	_, err := svc.Redeem(context.Background(), redemption.Attempt{Token: "good-token", EventID: "E1"})
	assert.Error(t, err)
}

// TestConcurrentRedemption is the at-most-once property: N racing scanners,
// exactly one success, the rest already_used.
func TestConcurrentRedemption(t *testing.T) {
	svc, _, _, publisher := setupService()

	const scanners = 25
	outcomes := make([]redemption.Outcome, scanners)
	errs := make([]error, scanners)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < scanners; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			outcomes[i], errs[i] = svc.Redeem(context.Background(), redemption.Attempt{
				Token:      "good-token",
				EventID:    "E1",
				OperatorID: "staff1",
			})
		}(i)
	}
	close(start)
	wg.Wait()

	successes := 0
	alreadyUsed := 0
	for i := 0; i < scanners; i++ {
		require.NoError(t, errs[i])
		if outcomes[i].Success {
			successes++
		} else {
			assert.Equal(t, redemption.ReasonAlreadyUsed, outcomes[i].Reason)
			alreadyUsed++
		}
	}

	assert.Equal(t, 1, successes)
	assert.Equal(t, scanners-1, alreadyUsed)
	assert.Len(t, publisher.events, 1)
}
