package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"ms-checkin/internal/models"
)

var (
	ErrTokenExpired     = errors.New("redemption token expired")
	ErrInvalidSignature = errors.New("redemption token signature invalid")
	ErrForbidden        = errors.New("requester may not mint a token for this ticket")
)

// Claims binds a ticket to its event for one short display window. The jti
// nonce makes every mint distinct, so a re-shown pass always carries a fresh
// token.
type Claims struct {
	TicketID string `json:"ticket_id"`
	EventID  string `json:"event_id"`
	jwt.RegisteredClaims
}

// ViewGate is the capability check for minting: the requester must either be
// the holder or be allowed to view the event's tickets.
type ViewGate interface {
	CanView(operator models.Operator, eventID string) bool
}

type Service struct {
	secret []byte
	ttl    time.Duration
	gate   ViewGate
	now    func() time.Time
}

func NewService(secret string, ttl time.Duration, gate ViewGate) *Service {
	return &Service{
		secret: []byte(secret),
		ttl:    ttl,
		gate:   gate,
		now:    time.Now,
	}
}

// Mint issues a signed redemption token for the ticket. The ticket must have
// been resolved by the caller; a missing ticket never reaches this point.
func (s *Service) Mint(ticket *models.Ticket, requester models.Operator) (string, *Claims, error) {
	if requester.ID != ticket.UserID && !s.gate.CanView(requester, ticket.EventID) {
		return "", nil, ErrForbidden
	}

	now := s.now()
	claims := &Claims{
		TicketID: ticket.ID,
		EventID:  ticket.EventID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign redemption token: %w", err)
	}
	return signed, claims, nil
}

// Verify checks signature and expiry and returns the bound ticket/event pair.
// Pure function of the token and the secret: no store access, no network.
func (s *Service) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidSignature
	}
	if claims.TicketID == "" || claims.EventID == "" {
		return nil, ErrInvalidSignature
	}
	return claims, nil
}
