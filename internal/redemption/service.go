package redemption

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ms-checkin/internal/logger"
	"ms-checkin/internal/models"
	"ms-checkin/internal/tickets/db"
	"ms-checkin/internal/token"
)

// Reason is the machine-readable outcome of a redemption attempt. The caller
// must be able to tell "no such ticket" apart from "already redeemed": the
// former is an operator mistake, the latter can be a shared QR.
type Reason string

const (
	ReasonSuccess          Reason = "success"
	ReasonNotFound         Reason = "not_found"
	ReasonWrongEvent       Reason = "wrong_event"
	ReasonAlreadyUsed      Reason = "already_used"
	ReasonCancelled        Reason = "cancelled"
	ReasonExpiredToken     Reason = "expired_token"
	ReasonInvalidSignature Reason = "invalid_signature"
)

var reasonMessages = map[Reason]string{
	ReasonSuccess:          "Ticket checked in.",
	ReasonNotFound:         "No ticket matches this code.",
	ReasonWrongEvent:       "Ticket belongs to a different event.",
	ReasonAlreadyUsed:      "Ticket has already been checked in.",
	ReasonCancelled:        "Ticket was cancelled.",
	ReasonExpiredToken:     "Pass expired. Ask the holder to reopen their ticket.",
	ReasonInvalidSignature: "Pass could not be verified.",
}

// ErrBadAttempt is returned for malformed attempts (both or neither of
// code/token present). It is a caller bug, not a redemption outcome.
var ErrBadAttempt = errors.New("attempt must carry exactly one of code or token")

// Attempt is one scanner submission. Exactly one of Code/Token is set.
type Attempt struct {
	Code       string
	Token      string
	EventID    string
	OperatorID string
}

type Outcome struct {
	Success  bool
	Reason   Reason
	Message  string
	TicketID string
	Ticket   *models.Ticket
}

// TicketStore is the slice of the ticket DB the redemption service needs.
type TicketStore interface {
	GetTicketByID(ctx context.Context, id string) (*models.Ticket, error)
	GetTicketByCode(ctx context.Context, code string) (*models.Ticket, error)
	RedeemTicket(ctx context.Context, id string, at time.Time) (*models.Ticket, error)
}

type TokenVerifier interface {
	Verify(tokenString string) (*token.Claims, error)
}

// Publisher streams successful check-ins downstream. Publish failures never
// fail the redemption; the store transition is the source of truth.
type Publisher interface {
	PublishTicketRedeemed(event models.TicketRedeemedEvent) error
}

type Service struct {
	Store    TicketStore
	Verifier TokenVerifier
	Producer Publisher
	Logger   *logger.Logger
	Now      func() time.Time
}

func NewService(store TicketStore, verifier TokenVerifier, producer Publisher, log *logger.Logger) *Service {
	return &Service{
		Store:    store,
		Verifier: verifier,
		Producer: producer,
		Logger:   log,
		Now:      time.Now,
	}
}

// Redeem resolves the attempt to a ticket and applies the single atomic
// valid->used transition. Token verification happens before any store access;
// the event check happens before the transition so a cross-event credential
// can never consume the ticket.
func (s *Service) Redeem(ctx context.Context, attempt Attempt) (Outcome, error) {
	if (attempt.Code == "") == (attempt.Token == "") {
		return Outcome{}, ErrBadAttempt
	}

	var ticket *models.Ticket

	if attempt.Token != "" {
		claims, err := s.Verifier.Verify(attempt.Token)
		if err != nil {
			if errors.Is(err, token.ErrTokenExpired) {
				return s.failure(ReasonExpiredToken, ""), nil
			}
			return s.failure(ReasonInvalidSignature, ""), nil
		}
		if claims.EventID != attempt.EventID {
			return s.failure(ReasonWrongEvent, claims.TicketID), nil
		}
		ticket, err = s.Store.GetTicketByID(ctx, claims.TicketID)
		if err != nil {
			if errors.Is(err, db.ErrTicketNotFound) {
				return s.failure(ReasonNotFound, claims.TicketID), nil
			}
			return Outcome{}, fmt.Errorf("resolve ticket %s: %w", claims.TicketID, err)
		}
	} else {
		var err error
		ticket, err = s.Store.GetTicketByCode(ctx, attempt.Code)
		if err != nil {
			if errors.Is(err, db.ErrTicketNotFound) {
				return s.failure(ReasonNotFound, ""), nil
			}
			return Outcome{}, fmt.Errorf("resolve code: %w", err)
		}
	}

	if ticket.EventID != attempt.EventID {
		return s.failure(ReasonWrongEvent, ticket.ID), nil
	}

	redeemed, err := s.Store.RedeemTicket(ctx, ticket.ID, s.Now())
	if err != nil {
		switch {
		case errors.Is(err, db.ErrAlreadyUsed):
			return s.failure(ReasonAlreadyUsed, ticket.ID), nil
		case errors.Is(err, db.ErrTicketCancelled):
			return s.failure(ReasonCancelled, ticket.ID), nil
		case errors.Is(err, db.ErrTicketNotFound):
			return s.failure(ReasonNotFound, ticket.ID), nil
		default:
			return Outcome{}, fmt.Errorf("redeem ticket %s: %w", ticket.ID, err)
		}
	}

	s.publishRedeemed(redeemed, attempt.OperatorID)

	if s.Logger != nil {
		s.Logger.LogRedemption(string(ReasonSuccess), redeemed.ID, "ticket checked in")
	}

	return Outcome{
		Success:  true,
		Reason:   ReasonSuccess,
		Message:  reasonMessages[ReasonSuccess],
		TicketID: redeemed.ID,
		Ticket:   redeemed,
	}, nil
}

func (s *Service) failure(reason Reason, ticketID string) Outcome {
	if s.Logger != nil {
		s.Logger.LogRedemption(string(reason), ticketID, reasonMessages[reason])
	}
	return Outcome{
		Success:  false,
		Reason:   reason,
		Message:  reasonMessages[reason],
		TicketID: ticketID,
	}
}

func (s *Service) publishRedeemed(ticket *models.Ticket, operatorID string) {
	if s.Producer == nil {
		return
	}
	validatedAt := time.Time{}
	if ticket.ValidatedAt != nil {
		validatedAt = *ticket.ValidatedAt
	}
	err := s.Producer.PublishTicketRedeemed(models.TicketRedeemedEvent{
		TicketID:    ticket.ID,
		EventID:     ticket.EventID,
		UserID:      ticket.UserID,
		OperatorID:  operatorID,
		ValidatedAt: validatedAt,
	})
	if err != nil && s.Logger != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("Failed to publish redemption for ticket %s: %v", ticket.ID, err))
	}
}
