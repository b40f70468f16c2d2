package tickets

import (
	"context"
	"fmt"
	"time"

	"ms-checkin/internal/models"
	"ms-checkin/internal/utils"
)

// TicketDBLayer is the store surface the lifecycle service depends on.
type TicketDBLayer interface {
	CreateTicket(ctx context.Context, ticket models.Ticket) error
	GetTicketByID(ctx context.Context, id string) (*models.Ticket, error)
	GetTicketByCode(ctx context.Context, code string) (*models.Ticket, error)
	CancelTicket(ctx context.Context, id string) error
	GetTicketsByUser(ctx context.Context, userID string) ([]models.Ticket, error)
	GetTicketsByEvent(ctx context.Context, eventID string) ([]models.Ticket, error)
	CheckedInCount(ctx context.Context, eventID string) (int, error)
}

type TicketService struct {
	DB TicketDBLayer
}

func NewTicketService(db TicketDBLayer) *TicketService {
	return &TicketService{DB: db}
}

// RegisterIssued records a ticket issued upstream so it becomes redeemable
// here. IDs and codes are filled in when the upstream event lacks them.
func (s *TicketService) RegisterIssued(ctx context.Context, event models.TicketIssuedEvent) error {
	ticket := models.Ticket{
		ID:           event.TicketID,
		EventID:      event.EventID,
		UserID:       event.UserID,
		Code:         event.Code,
		Status:       models.TicketStatusValid,
		PurchaseDate: event.PurchaseDate,
		Price:        event.Price,
	}
	if ticket.ID == "" {
		ticket.ID = utils.GenerateTicketID()
	}
	if ticket.Code == "" {
		ticket.Code = utils.GenerateCheckinCode()
	}
	if ticket.PurchaseDate.IsZero() {
		ticket.PurchaseDate = time.Now()
	}

	if err := s.DB.CreateTicket(ctx, ticket); err != nil {
		return fmt.Errorf("register ticket %s: %w", ticket.ID, err)
	}
	return nil
}

func (s *TicketService) GetTicket(ctx context.Context, id string) (*models.Ticket, error) {
	ticket, err := s.DB.GetTicketByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ticket %s: %w", id, err)
	}
	return ticket, nil
}

func (s *TicketService) CancelTicket(ctx context.Context, id string) error {
	if err := s.DB.CancelTicket(ctx, id); err != nil {
		return fmt.Errorf("cancel ticket %s: %w", id, err)
	}
	return nil
}

func (s *TicketService) GetTicketsByUser(ctx context.Context, userID string) ([]models.Ticket, error) {
	tickets, err := s.DB.GetTicketsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("fetch tickets for user %s: %w", userID, err)
	}
	return tickets, nil
}

func (s *TicketService) GetTicketsByEvent(ctx context.Context, eventID string) ([]models.Ticket, error) {
	tickets, err := s.DB.GetTicketsByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("fetch tickets for event %s: %w", eventID, err)
	}
	return tickets, nil
}

func (s *TicketService) CheckedInCount(ctx context.Context, eventID string) (int, error) {
	count, err := s.DB.CheckedInCount(ctx, eventID)
	if err != nil {
		return 0, fmt.Errorf("checked-in count for event %s: %w", eventID, err)
	}
	return count, nil
}
