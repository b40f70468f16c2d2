package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"ms-checkin/internal/models"
)

var (
	ErrTicketNotFound  = errors.New("ticket not found")
	ErrAlreadyUsed     = errors.New("ticket already used")
	ErrTicketCancelled = errors.New("ticket cancelled")
)

type DB struct {
	Bun *bun.DB
}

func (d *DB) CreateTicket(ctx context.Context, ticket models.Ticket) error {
	_, err := d.Bun.NewInsert().Model(&ticket).Exec(ctx)
	return err
}

func (d *DB) GetTicketByID(ctx context.Context, id string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.NewSelect().
		Model(&ticket).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

// GetTicketByCode resolves a manual-entry code. The lookup is deliberately
// unscoped so the caller can tell "no such ticket" apart from "ticket for a
// different event".
func (d *DB) GetTicketByCode(ctx context.Context, code string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.NewSelect().
		Model(&ticket).
		Where("code = ?", code).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

// RedeemTicket performs the one atomic valid->used transition. The status
// predicate lives inside the UPDATE, so two scanners racing on the same
// ticket resolve in the database: exactly one sees an affected row. Zero
// affected rows are classified with a follow-up read.
func (d *DB) RedeemTicket(ctx context.Context, id string, at time.Time) (*models.Ticket, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("status = ?", models.TicketStatusUsed).
		Set("validated_at = ?", at).
		Where("id = ?", id).
		Where("status = ?", models.TicketStatusValid).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("redeem ticket %s: %w", id, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		ticket, err := d.GetTicketByID(ctx, id)
		if err != nil {
			return nil, err
		}
		switch ticket.Status {
		case models.TicketStatusUsed:
			return nil, ErrAlreadyUsed
		case models.TicketStatusCancelled:
			return nil, ErrTicketCancelled
		default:
			return nil, fmt.Errorf("redeem ticket %s: unexpected status %q", id, ticket.Status)
		}
	}

	return d.GetTicketByID(ctx, id)
}

// CancelTicket moves a valid ticket to cancelled. Used tickets stay used;
// the transition is conditional for the same reason RedeemTicket is.
func (d *DB) CancelTicket(ctx context.Context, id string) error {
	res, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("status = ?", models.TicketStatusCancelled).
		Where("id = ?", id).
		Where("status = ?", models.TicketStatusValid).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		ticket, err := d.GetTicketByID(ctx, id)
		if err != nil {
			return err
		}
		if ticket.Status == models.TicketStatusUsed {
			return ErrAlreadyUsed
		}
		// already cancelled, nothing to do
	}
	return nil
}

func (d *DB) GetTicketsByUser(ctx context.Context, userID string) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := d.Bun.NewSelect().
		Model(&tickets).
		Where("user_id = ?", userID).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

func (d *DB) GetTicketsByEvent(ctx context.Context, eventID string) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := d.Bun.NewSelect().
		Model(&tickets).
		Where("event_id = ?", eventID).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

// CheckedInCount returns how many tickets for the event have been redeemed.
func (d *DB) CheckedInCount(ctx context.Context, eventID string) (int, error) {
	count, err := d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("event_id = ?", eventID).
		Where("status = ?", models.TicketStatusUsed).
		Count(ctx)
	if err != nil {
		return 0, err
	}
	return count, nil
}
