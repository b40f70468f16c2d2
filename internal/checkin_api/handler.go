package checkin_api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"ms-checkin/internal/auth"
	"ms-checkin/internal/authz"
	"ms-checkin/internal/logger"
	"ms-checkin/internal/models"
	"ms-checkin/internal/qr"
	"ms-checkin/internal/redemption"
	ticketdb "ms-checkin/internal/tickets/db"
	"ms-checkin/internal/token"
	"ms-checkin/internal/utils"
)

// Redeemer and TicketReader keep the handler testable without the full
// service wiring.
type Redeemer interface {
	Redeem(ctx context.Context, attempt redemption.Attempt) (redemption.Outcome, error)
}

type TicketReader interface {
	GetTicket(ctx context.Context, id string) (*models.Ticket, error)
	CheckedInCount(ctx context.Context, eventID string) (int, error)
}

type TokenMinter interface {
	Mint(ticket *models.Ticket, requester models.Operator) (string, *token.Claims, error)
}

type Handler struct {
	Redemption Redeemer
	Tickets    TicketReader
	Tokens     TokenMinter
	Gate       authz.Gate
	QR         *qr.Generator
	Logger     *logger.Logger
}

type redeemRequest struct {
	Code    string `json:"code,omitempty"`
	Token   string `json:"token,omitempty"`
	EventID string `json:"event_id"`
}

type redeemResponse struct {
	Success  bool   `json:"success"`
	TicketID string `json:"ticket_id,omitempty"`
	Message  string `json:"message"`
	Reason   string `json:"reason,omitempty"`
}

// RedeemTicket handles POST /api/checkin/redeem. Failure reasons ride in the
// body; the HTTP status stays 200 for resolved attempts so scanner clients
// can branch on the structured reason alone.
func (h *Handler) RedeemTicket(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.EventID == "" {
		http.Error(w, "event_id is required", http.StatusBadRequest)
		return
	}

	operator, ok := auth.OperatorFromContext(r.Context())
	if !ok {
		http.Error(w, "operator identity missing", http.StatusUnauthorized)
		return
	}

	outcome, err := h.Redemption.Redeem(r.Context(), redemption.Attempt{
		Code:       strings.TrimSpace(req.Code),
		Token:      strings.TrimSpace(req.Token),
		EventID:    req.EventID,
		OperatorID: operator.ID,
	})
	if err != nil {
		if errors.Is(err, redemption.ErrBadAttempt) {
			http.Error(w, "exactly one of code or token is required", http.StatusBadRequest)
			return
		}
		if h.Logger != nil {
			h.Logger.Error("API", "Redemption failed: "+err.Error())
		}
		http.Error(w, "redemption temporarily unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(redeemResponse{
		Success:  outcome.Success,
		TicketID: outcome.TicketID,
		Message:  outcome.Message,
		Reason:   string(outcome.Reason),
	})
}

type mintResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	QRPNG     string    `json:"qr_png,omitempty"`
}

// MintToken handles POST /api/checkin/tickets/{ticketID}/token. A fresh
// token is minted on every call; the holder's client requests one right
// before display.
func (h *Handler) MintToken(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "ticketID")

	operator, ok := auth.OperatorFromContext(r.Context())
	if !ok {
		http.Error(w, "requester identity missing", http.StatusUnauthorized)
		return
	}

	ticket, err := h.Tickets.GetTicket(r.Context(), ticketID)
	if err != nil {
		if errors.Is(err, ticketdb.ErrTicketNotFound) {
			http.Error(w, "Ticket not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to load ticket: "+err.Error(), http.StatusInternalServerError)
		return
	}

	signed, claims, err := h.Tokens.Mint(ticket, operator)
	if err != nil {
		if errors.Is(err, token.ErrForbidden) {
			if h.Logger != nil {
				h.Logger.LogSecurity("MINT_FORBIDDEN", "operator "+operator.ID+" denied for ticket "+ticketID)
			}
			http.Error(w, "Not allowed to mint a token for this ticket", http.StatusForbidden)
			return
		}
		http.Error(w, "Failed to mint token: "+err.Error(), http.StatusInternalServerError)
		return
	}

	resp := mintResponse{
		Token:     signed,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if h.QR != nil {
		if png, err := h.QR.EncodeToken(signed); err == nil {
			resp.QRPNG = base64.StdEncoding.EncodeToString(png)
		} else if h.Logger != nil {
			h.Logger.Error("QR", "Failed to encode QR for ticket "+ticketID+": "+err.Error())
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// ViewTicket handles GET /api/checkin/tickets/{ticketID}. Holders see their
// own tickets; staff need the view capability.
func (h *Handler) ViewTicket(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "ticketID")

	operator, ok := auth.OperatorFromContext(r.Context())
	if !ok {
		http.Error(w, "requester identity missing", http.StatusUnauthorized)
		return
	}

	ticket, err := h.Tickets.GetTicket(r.Context(), ticketID)
	if err != nil {
		if errors.Is(err, ticketdb.ErrTicketNotFound) {
			http.Error(w, "Ticket not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to load ticket: "+err.Error(), http.StatusInternalServerError)
		return
	}

	if operator.ID != ticket.UserID && !h.Gate.CanView(operator, ticket.EventID) {
		http.Error(w, "Not allowed to view this ticket", http.StatusForbidden)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(utils.SuccessResponse("Ticket retrieved successfully", ticket))
}

// GetCheckedInCount handles GET /api/checkin/events/{eventID}/count.
func (h *Handler) GetCheckedInCount(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")

	count, err := h.Tickets.CheckedInCount(r.Context(), eventID)
	if err != nil {
		http.Error(w, "Failed to get checked-in count: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(utils.SuccessResponse("Checked-in count retrieved", map[string]interface{}{
		"event_id":         eventID,
		"checked_in_count": count,
	}))
}
