package tickets

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-crm/meridian/internal/platform/httpx"
	"github.com/meridian-crm/meridian/internal/shared"
)

// Handler manages ticket endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers ticket routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.show)
	r.Put("/{id}", h.update)
	r.Put("/{id}/status", h.setStatus)
	r.Post("/{id}/comments", h.addComment)
}

type createTicketRequest struct {
	ClientID    int64  `json:"client_id" validate:"gte=0"`
	Subject     string `json:"subject" validate:"required,max=200"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority,omitempty"`
}

type updateTicketRequest struct {
	Subject     string `json:"subject" validate:"required,max=200"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority" validate:"required"`
	AssigneeID  *int64 `json:"assignee_id,omitempty"`
}

type setTicketStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type addCommentRequest struct {
	AuthorID int64  `json:"author_id" validate:"gte=0"`
	Body     string `json:"body" validate:"required"`
	Internal bool   `json:"internal,omitempty"`
}

type ticketResponse struct {
	ID          int64      `json:"id"`
	Number      string     `json:"number"`
	ClientID    int64      `json:"client_id,omitempty"`
	Subject     string     `json:"subject"`
	Description string     `json:"description,omitempty"`
	Priority    string     `json:"priority"`
	Status      string     `json:"status"`
	AssigneeID  *int64     `json:"assignee_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

type commentResponse struct {
	ID        int64     `json:"id"`
	TicketID  int64     `json:"ticket_id"`
	AuthorID  int64     `json:"author_id"`
	Body      string    `json:"body"`
	Internal  bool      `json:"internal"`
	CreatedAt time.Time `json:"created_at"`
}

func toTicketResponse(t *Ticket) ticketResponse {
	return ticketResponse{
		ID:          t.ID,
		Number:      t.Number,
		ClientID:    t.ClientID,
		Subject:     t.Subject,
		Description: t.Description,
		Priority:    string(t.Priority),
		Status:      string(t.Status),
		AssigneeID:  t.AssigneeID,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
		ResolvedAt:  t.ResolvedAt,
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page := shared.ParsePageQuery(r.URL.Query(), 50, 200)
	req := ListTicketsRequest{
		Status:   TicketStatus(r.URL.Query().Get("status")),
		Priority: TicketPriority(r.URL.Query().Get("priority")),
		Limit:    page.Limit(),
		Offset:   page.Offset(),
	}
	if v := r.URL.Query().Get("client_id"); v != "" {
		req.ClientID, _ = strconv.ParseInt(v, 10, 64)
	}
	if v := r.URL.Query().Get("assignee_id"); v != "" {
		req.AssigneeID, _ = strconv.ParseInt(v, 10, 64)
	}

	out, total, err := h.service.List(r.Context(), req)
	if err != nil {
		h.respondError(w, "list tickets", err)
		return
	}
	responses := make([]ticketResponse, 0, len(out))
	for i := range out {
		responses = append(responses, toTicketResponse(&out[i]))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"tickets":    responses,
		"pagination": page.Paginate(total),
	})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid ticket id")
		return
	}
	ticket, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, "get ticket", err)
		return
	}
	comments, err := h.service.ListComments(r.Context(), id)
	if err != nil {
		h.respondError(w, "list comments", err)
		return
	}
	commentResponses := make([]commentResponse, 0, len(comments))
	for _, c := range comments {
		commentResponses = append(commentResponses, commentResponse(c))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"ticket":   toTicketResponse(ticket),
		"comments": commentResponses,
	})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createTicketRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	ticket, err := h.service.Create(r.Context(), CreateTicketInput{
		ClientID:    req.ClientID,
		Subject:     req.Subject,
		Description: req.Description,
		Priority:    TicketPriority(req.Priority),
	})
	if err != nil {
		h.respondError(w, "create ticket", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toTicketResponse(ticket))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid ticket id")
		return
	}
	var req updateTicketRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	ticket, err := h.service.Update(r.Context(), id, UpdateTicketInput{
		Subject:     req.Subject,
		Description: req.Description,
		Priority:    TicketPriority(req.Priority),
		AssigneeID:  req.AssigneeID,
	})
	if err != nil {
		h.respondError(w, "update ticket", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toTicketResponse(ticket))
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid ticket id")
		return
	}
	var req setTicketStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.service.SetStatus(r.Context(), id, TicketStatus(req.Status)); err != nil {
		h.respondError(w, "set ticket status", err)
		return
	}
	ticket, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, "get ticket", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toTicketResponse(ticket))
}

func (h *Handler) addComment(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid ticket id")
		return
	}
	var req addCommentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	comment, err := h.service.AddComment(r.Context(), id, CreateCommentInput{
		AuthorID: req.AuthorID,
		Body:     req.Body,
		Internal: req.Internal,
	})
	if err != nil {
		h.respondError(w, "add comment", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, commentResponse(*comment))
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.RespondError(w, fmt.Errorf("%w: ticket", httpx.ErrNotFound))
	case errors.Is(err, ErrInvalidStatus),
		errors.Is(err, ErrInvalidPriority),
		errors.Is(err, ErrEmptySubject),
		errors.Is(err, ErrEmptyComment):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrDuplicateNumber):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
