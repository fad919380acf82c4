package invoices

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/meridian-crm/meridian/internal/platform/httpx"
	"github.com/meridian-crm/meridian/internal/shared"
)

// Handler manages invoice endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers invoice routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.show)
	r.Put("/{id}", h.update)
	r.Post("/{id}/payments", h.recordPayment)
	r.Put("/{id}/status", h.setStatus)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page := shared.ParsePageQuery(r.URL.Query(), 50, 200)
	req := ListInvoicesRequest{
		Status: InvoiceStatus(r.URL.Query().Get("status")),
		Limit:  page.Limit(),
		Offset: page.Offset(),
	}
	if v := r.URL.Query().Get("client_id"); v != "" {
		req.ClientID, _ = strconv.ParseInt(v, 10, 64)
	}
	if v := r.URL.Query().Get("from"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			req.FromDate = t
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			req.ToDate = t
		}
	}

	out, total, err := h.service.List(r.Context(), req)
	if err != nil {
		h.respondError(w, "list invoices", err)
		return
	}
	responses := make([]invoiceResponse, 0, len(out))
	for i := range out {
		responses = append(responses, toInvoiceResponse(&out[i]))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"invoices":   responses,
		"pagination": page.Paginate(total),
	})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid invoice id")
		return
	}
	detail, err := h.service.GetWithDetails(r.Context(), id)
	if err != nil {
		h.respondError(w, "get invoice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toInvoiceDetailResponse(detail))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createInvoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	input := CreateInvoiceInput{
		ClientID:     req.ClientID,
		Items:        toItemInputs(req.Items),
		TaxRate:      decimal.NewFromFloat(req.TaxRate),
		DiscountRate: decimal.NewFromFloat(req.DiscountRate),
		Notes:        req.Notes,
	}
	if req.IssuedAt != nil {
		input.IssuedAt = *req.IssuedAt
	}
	if req.DueAt != nil {
		input.DueAt = *req.DueAt
	}

	inv, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.respondError(w, "create invoice", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toInvoiceResponse(inv))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid invoice id")
		return
	}
	var req updateInvoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	input := UpdateInvoiceInput{
		Items:        toItemInputs(req.Items),
		TaxRate:      decimal.NewFromFloat(req.TaxRate),
		DiscountRate: decimal.NewFromFloat(req.DiscountRate),
		Notes:        req.Notes,
	}
	if req.DueAt != nil {
		input.DueAt = *req.DueAt
	}

	inv, err := h.service.Update(r.Context(), id, input)
	if err != nil {
		h.respondError(w, "update invoice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toInvoiceResponse(inv))
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid invoice id")
		return
	}
	var req recordPaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	input := RecordPaymentInput{
		Amount:         decimal.NewFromFloat(req.Amount),
		Method:         PaymentMethod(req.Method),
		Reference:      req.Reference,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	}
	if req.PaidAt != nil {
		input.PaidAt = *req.PaidAt
	}

	payment, err := h.service.RecordPayment(r.Context(), id, input)
	if err != nil {
		h.respondError(w, "record payment", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, paymentResponse{
		ID:        payment.ID,
		Amount:    money(payment.Amount),
		Method:    string(payment.Method),
		PaidAt:    payment.PaidAt,
		Reference: payment.Reference,
		CreatedAt: payment.CreatedAt,
	})
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid invoice id")
		return
	}
	var req setStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.service.SetStatus(r.Context(), id, InvoiceStatus(req.Status)); err != nil {
		h.respondError(w, "set invoice status", err)
		return
	}
	detail, err := h.service.GetWithDetails(r.Context(), id)
	if err != nil {
		h.respondError(w, "get invoice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toInvoiceDetailResponse(detail))
}

// respondError translates domain errors into problem responses.
func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.RespondError(w, fmt.Errorf("%w: invoice", httpx.ErrNotFound))
	case errors.Is(err, ErrInvalidRate),
		errors.Is(err, ErrInvalidLineItem),
		errors.Is(err, ErrEmptyInvoice),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInvalidMethod),
		errors.Is(err, ErrInvalidStatus):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrOverpayment), errors.Is(err, ErrLocked):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Unprocessable", err.Error())
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func toItemInputs(items []lineItemRequest) []LineItemInput {
	out := make([]LineItemInput, 0, len(items))
	for _, item := range items {
		out = append(out, LineItemInput{
			Description: item.Description,
			Quantity:    decimal.NewFromFloat(item.Quantity),
			UnitPrice:   decimal.NewFromFloat(item.UnitPrice),
		})
	}
	return out
}
