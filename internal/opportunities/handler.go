package opportunities

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

type createOpportunityRequest struct {
	ClientID        int64      `json:"client_id" validate:"required,gt=0"`
	Title           string     `json:"title" validate:"required,max=200"`
	Stage           string     `json:"stage,omitempty"`
	Value           float64    `json:"value" validate:"gte=0"`
	Probability     int        `json:"probability" validate:"gte=0,lte=100"`
	ExpectedCloseAt *time.Time `json:"expected_close_at,omitempty"`
	Notes           *string    `json:"notes,omitempty"`
}

type updateOpportunityRequest struct {
	Title           string     `json:"title" validate:"required,max=200"`
	Value           float64    `json:"value" validate:"gte=0"`
	Probability     int        `json:"probability" validate:"gte=0,lte=100"`
	ExpectedCloseAt *time.Time `json:"expected_close_at,omitempty"`
	Notes           *string    `json:"notes,omitempty"`
}

type setStageRequest struct {
	Stage string `json:"stage" validate:"required"`
}

// Handler manages pipeline endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers pipeline routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.show)
	r.Put("/{id}", h.update)
	r.Put("/{id}/stage", h.setStage)
	r.Get("/{id}/history", h.history)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page := shared.ParsePageQuery(r.URL.Query(), 50, 200)
	req := ListOpportunitiesRequest{
		Stage:  Stage(r.URL.Query().Get("stage")),
		Limit:  page.Limit(),
		Offset: page.Offset(),
	}
	if v := r.URL.Query().Get("client_id"); v != "" {
		req.ClientID, _ = strconv.ParseInt(v, 10, 64)
	}

	out, total, err := h.service.List(r.Context(), req)
	if err != nil {
		h.respondError(w, "list opportunities", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"opportunities": out,
		"pagination":    page.Paginate(total),
	})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid opportunity id")
		return
	}
	opp, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, "get opportunity", err)
		return
	}
	httpx.JSON(w, http.StatusOK, opp)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createOpportunityRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	opp, err := h.service.Create(r.Context(), CreateOpportunityInput{
		ClientID:        req.ClientID,
		Title:           req.Title,
		Stage:           Stage(req.Stage),
		Value:           decimal.NewFromFloat(req.Value),
		Probability:     req.Probability,
		ExpectedCloseAt: req.ExpectedCloseAt,
		Notes:           req.Notes,
	})
	if err != nil {
		h.respondError(w, "create opportunity", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, opp)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid opportunity id")
		return
	}
	var req updateOpportunityRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	opp, err := h.service.Update(r.Context(), id, UpdateOpportunityInput{
		Title:           req.Title,
		Value:           decimal.NewFromFloat(req.Value),
		Probability:     req.Probability,
		ExpectedCloseAt: req.ExpectedCloseAt,
		Notes:           req.Notes,
	})
	if err != nil {
		h.respondError(w, "update opportunity", err)
		return
	}
	httpx.JSON(w, http.StatusOK, opp)
}

func (h *Handler) setStage(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid opportunity id")
		return
	}
	var req setStageRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}

	opp, err := h.service.SetStage(r.Context(), id, Stage(req.Stage))
	if err != nil {
		h.respondError(w, "set opportunity stage", err)
		return
	}
	httpx.JSON(w, http.StatusOK, opp)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid opportunity id")
		return
	}
	events, err := h.service.History(r.Context(), id)
	if err != nil {
		h.respondError(w, "opportunity history", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"events": events})
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.RespondError(w, fmt.Errorf("%w: opportunity", httpx.ErrNotFound))
	case errors.Is(err, ErrEmptyTitle),
		errors.Is(err, ErrInvalidStage),
		errors.Is(err, ErrInvalidValue),
		errors.Is(err, ErrInvalidProbability):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
