package httptransport

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"eligibility/internal/check/models"
	checkservice "eligibility/internal/check/service"
	"eligibility/internal/domain"
	"eligibility/pkg/platform/httputil"
	"eligibility/pkg/platform/sentinel"
	"eligibility/pkg/requestcontext"
)

// CheckService is the standalone-check surface the handlers need.
type CheckService interface {
	Submit(ctx context.Context, sub checkservice.Submission) (models.Result, error)
	Get(ctx context.Context, id string) (models.Result, error)
	UpdateStatus(ctx context.Context, id string, status domain.CheckStatus) (models.Result, error)
}

// CheckHandler wires the standalone check endpoints to the check service.
type CheckHandler struct {
	service CheckService
	logger  *zap.Logger
}

func NewCheckHandler(service CheckService, logger *zap.Logger) *CheckHandler {
	return &CheckHandler{service: service, logger: logger}
}

// Register mounts the check endpoints on the router.
func (h *CheckHandler) Register(r chi.Router) {
	r.Post("/checks", h.HandleSubmit)
	r.Get("/checks/{id}", h.HandleGet)
	r.Put("/checks/{id}/status", h.HandleUpdateStatus)
}

// submitRequest is the wire shape of one check submission. The identifying
// fields are flattened; which ones are required depends on the benefit type.
type submitRequest struct {
	Type                     string `json:"type"`
	ClientIdentifier         string `json:"clientIdentifier,omitempty"`
	LastName                 string `json:"lastName,omitempty"`
	DateOfBirth              string `json:"dateOfBirth,omitempty"`
	NationalInsuranceNumber  string `json:"nationalInsuranceNumber,omitempty"`
	ImmigrationSupportNumber string `json:"immigrationSupportNumber,omitempty"`
	EligibilityCode          string `json:"eligibilityCode,omitempty"`
	CallbackURL              string `json:"callbackUrl,omitempty"`
}

func (req submitRequest) toSubmission() (checkservice.Submission, error) {
	benefitType, err := domain.ParseBenefitType(req.Type)
	if err != nil {
		return checkservice.Submission{}, fmt.Errorf("%w: %s", sentinel.ErrInvalidState, err)
	}
	var payload models.Payload
	if benefitType.UsesStandardPipeline() {
		payload = models.StandardPayload{
			LastName:                 req.LastName,
			DateOfBirth:              req.DateOfBirth,
			NationalInsuranceNumber:  req.NationalInsuranceNumber,
			ImmigrationSupportNumber: req.ImmigrationSupportNumber,
		}
	} else {
		payload = models.WorkingFamiliesPayload{
			EligibilityCode:         req.EligibilityCode,
			NationalInsuranceNumber: req.NationalInsuranceNumber,
			LastName:                req.LastName,
			DateOfBirth:             req.DateOfBirth,
		}
	}
	return checkservice.Submission{
		ClientIdentifier: req.ClientIdentifier,
		Type:             benefitType,
		Payload:          payload,
		CallbackURL:      req.CallbackURL,
	}, nil
}

// HandleSubmit handles POST /checks.
func (h *CheckHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req submitRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	sub, err := req.toSubmission()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.Submit(ctx, sub)
	if err != nil {
		h.logger.Error("check submission failed",
			zap.String("request_id", requestcontext.RequestID(ctx)),
			zap.String("benefit_type", req.Type),
			zap.Error(err))
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, result)
}

// HandleGet handles GET /checks/{id}.
func (h *CheckHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// HandleUpdateStatus handles PUT /checks/{id}/status, the administrative
// override.
func (h *CheckHandler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	var req updateStatusRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	status, err := domain.ParseCheckStatus(req.Status)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	result, err := h.service.UpdateStatus(ctx, id, status)
	if err != nil {
		h.logger.Error("status override failed",
			zap.String("request_id", requestcontext.RequestID(ctx)),
			zap.String("check_id", id),
			zap.String("status", req.Status),
			zap.Error(err))
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}
