package httptransport

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"eligibility/internal/bulk"
	"eligibility/internal/check/models"
	"eligibility/pkg/platform/httputil"
	"eligibility/pkg/requestcontext"
)

// BulkService is the bulk-submission surface the handlers need.
type BulkService interface {
	Submit(ctx context.Context, meta bulk.Metadata, members []bulk.Member) (string, error)
	GetStatus(ctx context.Context, groupID string) (bulk.Progress, error)
	GetResults(ctx context.Context, groupID string) ([]models.Result, error)
	SoftDelete(ctx context.Context, groupID string) error
}

// BulkHandler wires the bulk group endpoints to the bulk service.
type BulkHandler struct {
	service BulkService
	logger  *zap.Logger
}

func NewBulkHandler(service BulkService, logger *zap.Logger) *BulkHandler {
	return &BulkHandler{service: service, logger: logger}
}

// Register mounts the bulk endpoints on the router.
func (h *BulkHandler) Register(r chi.Router) {
	r.Post("/bulk-checks", h.HandleSubmit)
	r.Get("/bulk-checks/{id}/status", h.HandleStatus)
	r.Get("/bulk-checks/{id}/results", h.HandleResults)
	r.Delete("/bulk-checks/{id}", h.HandleDelete)
}

type bulkSubmitRequest struct {
	Name        string          `json:"name"`
	CallbackURL string          `json:"callbackUrl,omitempty"`
	Checks      []submitRequest `json:"checks"`
}

type bulkSubmitResponse struct {
	GroupID string `json:"groupId"`
}

// HandleSubmit handles POST /bulk-checks.
func (h *BulkHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req bulkSubmitRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}

	members := make([]bulk.Member, 0, len(req.Checks))
	for _, c := range req.Checks {
		sub, err := c.toSubmission()
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		members = append(members, bulk.Member{
			ClientIdentifier: sub.ClientIdentifier,
			Type:             sub.Type,
			Payload:          sub.Payload,
		})
	}

	meta := bulk.Metadata{
		Name:           req.Name,
		LocalAuthority: requestcontext.LocalAuthority(ctx),
		CallbackURL:    req.CallbackURL,
	}
	groupID, err := h.service.Submit(ctx, meta, members)
	if err != nil {
		h.logger.Error("bulk submission failed",
			zap.String("request_id", requestcontext.RequestID(ctx)),
			zap.Int("members", len(req.Checks)),
			zap.Error(err))
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, bulkSubmitResponse{GroupID: groupID})
}

// HandleStatus handles GET /bulk-checks/{id}/status.
func (h *BulkHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	progress, err := h.service.GetStatus(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, progress)
}

// HandleResults handles GET /bulk-checks/{id}/results.
func (h *BulkHandler) HandleResults(w http.ResponseWriter, r *http.Request) {
	results, err := h.service.GetResults(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string][]models.Result{"results": results})
}

// HandleDelete handles DELETE /bulk-checks/{id}.
func (h *BulkHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	if err := h.service.SoftDelete(ctx, id); err != nil {
		h.logger.Error("bulk delete failed",
			zap.String("request_id", requestcontext.RequestID(ctx)),
			zap.String("group_id", id),
			zap.Error(err))
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
