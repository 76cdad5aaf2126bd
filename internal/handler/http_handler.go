package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ahamouda-bsnswheel/edu-route-master-sub004/internal/errors"
	"github.com/ahamouda-bsnswheel/edu-route-master-sub004/internal/logger"
	"github.com/ahamouda-bsnswheel/edu-route-master-sub004/internal/service"
)

// HTTPHandler serves the approval routing API.
type HTTPHandler struct {
	routing *service.ApprovalRoutingService
	log     *logger.Logger
}

// NewHTTPHandler creates a new HTTP handler.
func NewHTTPHandler(routing *service.ApprovalRoutingService, log *logger.Logger) *HTTPHandler {
	return &HTTPHandler{
		routing: routing,
		log:     log,
	}
}

// InitializeWorkflow handles POST /api/v1/workflow/initialize.
func (h *HTTPHandler) InitializeWorkflow(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NominatorID        string `json:"nominator_id"`
		EmployeeID         string `json:"employee_id"`
		RequestID          string `json:"request_id"`
		CourseName         string `json:"course_name"`
		IsExtendedWorkflow bool   `json:"is_extended_workflow"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, errors.InvalidInput("body", "invalid request body"))
		return
	}
	if req.RequestID == "" || req.NominatorID == "" {
		h.writeError(w, errors.InvalidInput("request_id", "request_id and nominator_id are required"))
		return
	}

	err := h.routing.InitializeWorkflow(r.Context(), service.InitializeWorkflowParams{
		RequestID:   req.RequestID,
		NominatorID: req.NominatorID,
		EmployeeID:  req.EmployeeID,
		CourseName:  req.CourseName,
		IsExtended:  req.IsExtendedWorkflow,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "initialized"})
}

// ProcessDecision handles POST /api/v1/workflow/decision.
func (h *HTTPHandler) ProcessDecision(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ApprovalID         string  `json:"approval_id"`
		RequestID          string  `json:"request_id"`
		EmployeeID         string  `json:"employee_id"`
		CourseName         string  `json:"course_name"`
		CurrentLevel       int     `json:"current_level"`
		Status             string  `json:"status"`
		Comments           *string `json:"comments"`
		IsExtendedWorkflow bool    `json:"is_extended_workflow"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, errors.InvalidInput("body", "invalid request body"))
		return
	}
	if req.ApprovalID == "" || req.RequestID == "" {
		h.writeError(w, errors.InvalidInput("approval_id", "approval_id and request_id are required"))
		return
	}

	err := h.routing.ProcessDecision(r.Context(), service.ProcessDecisionParams{
		ApprovalID:   req.ApprovalID,
		RequestID:    req.RequestID,
		EmployeeID:   req.EmployeeID,
		CourseName:   req.CourseName,
		CurrentLevel: req.CurrentLevel,
		Decision:     req.Status,
		Comments:     req.Comments,
		IsExtended:   req.IsExtendedWorkflow,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

// GetPendingApprovals handles GET /api/v1/approvals/pending.
func (h *HTTPHandler) GetPendingApprovals(w http.ResponseWriter, r *http.Request) {
	approverID := r.URL.Query().Get("approver_id")
	if approverID == "" {
		h.writeError(w, errors.InvalidInput("approver_id", "approver_id is required"))
		return
	}

	approvals, err := h.routing.GetPendingApprovals(r.Context(), approverID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"approvals": approvals})
}

// GetRequestApprovals handles GET /api/v1/requests/{id}/approvals.
func (h *HTTPHandler) GetRequestApprovals(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "id")

	approvals, err := h.routing.GetRequestApprovals(r.Context(), requestID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"approvals": approvals})
}

// GetApprovalHistory handles GET /api/v1/requests/{id}/history.
func (h *HTTPHandler) GetApprovalHistory(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "id")

	entries, err := h.routing.GetApprovalHistory(r.Context(), requestID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"history": entries})
}

// ── response helpers ──────────────────────────────────────────────────────────

func (h *HTTPHandler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Warn().Err(err).Msg("Failed to encode response body")
	}
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	code := errors.CodeOf(err)

	status := http.StatusInternalServerError
	switch code {
	case errors.ErrCodeInvalidInput:
		status = http.StatusBadRequest
	case errors.ErrCodeNotFound:
		status = http.StatusNotFound
	case errors.ErrCodeUnauthorized:
		status = http.StatusUnauthorized
	case errors.ErrCodeConflict, errors.ErrCodeStaleApproval, errors.ErrCodeInvalidTransition:
		status = http.StatusConflict
	case errors.ErrCodeNoApproverResolvable:
		status = http.StatusUnprocessableEntity
	case errors.ErrCodeUnavailable, errors.ErrCodeDirectoryUnavailable:
		status = http.StatusServiceUnavailable
	}

	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Msg("Request failed")
	}

	h.writeJSON(w, status, map[string]string{
		"code":  string(code),
		"error": err.Error(),
	})
}
