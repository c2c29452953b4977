package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Trinity-Studio-01/logos-auth/internal/model"
	"github.com/Trinity-Studio-01/logos-auth/internal/server/middleware"
	"github.com/Trinity-Studio-01/logos-auth/internal/service"
	"github.com/Trinity-Studio-01/logos-auth/internal/store"
)

// AdminHandler serves admin management and audit-log retrieval. Every route
// behind it requires the admin role.
type AdminHandler struct {
	store  *store.Store
	auth   *service.AuthService
	logger *slog.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(st *store.Store, auth *service.AuthService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{store: st, auth: auth, logger: logger}
}

type createAdminRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// CreateAdmin creates a new operator account.
// POST /api/v1/admins
func (h *AdminHandler) CreateAdmin(w http.ResponseWriter, r *http.Request) {
	var req createAdminRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, service.CodeValidationFailed, "invalid request body")
		return
	}

	admin, err := h.auth.CreateAdmin(r.Context(), req.Username, req.Password, req.Role, clientIP(r), r.UserAgent())
	if err != nil {
		writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, admin)
}

// ListAdmins returns all operator accounts, sanitized.
// GET /api/v1/admins
func (h *AdminHandler) ListAdmins(w http.ResponseWriter, r *http.Request) {
	admins, err := h.store.ListAdmins(r.Context())
	if err != nil {
		h.logger.Error("list admins", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}

	sanitized := make([]model.Admin, 0, len(admins))
	for i := range admins {
		sanitized = append(sanitized, admins[i].Sanitized())
	}
	writeJSON(w, http.StatusOK, model.ListResponse{
		Resource: sanitized,
		Meta:     &model.ResponseMeta{Count: len(sanitized)},
	})
}

// DeactivateAdmin soft-deletes an account. Operators cannot deactivate
// themselves; that would orphan the deployment's last working login.
// DELETE /api/v1/admins/{adminID}
func (h *AdminHandler) DeactivateAdmin(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "adminID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, service.CodeValidationFailed, "invalid admin id")
		return
	}

	principal := middleware.GetPrincipal(r.Context())
	if principal.AdminID == id {
		writeError(w, http.StatusBadRequest, service.CodeValidationFailed, "cannot deactivate your own account")
		return
	}

	if err := h.auth.DeactivateAdmin(r.Context(), id, clientIP(r), r.UserAgent()); err != nil {
		writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

// ListAuditLog returns audit entries newest first with limit/offset
// pagination.
// GET /api/v1/audit-log
func (h *AdminHandler) ListAuditLog(w http.ResponseWriter, r *http.Request) {
	limit := clampInt(queryInt(r, "limit", defaultAuditLimit), 1, maxAuditLimit)
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	entries, total, err := h.store.ListAuditEntries(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("list audit entries", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}
	if entries == nil {
		entries = []model.AuditLogEntry{}
	}

	writeJSON(w, http.StatusOK, model.ListResponse{
		Resource: entries,
		Meta: &model.ResponseMeta{
			Count:  len(entries),
			Total:  &total,
			Limit:  limit,
			Offset: offset,
		},
	})
}
