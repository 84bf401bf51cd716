package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/metizror/marketforce-api/internal/identity"
)

type decideRequest struct {
	CustomerID      string `json:"customer_id"`
	Approve         *bool  `json:"approve"`
	RejectionReason string `json:"rejection_reason,omitempty"`
}

func (r decideRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.CustomerID, validation.Required),
		validation.Field(&r.Approve, validation.NotNil),
		validation.Field(&r.RejectionReason, validation.Length(0, 500)),
	)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (r changePasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.CurrentPassword, validation.Required),
		validation.Field(&r.NewPassword, validation.Required, validation.Length(8, 100)),
	)
}

type createAdminRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (r createAdminRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
		validation.Field(&r.Role, validation.Required, validation.In("admin", "superadmin")),
	)
}

func (a *API) handleApprovals(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listApprovals(w, r)
	case http.MethodPost:
		a.decideApproval(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) listApprovals(w http.ResponseWriter, r *http.Request) {
	status := identity.ApprovalPending
	switch strings.TrimSpace(r.URL.Query().Get("status")) {
	case "", string(identity.ApprovalPending):
	case string(identity.ApprovalApproved):
		status = identity.ApprovalApproved
	case string(identity.ApprovalRejected):
		status = identity.ApprovalRejected
	default:
		badRequest(w, r, "status must be pending, approved or rejected")
		return
	}

	page, err := parseQueryInt(r, "page", 1)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	perPage, err := parseQueryInt(r, "per_page", 20)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}

	result, err := a.identity.ListApprovals(r.Context(), status, page, perPage)
	if err != nil {
		handleIdentityError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) decideApproval(w http.ResponseWriter, r *http.Request) {
	reviewer, ok := identity.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return
	}

	var req decideRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		badRequest(w, r, err.Error())
		return
	}

	customer, err := a.identity.Decide(r.Context(), reviewer, req.CustomerID, *req.Approve, req.RejectionReason)
	if err != nil {
		handleIdentityError(w, r, err)
		return
	}

	event := "admission.approve"
	fields := map[string]any{
		"customer_id": customer.ID,
		"reviewed_by": reviewer.Name,
	}
	if !*req.Approve {
		event = "admission.reject"
		fields["rejection_reason"] = customer.RejectionReason
	}
	a.audit(r.Context(), event, fields)

	writeJSON(w, http.StatusOK, customer)
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	principal, ok := identity.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return
	}
	admin, err := a.identity.Admin(r.Context(), principal.ID)
	if err != nil {
		handleIdentityError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, admin)
}

func (a *API) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	principal, ok := identity.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		badRequest(w, r, err.Error())
		return
	}

	if err := a.identity.ChangePassword(r.Context(), principal.ID, req.CurrentPassword, req.NewPassword); err != nil {
		handleIdentityError(w, r, err)
		return
	}
	a.audit(r.Context(), "identity.password.change", map[string]any{
		"admin_id": principal.ID,
	})
	writeJSON(w, http.StatusOK, map[string]any{"message": "password updated"})
}

func (a *API) handleCreateAdmin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req createAdminRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		badRequest(w, r, err.Error())
		return
	}

	role, err := identity.ParseRole(req.Role)
	if err != nil {
		handleIdentityError(w, r, err)
		return
	}
	admin, err := a.identity.ProvisionAdmin(r.Context(), req.Name, req.Email, req.Password, role)
	if err != nil {
		handleIdentityError(w, r, err)
		return
	}
	a.audit(r.Context(), "identity.admin.provision", map[string]any{
		"admin_id": admin.ID,
		"email":    admin.Email,
		"role":     string(admin.Role),
	})
	writeJSON(w, http.StatusCreated, admin)
}

func parseQueryInt(r *http.Request, name string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return 0, strconvError(name)
	}
	return v, nil
}

type strconvError string

func (e strconvError) Error() string { return string(e) + " must be a positive integer" }
