package httpapi

import (
	"errors"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/metizror/marketforce-api/internal/identity"
)

type registerRequest struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	CompanyName string `json:"company_name"`
	Password    string `json:"password"`
}

func (r registerRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Required, validation.Length(1, 100)),
		validation.Field(&r.LastName, validation.Required, validation.Length(1, 100)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 254), is.Email),
		validation.Field(&r.CompanyName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
	)
}

type sendOTPRequest struct {
	Email string `json:"email"`
}

func (r sendOTPRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

type verifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

func (r verifyOTPRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.OTP, validation.Required, validation.Length(6, 6), is.Digit),
	)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r loginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

type forgotPasswordRequest struct {
	Email       string `json:"email"`
	Step        string `json:"step"`
	Role        string `json:"role"`
	OTP         string `json:"otp,omitempty"`
	NewPassword string `json:"new_password,omitempty"`
}

const (
	stepSendOTP       = "send-otp"
	stepVerifyOTP     = "verify-otp"
	stepResetPassword = "reset-password"
)

func (r forgotPasswordRequest) Validate() error {
	fields := []*validation.FieldRules{
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Step, validation.Required,
			validation.In(stepSendOTP, stepVerifyOTP, stepResetPassword)),
		validation.Field(&r.Role, validation.Required,
			validation.In("customer", "admin", "superadmin")),
	}
	switch r.Step {
	case stepVerifyOTP:
		fields = append(fields,
			validation.Field(&r.OTP, validation.Required, validation.Length(6, 6), is.Digit))
	case stepResetPassword:
		fields = append(fields,
			validation.Field(&r.NewPassword, validation.Required, validation.Length(8, 100)))
	}
	return validation.ValidateStruct(&r, fields...)
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		badRequest(w, r, err.Error())
		return
	}

	customer, err := a.identity.Register(r.Context(), identity.RegisterInput{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		CompanyName: req.CompanyName,
		Password:    req.Password,
	})
	if err != nil {
		handleIdentityError(w, r, err)
		return
	}

	a.audit(r.Context(), "identity.customer.register", map[string]any{
		"customer_id": customer.ID,
		"email":       customer.Email,
	})
	writeJSON(w, http.StatusCreated, customer)
}

func (a *API) handleSendOTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req sendOTPRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		badRequest(w, r, err.Error())
		return
	}

	if err := a.identity.SendVerificationOTP(r.Context(), req.Email); err != nil {
		handleIdentityError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "otp sent"})
}

func (a *API) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req verifyOTPRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		badRequest(w, r, err.Error())
		return
	}

	customer, err := a.identity.VerifyEmail(r.Context(), req.Email, req.OTP)
	if err != nil {
		handleIdentityError(w, r, err)
		return
	}
	a.audit(r.Context(), "identity.customer.email_verified", map[string]any{
		"customer_id": customer.ID,
	})
	writeJSON(w, http.StatusOK, map[string]any{"is_email_verified": true})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		badRequest(w, r, err.Error())
		return
	}

	session, err := a.identity.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) || errors.Is(err, identity.ErrAccountPending) {
			a.audit(r.Context(), "identity.login.failure", map[string]any{
				"email": identity.NormalizeEmail(req.Email),
			})
		}
		handleIdentityError(w, r, err)
		return
	}

	a.audit(r.Context(), "identity.login.success", map[string]any{
		"principal_id": session.Principal.ID,
		"kind":         string(session.Principal.Kind),
	})
	writeJSON(w, http.StatusOK, session)
}

func (a *API) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req forgotPasswordRequest
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

	switch req.Step {
	case stepSendOTP:
		err = a.identity.RequestPasswordReset(r.Context(), req.Email, role)
	case stepVerifyOTP:
		err = a.identity.VerifyPasswordResetOTP(r.Context(), req.Email, req.OTP)
	case stepResetPassword:
		err = a.identity.ResetPassword(r.Context(), req.Email, role, req.NewPassword)
	}
	if err != nil {
		handleIdentityError(w, r, err)
		return
	}

	if req.Step == stepResetPassword {
		a.audit(r.Context(), "identity.password.reset", map[string]any{
			"email": identity.NormalizeEmail(req.Email),
			"role":  string(role),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": req.Step + " ok"})
}
