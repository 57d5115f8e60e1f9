package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/msomdec/realty/internal/domain"
	"github.com/msomdec/realty/internal/service"
	"github.com/msomdec/realty/internal/validation"
	"github.com/msomdec/realty/internal/view"
)

const unexpectedError = "An unexpected error occurred. Please try again."

// AuthHandler handles sign-in, sign-up, password reset and the JSON auth API.
type AuthHandler struct {
	auth    *service.AuthService
	cookies Cookies
	google  bool
}

// NewAuthHandler creates a new AuthHandler. google enables the Google
// sign-in button.
func NewAuthHandler(auth *service.AuthService, cookies Cookies, google bool) *AuthHandler {
	return &AuthHandler{auth: auth, cookies: cookies, google: google}
}

func (h *AuthHandler) formState(r *http.Request) view.AuthFormState {
	return view.AuthFormState{Google: h.google, Next: safeNext(r.FormValue("next"), "")}
}

// HandleSignInPage renders the sign-in form.
// GET /sign-in
func (h *AuthHandler) HandleSignInPage(w http.ResponseWriter, r *http.Request) {
	if UserFromContext(r.Context()) != nil {
		http.Redirect(w, r, "/profile", http.StatusSeeOther)
		return
	}
	render(w, r, http.StatusOK, view.SignInPage(h.cookies.chrome(w, r), validation.SignInForm{}, h.formState(r)))
}

// HandleSignIn processes the sign-in form.
// POST /sign-in
func (h *AuthHandler) HandleSignIn(w http.ResponseWriter, r *http.Request) {
	form := validation.SignInForm{
		Email:    strings.TrimSpace(r.FormValue("email")),
		Password: r.FormValue("password"),
	}
	state := h.formState(r)

	if err := validation.Validate(form); err != nil {
		state.Errors = fieldErrors(err)
		render(w, r, http.StatusUnprocessableEntity, view.SignInPage(h.cookies.chrome(w, r), form, state))
		return
	}

	token, err := h.auth.Login(r.Context(), form.Email, form.Password)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			state.Alert = "Bad user credentials"
		} else {
			slog.Error("login user", "error", err)
			state.Alert = unexpectedError
		}
		render(w, r, http.StatusUnprocessableEntity, view.SignInPage(h.cookies.chrome(w, r), form, state))
		return
	}

	h.cookies.setAuth(w, token)
	http.Redirect(w, r, safeNext(state.Next, "/"), http.StatusSeeOther)
}

// HandleSignUpPage renders the registration form.
// GET /sign-up
func (h *AuthHandler) HandleSignUpPage(w http.ResponseWriter, r *http.Request) {
	if UserFromContext(r.Context()) != nil {
		http.Redirect(w, r, "/profile", http.StatusSeeOther)
		return
	}
	render(w, r, http.StatusOK, view.SignUpPage(h.cookies.chrome(w, r), validation.SignUpForm{}, h.formState(r)))
}

// HandleSignUp creates the account and signs the new user in.
// POST /sign-up
func (h *AuthHandler) HandleSignUp(w http.ResponseWriter, r *http.Request) {
	form := validation.SignUpForm{
		Name:            strings.TrimSpace(r.FormValue("name")),
		Email:           strings.TrimSpace(r.FormValue("email")),
		Password:        r.FormValue("password"),
		ConfirmPassword: r.FormValue("confirmPassword"),
		Terms:           formBool(r, "terms"),
	}
	state := h.formState(r)

	user, err := h.auth.Register(r.Context(), form)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrDuplicateEmail):
			state.Errors = validation.FieldErrors{"email": "Email already in use"}
		case errors.Is(err, domain.ErrInvalidInput):
			state.Errors = fieldErrors(err)
		default:
			slog.Error("register user", "error", err)
			state.Alert = unexpectedError
		}
		render(w, r, http.StatusUnprocessableEntity, view.SignUpPage(h.cookies.chrome(w, r), form, state))
		return
	}

	token, err := h.auth.IssueToken(user)
	if err != nil {
		slog.Error("issue token after register", "error", err)
		http.Redirect(w, r, "/sign-in", http.StatusSeeOther)
		return
	}
	h.cookies.setAuth(w, token)
	h.cookies.setFlash(w, "Your account has been created")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleSignOut clears the session.
// POST /sign-out
func (h *AuthHandler) HandleSignOut(w http.ResponseWriter, r *http.Request) {
	h.cookies.clearAuth(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleForgotPasswordPage renders the reset request form.
// GET /forgot-password
func (h *AuthHandler) HandleForgotPasswordPage(w http.ResponseWriter, r *http.Request) {
	render(w, r, http.StatusOK, view.ForgotPasswordPage(h.cookies.chrome(w, r), validation.ForgotPasswordForm{}, h.formState(r), false))
}

// HandleForgotPassword sends a reset email.
// POST /forgot-password
func (h *AuthHandler) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	form := validation.ForgotPasswordForm{Email: strings.TrimSpace(r.FormValue("email"))}
	state := h.formState(r)

	if err := h.auth.RequestPasswordReset(r.Context(), form); err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			state.Errors = fieldErrors(err)
		} else {
			slog.Error("request password reset", "error", err)
			state.Alert = "Could not send reset password"
		}
		render(w, r, http.StatusUnprocessableEntity, view.ForgotPasswordPage(h.cookies.chrome(w, r), form, state, false))
		return
	}

	render(w, r, http.StatusOK, view.ForgotPasswordPage(h.cookies.chrome(w, r), form, state, true))
}

// HandleResetPasswordPage renders the new password form.
// GET /reset-password/{token}
func (h *AuthHandler) HandleResetPasswordPage(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	err := h.auth.CheckResetToken(r.Context(), token)
	if err != nil && !errors.Is(err, domain.ErrTokenExpired) {
		slog.Error("check reset token", "error", err)
		h.cookies.serverError(w, r, unexpectedError)
		return
	}
	status := http.StatusOK
	if err != nil {
		status = http.StatusGone
	}
	render(w, r, status, view.ResetPasswordPage(h.cookies.chrome(w, r), token, err == nil, h.formState(r)))
}

// HandleResetPassword sets the new password.
// POST /reset-password/{token}
func (h *AuthHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	form := validation.ResetPasswordForm{
		Password:        r.FormValue("password"),
		ConfirmPassword: r.FormValue("confirmPassword"),
	}
	state := h.formState(r)

	err := h.auth.ResetPassword(r.Context(), token, form)
	switch {
	case err == nil:
		h.cookies.setFlash(w, "Your password has been reset. Please sign in.")
		http.Redirect(w, r, "/sign-in", http.StatusSeeOther)
	case errors.Is(err, domain.ErrTokenExpired):
		render(w, r, http.StatusGone, view.ResetPasswordPage(h.cookies.chrome(w, r), token, false, state))
	case errors.Is(err, domain.ErrInvalidInput):
		state.Errors = fieldErrors(err)
		render(w, r, http.StatusUnprocessableEntity, view.ResetPasswordPage(h.cookies.chrome(w, r), token, true, state))
	default:
		slog.Error("reset password", "error", err)
		state.Alert = unexpectedError
		render(w, r, http.StatusInternalServerError, view.ResetPasswordPage(h.cookies.chrome(w, r), token, true, state))
	}
}

// HandleLogin processes a JSON login request.
// POST /api/auth/login
// Request:  {"email":"...","password":"..."}
// Response: {"user": {...}}
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	token, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			writeError(w, http.StatusUnauthorized, "Invalid email or password.")
			return
		}
		slog.Error("login user", "error", err)
		writeError(w, http.StatusInternalServerError, unexpectedError)
		return
	}

	userID, err := h.auth.ValidateToken(token)
	if err != nil {
		writeError(w, http.StatusInternalServerError, unexpectedError)
		return
	}
	user, err := h.auth.GetUserByID(r.Context(), userID)
	if err != nil {
		slog.Error("get user after login", "error", err)
		writeError(w, http.StatusInternalServerError, unexpectedError)
		return
	}

	h.cookies.setAuth(w, token)
	writeJSON(w, http.StatusOK, map[string]any{
		"user": toUserDTO(user),
	})
}

// HandleRegister processes a JSON registration request.
// POST /api/auth/register
// Request:  {"name":"...","email":"...","password":"...","confirmPassword":"...","terms":true}
// Response: {"user": {...}}
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name            string `json:"name"`
		Email           string `json:"email"`
		Password        string `json:"password"`
		ConfirmPassword string `json:"confirmPassword"`
		Terms           bool   `json:"terms"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	user, err := h.auth.Register(r.Context(), validation.SignUpForm{
		Name:            req.Name,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		Terms:           req.Terms,
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			writeError(w, http.StatusConflict, "An account with that email already exists.")
			return
		}
		if errors.Is(err, domain.ErrInvalidInput) {
			writeFieldErrors(w, err)
			return
		}
		slog.Error("register user", "error", err)
		writeError(w, http.StatusInternalServerError, unexpectedError)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"user": toUserDTO(user),
	})
}

// HandleLogout clears the auth cookie.
// POST /api/auth/logout
// Response: 204 No Content
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.cookies.clearAuth(w)
	w.WriteHeader(http.StatusNoContent)
}

// HandleMe returns the currently authenticated user.
// GET /api/auth/me
// Response: {"user": {...}} or 401
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated.")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user": toUserDTO(user),
	})
}

// fieldErrors extracts per-field messages from a validation error. Other
// invalid-input errors are reported under the empty key.
func fieldErrors(err error) validation.FieldErrors {
	var fe validation.FieldErrors
	if errors.As(err, &fe) {
		return fe
	}
	return validation.FieldErrors{"": strings.TrimPrefix(err.Error(), domain.ErrInvalidInput.Error()+": ")}
}

func formBool(r *http.Request, name string) bool {
	switch r.FormValue(name) {
	case "true", "on", "1", "yes":
		return true
	}
	return false
}
