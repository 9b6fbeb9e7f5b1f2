package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"eshop/internal/auth/models"
	jwttoken "eshop/internal/jwt_token"
	"eshop/pkg/platform/httputil"
	"eshop/pkg/platform/middleware/auth"
	"eshop/pkg/requestcontext"
)

const (
	msgEmailVerified = "Email verified successfully"
	msgOTPSent       = "OTP sent to email!"
	msgResetSent     = "Token sent to email!"
)

// HandleSignup implements POST /users/signup.
func (h *Handler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.SignupRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	res, err := h.auth.Signup(ctx, req)
	if err != nil {
		h.fail(w, r, "signup failed", err)
		return
	}
	h.writeSession(w, http.StatusCreated, res)
}

// HandleVerifyEmail implements POST /users/verifyEmail. A signed-in caller
// can only verify their own account.
func (h *Handler) HandleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.VerifyEmailRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	if _, err := h.auth.VerifyEmail(ctx, callerID(r), req.OTP); err != nil {
		h.fail(w, r, "email verification failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.MessageResponse{
		Status:  httputil.StatusSuccess,
		Message: msgEmailVerified,
	})
}

// HandleResendOTP implements POST /users/resendOTP.
func (h *Handler) HandleResendOTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.EmailRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	if err := h.auth.ResendOTP(ctx, req.Email); err != nil {
		h.fail(w, r, "resend otp failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.MessageResponse{
		Status:  httputil.StatusSuccess,
		Message: msgOTPSent,
	})
}

// HandleLogin implements POST /users/login.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.LoginRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	res, err := h.auth.Login(ctx, req)
	if err != nil {
		h.fail(w, r, "login failed", err)
		return
	}
	h.writeSession(w, http.StatusOK, res)
}

// HandleForgotPassword implements POST /users/forgotPassword. The reset
// token only travels by email.
func (h *Handler) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.EmailRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	if err := h.auth.ForgotPassword(ctx, req.Email); err != nil {
		h.fail(w, r, "forgot password failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.MessageResponse{
		Status:  httputil.StatusSuccess,
		Message: msgResetSent,
	})
}

// HandleResetPassword implements PATCH /users/resetPassword/{token}.
func (h *Handler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.ResetPasswordRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	res, err := h.auth.ResetPassword(ctx, chi.URLParam(r, "token"), req)
	if err != nil {
		h.fail(w, r, "reset password failed", err)
		return
	}
	h.writeSession(w, http.StatusOK, res)
}

// HandleUpdatePassword implements PATCH /users/updateMyPassword.
func (h *Handler) HandleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.UpdatePasswordRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	res, err := h.auth.UpdatePassword(ctx, callerID(r), req)
	if err != nil {
		h.fail(w, r, "update password failed", err, "user_id", callerID(r))
		return
	}
	h.writeSession(w, http.StatusOK, res)
}

// HandleLogout implements POST /users/logout. Bearer clients simply drop
// their token.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	jwttoken.ClearSessionCookie(w, requestcontext.Now(r.Context()), h.secureCookies)
	httputil.WriteJSON(w, http.StatusOK, models.MessageResponse{Status: httputil.StatusSuccess})
}

// HandleMe implements GET /users/me.
func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFrom(r.Context())
	user, err := h.auth.Me(r.Context(), principal.ID)
	if err != nil {
		h.fail(w, r, "failed to load current user", err, "user_id", principal.ID)
		return
	}
	h.writeUser(w, http.StatusOK, user)
}
