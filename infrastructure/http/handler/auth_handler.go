package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/fashionfolio/portfolio-auth/application/port/inbound"
	"github.com/fashionfolio/portfolio-auth/infrastructure/http/cookie"
	"github.com/fashionfolio/portfolio-auth/infrastructure/http/middleware"
	"github.com/fashionfolio/portfolio-auth/infrastructure/http/response"
	"github.com/fashionfolio/portfolio-auth/infrastructure/http/validator"
	"github.com/fashionfolio/portfolio-auth/infrastructure/service/logger"
)

const (
	APIPrefix   = "/api/auth"
	refreshPath = APIPrefix + "/refresh"
)

// CookieSettings are the attributes shared by both session cookies.
type CookieSettings struct {
	Secure bool
}

type AuthHandler struct {
	authUseCase inbound.AuthUseCase
	logger      logger.Logger
	cookies     CookieSettings
}

func NewAuthHandler(authUseCase inbound.AuthUseCase, log logger.Logger, cookies CookieSettings) *AuthHandler {
	return &AuthHandler{
		authUseCase: authUseCase,
		logger:      log,
		cookies:     cookies,
	}
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest accepts the identifier under "email" or "username".
type LoginRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// AuthResponse is the user plus the access token, the shape clients of the
// portfolio API already consume.
type AuthResponse struct {
	inbound.UserResponse
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}

// RegisterRoutes mounts the auth API on router. rateLimit may be nil.
func (h *AuthHandler) RegisterRoutes(router *mux.Router, auth *middleware.AuthMiddleware, rateLimit *middleware.RateLimitMiddleware) {
	api := router.PathPrefix(APIPrefix).Subrouter()

	limited := func(fn http.HandlerFunc) http.Handler {
		if rateLimit == nil {
			return fn
		}
		return rateLimit.RateLimit(fn)
	}

	api.Handle("/register", limited(h.Register)).Methods(http.MethodPost)
	api.Handle("/login", limited(h.Login)).Methods(http.MethodPost)
	api.Handle("/refresh", limited(h.Refresh)).Methods(http.MethodPost)
	api.HandleFunc("/logout", h.Logout).Methods(http.MethodPost)
	api.Handle("/profile", auth.RequireAuth(http.HandlerFunc(h.Profile))).Methods(http.MethodGet)
	api.Handle("/users/{id}", auth.RequireAdmin(http.HandlerFunc(h.GetUser))).Methods(http.MethodGet)
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := validator.DecodeJSON(w, r, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	session, err := h.authUseCase.Register(r.Context(), inbound.RegisterRequest{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		response.AppError(w, err)
		return
	}

	h.setSessionCookies(w, session)
	response.Success(w, http.StatusCreated, "User registered successfully", toAuthResponse(session))
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := validator.DecodeJSON(w, r, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	identifier := req.Email
	if !validator.ValidateRequired(identifier) {
		identifier = req.Username
	}

	session, err := h.authUseCase.Login(r.Context(), inbound.LoginRequest{
		Email:    identifier,
		Password: req.Password,
		ClientIP: middleware.ClientIP(r),
	})
	if err != nil {
		response.AppError(w, err)
		return
	}

	h.setSessionCookies(w, session)
	response.Success(w, http.StatusOK, "Login successful", toAuthResponse(session))
}

// Refresh takes the refresh token from its cookie, the Refresh-Token header
// or the JSON body, in that order.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var refreshToken string
	if c, err := r.Cookie(cookie.RefreshTokenName); err == nil && c.Value != "" {
		refreshToken = c.Value
	} else if header := r.Header.Get("Refresh-Token"); header != "" {
		refreshToken = header
	} else {
		var req RefreshRequest
		if err := validator.DecodeJSON(w, r, &req); err != nil {
			response.BadRequest(w, "Invalid request body")
			return
		}
		refreshToken = req.RefreshToken
	}

	if refreshToken == "" {
		response.Unauthorized(w, "Refresh token required")
		return
	}
	if !validator.ValidateJWT(refreshToken) {
		response.Unauthorized(w, "Invalid token")
		return
	}

	session, err := h.authUseCase.Refresh(r.Context(), inbound.RefreshRequest{RefreshToken: refreshToken})
	if err != nil {
		response.AppError(w, err)
		return
	}

	h.setSessionCookies(w, session)
	response.Success(w, http.StatusOK, "Token refreshed", toAuthResponse(session))
}

// Logout only drops the cookies. Issued tokens remain valid until they expire.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	w.Header().Add("Set-Cookie", cookie.Clear(cookie.AccessTokenName, h.accessCookieOptions()))
	w.Header().Add("Set-Cookie", cookie.Clear(cookie.RefreshTokenName, h.refreshCookieOptions()))

	logger.LogAuthEvent(r.Context(), h.logger, "logout", "", middleware.ClientIP(r), true, nil)
	response.Success(w, http.StatusOK, "Logged out successfully", nil)
}

func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		response.Unauthorized(w, "Not authorized to access this route")
		return
	}

	profile, err := h.authUseCase.Profile(r.Context(), user.ID)
	if err != nil {
		response.AppError(w, err)
		return
	}

	response.Success(w, http.StatusOK, "success", profile)
}

// GetUser is the admin lookup of any account by id.
func (h *AuthHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	profile, err := h.authUseCase.Profile(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		response.AppError(w, err)
		return
	}

	response.Success(w, http.StatusOK, "success", profile)
}

func (h *AuthHandler) setSessionCookies(w http.ResponseWriter, session *inbound.SessionResponse) {
	access := h.accessCookieOptions()
	access.MaxAge = cookie.MaxAge(session.AccessExpiresIn)
	w.Header().Add("Set-Cookie", cookie.Encode(cookie.AccessTokenName, session.AccessToken, access))

	refresh := h.refreshCookieOptions()
	refresh.MaxAge = cookie.MaxAge(session.RefreshExpiresIn)
	w.Header().Add("Set-Cookie", cookie.Encode(cookie.RefreshTokenName, session.RefreshToken, refresh))
}

func (h *AuthHandler) accessCookieOptions() cookie.Options {
	return cookie.Options{
		Path:     cookie.DefaultPath,
		HTTPOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: cookie.SameSiteStrict,
	}
}

func (h *AuthHandler) refreshCookieOptions() cookie.Options {
	return cookie.Options{
		Path:     refreshPath,
		HTTPOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: cookie.SameSiteStrict,
	}
}

func toAuthResponse(session *inbound.SessionResponse) AuthResponse {
	return AuthResponse{
		UserResponse: session.User,
		Token:        session.AccessToken,
		ExpiresIn:    session.AccessExpiresIn,
	}
}
