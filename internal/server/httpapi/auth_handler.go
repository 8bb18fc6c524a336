package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/ecomarket/internal/common"
	"github.com/dmitrijs2005/ecomarket/internal/server/metrics"
	"github.com/dmitrijs2005/ecomarket/internal/server/services"
)

// maxAuthBody bounds login and register payloads.
const maxAuthBody = 64 << 10

type loginRequest struct {
	UsernameOrEmail string `json:"usernameOrEmail"`
	Password        string `json:"password"`
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token    string  `json:"token"`
	ID       *int64  `json:"id,omitempty"`
	Username string  `json:"username"`
	Email    *string `json:"email,omitempty"`
}

type meResponse struct {
	Username    string   `json:"username"`
	Authorities []string `json:"authorities"`
}

type AuthHandler struct {
	service AuthService
	metrics metrics.Recorder
}

func NewAuthHandler(service AuthService, rec metrics.Recorder) *AuthHandler {
	return &AuthHandler{service: service, metrics: rec}
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.service.Login(r.Context(), req.UsernameOrEmail, req.Password)
	h.record(metrics.OpLogin, err)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAuthResponse(res))
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.service.Register(r.Context(), req.Username, req.Email, req.Password)
	h.record(metrics.OpRegister, err)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAuthResponse(res))
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, common.ErrorUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, meResponse{Username: p.Identifier, Authorities: p.Authorities})
}

func (h *AuthHandler) record(op string, err error) {
	switch {
	case err == nil:
		h.metrics.RecordAuth(op, metrics.OutcomeSuccess)
	case errors.Is(err, common.ErrorUnauthorized), errors.Is(err, common.ErrConflict), errors.Is(err, common.ErrBadRequest):
		h.metrics.RecordAuth(op, metrics.OutcomeRejected)
	default:
		h.metrics.RecordAuth(op, metrics.OutcomeError)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAuthBody))
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return common.ErrBadRequest
	}
	return nil
}

func toAuthResponse(res *services.AuthResult) authResponse {
	return authResponse{Token: res.Token, ID: res.ID, Username: res.Username, Email: res.Email}
}
