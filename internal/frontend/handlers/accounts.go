package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/cory-johannsen/omok/internal/storage/postgres"
)

// maxAccountBody bounds account request bodies.
const maxAccountBody = 4 << 10

// AccountService defines the account operations required by AccountHandler.
type AccountService interface {
	Create(ctx context.Context, username, password, nickname string) (postgres.Account, error)
	Authenticate(ctx context.Context, username, password string) (postgres.Account, error)
	UsernameAvailable(ctx context.Context, username string) (bool, error)
}

// AccountHandler serves the account HTTP routes. It never touches the lobby;
// a nickname returned by login is registered by the client over the socket.
type AccountHandler struct {
	accounts AccountService
	logger   *zap.Logger
	mux      *http.ServeMux
}

// NewAccountHandler creates an AccountHandler.
//
// Precondition: accounts and logger must be non-nil.
func NewAccountHandler(accounts AccountService, logger *zap.Logger) *AccountHandler {
	h := &AccountHandler{
		accounts: accounts,
		logger:   logger,
		mux:      http.NewServeMux(),
	}
	h.mux.HandleFunc("POST /accounts", h.createAccount)
	h.mux.HandleFunc("POST /login", h.login)
	h.mux.HandleFunc("GET /accounts/{username}/available", h.usernameAvailable)
	return h
}

// Patterns lists the mux patterns this handler must be mounted on.
func (h *AccountHandler) Patterns() []string {
	return []string{"/accounts", "/accounts/", "/login"}
}

// ServeHTTP implements http.Handler.
func (h *AccountHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

type createAccountRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Nickname string `json:"nickname"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type accountResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Nickname string `json:"nickname"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *AccountHandler) createAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if !h.decode(w, r, &req) {
		return
	}
	acct, err := h.accounts.Create(r.Context(), req.Username, req.Password, req.Nickname)
	switch {
	case errors.Is(err, postgres.ErrUsernameTaken):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "username_taken"})
	case errors.Is(err, postgres.ErrInvalidAccount):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_request"})
	case err != nil:
		h.internalError(w, "creating account", err)
	default:
		h.logger.Info("account created",
			zap.Int64("account_id", acct.ID),
			zap.String("username", acct.Username),
		)
		writeJSON(w, http.StatusCreated, accountResponse{ID: acct.ID, Username: acct.Username, Nickname: acct.Nickname})
	}
}

func (h *AccountHandler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}
	acct, err := h.accounts.Authenticate(r.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, postgres.ErrAccountNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not_found"})
	case errors.Is(err, postgres.ErrBadPassword):
		h.logger.Info("login rejected", zap.String("username", req.Username))
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "bad_password"})
	case err != nil:
		h.internalError(w, "authenticating", err)
	default:
		writeJSON(w, http.StatusOK, accountResponse{ID: acct.ID, Username: acct.Username, Nickname: acct.Nickname})
	}
}

func (h *AccountHandler) usernameAvailable(w http.ResponseWriter, r *http.Request) {
	ok, err := h.accounts.UsernameAvailable(r.Context(), r.PathValue("username"))
	if err != nil {
		h.internalError(w, "checking username", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"available": ok})
}

func (h *AccountHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxAccountBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_request"})
		return false
	}
	return true
}

func (h *AccountHandler) internalError(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op, zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
