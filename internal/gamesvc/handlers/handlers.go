package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/avvvet/rps-services/internal/comm"
	"github.com/avvvet/rps-services/internal/gamesvc/service"
	"github.com/avvvet/rps-services/internal/rps"
	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type Handler struct {
	tokenAuth *jwtauth.JWTAuth
	games     *service.GameService
	balances  *service.BalanceService
	port      string
}

func NewHandler(tokenAuth *jwtauth.JWTAuth, games *service.GameService, balances *service.BalanceService, port string) *Handler {
	return &Handler{
		tokenAuth: tokenAuth,
		games:     games,
		balances:  balances,
		port:      port,
	}
}

type Response struct {
	Message string      `json:"message"`
	Code    int         `json:"code"`
	Data    interface{} `json:"data"`
	Error   string      `json:"error,omitempty"`
	Reason  string      `json:"reason,omitempty"` // stable error code, e.g. "bet_mismatch"
}

func (h *Handler) CreateResponse(w http.ResponseWriter, rsp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rsp.Code)

	json.NewEncoder(w).Encode(rsp)
}

func (h *Handler) ok(w http.ResponseWriter, message string, data interface{}) {
	h.CreateResponse(w, Response{Message: message, Code: http.StatusOK, Data: data})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := StatusCode(err)
	if code == http.StatusInternalServerError {
		log.WithFields(log.Fields{"path": r.URL.Path, "error": err}).Error("request failed")
	}
	h.CreateResponse(w, Response{
		Message: "request failed",
		Code:    code,
		Error:   service.ErrorMessage(err),
		Reason:  service.ErrorCode(err),
	})
}

// StatusCode maps engine errors to HTTP statuses.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, rps.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, rps.ErrUnauthorizedCaller):
		return http.StatusForbidden
	case errors.Is(err, rps.ErrInvalidState),
		errors.Is(err, rps.ErrAlreadyCommitted),
		errors.Is(err, rps.ErrAlreadyRevealed),
		errors.Is(err, rps.ErrNoFunds),
		errors.Is(err, rps.ErrTimeoutDisabled),
		errors.Is(err, rps.ErrTimeoutNotReached),
		errors.Is(err, rps.ErrAmountOverflow):
		return http.StatusConflict
	case errors.Is(err, rps.ErrInvalidBet),
		errors.Is(err, rps.ErrInvalidOpponent),
		errors.Is(err, rps.ErrBetMismatch),
		errors.Is(err, rps.ErrInvalidMove),
		errors.Is(err, rps.ErrInvalidCommitment),
		errors.Is(err, service.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, rps.ErrCommitmentMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, rps.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	}
	return http.StatusInternalServerError
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	h.ok(w, "game service is running at port "+h.port, nil)
}

func (h *Handler) CreateGame(w http.ResponseWriter, r *http.Request) {
	var req comm.CreateGameRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	created, err := h.games.CreateGame(r.Context(), caller(r), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.CreateResponse(w, Response{Message: "game created", Code: http.StatusCreated, Data: created})
}

func (h *Handler) JoinGame(w http.ResponseWriter, r *http.Request) {
	var req comm.JoinGameRequest
	if err := decodeWithID(r, &req, &req.GameId); err != nil {
		h.fail(w, r, err)
		return
	}

	view, err := h.games.JoinGame(r.Context(), caller(r), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "game joined", view)
}

func (h *Handler) CommitMove(w http.ResponseWriter, r *http.Request) {
	var req comm.CommitMoveRequest
	if err := decodeWithID(r, &req, &req.GameId); err != nil {
		h.fail(w, r, err)
		return
	}

	view, err := h.games.CommitMove(r.Context(), caller(r), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "move committed", view)
}

func (h *Handler) RevealMove(w http.ResponseWriter, r *http.Request) {
	var req comm.RevealMoveRequest
	if err := decodeWithID(r, &req, &req.GameId); err != nil {
		h.fail(w, r, err)
		return
	}

	view, err := h.games.RevealMove(r.Context(), caller(r), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "move revealed", view)
}

func (h *Handler) ClaimTimeout(w http.ResponseWriter, r *http.Request) {
	id, err := gameID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	view, err := h.games.ClaimTimeout(r.Context(), caller(r), comm.GameRequest{GameId: id})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "timeout claimed", view)
}

func (h *Handler) GetGame(w http.ResponseWriter, r *http.Request) {
	id, err := gameID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	view, err := h.games.GetGame(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "game", view)
}

func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	withdrawal, err := h.games.Withdraw(r.Context(), caller(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "balance withdrawn", withdrawal)
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	bal, err := h.balances.GetBalance(r.Context(), chi.URLParam(r, "account"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "balance", bal)
}

func gameID(r *http.Request) (uint64, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, errors.Wrapf(service.ErrBadRequest, "invalid game id %q", chi.URLParam(r, "id"))
	}
	return id, nil
}

func decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		// an unknown move name is reported as such
		if errors.Is(err, rps.ErrInvalidMove) {
			return err
		}
		return errors.Wrapf(service.ErrBadRequest, "decode body: %v", err)
	}
	return nil
}

// decodeWithID decodes the body into v and then sets id from the path, so
// the path always wins over a game id sent in the body.
func decodeWithID(r *http.Request, v interface{}, id *uint64) error {
	gid, err := gameID(r)
	if err != nil {
		return err
	}
	if err := decode(r, v); err != nil {
		return err
	}
	*id = gid
	return nil
}
