package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mafia-live/backend/internal/apperr"
	"github.com/mafia-live/backend/internal/auth"
	"github.com/mafia-live/backend/internal/coordinator"
	"github.com/mafia-live/backend/internal/room"
	"github.com/mafia-live/backend/internal/types"
)

type Deps struct {
	Hub      *coordinator.Hub
	Verifier auth.Verifier
	Log      *zap.Logger
	WS       http.HandlerFunc
}

func CreateRoom(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, err := identityFrom(d, r)
		if err != nil {
			writeError(w, err)
			return
		}

		var body struct {
			Settings room.Settings `json:"settings"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, apperr.E(apperr.CodeValidation, "malformed request body"))
			return
		}

		view, err := d.Hub.CreateRoom(identity, body.Settings)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"room": view})
	}
}

func ListRooms(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := identityFrom(d, r); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"rooms": d.Hub.Rooms()})
	}
}

func GetRoom(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := identityFrom(d, r); err != nil {
			writeError(w, err)
			return
		}
		actor := d.Hub.Actor(chi.URLParam(r, "code"))
		if actor == nil {
			writeError(w, apperr.E(apperr.CodeNotFound, "room not found"))
			return
		}
		view, ok := actor.State()
		if !ok {
			writeError(w, apperr.E(apperr.CodeNotFound, "room not found"))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"room": types.NewRoomView(&view.Room)})
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func identityFrom(d Deps, r *http.Request) (auth.Identity, error) {
	h := r.Header.Get("Authorization")
	token := ""
	if strings.HasPrefix(h, "Bearer ") {
		token = strings.TrimPrefix(h, "Bearer ")
	}
	return d.Verifier.Verify(token)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

var statusByCode = map[apperr.Code]int{
	apperr.CodeValidation:  http.StatusBadRequest,
	apperr.CodeNotFound:    http.StatusNotFound,
	apperr.CodePermission:  http.StatusForbidden,
	apperr.CodeCapacity:    http.StatusConflict,
	apperr.CodeState:       http.StatusConflict,
	apperr.CodeAuth:        http.StatusUnauthorized,
	apperr.CodeRateLimited: http.StatusTooManyRequests,
}

func writeError(w http.ResponseWriter, err error) {
	code := apperr.CodeOf(err)
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, types.ErrorEvent{Code: string(code), Message: apperr.MessageOf(err)})
}
