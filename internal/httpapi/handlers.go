// Package httpapi exposes the lookup and admin flows as a JSON API. The
// user-visible messages keep the Spanish texts the views show as toasts.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/CredencialAcceso/CredencialAcceso/internal/adminsession"
	"github.com/CredencialAcceso/CredencialAcceso/internal/common/config"
	"github.com/CredencialAcceso/CredencialAcceso/internal/common/httpserver"
	"github.com/CredencialAcceso/CredencialAcceso/internal/common/logger"
	"github.com/CredencialAcceso/CredencialAcceso/internal/common/middleware"
	"github.com/CredencialAcceso/CredencialAcceso/internal/draft"
	"github.com/CredencialAcceso/CredencialAcceso/internal/lookup"
	"github.com/CredencialAcceso/CredencialAcceso/internal/personnel"
	"github.com/CredencialAcceso/CredencialAcceso/internal/roster"
	"github.com/CredencialAcceso/CredencialAcceso/internal/vehicle"
)

type Handler struct {
	lookup   *lookup.Service
	roster   *roster.Service
	sessions *adminsession.Manager
	log      logger.Logger
}

func NewHandler(lookupSvc *lookup.Service, rosterSvc *roster.Service, sessions *adminsession.Manager, log logger.Logger) *Handler {
	return &Handler{lookup: lookupSvc, roster: rosterSvc, sessions: sessions, log: log}
}

// NewRouter assembles the full middleware chain around the API handler.
func NewRouter(cfg *config.Config, log logger.Logger, h *Handler) http.Handler {
	publicLimiter := middleware.NewTokenBucket(30, 10)
	return httpserver.Chain(h,
		httpserver.Recovery(log),
		httpserver.Tracing(cfg.Server.Name),
		httpserver.AccessLog(log),
		httpserver.RateLimit(publicLimiter, "/api/login", "/api/credential"),
		httpserver.JWTAuth(cfg.Auth, log),
	)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSuffix(r.URL.Path, "/")
	parts := splitPath(path)

	switch {
	case path == "/api/login" && r.Method == http.MethodPost:
		h.handleLogin(w, r)
	case path == "/api/logout" && r.Method == http.MethodPost:
		h.handleLogout(w, r)
	case path == "/api/credential" && r.Method == http.MethodGet:
		h.handleCredential(w, r)
	case path == "/api/credential/last" && r.Method == http.MethodGet:
		h.handleLastRUT(w, r)
	case path == "/api/personnel" && r.Method == http.MethodGet:
		h.handleRoster(w, r)
	case path == "/api/personnel" && r.Method == http.MethodPost:
		h.handleRegister(w, r)
	case len(parts) == 4 && parts[0] == "api" && parts[1] == "personnel" && parts[3] == "estado" && r.Method == http.MethodPost:
		h.handleToggleEstado(w, r, parts[2])
	case len(parts) == 3 && parts[0] == "api" && parts[1] == "personnel" && r.Method == http.MethodDelete:
		h.handleDeletePersonnel(w, r, parts[2])
	case len(parts) == 4 && parts[0] == "api" && parts[1] == "personnel" && parts[3] == "vehicles" && r.Method == http.MethodGet:
		h.handlePersonnelVehicles(w, r, parts[2])
	case len(parts) == 4 && parts[0] == "api" && parts[1] == "personnel" && parts[3] == "vehicles" && r.Method == http.MethodPost:
		h.handleAddVehicle(w, r, parts[2])
	case len(parts) == 3 && parts[0] == "api" && parts[1] == "vehicles" && r.Method == http.MethodDelete:
		h.handleDeleteVehicle(w, r, parts[2])
	case path == "/api/draft/vehicles" && r.Method == http.MethodGet:
		h.handleDraftList(w, r)
	case path == "/api/draft/vehicles" && r.Method == http.MethodPost:
		h.handleDraftAdd(w, r)
	case len(parts) == 4 && parts[0] == "api" && parts[1] == "draft" && parts[2] == "vehicles" && r.Method == http.MethodDelete:
		h.handleDraftRemove(w, r, parts[3])
	case len(parts) == 4 && parts[0] == "api" && parts[1] == "session" && parts[2] == "select" && r.Method == http.MethodPost:
		h.handleSelect(w, r, parts[3])
	case path == "/api/session/deselect" && r.Method == http.MethodPost:
		h.handleDeselect(w, r)
	case path == "/api/session/vehicles" && r.Method == http.MethodGet:
		h.handleModalVehicles(w, r)
	case path == "/api/session/vehicles" && r.Method == http.MethodPost:
		h.handleModalAddVehicle(w, r)
	default:
		writeMessage(w, http.StatusNotFound, "recurso no encontrado")
	}
}

func splitPath(path string) []string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) == 1 && parts[0] == "" {
		return nil
	}
	return parts
}

// ---- auth / session ----

type loginRequest struct {
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "solicitud inválida")
		return
	}

	token, exp, err := h.sessions.Login(req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: exp.Unix()})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if ai, ok := httpserver.AuthFromContext(r.Context()); ok {
		h.sessions.Logout(ai.Subject)
	}
	writeMessage(w, http.StatusOK, "sesión cerrada")
}

// session resolves the caller's admin session from the verified token.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*adminsession.Session, bool) {
	ai, ok := httpserver.AuthFromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "sesión no encontrada")
		return nil, false
	}
	s, err := h.sessions.Get(ai.Subject)
	if err != nil {
		writeMessage(w, http.StatusUnauthorized, "sesión no encontrada")
		return nil, false
	}
	return s, true
}

// ---- kiosk lookup ----

func (h *Handler) handleCredential(w http.ResponseWriter, r *http.Request) {
	deviceID := deviceID(r)
	cred, err := h.lookup.Lookup(r.Context(), deviceID, r.URL.Query().Get("rut"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cred)
}

func (h *Handler) handleLastRUT(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"rut": h.lookup.LastRUT(deviceID(r))})
}

func deviceID(r *http.Request) string {
	if d := strings.TrimSpace(r.Header.Get("X-Device-ID")); d != "" {
		return d
	}
	if d := strings.TrimSpace(r.URL.Query().Get("device")); d != "" {
		return d
	}
	return "default"
}

// ---- roster ----

type vehicleView struct {
	ID  string `json:"id"`
	PPU string `json:"ppu"`
}

type rosterCard struct {
	ID           string        `json:"id"`
	Nombre       string        `json:"nombre"`
	Cargo        string        `json:"cargo"`
	RUT          string        `json:"rut"`
	Estado       string        `json:"estado"`
	VehicleCount int           `json:"vehicle_count"`
	Vehicles     []vehicleView `json:"vehicles"`
}

func vehicleViews(vs []vehicle.Vehicle) []vehicleView {
	out := make([]vehicleView, 0, len(vs))
	for i := range vs {
		out = append(out, vehicleView{ID: vs[i].ID, PPU: vs[i].PPU})
	}
	return out
}

func (h *Handler) handleRoster(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.session(w, r); !ok {
		return
	}

	entries, err := h.roster.List(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	cards := make([]rosterCard, 0, len(entries))
	for _, e := range entries {
		cards = append(cards, rosterCard{
			ID:           e.Personnel.ID,
			Nombre:       e.Personnel.Nombre,
			Cargo:        e.Personnel.Cargo,
			RUT:          e.Personnel.RUT,
			Estado:       string(e.Personnel.Estado),
			VehicleCount: len(e.Vehicles),
			Vehicles:     vehicleViews(e.Vehicles),
		})
	}
	writeJSON(w, http.StatusOK, cards)
}

type registerRequest struct {
	RUT    string `json:"rut"`
	Nombre string `json:"nombre"`
	Cargo  string `json:"cargo"`
	Estado string `json:"estado"`
}

type registerResponse struct {
	Message   string     `json:"message"`
	Personnel rosterCard `json:"personnel"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "solicitud inválida")
		return
	}

	ppus := s.TakeDraft()
	res, err := h.roster.Register(r.Context(), roster.RegisterInput{
		RUT:    req.RUT,
		Nombre: req.Nombre,
		Cargo:  req.Cargo,
		Estado: personnel.Estado(strings.TrimSpace(req.Estado)),
		PPUs:   ppus,
	})
	if err != nil {
		// nothing was persisted; the draft survives the rejection
		s.RestoreDraft(ppus)
		h.writeError(w, err)
		return
	}

	msg := "Personal registrado exitosamente"
	switch {
	case res.VehicleErr != nil:
		msg = "Personal registrado pero error al agregar vehículos"
	case len(res.Vehicles) > 0:
		msg = "Personal y " + strconv.Itoa(len(res.Vehicles)) + " vehículo(s) registrados"
	}

	writeJSON(w, http.StatusCreated, registerResponse{
		Message: msg,
		Personnel: rosterCard{
			ID:           res.Personnel.ID,
			Nombre:       res.Personnel.Nombre,
			Cargo:        res.Personnel.Cargo,
			RUT:          res.Personnel.RUT,
			Estado:       string(res.Personnel.Estado),
			VehicleCount: len(res.Vehicles),
			Vehicles:     vehicleViews(res.Vehicles),
		},
	})
}

func (h *Handler) handleToggleEstado(w http.ResponseWriter, r *http.Request, id string) {
	if _, ok := h.session(w, r); !ok {
		return
	}

	next, err := h.roster.ToggleEstado(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Estado: " + string(next),
		"estado":  string(next),
	})
}

func (h *Handler) handleDeletePersonnel(w http.ResponseWriter, r *http.Request, id string) {
	if _, ok := h.session(w, r); !ok {
		return
	}
	if !confirmed(r) {
		writeMessage(w, http.StatusBadRequest, "confirmación requerida")
		return
	}

	if err := h.roster.Delete(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Personal eliminado")
}

func (h *Handler) handlePersonnelVehicles(w http.ResponseWriter, r *http.Request, id string) {
	if _, ok := h.session(w, r); !ok {
		return
	}

	vs, err := h.roster.Vehicles(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vehicleViews(vs))
}

func (h *Handler) handleAddVehicle(w http.ResponseWriter, r *http.Request, personnelID string) {
	if _, ok := h.session(w, r); !ok {
		return
	}

	var req draftAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "solicitud inválida")
		return
	}

	v, err := h.roster.AddVehicle(r.Context(), personnelID, req.PPU)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Vehículo agregado",
		"vehicle": vehicleView{ID: v.ID, PPU: v.PPU},
	})
}

func (h *Handler) handleDeleteVehicle(w http.ResponseWriter, r *http.Request, id string) {
	if _, ok := h.session(w, r); !ok {
		return
	}
	if !confirmed(r) {
		writeMessage(w, http.StatusBadRequest, "confirmación requerida")
		return
	}

	if err := h.roster.DeleteVehicle(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Vehículo eliminado")
}

// ---- draft vehicle list ----

type draftAddRequest struct {
	PPU string `json:"ppu"`
}

func (h *Handler) handleDraftList(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"ppus": s.DraftPPUs()})
}

func (h *Handler) handleDraftAdd(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req draftAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "solicitud inválida")
		return
	}
	if err := s.AddDraftPPU(req.PPU); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"ppus": s.DraftPPUs()})
}

func (h *Handler) handleDraftRemove(w http.ResponseWriter, r *http.Request, idx string) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	i, err := strconv.Atoi(idx)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "posición inválida")
		return
	}
	if err := s.RemoveDraftPPU(i); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"ppus": s.DraftPPUs()})
}

// ---- vehicle modal (session-scoped) ----

func (h *Handler) handleSelect(w http.ResponseWriter, r *http.Request, personnelID string) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	vs, err := h.roster.Vehicles(r.Context(), personnelID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	s.SelectPersonnel(personnelID)
	writeJSON(w, http.StatusOK, vehicleViews(vs))
}

func (h *Handler) handleDeselect(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.ClearSelection()
	writeMessage(w, http.StatusOK, "selección borrada")
}

func (h *Handler) handleModalVehicles(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	personnelID, err := s.Selected()
	if err != nil {
		h.writeError(w, err)
		return
	}
	vs, err := h.roster.Vehicles(r.Context(), personnelID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vehicleViews(vs))
}

func (h *Handler) handleModalAddVehicle(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	personnelID, err := s.Selected()
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.handleAddVehicle(w, r, personnelID)
}

// ---- shared helpers ----

func confirmed(r *http.Request) bool {
	return r.URL.Query().Get("confirm") == "true"
}

// writeError maps domain errors onto status codes; anything unclassified is
// a generic 500 so store internals never leak to the views.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, roster.ErrMissingFields),
		errors.Is(err, roster.ErrInvalidRUT),
		errors.Is(err, lookup.ErrEmptyRUT),
		errors.Is(err, draft.ErrEmptyPPU),
		errors.Is(err, draft.ErrPPUTooShort),
		errors.Is(err, draft.ErrBadIndex):
		writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, draft.ErrDuplicatePPU),
		errors.Is(err, adminsession.ErrNoSelection):
		writeMessage(w, http.StatusConflict, err.Error())
	case errors.Is(err, roster.ErrRUTExists):
		writeMessage(w, http.StatusConflict, err.Error())
	case errors.Is(err, roster.ErrNotFound), errors.Is(err, lookup.ErrNotFound):
		writeMessage(w, http.StatusNotFound, err.Error())
	case errors.Is(err, adminsession.ErrBadPassword):
		writeMessage(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, middleware.ErrCircuitOpen):
		writeMessage(w, http.StatusServiceUnavailable, "base de datos no disponible")
	default:
		if h.log != nil {
			h.log.Errorf("request failed: %v", err)
		}
		writeMessage(w, http.StatusInternalServerError, "error interno")
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
