package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/CredencialAcceso/CredencialAcceso/internal/adminsession"
	"github.com/CredencialAcceso/CredencialAcceso/internal/common/config"
	"github.com/CredencialAcceso/CredencialAcceso/internal/common/middleware"
	"github.com/CredencialAcceso/CredencialAcceso/internal/lookup"
	"github.com/CredencialAcceso/CredencialAcceso/internal/personnel"
	"github.com/CredencialAcceso/CredencialAcceso/internal/roster"
	"github.com/CredencialAcceso/CredencialAcceso/internal/testutil"
	"github.com/CredencialAcceso/CredencialAcceso/internal/vehicle"
)

func newTestAPI(t *testing.T) http.Handler {
	t.Helper()

	cfg := &config.Config{}
	cfg.Server.Name = "credencial-service"
	cfg.Auth = config.AuthConfig{
		Enabled:         true,
		JWTSecret:       "test-secret",
		Issuer:          "credencial-service",
		Audience:        "credencial-admin",
		TokenTTLMinutes: 60,
		AdminPassword:   "admin123",
		PublicPaths:     []string{"/api/login", "/api/credential", "/api/credential/last"},
	}

	gdb := testutil.OpenTestDB(t, &personnel.Personnel{}, &vehicle.Vehicle{})
	people := personnel.NewRepo(gdb)
	vehicles := vehicle.NewRepo(gdb)

	breaker := middleware.NewCircuitBreaker("lookup-db", 5, time.Second)
	lookupSvc := lookup.NewService(people, vehicles, lookup.NewMemoryStore(), breaker, nil)
	rosterSvc := roster.NewService(people, vehicles, nil)
	sessions := adminsession.NewManager(cfg.Auth)

	return NewRouter(cfg, nil, NewHandler(lookupSvc, rosterSvc, sessions, nil))
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, into interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), into); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func loginToken(t *testing.T, h http.Handler) string {
	t.Helper()

	rec := doJSON(t, h, http.MethodPost, "/api/login", "", loginRequest{Password: "admin123"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", rec.Code, rec.Body.String())
	}
	var res loginResponse
	decode(t, rec, &res)
	if res.Token == "" {
		t.Fatal("login returned empty token")
	}
	return res.Token
}

func TestLoginRejectsBadPassword(t *testing.T) {
	h := newTestAPI(t)

	rec := doJSON(t, h, http.MethodPost, "/api/login", "", loginRequest{Password: "nope"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	var res map[string]string
	decode(t, rec, &res)
	if res["message"] != "contraseña incorrecta" {
		t.Fatalf("message = %q", res["message"])
	}
}

func TestAdminRoutesRequireToken(t *testing.T) {
	h := newTestAPI(t)

	rec := doJSON(t, h, http.MethodGet, "/api/personnel", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

// Register with a two-plate draft, then confirm the roster card and the
// public kiosk lookup both show the plates in insertion order.
func TestRegisterWithDraftEndToEnd(t *testing.T) {
	h := newTestAPI(t)
	token := loginToken(t, h)

	for _, ppu := range []string{"xy12ab", "ZT99QQ"} {
		rec := doJSON(t, h, http.MethodPost, "/api/draft/vehicles", token, draftAddRequest{PPU: ppu})
		if rec.Code != http.StatusOK {
			t.Fatalf("draft add %q: status = %d, body %s", ppu, rec.Code, rec.Body.String())
		}
	}

	rec := doJSON(t, h, http.MethodPost, "/api/personnel", token, registerRequest{
		RUT:    "22222222-2",
		Nombre: "Ana Soto",
		Cargo:  "Supervisora",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d, body %s", rec.Code, rec.Body.String())
	}
	var created registerResponse
	decode(t, rec, &created)
	if created.Personnel.VehicleCount != 2 {
		t.Fatalf("vehicle_count = %d, want 2", created.Personnel.VehicleCount)
	}

	// draft must be consumed by the successful registration
	rec = doJSON(t, h, http.MethodGet, "/api/draft/vehicles", token, nil)
	var draftRes map[string][]string
	decode(t, rec, &draftRes)
	if len(draftRes["ppus"]) != 0 {
		t.Fatalf("draft after register = %v, want empty", draftRes["ppus"])
	}

	rec = doJSON(t, h, http.MethodGet, "/api/personnel", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("roster status = %d", rec.Code)
	}
	var cards []rosterCard
	decode(t, rec, &cards)
	if len(cards) != 1 {
		t.Fatalf("roster size = %d, want 1", len(cards))
	}
	card := cards[0]
	if card.RUT != "22222222-2" || card.Estado != "Autorizado" || card.VehicleCount != 2 {
		t.Fatalf("unexpected card: %+v", card)
	}
	if card.Vehicles[0].PPU != "XY12AB" || card.Vehicles[1].PPU != "ZT99QQ" {
		t.Fatalf("plates = %v", card.Vehicles)
	}

	// kiosk lookup is public and accepts unformatted input
	rec = doJSON(t, h, http.MethodGet, "/api/credential?rut=222222222&device=kiosk-1", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("lookup status = %d, body %s", rec.Code, rec.Body.String())
	}
	var cred lookup.Credential
	decode(t, rec, &cred)
	if cred.RUT != "22222222-2" || len(cred.PPUs) != 2 {
		t.Fatalf("credential = %+v", cred)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/credential/last?device=kiosk-1", "", nil)
	var last map[string]string
	decode(t, rec, &last)
	if last["rut"] != "22222222-2" {
		t.Fatalf("last rut = %q", last["rut"])
	}
}

func TestRegisterDuplicateRUT(t *testing.T) {
	h := newTestAPI(t)
	token := loginToken(t, h)

	in := registerRequest{RUT: "12345678-5", Nombre: "Pedro Rojas", Cargo: "Guardia"}
	if rec := doJSON(t, h, http.MethodPost, "/api/personnel", token, in); rec.Code != http.StatusCreated {
		t.Fatalf("first register status = %d", rec.Code)
	}

	rec := doJSON(t, h, http.MethodPost, "/api/personnel", token, in)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate status = %d, want 409", rec.Code)
	}
	var res map[string]string
	decode(t, rec, &res)
	if res["message"] != "RUT ya registrado" {
		t.Fatalf("message = %q", res["message"])
	}
}

func TestToggleEstado(t *testing.T) {
	h := newTestAPI(t)
	token := loginToken(t, h)

	rec := doJSON(t, h, http.MethodPost, "/api/personnel", token, registerRequest{
		RUT: "11111111-1", Nombre: "Rosa Díaz", Cargo: "Conserje",
	})
	var created registerResponse
	decode(t, rec, &created)

	rec = doJSON(t, h, http.MethodPost, "/api/personnel/"+created.Personnel.ID+"/estado", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("toggle status = %d", rec.Code)
	}
	var res map[string]string
	decode(t, rec, &res)
	if res["estado"] != "No Autorizado" {
		t.Fatalf("estado = %q, want No Autorizado", res["estado"])
	}
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	h := newTestAPI(t)
	token := loginToken(t, h)

	rec := doJSON(t, h, http.MethodPost, "/api/personnel", token, registerRequest{
		RUT: "11111111-1", Nombre: "Rosa Díaz", Cargo: "Conserje",
	})
	var created registerResponse
	decode(t, rec, &created)
	id := created.Personnel.ID

	if rec := doJSON(t, h, http.MethodDelete, "/api/personnel/"+id, token, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("unconfirmed delete status = %d, want 400", rec.Code)
	}

	if rec := doJSON(t, h, http.MethodDelete, "/api/personnel/"+id+"?confirm=true", token, nil); rec.Code != http.StatusOK {
		t.Fatalf("confirmed delete status = %d, body %s", rec.Code, rec.Body.String())
	}

	// the kiosk must no longer find the record
	if rec := doJSON(t, h, http.MethodGet, "/api/credential?rut=11111111-1", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("lookup after delete status = %d, want 404", rec.Code)
	}
}

func TestVehicleModalFlow(t *testing.T) {
	h := newTestAPI(t)
	token := loginToken(t, h)

	rec := doJSON(t, h, http.MethodPost, "/api/personnel", token, registerRequest{
		RUT: "7654321-6", Nombre: "Luis Vera", Cargo: "Chofer",
	})
	var created registerResponse
	decode(t, rec, &created)
	id := created.Personnel.ID

	// adding without an open modal is rejected
	rec = doJSON(t, h, http.MethodPost, "/api/session/vehicles", token, draftAddRequest{PPU: "AB12CD"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("add without selection status = %d, want 409", rec.Code)
	}

	if rec := doJSON(t, h, http.MethodPost, "/api/session/select/"+id, token, nil); rec.Code != http.StatusOK {
		t.Fatalf("select status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodPost, "/api/session/vehicles", token, draftAddRequest{PPU: "ab12cd"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("modal add status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodGet, "/api/session/vehicles", token, nil)
	var vs []vehicleView
	decode(t, rec, &vs)
	if len(vs) != 1 || vs[0].PPU != "AB12CD" {
		t.Fatalf("modal vehicles = %+v", vs)
	}

	rec = doJSON(t, h, http.MethodDelete, "/api/vehicles/"+vs[0].ID+"?confirm=true", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("vehicle delete status = %d", rec.Code)
	}

	// closing the modal clears the scope
	if rec := doJSON(t, h, http.MethodPost, "/api/session/deselect", token, nil); rec.Code != http.StatusOK {
		t.Fatalf("deselect status = %d", rec.Code)
	}
	rec = doJSON(t, h, http.MethodPost, "/api/session/vehicles", token, draftAddRequest{PPU: "ZZ99XX"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("add after deselect status = %d, want 409", rec.Code)
	}

	// the per-person route still works without an open modal
	rec = doJSON(t, h, http.MethodPost, "/api/personnel/"+id+"/vehicles", token, draftAddRequest{PPU: "ZZ99XX"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("direct add status = %d, body %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, h, http.MethodGet, "/api/personnel/"+id+"/vehicles", token, nil)
	decode(t, rec, &vs)
	if len(vs) != 1 || vs[0].PPU != "ZZ99XX" {
		t.Fatalf("vehicles after direct add = %+v", vs)
	}
}

func TestDraftRemoveByPosition(t *testing.T) {
	h := newTestAPI(t)
	token := loginToken(t, h)

	for _, ppu := range []string{"AA11BB", "CC22DD", "EE33FF"} {
		doJSON(t, h, http.MethodPost, "/api/draft/vehicles", token, draftAddRequest{PPU: ppu})
	}

	rec := doJSON(t, h, http.MethodDelete, "/api/draft/vehicles/1", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("remove status = %d", rec.Code)
	}
	var res map[string][]string
	decode(t, rec, &res)
	if len(res["ppus"]) != 2 || res["ppus"][0] != "AA11BB" || res["ppus"][1] != "EE33FF" {
		t.Fatalf("ppus = %v", res["ppus"])
	}

	if rec := doJSON(t, h, http.MethodDelete, "/api/draft/vehicles/9", token, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("out-of-range remove status = %d, want 400", rec.Code)
	}

	// a short or duplicate plate never reaches the draft
	if rec := doJSON(t, h, http.MethodPost, "/api/draft/vehicles", token, draftAddRequest{PPU: "ab"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("short ppu status = %d, want 400", rec.Code)
	}
	if rec := doJSON(t, h, http.MethodPost, "/api/draft/vehicles", token, draftAddRequest{PPU: "aa11bb"}); rec.Code != http.StatusConflict {
		t.Fatalf("duplicate ppu status = %d, want 409", rec.Code)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	h := newTestAPI(t)
	token := loginToken(t, h)

	if rec := doJSON(t, h, http.MethodPost, "/api/logout", token, nil); rec.Code != http.StatusOK {
		t.Fatalf("logout status = %d", rec.Code)
	}
	// the token still verifies, but the server-side session is gone
	if rec := doJSON(t, h, http.MethodGet, "/api/personnel", token, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("status after logout = %d, want 401", rec.Code)
	}
}

func TestLookupEmptyRUT(t *testing.T) {
	h := newTestAPI(t)

	rec := doJSON(t, h, http.MethodGet, "/api/credential?rut=", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var res map[string]string
	decode(t, rec, &res)
	if res["message"] != "por favor ingrese un RUT" {
		t.Fatalf("message = %q", res["message"])
	}
}
