// Package lookup implements the kiosk credential lookup: RUT in, credential
// card out, with the device's last successful search remembered for
// pre-filling the field on the next visit.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/CredencialAcceso/CredencialAcceso/internal/common/db"
	"github.com/CredencialAcceso/CredencialAcceso/internal/common/logger"
	"github.com/CredencialAcceso/CredencialAcceso/internal/common/middleware"
	"github.com/CredencialAcceso/CredencialAcceso/internal/personnel"
	"github.com/CredencialAcceso/CredencialAcceso/internal/rut"
	"github.com/CredencialAcceso/CredencialAcceso/internal/vehicle"
)

var (
	// ErrEmptyRUT empty input; nothing is queried.
	ErrEmptyRUT = errors.New("por favor ingrese un RUT")
	// ErrNotFound no personnel row matches the identifier.
	ErrNotFound = errors.New("personal no encontrado")
)

// Credential is the rendered card content.
type Credential struct {
	Nombre   string           `json:"nombre"`
	Cargo    string           `json:"cargo"`
	RUT      string           `json:"rut"`
	Estado   personnel.Estado `json:"estado"`
	IssuedAt time.Time        `json:"issued_at"`
	PPUs     []string         `json:"ppus"` // empty means "Sin vehículos"
}

type Service struct {
	people   *personnel.Repo
	vehicles *vehicle.Repo
	last     Store
	breaker  *middleware.CircuitBreaker
	log      logger.Logger
}

// NewService wires the lookup flow. breaker may be nil to run unguarded
// (tests); the production path guards the remote store with it since the
// kiosk is public and unauthenticated.
func NewService(people *personnel.Repo, vehicles *vehicle.Repo, last Store, breaker *middleware.CircuitBreaker, log logger.Logger) *Service {
	return &Service{people: people, vehicles: vehicles, last: last, breaker: breaker, log: log}
}

// Lookup resolves a credential card for the given raw identifier.
//
// The device's persisted RUT is written only after the person is confirmed
// to exist, and cleared on a miss so a stale pre-fill never survives a
// failed search.
func (s *Service) Lookup(ctx context.Context, deviceID, rawRUT string) (*Credential, error) {
	normalized := rut.Normalize(rawRUT)
	if normalized == "" {
		return nil, ErrEmptyRUT
	}

	var p *personnel.Personnel
	var findErr error
	err := s.guard(ctx, func() error {
		p, findErr = s.people.FindByRUT(ctx, normalized)
		if db.IsNotFound(findErr) {
			// a miss is a valid store answer, not a breaker failure
			return nil
		}
		return findErr
	})
	if err == nil {
		err = findErr
	}
	if err != nil {
		// miss and query failure both render "no results"; a stale pre-fill
		// must not survive either
		if s.last != nil {
			_ = s.last.Delete(deviceID)
		}
		if db.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find personnel: %w", err)
	}

	if s.last != nil {
		if err := s.last.Set(deviceID, normalized); err != nil && s.log != nil {
			s.log.Warnf("failed to persist last RUT for device %s: %v", deviceID, err)
		}
	}

	ppus := []string{}
	vs, err := s.vehicles.ListByPersonnel(ctx, p.ID)
	if err != nil {
		// the card still renders without plates
		if s.log != nil {
			s.log.Warnf("vehicle fetch failed for personnel %s: %v", p.ID, err)
		}
	} else {
		for i := range vs {
			ppus = append(ppus, vs[i].PPU)
		}
	}

	return &Credential{
		Nombre:   p.Nombre,
		Cargo:    p.Cargo,
		RUT:      p.RUT,
		Estado:   p.Estado,
		IssuedAt: time.Now(),
		PPUs:     ppus,
	}, nil
}

// LastRUT returns the device's remembered identifier, "" when none.
func (s *Service) LastRUT(deviceID string) string {
	if s.last == nil {
		return ""
	}
	v, _ := s.last.Get(deviceID)
	return v
}

func (s *Service) guard(ctx context.Context, fn func() error) error {
	if s.breaker == nil {
		return fn()
	}
	return s.breaker.Call(ctx, fn)
}
