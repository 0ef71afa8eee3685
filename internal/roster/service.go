// Package roster implements the admin-side personnel and vehicle use cases:
// registration, listing, status toggling and deletion. It does not depend on
// the HTTP layer, so flows are reusable and testable on their own.
package roster

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/CredencialAcceso/CredencialAcceso/internal/common/db"
	"github.com/CredencialAcceso/CredencialAcceso/internal/common/logger"
	"github.com/CredencialAcceso/CredencialAcceso/internal/draft"
	"github.com/CredencialAcceso/CredencialAcceso/internal/personnel"
	"github.com/CredencialAcceso/CredencialAcceso/internal/rut"
	"github.com/CredencialAcceso/CredencialAcceso/internal/vehicle"
	"github.com/google/uuid"
)

var (
	// ErrMissingFields rut/nombre/cargo are all required.
	ErrMissingFields = errors.New("complete todos los campos obligatorios")
	// ErrInvalidRUT the identifier fails the check-digit verification.
	ErrInvalidRUT = errors.New("RUT inválido")
	// ErrRUTExists the identifier is already registered.
	ErrRUTExists = errors.New("RUT ya registrado")
	// ErrNotFound the referenced personnel row does not exist.
	ErrNotFound = errors.New("personal no encontrado")
)

type Service struct {
	people   *personnel.Repo
	vehicles *vehicle.Repo
	log      logger.Logger
}

func NewService(people *personnel.Repo, vehicles *vehicle.Repo, log logger.Logger) *Service {
	return &Service{people: people, vehicles: vehicles, log: log}
}

// RegisterInput is the draft record collected by the registration form.
type RegisterInput struct {
	RUT    string
	Nombre string
	Cargo  string
	Estado personnel.Estado // defaults to Autorizado
	PPUs   []string         // draft vehicle list snapshot
}

// RegisterResult reports the two-phase outcome. Personnel is always set on
// return without error; VehicleErr carries a phase-2 failure that did NOT
// roll phase 1 back.
type RegisterResult struct {
	Personnel  *personnel.Personnel
	Vehicles   []vehicle.Vehicle
	VehicleErr error
}

// Register inserts the personnel row and then bulk-inserts the draft
// vehicles referencing its generated id.
//
// Phase ordering per the two-phase contract: a duplicate or failed personnel
// insert stops everything (no vehicle rows are touched); a vehicle batch
// failure leaves the already-created personnel row in place and is reported
// via RegisterResult.VehicleErr.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	if s == nil || s.people == nil {
		return nil, fmt.Errorf("service not initialized")
	}

	normalized := rut.Normalize(in.RUT)
	nombre := strings.TrimSpace(in.Nombre)
	cargo := strings.TrimSpace(in.Cargo)
	if normalized == "" || nombre == "" || cargo == "" {
		return nil, ErrMissingFields
	}
	if !rut.Valid(normalized) {
		return nil, ErrInvalidRUT
	}

	estado := in.Estado
	if !estado.Valid() {
		estado = personnel.EstadoAutorizado
	}

	ppus, err := normalizeBatch(in.PPUs)
	if err != nil {
		return nil, err
	}

	p := &personnel.Personnel{
		ID:     uuid.NewString(),
		RUT:    normalized,
		Nombre: nombre,
		Cargo:  cargo,
		Estado: estado,
	}
	if err := s.people.Create(ctx, p); err != nil {
		if db.IsDuplicateKey(err) {
			return nil, ErrRUTExists
		}
		return nil, fmt.Errorf("insert personnel: %w", err)
	}

	res := &RegisterResult{Personnel: p}
	if len(ppus) == 0 {
		return res, nil
	}

	batch := make([]vehicle.Vehicle, 0, len(ppus))
	for _, ppu := range ppus {
		batch = append(batch, vehicle.Vehicle{
			ID:          uuid.NewString(),
			PersonnelID: p.ID,
			PPU:         ppu,
		})
	}
	if err := s.vehicles.CreateBatch(ctx, batch); err != nil {
		if s.log != nil {
			s.log.Errorf("personnel %s created but vehicle batch failed: %v", p.ID, err)
		}
		res.VehicleErr = err
		return res, nil
	}
	res.Vehicles = batch
	return res, nil
}

// normalizeBatch applies the plate entry rules to the whole draft snapshot,
// dropping duplicates within the batch.
func normalizeBatch(raw []string) ([]string, error) {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, r := range raw {
		ppu := vehicle.NormalizePPU(r)
		if ppu == "" {
			return nil, draft.ErrEmptyPPU
		}
		if len(ppu) < vehicle.MinPPULen {
			return nil, draft.ErrPPUTooShort
		}
		if _, dup := seen[ppu]; dup {
			continue
		}
		seen[ppu] = struct{}{}
		out = append(out, ppu)
	}
	return out, nil
}

// Entry is one roster card: a person plus their vehicles.
type Entry struct {
	Personnel personnel.Personnel
	Vehicles  []vehicle.Vehicle
}

// List returns the roster newest-first. Vehicles for the whole roster come
// from a single batched query grouped by personnel id, instead of one query
// per person. An empty roster is a valid empty slice.
func (s *Service) List(ctx context.Context) ([]Entry, error) {
	people, err := s.people.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list personnel: %w", err)
	}

	ids := make([]string, 0, len(people))
	for i := range people {
		ids = append(ids, people[i].ID)
	}
	grouped, err := s.vehicles.ListByPersonnelIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}

	entries := make([]Entry, 0, len(people))
	for i := range people {
		entries = append(entries, Entry{
			Personnel: people[i],
			Vehicles:  grouped[people[i].ID],
		})
	}
	return entries, nil
}

// ToggleEstado flips the person's status and returns the new value.
// Applying it twice restores the original state.
func (s *Service) ToggleEstado(ctx context.Context, id string) (personnel.Estado, error) {
	p, err := s.people.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("find personnel: %w", err)
	}

	next := p.Estado.Toggle()
	if err := s.people.UpdateEstado(ctx, id, next); err != nil {
		return "", fmt.Errorf("update estado: %w", err)
	}
	return next, nil
}

// Delete removes the person's vehicles first and then the personnel row, so
// a partial failure can never leave orphaned vehicle rows. A vehicle-delete
// failure aborts the flow and keeps the personnel row.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.people.FindByID(ctx, id); err != nil {
		if db.IsNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("find personnel: %w", err)
	}

	if err := s.vehicles.DeleteByPersonnel(ctx, id); err != nil {
		if s.log != nil {
			s.log.Errorf("vehicle cascade failed for personnel %s: %v", id, err)
		}
		return fmt.Errorf("delete vehicles: %w", err)
	}
	if err := s.people.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete personnel: %w", err)
	}
	return nil
}

// Vehicles lists one person's vehicles for the vehicle modal.
func (s *Service) Vehicles(ctx context.Context, personnelID string) ([]vehicle.Vehicle, error) {
	if _, err := s.people.FindByID(ctx, personnelID); err != nil {
		if db.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find personnel: %w", err)
	}
	return s.vehicles.ListByPersonnel(ctx, personnelID)
}

// AddVehicle inserts one plate for the person. The plate entry rules here
// are the same ones the draft list applies.
func (s *Service) AddVehicle(ctx context.Context, personnelID, rawPPU string) (*vehicle.Vehicle, error) {
	ppu := vehicle.NormalizePPU(rawPPU)
	if ppu == "" {
		return nil, draft.ErrEmptyPPU
	}
	if len(ppu) < vehicle.MinPPULen {
		return nil, draft.ErrPPUTooShort
	}

	if _, err := s.people.FindByID(ctx, personnelID); err != nil {
		if db.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find personnel: %w", err)
	}

	v := &vehicle.Vehicle{
		ID:          uuid.NewString(),
		PersonnelID: personnelID,
		PPU:         ppu,
	}
	if err := s.vehicles.Create(ctx, v); err != nil {
		return nil, fmt.Errorf("insert vehicle: %w", err)
	}
	return v, nil
}

// DeleteVehicle removes a single vehicle row by its own id.
func (s *Service) DeleteVehicle(ctx context.Context, vehicleID string) error {
	if err := s.vehicles.Delete(ctx, vehicleID); err != nil {
		if db.IsNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("delete vehicle: %w", err)
	}
	return nil
}
