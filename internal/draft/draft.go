// Package draft holds the vehicle plates an administrator queues up before
// submitting a registration. The list has no store representation until the
// registration is submitted.
package draft

import (
	"errors"
	"fmt"

	"github.com/CredencialAcceso/CredencialAcceso/internal/vehicle"
)

// Rejection causes surface to the user as toasts, so the texts stay
// user-facing Spanish.
var (
	ErrEmptyPPU     = errors.New("ingrese una PPU válida")
	ErrPPUTooShort  = fmt.Errorf("PPU debe tener al menos %d caracteres", vehicle.MinPPULen)
	ErrDuplicatePPU = errors.New("PPU ya agregada")
	ErrBadIndex     = errors.New("posición inválida")
)

// VehicleList is the append-only draft of plates. Plates are stored
// normalized; duplicates are rejected after normalization.
//
// Access is confined to a single admin session, so no locking here: the
// owning session serializes mutation.
type VehicleList struct {
	ppus []string
}

// Add validates and appends a plate.
func (l *VehicleList) Add(raw string) error {
	ppu := vehicle.NormalizePPU(raw)
	if ppu == "" {
		return ErrEmptyPPU
	}
	if len(ppu) < vehicle.MinPPULen {
		return ErrPPUTooShort
	}
	for _, existing := range l.ppus {
		if existing == ppu {
			return ErrDuplicatePPU
		}
	}
	l.ppus = append(l.ppus, ppu)
	return nil
}

// Remove drops the plate at position i.
func (l *VehicleList) Remove(i int) error {
	if i < 0 || i >= len(l.ppus) {
		return ErrBadIndex
	}
	l.ppus = append(l.ppus[:i], l.ppus[i+1:]...)
	return nil
}

// PPUs returns a copy of the current plates in insertion order.
func (l *VehicleList) PPUs() []string {
	out := make([]string, len(l.ppus))
	copy(out, l.ppus)
	return out
}

// Len reports the number of queued plates.
func (l *VehicleList) Len() int { return len(l.ppus) }

// Clear empties the list (after a successful submit).
func (l *VehicleList) Clear() { l.ppus = nil }
