package personnel

import "time"

// Estado is the authorization status, persisted as the user-facing string.
type Estado string

const (
	EstadoAutorizado   Estado = "Autorizado"
	EstadoNoAutorizado Estado = "No Autorizado"
)

// Toggle flips between the two states. Applying it twice is the identity.
func (e Estado) Toggle() Estado {
	if e == EstadoAutorizado {
		return EstadoNoAutorizado
	}
	return EstadoAutorizado
}

// Valid reports whether e is one of the two known states.
func (e Estado) Valid() bool {
	return e == EstadoAutorizado || e == EstadoNoAutorizado
}

// Personnel is the GORM model for the personnel table.
type Personnel struct {
	ID        string    `gorm:"primaryKey;size:36"`
	RUT       string    `gorm:"uniqueIndex;size:16;not null"` // normalized digits-checkdigit
	Nombre    string    `gorm:"size:128;not null"`
	Cargo     string    `gorm:"size:128;not null"`
	Estado    Estado    `gorm:"type:varchar(16);not null"`
	PhotoURL  *string   `gorm:"size:255"` // reserved, always null for now
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (Personnel) TableName() string { return "personnel" }
