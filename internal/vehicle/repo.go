package vehicle

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) withCtx(ctx context.Context) *gorm.DB {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.WithContext(ctx)
}

// Create inserts one vehicle. Seq is stamped with the wall clock in
// nanoseconds: the created_at column alone cannot order rows inserted in
// the same batch (identical timestamps), and the stores this runs on keep
// tie order unspecified.
func (r *Repo) Create(ctx context.Context, v *Vehicle) error {
	db := r.withCtx(ctx)
	if db == nil {
		return fmt.Errorf("repo db is nil")
	}
	if v.Seq == 0 {
		v.Seq = time.Now().UnixNano()
	}
	return db.Create(v).Error
}

// CreateBatch inserts all vehicles in one statement, with Seq stepped per
// row so the slice order is the stored order.
func (r *Repo) CreateBatch(ctx context.Context, vs []Vehicle) error {
	db := r.withCtx(ctx)
	if db == nil {
		return fmt.Errorf("repo db is nil")
	}
	if len(vs) == 0 {
		return nil
	}
	base := time.Now().UnixNano()
	for i := range vs {
		if vs[i].Seq == 0 {
			vs[i].Seq = base + int64(i)
		}
	}
	return db.Create(&vs).Error
}

func (r *Repo) FindByID(ctx context.Context, id string) (*Vehicle, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var v Vehicle
	if err := db.Where("id = ?", id).First(&v).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

// ListByPersonnel returns one person's vehicles in insertion order.
func (r *Repo) ListByPersonnel(ctx context.Context, personnelID string) ([]Vehicle, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var vs []Vehicle
	if err := db.Where("personnel_id = ?", personnelID).Order("seq ASC").Find(&vs).Error; err != nil {
		return nil, err
	}
	return vs, nil
}

// ListByPersonnelIDs fetches vehicles for a set of people in one query,
// grouped by personnel id. Replaces the per-person fetch loop the roster
// would otherwise need.
func (r *Repo) ListByPersonnelIDs(ctx context.Context, personnelIDs []string) (map[string][]Vehicle, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	grouped := make(map[string][]Vehicle, len(personnelIDs))
	if len(personnelIDs) == 0 {
		return grouped, nil
	}
	var vs []Vehicle
	if err := db.Where("personnel_id IN ?", personnelIDs).Order("seq ASC").Find(&vs).Error; err != nil {
		return nil, err
	}
	for i := range vs {
		v := vs[i]
		grouped[v.PersonnelID] = append(grouped[v.PersonnelID], v)
	}
	return grouped, nil
}

func (r *Repo) Delete(ctx context.Context, id string) error {
	db := r.withCtx(ctx)
	if db == nil {
		return fmt.Errorf("repo db is nil")
	}
	res := db.Where("id = ?", id).Delete(&Vehicle{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteByPersonnel removes every vehicle referencing the person.
func (r *Repo) DeleteByPersonnel(ctx context.Context, personnelID string) error {
	db := r.withCtx(ctx)
	if db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return db.Where("personnel_id = ?", personnelID).Delete(&Vehicle{}).Error
}

func (r *Repo) CountByPersonnel(ctx context.Context, personnelID string) (int64, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return 0, fmt.Errorf("repo db is nil")
	}
	var total int64
	if err := db.Model(&Vehicle{}).Where("personnel_id = ?", personnelID).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}
