package dao

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/internal/models"
	apperrors "github.com/ethicalPap/bug-bounty-frameworkv2-sub000/pkg/errors"
)

// TargetDAO reads and updates targets. Stat updates go through MergeStats so
// concurrently settling jobs for the same target cannot lose each other's
// counters to a read-modify-write race.
type TargetDAO interface {
	FindByID(id, orgID string) (*models.Target, error)
	FindOrCreateByDomain(domain, orgID string) (*models.Target, error)
	Update(id, orgID string, attrs map[string]interface{}) error
	MergeStats(id, orgID string, stats models.JSON) error
	TouchLastScan(id, orgID string) error
}

type targetDAO struct {
	db *gorm.DB
}

func NewTargetDAO(db *gorm.DB) TargetDAO {
	return &targetDAO{db: db}
}

func (dao *targetDAO) FindByID(id, orgID string) (*models.Target, error) {
	var target models.Target
	err := dao.db.Where("id = ? AND organization_id = ?", id, orgID).First(&target).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("target", id, apperrors.ErrTargetNotFound)
		}
		return nil, err
	}
	return &target, nil
}

// FindOrCreateByDomain returns the target owning domain, creating it as an
// active target when absent. The CLI one-shot path relies on this.
func (dao *targetDAO) FindOrCreateByDomain(domain, orgID string) (*models.Target, error) {
	var target models.Target
	err := dao.db.Where("domain = ? AND organization_id = ?", domain, orgID).First(&target).Error
	if err == nil {
		return &target, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	target = models.Target{
		ID:             uuid.NewString(),
		Domain:         domain,
		OrganizationID: orgID,
		Status:         "active",
	}
	if err := dao.db.Create(&target).Error; err != nil {
		return nil, err
	}
	return &target, nil
}

func (dao *targetDAO) Update(id, orgID string, attrs map[string]interface{}) error {
	res := dao.db.Model(&models.Target{}).
		Where("id = ? AND organization_id = ?", id, orgID).
		Updates(attrs)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.NewNotFoundError("target", id, apperrors.ErrTargetNotFound)
	}
	return nil
}

// MergeStats folds the partial stats blob into the stored one with a single
// jsonb concatenation expression, keeping the merge atomic at the database.
func (dao *targetDAO) MergeStats(id, orgID string, stats models.JSON) error {
	if len(stats) == 0 {
		return nil
	}
	data, err := json.Marshal(stats)
	if err != nil {
		return err
	}

	res := dao.db.Model(&models.Target{}).
		Where("id = ? AND organization_id = ?", id, orgID).
		Update("stats", gorm.Expr("COALESCE(stats, '{}'::jsonb) || ?::jsonb", string(data)))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.NewNotFoundError("target", id, apperrors.ErrTargetNotFound)
	}
	return nil
}

func (dao *targetDAO) TouchLastScan(id, orgID string) error {
	return dao.Update(id, orgID, map[string]interface{}{"last_scan_at": time.Now().UTC()})
}
