package repository

import (
	"errors"
	"journey_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ApprovalRepository struct {
	DB *gorm.DB
}

func NewApprovalRepository(db *gorm.DB) *ApprovalRepository {
	return &ApprovalRepository{DB: db}
}

// Find 未审批时返回 nil, nil
func (r *ApprovalRepository) Find(assessmentID string) (*model.ApprovalRecord, error) {
	var rec model.ApprovalRecord
	err := r.DB.First(&rec, "assessment_id = ?", assessmentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Create 依赖 assessment_id 唯一索引，已存在时返回 false
func (r *ApprovalRepository) Create(rec *model.ApprovalRecord) (bool, error) {
	res := r.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "assessment_id"}},
		DoNothing: true,
	}).Create(rec)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
