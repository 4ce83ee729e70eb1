package repository

import (
	"journey_backend/internal/model"

	"gorm.io/gorm"
)

type DocumentRepository struct {
	DB *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{DB: db}
}

func (r *DocumentRepository) ListRequests(assessmentID string) ([]model.DocumentRequest, error) {
	var rs []model.DocumentRequest
	err := r.DB.Where("assessment_id = ?", assessmentID).
		Order("display_order asc, created_at asc").
		Find(&rs).Error
	return rs, err
}

func (r *DocumentRepository) CountRequests(assessmentID string) (int64, error) {
	var n int64
	err := r.DB.Model(&model.DocumentRequest{}).Where("assessment_id = ?", assessmentID).Count(&n).Error
	return n, err
}

func (r *DocumentRepository) FindRequest(assessmentID, slotKey string) (*model.DocumentRequest, error) {
	var req model.DocumentRequest
	err := r.DB.First(&req, "assessment_id = ? AND id = ?", assessmentID, slotKey).Error
	return &req, err
}

func (r *DocumentRepository) ListUploads(assessmentID string) ([]model.UploadedDocument, error) {
	var ds []model.UploadedDocument
	err := r.DB.Where("assessment_id = ?", assessmentID).
		Order("created_at asc").
		Find(&ds).Error
	return ds, err
}

func (r *DocumentRepository) CreateUpload(d *model.UploadedDocument) error {
	return r.DB.Create(d).Error
}

func (r *DocumentRepository) FindUpload(id string) (*model.UploadedDocument, error) {
	var d model.UploadedDocument
	err := r.DB.First(&d, "id = ?", id).Error
	return &d, err
}

func (r *DocumentRepository) DeleteUpload(id string) error {
	return r.DB.Delete(&model.UploadedDocument{}, "id = ?", id).Error
}
