package repository

import (
	"journey_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type QuestionRepository struct {
	DB *gorm.DB
}

func NewQuestionRepository(db *gorm.DB) *QuestionRepository {
	return &QuestionRepository{DB: db}
}

// ListWithAnswers 按展示顺序返回问题并带出已有答案
func (r *QuestionRepository) ListWithAnswers(assessmentID string) ([]model.DiscoveryQuestion, error) {
	var qs []model.DiscoveryQuestion
	err := r.DB.Preload("Answer").
		Where("assessment_id = ?", assessmentID).
		Order("display_order asc, created_at asc").
		Find(&qs).Error
	return qs, err
}

func (r *QuestionRepository) FindByID(id string) (*model.DiscoveryQuestion, error) {
	var q model.DiscoveryQuestion
	err := r.DB.First(&q, "id = ?", id).Error
	return &q, err
}

func (r *QuestionRepository) Count(assessmentID string) (int64, error) {
	var n int64
	err := r.DB.Model(&model.DiscoveryQuestion{}).Where("assessment_id = ?", assessmentID).Count(&n).Error
	return n, err
}

// UpsertAnswer 每个问题至多一条答案，重复写入覆盖旧值
func (r *QuestionRepository) UpsertAnswer(a *model.Answer) (*model.Answer, error) {
	if a.ID == "" {
		a.ID = model.GenerateUUID()
	}
	err := r.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "question_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"answer_text", "answer_json", "answered_by", "answered_role", "updated_at"}),
	}).Create(a).Error
	if err != nil {
		return nil, err
	}
	var saved model.Answer
	err = r.DB.First(&saved, "question_id = ?", a.QuestionID).Error
	return &saved, err
}
