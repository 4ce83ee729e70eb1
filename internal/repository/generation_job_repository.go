package repository

import (
	"errors"
	"journey_backend/internal/model"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrRunMismatch 回调的 run_id 与当前运行不一致，或任务不在运行中
var ErrRunMismatch = errors.New("generation run does not match")

type GenerationJobRepository struct {
	DB *gorm.DB
}

func NewGenerationJobRepository(db *gorm.DB) *GenerationJobRepository {
	return &GenerationJobRepository{DB: db}
}

func (r *GenerationJobRepository) Create(job *model.GenerationJob) error {
	return r.DB.Create(job).Error
}

func (r *GenerationJobRepository) FindByAssessment(assessmentID string) (*model.GenerationJob, error) {
	var job model.GenerationJob
	err := r.DB.First(&job, "assessment_id = ?", assessmentID).Error
	return &job, err
}

// Current 只读获取任务，尚无任务行时返回未持久化的 not_started 任务
func (r *GenerationJobRepository) Current(assessmentID string) (*model.GenerationJob, error) {
	job, err := r.FindByAssessment(assessmentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &model.GenerationJob{AssessmentID: assessmentID, State: model.JobNotStarted}, nil
	}
	return job, err
}

// Ensure 返回评估的任务行，不存在时以 not_started 创建
func (r *GenerationJobRepository) Ensure(assessmentID string) (*model.GenerationJob, error) {
	job := model.GenerationJob{AssessmentID: assessmentID, State: model.JobNotStarted}
	err := r.DB.Where("assessment_id = ?", assessmentID).FirstOrCreate(&job).Error
	return &job, err
}

// Start 仅当当前状态在 from 中时切换为 running，返回是否由本次调用完成切换
func (r *GenerationJobRepository) Start(assessmentID string, from []model.JobState, runID string, now time.Time) (bool, error) {
	res := r.DB.Model(&model.GenerationJob{}).
		Where("assessment_id = ? AND state IN ?", assessmentID, from).
		Updates(map[string]interface{}{
			"state":           model.JobRunning,
			"run_id":          runID,
			"attempts":        gorm.Expr("attempts + 1"),
			"started_at":      now,
			"completed_at":    nil,
			"error_message":   "",
			"error_detail":    nil,
			"questions_count": 0,
			"documents_count": 0,
			"updated_at":      now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Fail 仅对仍在运行且 run_id 匹配的任务生效
func (r *GenerationJobRepository) Fail(assessmentID, runID, message string, detail datatypes.JSON, now time.Time) (bool, error) {
	res := r.DB.Model(&model.GenerationJob{}).
		Where("assessment_id = ? AND state = ? AND run_id = ?", assessmentID, model.JobRunning, runID).
		Updates(map[string]interface{}{
			"state":         model.JobFailed,
			"error_message": message,
			"error_detail":  detail,
			"completed_at":  now,
			"updated_at":    now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Complete 在一个事务内替换生成的问题与文档请求，并以实际写入的行数回填计数
func (r *GenerationJobRepository) Complete(assessmentID, runID string, questions []model.DiscoveryQuestion, requests []model.DocumentRequest, now time.Time) (*model.GenerationJob, error) {
	var job model.GenerationJob
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&job, "assessment_id = ? AND state = ? AND run_id = ?", assessmentID, model.JobRunning, runID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRunMismatch
			}
			return err
		}

		var oldIDs []string
		if err := tx.Model(&model.DiscoveryQuestion{}).Where("assessment_id = ?", assessmentID).Pluck("id", &oldIDs).Error; err != nil {
			return err
		}
		if len(oldIDs) > 0 {
			if err := tx.Where("question_id IN ?", oldIDs).Delete(&model.Answer{}).Error; err != nil {
				return err
			}
			if err := tx.Where("assessment_id = ?", assessmentID).Delete(&model.DiscoveryQuestion{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("assessment_id = ?", assessmentID).Delete(&model.DocumentRequest{}).Error; err != nil {
			return err
		}

		for i := range questions {
			questions[i].AssessmentID = assessmentID
		}
		for i := range requests {
			requests[i].AssessmentID = assessmentID
		}
		if len(questions) > 0 {
			if err := tx.Create(&questions).Error; err != nil {
				return err
			}
		}
		if len(requests) > 0 {
			if err := tx.Create(&requests).Error; err != nil {
				return err
			}
		}

		var qn, dn int64
		if err := tx.Model(&model.DiscoveryQuestion{}).Where("assessment_id = ?", assessmentID).Count(&qn).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.DocumentRequest{}).Where("assessment_id = ?", assessmentID).Count(&dn).Error; err != nil {
			return err
		}

		res := tx.Model(&model.GenerationJob{}).
			Where("id = ? AND state = ? AND run_id = ?", job.ID, model.JobRunning, runID).
			Updates(map[string]interface{}{
				"state":           model.JobCompleted,
				"questions_count": int(qn),
				"documents_count": int(dn),
				"completed_at":    now,
				"updated_at":      now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrRunMismatch
		}
		return tx.First(&job, "id = ?", job.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &job, nil
}
