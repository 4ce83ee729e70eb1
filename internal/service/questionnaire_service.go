package service

import (
	"context"
	"fmt"
	"journey_backend/internal/dto"
	"journey_backend/internal/model"
	"journey_backend/internal/questionnaire"
	"journey_backend/internal/repository"
	"journey_backend/internal/util"
	"journey_backend/pkg/logger"
	"journey_backend/pkg/monitoring"
	"journey_backend/pkg/tracing"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// QuestionnaireService 问卷的服务端：读取、单题保存、提交
type QuestionnaireService struct {
	Assessments *repository.AssessmentRepository
	Questions   *repository.QuestionRepository
	Documents   *repository.DocumentRepository
	Jobs        *repository.GenerationJobRepository
	Approvals   *repository.ApprovalRepository

	now func() time.Time
}

func NewQuestionnaireService(assessments *repository.AssessmentRepository, questions *repository.QuestionRepository, documents *repository.DocumentRepository, jobs *repository.GenerationJobRepository, approvals *repository.ApprovalRepository) *QuestionnaireService {
	return &QuestionnaireService{
		Assessments: assessments,
		Questions:   questions,
		Documents:   documents,
		Jobs:        jobs,
		Approvals:   approvals,
		now:         time.Now,
	}
}

type formState struct {
	assessment *model.Assessment
	job        *model.GenerationJob
	approval   *model.ApprovalRecord
}

func (s *QuestionnaireService) load(assessmentID string) (*formState, error) {
	a, err := s.Assessments.FindByID(assessmentID)
	if err != nil {
		return nil, notFound(err, util.ErrAssessmentNotFound)
	}
	job, err := s.Jobs.Current(assessmentID)
	if err != nil {
		return nil, err
	}
	approval, err := s.Approvals.Find(assessmentID)
	if err != nil {
		return nil, err
	}
	return &formState{assessment: a, job: job, approval: approval}, nil
}

func (f *formState) access(role model.Role) questionnaire.Access {
	return questionnaire.Access{
		Role:      role,
		Approved:  f.approval != nil,
		Submitted: f.assessment.Submitted(),
	}
}

func (s *QuestionnaireService) Get(assessmentID string, role model.Role) (*dto.QuestionnaireView, error) {
	st, err := s.load(assessmentID)
	if err != nil {
		return nil, err
	}
	access := st.access(role)
	view := &dto.QuestionnaireView{
		AssessmentID: assessmentID,
		JobState:     st.job.State,
		FormStatus:   model.DeriveFormStatus(st.assessment, st.approval),
		Approved:     access.Approved,
		ReadOnly:     !access.WriteAllowed(),
		Dimensions:   []questionnaire.Dimension{},
		Documents:    []model.DocumentRequest{},
	}
	if st.job.State != model.JobCompleted {
		return view, nil
	}

	questions, err := s.Questions.ListWithAnswers(assessmentID)
	if err != nil {
		return nil, err
	}
	docs, err := s.Documents.ListRequests(assessmentID)
	if err != nil {
		return nil, err
	}
	view.Dimensions = questionnaire.GroupByDimension(questions)
	view.Documents = docs
	p := questionnaire.RequiredProgress(questions, questionnaire.StoredAnswer)
	view.Progress = dto.ProgressView{Progress: p, CanSubmit: access.SubmitReachable() && p.Complete()}
	return view, nil
}

// SaveAnswer 单题 upsert，服务端同样执行只读规则
func (s *QuestionnaireService) SaveAnswer(ctx context.Context, assessmentID, actorID string, role model.Role, req dto.SaveAnswerRequest) (*dto.SaveAnswerResponse, error) {
	_, span := tracing.StartSpan(ctx, "questionnaire.save_answer", assessmentID)
	defer span.End()

	answer, err := s.saveAnswer(assessmentID, actorID, role, req)
	if err != nil {
		monitoring.AnswerSaves.WithLabelValues("rejected").Inc()
		return nil, err
	}
	monitoring.AnswerSaves.WithLabelValues("saved").Inc()
	return &dto.SaveAnswerResponse{QuestionID: answer.QuestionID, SavedAt: answer.UpdatedAt}, nil
}

func (s *QuestionnaireService) saveAnswer(assessmentID, actorID string, role model.Role, req dto.SaveAnswerRequest) (*model.Answer, error) {
	if req.AnswerText == nil && len(req.AnswerJSON) == 0 {
		return nil, util.ErrEmptyAnswer
	}
	st, err := s.load(assessmentID)
	if err != nil {
		return nil, err
	}
	if err := writeAllowed(st.access(role)); err != nil {
		return nil, err
	}

	q, err := s.Questions.FindByID(req.QuestionID)
	if err != nil {
		return nil, notFound(err, util.ErrQuestionNotFound)
	}
	if q.AssessmentID != assessmentID {
		return nil, util.ErrQuestionNotInAssessment
	}
	if err := questionnaire.ValidateAnswer(q, req.AnswerText, req.AnswerJSON); err != nil {
		return nil, err
	}

	var raw datatypes.JSON
	if len(req.AnswerJSON) > 0 && string(req.AnswerJSON) != "null" {
		raw = datatypes.JSON(req.AnswerJSON)
	}
	return s.Questions.UpsertAnswer(&model.Answer{
		QuestionID:   q.ID,
		AssessmentID: assessmentID,
		AnswerText:   req.AnswerText,
		AnswerJSON:   raw,
		AnsweredBy:   actorID,
		AnsweredRole: role,
	})
}

// Submit 仅客户可提交，要求已审批且所有必答题已作答，提交后客户侧只读
func (s *QuestionnaireService) Submit(ctx context.Context, assessmentID, actorID string, role model.Role) (*model.Assessment, error) {
	_, span := tracing.StartSpan(ctx, "questionnaire.submit", assessmentID)
	defer span.End()

	if role != model.RoleCustomer {
		return nil, util.ErrPermissionDenied
	}
	st, err := s.load(assessmentID)
	if err != nil {
		return nil, err
	}
	if st.approval == nil {
		return nil, util.ErrNotApproved
	}
	if st.assessment.Submitted() {
		return nil, util.ErrFormSubmitted
	}

	questions, err := s.Questions.ListWithAnswers(assessmentID)
	if err != nil {
		return nil, err
	}
	if p := questionnaire.RequiredProgress(questions, questionnaire.StoredAnswer); !p.Complete() {
		return nil, &MissingAnswersError{Progress: p}
	}

	ok, err := s.Assessments.MarkSubmitted(assessmentID, actorID, s.now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, util.ErrFormSubmitted
	}
	logger.Log.Info("Questionnaire submitted",
		zap.String("assessment_id", assessmentID),
		zap.String("submitted_by", actorID))
	return s.Assessments.FindByID(assessmentID)
}

// MissingAnswersError 携带未作答的必答题
type MissingAnswersError struct {
	Progress questionnaire.Progress
}

func (e *MissingAnswersError) Error() string {
	return fmt.Sprintf("%s: %d of %d answered", util.ErrRequiredUnanswered, e.Progress.AnsweredRequired, e.Progress.TotalRequired)
}

func (e *MissingAnswersError) Unwrap() error {
	return util.ErrRequiredUnanswered
}

func (e *MissingAnswersError) Detail() interface{} {
	return e.Progress
}

// writeAllowed 把只读组合翻译为具体错误
func writeAllowed(access questionnaire.Access) error {
	if access.WriteAllowed() {
		return nil
	}
	if access.Role == model.RoleCustomer && access.Submitted {
		return util.ErrFormSubmitted
	}
	if !access.Approved {
		return util.ErrFormReadOnly
	}
	return util.ErrPermissionDenied
}
