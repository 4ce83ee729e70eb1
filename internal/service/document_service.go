package service

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"journey_backend/internal/model"
	"journey_backend/internal/questionnaire"
	"journey_backend/internal/repository"
	"journey_backend/internal/util"
	"journey_backend/pkg/logger"
	"journey_backend/pkg/monitoring"
	"journey_backend/pkg/tracing"
	"sync/atomic"

	"go.uber.org/zap"
)

// DocumentService 文档上传位：每个文档需求一个，外加固定的 other
type DocumentService struct {
	Assessments *repository.AssessmentRepository
	Documents   *repository.DocumentRepository
	Approvals   *repository.ApprovalRepository
	Storage     *StorageService

	maxBytes atomic.Int64
}

func NewDocumentService(assessments *repository.AssessmentRepository, documents *repository.DocumentRepository, approvals *repository.ApprovalRepository, storage *StorageService, maxBytes int64) *DocumentService {
	s := &DocumentService{
		Assessments: assessments,
		Documents:   documents,
		Approvals:   approvals,
		Storage:     storage,
	}
	s.SetMaxUploadBytes(maxBytes)
	return s
}

// SetMaxUploadBytes 配置热更新时调用
func (s *DocumentService) SetMaxUploadBytes(n int64) {
	if n <= 0 {
		n = util.DefaultMaxUploadBytes
	}
	s.maxBytes.Store(n)
}

func (s *DocumentService) MaxUploadBytes() int64 {
	return s.maxBytes.Load()
}

// UploadInput 单个待上传文件
type UploadInput struct {
	SlotKey     string
	Filename    string
	Size        int64
	ContentType string
	Body        io.Reader
}

func (s *DocumentService) access(assessmentID string, role model.Role) (*model.Assessment, error) {
	a, err := s.Assessments.FindByID(assessmentID)
	if err != nil {
		return nil, notFound(err, util.ErrAssessmentNotFound)
	}
	approval, err := s.Approvals.Find(assessmentID)
	if err != nil {
		return nil, err
	}
	access := questionnaire.Access{Role: role, Approved: approval != nil, Submitted: a.Submitted()}
	if err := writeAllowed(access); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *DocumentService) checkSlot(assessmentID, slotKey string) error {
	if slotKey == model.OtherDocumentsSlot {
		return nil
	}
	if slotKey == "" {
		return util.ErrUnknownSlot
	}
	if _, err := s.Documents.FindRequest(assessmentID, slotKey); err != nil {
		return notFound(err, util.ErrUnknownSlot)
	}
	return nil
}

// Upload 校验通过后写入存储并登记，一个上传位可以有任意多个文件
func (s *DocumentService) Upload(ctx context.Context, assessmentID, actorID string, role model.Role, in UploadInput) (*model.UploadedDocument, error) {
	ctx, span := tracing.StartSpan(ctx, "documents.upload", assessmentID)
	defer span.End()

	doc, err := s.upload(ctx, assessmentID, actorID, role, in)
	if err != nil {
		monitoring.DocumentUploads.WithLabelValues("rejected").Inc()
		return nil, err
	}
	monitoring.DocumentUploads.WithLabelValues("stored").Inc()
	return doc, nil
}

func (s *DocumentService) upload(ctx context.Context, assessmentID, actorID string, role model.Role, in UploadInput) (*model.UploadedDocument, error) {
	if _, err := s.access(assessmentID, role); err != nil {
		return nil, err
	}
	if err := s.checkSlot(assessmentID, in.SlotKey); err != nil {
		return nil, err
	}
	mimeType, ferr := util.ValidateUpload(in.Filename, in.Size, in.ContentType, s.MaxUploadBytes())
	if ferr != nil {
		return nil, ferr
	}

	key := DocumentKey(assessmentID, in.SlotKey, in.Filename)
	url, err := s.Storage.Upload(ctx, key, in.Body, in.Size, mimeType)
	if err != nil {
		return nil, err
	}
	doc := &model.UploadedDocument{
		AssessmentID: assessmentID,
		SlotKey:      in.SlotKey,
		Filename:     in.Filename,
		SizeBytes:    in.Size,
		MimeType:     mimeType,
		StorageKey:   key,
		DownloadURL:  url,
		UploaderRole: role,
		UploadedBy:   actorID,
	}
	if err := s.Documents.CreateUpload(doc); err != nil {
		if derr := s.Storage.Delete(ctx, key); derr != nil {
			logger.Log.Warn("Failed to clean up stored object", zap.String("key", key), zap.Error(derr))
		}
		return nil, err
	}
	logger.Log.Info("Document uploaded",
		zap.String("assessment_id", assessmentID),
		zap.String("slot_key", in.SlotKey),
		zap.String("document_id", doc.ID),
		zap.Int64("size", in.Size))
	return doc, nil
}

func (s *DocumentService) Find(documentID string) (*model.UploadedDocument, error) {
	doc, err := s.Documents.FindUpload(documentID)
	if err != nil {
		return nil, notFound(err, util.ErrDocumentNotFound)
	}
	return doc, nil
}

// Remove 只能删除本角色上传的文件，同一上传位的其他文件不受影响
func (s *DocumentService) Remove(ctx context.Context, documentID string, role model.Role) error {
	doc, err := s.Find(documentID)
	if err != nil {
		return err
	}
	if _, err := s.access(doc.AssessmentID, role); err != nil {
		return err
	}
	if doc.UploaderRole != role {
		return util.ErrNotOwnerRole
	}
	if err := s.Documents.DeleteUpload(doc.ID); err != nil {
		return err
	}
	if err := s.Storage.Delete(ctx, doc.StorageKey); err != nil {
		logger.Log.Warn("Failed to delete stored object",
			zap.String("document_id", doc.ID),
			zap.String("key", doc.StorageKey),
			zap.Error(err))
	}
	return nil
}

// List 按上传位分组，每个文档需求与 other 即使为空也会出现
func (s *DocumentService) List(assessmentID string) (map[string][]model.UploadedDocument, error) {
	if _, err := s.Assessments.FindByID(assessmentID); err != nil {
		return nil, notFound(err, util.ErrAssessmentNotFound)
	}
	requests, err := s.Documents.ListRequests(assessmentID)
	if err != nil {
		return nil, err
	}
	uploads, err := s.Documents.ListUploads(assessmentID)
	if err != nil {
		return nil, err
	}

	slots := make(map[string][]model.UploadedDocument, len(requests)+1)
	slots[model.OtherDocumentsSlot] = []model.UploadedDocument{}
	for _, r := range requests {
		slots[r.ID] = []model.UploadedDocument{}
	}
	for _, d := range uploads {
		slots[d.SlotKey] = append(slots[d.SlotKey], d)
	}
	return slots, nil
}

// Open 读取已上传文件内容用于下载
func (s *DocumentService) Open(ctx context.Context, documentID string) (*model.UploadedDocument, io.ReadCloser, error) {
	doc, err := s.Find(documentID)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.Storage.Open(ctx, doc.StorageKey)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, util.ErrDocumentNotFound
		}
		return nil, nil, err
	}
	return doc, rc, nil
}
