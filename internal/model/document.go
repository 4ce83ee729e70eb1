package model

import (
	"gorm.io/datatypes"
)

// OtherDocumentsSlot 固定存在的"其他文档"兜底上传位
const OtherDocumentsSlot = "other"

// DocumentRequest 与问题一同生成的文档需求，不可变
// swagger:model DocumentRequest
type DocumentRequest struct {
	UUIDBase
	AssessmentID     string         `gorm:"index;type:varchar(36);not null" json:"assessment_id"`
	DimensionKey     string         `gorm:"size:64" json:"dimension_key"`
	DimensionName    string         `gorm:"size:255" json:"dimension_name"`
	DocumentType     string         `gorm:"size:255;not null" json:"document_type"`
	Reason           string         `gorm:"type:text" json:"why_needed"`
	AcceptedFormats  datatypes.JSON `json:"accepted_formats,omitempty"`
	ExampleFilenames datatypes.JSON `json:"example_filenames,omitempty"`
	IsRequired       bool           `gorm:"default:false" json:"is_required"`
	ConfidenceImpact ImpactTier     `gorm:"size:10" json:"confidence_impact"`
	DisplayOrder     int            `gorm:"default:0" json:"display_order"`
}

func (DocumentRequest) TableName() string {
	return "document_requests"
}

// UploadedDocument 上传到某个 slot 的文件，一个 slot 可有多个文件
// swagger:model UploadedDocument
type UploadedDocument struct {
	UUIDBase
	AssessmentID string `gorm:"index;type:varchar(36);not null" json:"assessment_id"`
	SlotKey      string `gorm:"index;size:64;not null" json:"slot_key"`
	Filename     string `gorm:"size:255;not null" json:"filename"`
	SizeBytes    int64  `json:"size_bytes"`
	MimeType     string `gorm:"size:128" json:"mime_type"`
	StorageKey   string `gorm:"size:512" json:"-"`
	DownloadURL  string `gorm:"size:1024" json:"download_url"`
	UploaderRole Role   `gorm:"size:20;not null" json:"uploader_role"`
	UploadedBy   string `gorm:"size:64" json:"uploaded_by"`
}

func (UploadedDocument) TableName() string {
	return "uploaded_documents"
}
