package model

import (
	"encoding/json"
	"strings"

	"gorm.io/datatypes"
)

// AnswerFormat 答题形式
type AnswerFormat string

const (
	FormatFreeText     AnswerFormat = "free_text"
	FormatNumber       AnswerFormat = "number"
	FormatPercentage   AnswerFormat = "percentage"
	FormatYesNo        AnswerFormat = "yes_no"
	FormatSingleSelect AnswerFormat = "single_select"
	FormatMultiSelect  AnswerFormat = "multi_select"
	FormatScale        AnswerFormat = "scale"
)

func (f AnswerFormat) Valid() bool {
	switch f {
	case FormatFreeText, FormatNumber, FormatPercentage, FormatYesNo,
		FormatSingleSelect, FormatMultiSelect, FormatScale:
		return true
	}
	return false
}

// Debounced 连续输入型题目走防抖保存，其余为离散选择，立即保存
func (f AnswerFormat) Debounced() bool {
	return f == FormatFreeText || f == FormatNumber || f == FormatPercentage
}

// ImpactTier 对结论置信度的影响等级
type ImpactTier string

const (
	ImpactHigh   ImpactTier = "high"
	ImpactMedium ImpactTier = "medium"
	ImpactLow    ImpactTier = "low"
)

// DiscoveryQuestion 生成任务产出的调研问题，生成后不可变
// swagger:model DiscoveryQuestion
type DiscoveryQuestion struct {
	UUIDBase
	AssessmentID     string         `gorm:"index;type:varchar(36);not null" json:"assessment_id"`
	DimensionKey     string         `gorm:"size:64;not null" json:"dimension_key"`
	DimensionName    string         `gorm:"size:255" json:"dimension_name"`
	Prompt           string         `gorm:"type:text;not null" json:"question_text"`
	ContextNote      string         `gorm:"type:text" json:"context,omitempty"`
	AnswerFormat     AnswerFormat   `gorm:"size:20;not null" json:"answer_format"`
	Options          datatypes.JSON `json:"options,omitempty"`
	IsRequired       bool           `gorm:"default:false" json:"is_required"`
	ConfidenceImpact ImpactTier     `gorm:"size:10" json:"confidence_impact"`
	DisplayOrder     int            `gorm:"default:0" json:"display_order"`
	EvidenceType     string         `gorm:"size:64" json:"evidence_type,omitempty"`

	Answer *Answer `gorm:"foreignKey:QuestionID" json:"answer,omitempty"`
}

func (DiscoveryQuestion) TableName() string {
	return "discovery_questions"
}

// OptionList 解析选择题选项，非选择题或格式错误时返回 nil
func (q *DiscoveryQuestion) OptionList() []string {
	if len(q.Options) == 0 {
		return nil
	}
	var opts []string
	if err := json.Unmarshal(q.Options, &opts); err != nil {
		return nil
	}
	return opts
}

// Answer 每个问题至多一条，按 question_id upsert，只覆盖不删除
// swagger:model Answer
type Answer struct {
	UUIDBase
	QuestionID   string         `gorm:"uniqueIndex;type:varchar(36);not null" json:"question_id"`
	AssessmentID string         `gorm:"index;type:varchar(36);not null" json:"assessment_id"`
	AnswerText   *string        `gorm:"type:text" json:"answer_text,omitempty"`
	// 以文本列存储，标量 JSON（如量表分值 4）在各驱动下都能原样读回
	AnswerJSON   datatypes.JSON `gorm:"type:text" json:"answer_json,omitempty"`
	AnsweredBy   string         `gorm:"size:64" json:"answered_by"`
	AnsweredRole Role           `gorm:"size:20" json:"answered_role"`
}

func (Answer) TableName() string {
	return "discovery_answers"
}

// IsAnswered 文本非空或结构化值非空即视为已作答
func (a *Answer) IsAnswered() bool {
	if a == nil {
		return false
	}
	return HasAnswerValue(a.AnswerText, a.AnswerJSON)
}

// HasAnswerValue null、空数组、空对象都不算作答
func HasAnswerValue(text *string, raw []byte) bool {
	if text != nil && strings.TrimSpace(*text) != "" {
		return true
	}
	switch strings.TrimSpace(string(raw)) {
	case "", "null", "[]", "{}", `""`:
		return false
	}
	return true
}
