package util

import "errors"

var (
	ErrPermissionDenied = errors.New("permission denied")

	ErrAssessmentNotFound = errors.New("assessment not found")
	ErrQuestionNotFound   = errors.New("question not found")
	ErrDocumentNotFound   = errors.New("document not found")

	ErrJobNotRetryable  = errors.New("generation job cannot be triggered in its current state")
	ErrJobNotRunning    = errors.New("generation job is not running")
	ErrJobNotCompleted  = errors.New("generation job has not completed")
	ErrStaleRun         = errors.New("generation run has been superseded")
	ErrJobErrorRequired = errors.New("failed generation job requires an error message")

	ErrAlreadyApproved = errors.New("assessment already approved")
	ErrNotApproved     = errors.New("assessment not approved")

	ErrFormSubmitted           = errors.New("form already submitted")
	ErrFormReadOnly            = errors.New("form is read-only")
	ErrRequiredUnanswered      = errors.New("required questions are unanswered")
	ErrQuestionNotInAssessment = errors.New("question does not belong to assessment")
	ErrEmptyAnswer             = errors.New("answer_text or answer_json is required")
	ErrInvalidAnswer           = errors.New("answer does not match question format")

	ErrUnknownSlot         = errors.New("unknown document slot")
	ErrFileTooLarge        = errors.New("file exceeds maximum upload size")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrNotOwnerRole        = errors.New("document was uploaded by another role")
	ErrSlotBusy            = errors.New("an upload is already in progress for this slot")
)
