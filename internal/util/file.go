package util

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"
)

// FileError 单个文件的校验/上传失败信息
type FileError struct {
	Filename string `json:"filename"`
	Reason   string `json:"reason"`
	Err      error  `json:"-"`
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %s", e.Filename, e.Reason)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

func (e *FileError) Detail() interface{} {
	return e
}

// NormalizeMimeType 去掉参数部分并转小写，例如 "text/csv; charset=utf-8"
func NormalizeMimeType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mt
}

// ResolveDocumentType 按 MIME 判断，MIME 缺失或为通用二进制时按扩展名兜底
func ResolveDocumentType(filename, contentType string) (string, bool) {
	mt := NormalizeMimeType(contentType)
	for _, accepted := range AcceptedDocumentTypes {
		if mt == accepted {
			return mt, true
		}
	}
	if mt == "" || mt == "application/octet-stream" || mt == "application/zip" || mt == "application/vnd.ms-excel" {
		ext := strings.ToLower(filepath.Ext(filename))
		if accepted, ok := AcceptedDocumentTypes[ext]; ok {
			return accepted, true
		}
	}
	return mt, false
}

// ValidateUpload 在任何网络/存储调用之前拒绝过大或类型不支持的文件
func ValidateUpload(filename string, size int64, contentType string, maxBytes int64) (string, *FileError) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	if size > maxBytes {
		return "", &FileError{
			Filename: filename,
			Reason:   fmt.Sprintf("file is %d bytes, limit is %d MB", size, maxBytes>>20),
			Err:      ErrFileTooLarge,
		}
	}
	mt, ok := ResolveDocumentType(filename, contentType)
	if !ok {
		return "", &FileError{
			Filename: filename,
			Reason:   "accepted types are PDF, DOCX, XLSX, PPTX, CSV, PNG, JPG",
			Err:      ErrUnsupportedFileType,
		}
	}
	return mt, nil
}
