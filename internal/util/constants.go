package util

const (
	DateFormat = "2006-01-02"
	TimeFormat = "2006-01-02 15:04:05"
)

const (
	StorageLocal = "local"
	StorageMinio = "minio"
	StorageOSS   = "oss"
)

const (
	DispatcherRedis = "redis"
	DispatcherHTTP  = "http"
	DispatcherNoop  = "noop"
)

// 上传大小默认上限（25MB）
const DefaultMaxUploadBytes int64 = 25 << 20

// 文档上传允许的 MIME 类型与扩展名
const (
	MimePDF  = "application/pdf"
	MimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MimePPTX = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	MimeCSV  = "text/csv"
	MimePNG  = "image/png"
	MimeJPEG = "image/jpeg"
)

var AcceptedDocumentTypes = map[string]string{
	".pdf":  MimePDF,
	".docx": MimeDOCX,
	".xlsx": MimeXLSX,
	".pptx": MimePPTX,
	".csv":  MimeCSV,
	".png":  MimePNG,
	".jpg":  MimeJPEG,
	".jpeg": MimeJPEG,
}
