package models

// UploadInitRequest 定义了初始化上传的请求体
// PartCount 大于 1 时走分块上传路径(要求存储后端支持)
type UploadInitRequest struct {
	Name      string  `json:"name" binding:"required"`
	FolderID  *uint64 `json:"folder_id"`
	MimeType  string  `json:"mime_type"`
	Size      int64   `json:"size" binding:"required"`
	PartCount int     `json:"part_count"`
}

// UploadInitResponse 定义了初始化上传的响应体
// 简单后端返回单个预签名 URL,分块后端返回 PartCount 个 URL 和 UploadID
type UploadInitResponse struct {
	FileID     uint64   `json:"file_id"`
	StorageKey string   `json:"storage_key"`
	UploadID   string   `json:"upload_id,omitempty"`
	UploadURLs []string `json:"upload_urls"`
}

// UploadCompleteRequest 定义了完成上传的请求体
// UploadID 和 Parts 只在分块上传路径需要
type UploadCompleteRequest struct {
	FileID   uint64           `json:"file_id" binding:"required"`
	UploadID string           `json:"upload_id"`
	Parts    []UploadPartInfo `json:"parts"`
}

// UploadPartInfo 包含了已上传分块的信息
type UploadPartInfo struct {
	PartNumber int    `json:"part_number"`
	ETag       string `json:"etag"`
}
