package models

// ThumbnailTask 缩略图生成任务,由上传完成后投递到消息队列
// 队列是 at-least-once 投递,任务处理必须幂等(重复派生会覆盖同一个缩略图 key)
type ThumbnailTask struct {
	FileID uint64 `json:"file_id"`
}
