package mq

// ThumbnailQueueName 缩略图生成任务队列
// 生产者是上传服务,消费者是 cmd/worker 进程
const ThumbnailQueueName = "thumbnail_generate_queue"
