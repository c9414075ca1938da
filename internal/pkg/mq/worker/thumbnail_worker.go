package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/disintegration/imaging"
	"github.com/kxrica/go-skyvault/internal/config"
	"github.com/kxrica/go-skyvault/internal/models"
	"github.com/kxrica/go-skyvault/internal/pkg/logger"
	"github.com/kxrica/go-skyvault/internal/pkg/mq"
	"github.com/kxrica/go-skyvault/internal/pkg/storage"
	"github.com/kxrica/go-skyvault/internal/repositories"
	"github.com/kxrica/go-skyvault/internal/services/explorer"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// ThumbnailWorker 消费缩略图生成任务
// 队列是 at-least-once 投递,处理逻辑必须幂等:
// 重复执行会把同一个缩略图 key 覆盖一遍,结果不变
type ThumbnailWorker struct {
	mqClient       *mq.RabbitMQClient
	fileRepo       repositories.FileRepository
	storageService storage.StorageService
	cfg            *config.Config
}

func NewThumbnailWorker(
	mqClient *mq.RabbitMQClient,
	fileRepo repositories.FileRepository,
	storageService storage.StorageService,
	cfg *config.Config,
) *ThumbnailWorker {
	return &ThumbnailWorker{
		mqClient:       mqClient,
		fileRepo:       fileRepo,
		storageService: storageService,
		cfg:            cfg,
	}
}

func (w *ThumbnailWorker) Start() {
	_, err := w.mqClient.DeclareQueue(mq.ThumbnailQueueName)
	if err != nil {
		log.Fatalf("Failed to declare queue: %s", err)
	}
	err = w.mqClient.Consume(mq.ThumbnailQueueName, w.HandleDelivery)
	if err != nil {
		log.Fatalf("Failed to start consuming from queue: %s", err)
	}

	log.Println("Thumbnail worker started...")
}

// HandleDelivery 解析消息并分发到处理逻辑,根据结果决定 ack/nack
func (w *ThumbnailWorker) HandleDelivery(msg amqp.Delivery) {
	var task models.ThumbnailTask
	if err := json.Unmarshal(msg.Body, &task); err != nil {
		logger.Error("Failed to unmarshal thumbnail task", zap.Error(err))
		_ = msg.Nack(false, false) // 解析失败,直接抛弃
		return
	}

	logger.Info("Received thumbnail task", zap.Uint64("FileID", task.FileID))

	requeue, err := w.Process(context.Background(), task)
	if err != nil {
		logger.Error("Thumbnail task failed",
			zap.Uint64("FileID", task.FileID),
			zap.Bool("requeue", requeue),
			zap.Error(err))
		_ = msg.Nack(false, requeue)
		return
	}
	_ = msg.Ack(false)
}

// Process 执行一条缩略图任务
// 返回的 requeue 标记失败是否值得重试:
// 文件记录不存在属于永久失败(文件已被删除),重试没有意义;
// 存储或数据库的瞬时错误重新入队
func (w *ThumbnailWorker) Process(ctx context.Context, task models.ThumbnailTask) (requeue bool, err error) {
	file, err := w.fileRepo.FindByID(task.FileID)
	if err != nil {
		return true, fmt.Errorf("查询文件记录失败: %w", err)
	}
	if file == nil || file.IsDeleted {
		// 永久失败: 消息在队列里排队期间文件已经没了
		logger.Info("Thumbnail task skipped, file record gone", zap.Uint64("FileID", task.FileID))
		return false, nil
	}

	// 非图片是成功的 no-op,队列侧不区分投递方是否误投
	if !file.IsImage() {
		logger.Info("Thumbnail task skipped, not an image", zap.Uint64("FileID", task.FileID))
		return false, nil
	}

	obj, err := w.storageService.GetObject(ctx, file.StorageBucket, file.StorageKey)
	if err != nil {
		return true, fmt.Errorf("获取原图失败: %w", err)
	}
	defer obj.Reader.Close()

	img, err := imaging.Decode(obj.Reader)
	if err != nil {
		// 图片本身损坏,重试也解不开,作为永久失败丢弃
		return false, fmt.Errorf("解码原图失败: %w", err)
	}

	// Fit 等比缩进外接框,小于外接框的图不放大
	thumb := imaging.Fit(img, w.cfg.Thumbnail.MaxWidth, w.cfg.Thumbnail.MaxHeight, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(w.cfg.Thumbnail.Quality)); err != nil {
		return false, fmt.Errorf("编码缩略图失败: %w", err)
	}

	thumbKey := explorer.ThumbnailKey(file.StorageKey)
	_, err = w.storageService.PutObject(ctx, file.StorageBucket, thumbKey, &buf, int64(buf.Len()), "image/jpeg")
	if err != nil {
		return true, fmt.Errorf("写入缩略图失败: %w", err)
	}

	thumbURL := w.storageService.GetObjectURL(file.StorageBucket, thumbKey)
	if err := w.fileRepo.SetThumbnailURL(file.ID, thumbURL); err != nil {
		return true, fmt.Errorf("持久化缩略图地址失败: %w", err)
	}

	logger.Info("Thumbnail generated",
		zap.Uint64("FileID", file.ID),
		zap.String("thumbKey", thumbKey))
	return false, nil
}
