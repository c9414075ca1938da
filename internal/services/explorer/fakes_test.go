package explorer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/kxrica/go-skyvault/internal/config"
	"github.com/kxrica/go-skyvault/internal/models"
	"github.com/kxrica/go-skyvault/internal/pkg/search"
	"github.com/kxrica/go-skyvault/internal/pkg/storage"
	"github.com/kxrica/go-skyvault/internal/pkg/xerr"
)

func codeOf(t *testing.T, err error) int {
	t.Helper()
	var codeErr *xerr.CodeError
	if !errors.As(err, &codeErr) {
		t.Fatalf("expected CodeError, got %v", err)
	}
	return codeErr.Code
}

func testConfig() *config.Config {
	return &config.Config{
		Storage: config.StorageConfig{
			Type:               "minio",
			PresignedURLExpiry: 15,
		},
		MinIO: config.MinIOConfig{BucketName: "skyvault"},
		Upload: config.UploadConfig{
			MaxFileSize: 100 * 1024 * 1024,
			MaxParts:    100,
		},
		Thumbnail: config.ThumbnailConfig{MaxWidth: 256, MaxHeight: 256, Quality: 80},
	}
}

// fakeStorage 内存对象存储,按需模拟预签名/分块能力
type fakeStorage struct {
	mu        sync.Mutex
	objects   map[string][]byte // bucket/key -> content
	multipart bool
	presign   bool
	putErr    error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		objects:   make(map[string][]byte),
		multipart: true,
		presign:   true,
	}
}

func (s *fakeStorage) objKey(bucket, key string) string { return bucket + "/" + key }

func (s *fakeStorage) PutObject(ctx context.Context, bucket, key string, reader io.Reader, size int64, contentType string) (storage.PutObjectResult, error) {
	if s.putErr != nil {
		return storage.PutObjectResult{}, s.putErr
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return storage.PutObjectResult{}, err
	}
	s.mu.Lock()
	s.objects[s.objKey(bucket, key)] = data
	s.mu.Unlock()
	return storage.PutObjectResult{Bucket: bucket, Key: key, Size: int64(len(data))}, nil
}

func (s *fakeStorage) GetObject(ctx context.Context, bucket, key string) (storage.GetObjectResult, error) {
	s.mu.Lock()
	data, ok := s.objects[s.objKey(bucket, key)]
	s.mu.Unlock()
	if !ok {
		return storage.GetObjectResult{}, fmt.Errorf("object not found: %s/%s", bucket, key)
	}
	return storage.GetObjectResult{
		Reader: io.NopCloser(bytes.NewReader(data)),
		Size:   int64(len(data)),
	}, nil
}

func (s *fakeStorage) RemoveObject(ctx context.Context, bucket, key string) error {
	s.mu.Lock()
	delete(s.objects, s.objKey(bucket, key))
	s.mu.Unlock()
	return nil
}

func (s *fakeStorage) IsBucketExist(ctx context.Context, bucket string) (bool, error) { return true, nil }
func (s *fakeStorage) MakeBucket(ctx context.Context, bucket string) error            { return nil }
func (s *fakeStorage) GetObjectURL(bucket, key string) string {
	return "http://storage.local/" + bucket + "/" + key
}

func (s *fakeStorage) PresignUpload(ctx context.Context, bucket, key, contentType string, expiry time.Duration) (string, error) {
	if !s.presign {
		return "", storage.ErrPresignNotSupported
	}
	return "http://storage.local/presign-put/" + key, nil
}

func (s *fakeStorage) PresignDownload(ctx context.Context, bucket, key string, expiry time.Duration) (string, error) {
	if !s.presign {
		return "", storage.ErrPresignNotSupported
	}
	return "http://storage.local/presign-get/" + key, nil
}

func (s *fakeStorage) SupportsMultipart() bool { return s.multipart }

func (s *fakeStorage) InitMultipartUpload(ctx context.Context, bucket, key, contentType string) (string, error) {
	if !s.multipart {
		return "", storage.ErrMultipartNotSupported
	}
	return "upload-1", nil
}

func (s *fakeStorage) PresignUploadPart(ctx context.Context, bucket, key, uploadID string, partNumber int, expiry time.Duration) (string, error) {
	return fmt.Sprintf("http://storage.local/presign-part/%s/%d", key, partNumber), nil
}

func (s *fakeStorage) CompleteMultipartUpload(ctx context.Context, bucket, key, uploadID string, parts []storage.UploadPartResult) (storage.PutObjectResult, error) {
	return storage.PutObjectResult{Bucket: bucket, Key: key}, nil
}

func (s *fakeStorage) AbortMultipartUpload(ctx context.Context, bucket, key, uploadID string) error {
	return nil
}

var _ storage.StorageService = (*fakeStorage)(nil)

// fakePublisher 记录投递到队列的消息
type fakePublisher struct {
	mu       sync.Mutex
	Messages map[string][][]byte
	err      error
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{Messages: make(map[string][][]byte)}
}

func (p *fakePublisher) Publish(ctx context.Context, queueName string, body []byte) error {
	if p.err != nil {
		return p.err
	}
	p.mu.Lock()
	p.Messages[queueName] = append(p.Messages[queueName], body)
	p.mu.Unlock()
	return nil
}

func (p *fakePublisher) count(queueName string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Messages[queueName])
}

var _ TaskPublisher = (*fakePublisher)(nil)

// fakeIndexer 记录进出索引的文件ID
type fakeIndexer struct {
	mu      sync.Mutex
	Indexed []uint64
	Removed []uint64
}

func newFakeIndexer() *fakeIndexer { return &fakeIndexer{} }

func (i *fakeIndexer) IndexFile(ctx context.Context, file *models.File) {
	i.mu.Lock()
	i.Indexed = append(i.Indexed, file.ID)
	i.mu.Unlock()
}

func (i *fakeIndexer) RemoveFile(ctx context.Context, fileID uint64) {
	i.mu.Lock()
	i.Removed = append(i.Removed, fileID)
	i.mu.Unlock()
}

func (i *fakeIndexer) SearchFiles(ctx context.Context, userID uint64, keyword string, limit int) ([]search.FileDocument, error) {
	return nil, nil
}

var _ search.FileIndexer = (*fakeIndexer)(nil)
