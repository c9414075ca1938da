package worker

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/kxrica/go-skyvault/internal/config"
	"github.com/kxrica/go-skyvault/internal/models"
	"github.com/kxrica/go-skyvault/internal/pkg/storage"
	"github.com/kxrica/go-skyvault/internal/repositories/repotest"
)

// stubStorage 只实现工作进程用到的读写路径
type stubStorage struct {
	objects map[string][]byte
	getErr  error
}

func newStubStorage() *stubStorage {
	return &stubStorage{objects: make(map[string][]byte)}
}

func (s *stubStorage) PutObject(ctx context.Context, bucket, key string, reader io.Reader, size int64, contentType string) (storage.PutObjectResult, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return storage.PutObjectResult{}, err
	}
	s.objects[bucket+"/"+key] = data
	return storage.PutObjectResult{Bucket: bucket, Key: key, Size: int64(len(data))}, nil
}

func (s *stubStorage) GetObject(ctx context.Context, bucket, key string) (storage.GetObjectResult, error) {
	if s.getErr != nil {
		return storage.GetObjectResult{}, s.getErr
	}
	data, ok := s.objects[bucket+"/"+key]
	if !ok {
		return storage.GetObjectResult{}, errors.New("object not found")
	}
	return storage.GetObjectResult{Reader: io.NopCloser(bytes.NewReader(data)), Size: int64(len(data))}, nil
}

func (s *stubStorage) RemoveObject(ctx context.Context, bucket, key string) error { return nil }
func (s *stubStorage) IsBucketExist(ctx context.Context, bucket string) (bool, error) {
	return true, nil
}
func (s *stubStorage) MakeBucket(ctx context.Context, bucket string) error { return nil }
func (s *stubStorage) GetObjectURL(bucket, key string) string {
	return "http://storage.local/" + bucket + "/" + key
}
func (s *stubStorage) PresignUpload(ctx context.Context, bucket, key, contentType string, expiry time.Duration) (string, error) {
	return "", storage.ErrPresignNotSupported
}
func (s *stubStorage) PresignDownload(ctx context.Context, bucket, key string, expiry time.Duration) (string, error) {
	return "", storage.ErrPresignNotSupported
}
func (s *stubStorage) SupportsMultipart() bool { return false }
func (s *stubStorage) InitMultipartUpload(ctx context.Context, bucket, key, contentType string) (string, error) {
	return "", storage.ErrMultipartNotSupported
}
func (s *stubStorage) PresignUploadPart(ctx context.Context, bucket, key, uploadID string, partNumber int, expiry time.Duration) (string, error) {
	return "", storage.ErrMultipartNotSupported
}
func (s *stubStorage) CompleteMultipartUpload(ctx context.Context, bucket, key, uploadID string, parts []storage.UploadPartResult) (storage.PutObjectResult, error) {
	return storage.PutObjectResult{}, storage.ErrMultipartNotSupported
}
func (s *stubStorage) AbortMultipartUpload(ctx context.Context, bucket, key, uploadID string) error {
	return nil
}

var _ storage.StorageService = (*stubStorage)(nil)

func testWorker(fileRepo *repotest.FakeFileRepo, st *stubStorage) *ThumbnailWorker {
	cfg := &config.Config{
		Thumbnail: config.ThumbnailConfig{MaxWidth: 64, MaxHeight: 64, Quality: 80},
	}
	return NewThumbnailWorker(nil, fileRepo, st, cfg)
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func strPtr(s string) *string { return &s }

func TestProcessGeneratesThumbnail(t *testing.T) {
	fileRepo := repotest.NewFakeFileRepo()
	st := newStubStorage()
	w := testWorker(fileRepo, st)

	file := fileRepo.Put(&models.File{
		UserID:        1,
		Name:          "photo.png",
		StorageKey:    "1/abc/photo.png",
		StorageBucket: "skyvault",
		MimeType:      strPtr("image/png"),
		Status:        models.FileStatusReady,
	})
	st.objects["skyvault/1/abc/photo.png"] = pngBytes(t, 200, 100)

	requeue, err := w.Process(context.Background(), models.ThumbnailTask{FileID: file.ID})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if requeue {
		t.Fatal("successful run must not requeue")
	}

	thumb, ok := st.objects["skyvault/1/abc/photo_thumb.jpg"]
	if !ok || len(thumb) == 0 {
		t.Fatal("thumbnail object not written")
	}

	got, _ := fileRepo.FindByID(file.ID)
	if got.ThumbnailURL == nil || !strings.HasSuffix(*got.ThumbnailURL, "photo_thumb.jpg") {
		t.Fatalf("thumbnail URL not persisted: %v", got.ThumbnailURL)
	}
}

func TestProcessIsIdempotent(t *testing.T) {
	fileRepo := repotest.NewFakeFileRepo()
	st := newStubStorage()
	w := testWorker(fileRepo, st)

	file := fileRepo.Put(&models.File{
		UserID:        1,
		Name:          "photo.png",
		StorageKey:    "1/abc/photo.png",
		StorageBucket: "skyvault",
		MimeType:      strPtr("image/png"),
	})
	st.objects["skyvault/1/abc/photo.png"] = pngBytes(t, 32, 32)

	for i := 0; i < 2; i++ {
		if _, err := w.Process(context.Background(), models.ThumbnailTask{FileID: file.ID}); err != nil {
			t.Fatalf("run %d failed: %v", i, err)
		}
	}
	if _, ok := st.objects["skyvault/1/abc/photo_thumb.jpg"]; !ok {
		t.Fatal("thumbnail missing after repeated runs")
	}
}

func TestProcessSkipsGoneFile(t *testing.T) {
	fileRepo := repotest.NewFakeFileRepo()
	w := testWorker(fileRepo, newStubStorage())

	// 记录不存在
	requeue, err := w.Process(context.Background(), models.ThumbnailTask{FileID: 404})
	if err != nil || requeue {
		t.Fatalf("missing file must be a permanent no-op, got requeue=%v err=%v", requeue, err)
	}

	// 记录已进回收站
	deleted := fileRepo.Put(&models.File{
		UserID:     1,
		Name:       "gone.png",
		MimeType:   strPtr("image/png"),
		IsDeleted:  true,
		StorageKey: "1/x/gone.png",
	})
	requeue, err = w.Process(context.Background(), models.ThumbnailTask{FileID: deleted.ID})
	if err != nil || requeue {
		t.Fatalf("deleted file must be a permanent no-op, got requeue=%v err=%v", requeue, err)
	}
}

func TestProcessSkipsNonImage(t *testing.T) {
	fileRepo := repotest.NewFakeFileRepo()
	w := testWorker(fileRepo, newStubStorage())

	file := fileRepo.Put(&models.File{
		UserID:     1,
		Name:       "report.pdf",
		MimeType:   strPtr("application/pdf"),
		StorageKey: "1/x/report.pdf",
	})
	requeue, err := w.Process(context.Background(), models.ThumbnailTask{FileID: file.ID})
	if err != nil || requeue {
		t.Fatalf("non-image must be a permanent no-op, got requeue=%v err=%v", requeue, err)
	}
}

func TestProcessDropsCorruptImage(t *testing.T) {
	fileRepo := repotest.NewFakeFileRepo()
	st := newStubStorage()
	w := testWorker(fileRepo, st)

	file := fileRepo.Put(&models.File{
		UserID:        1,
		Name:          "bad.png",
		StorageKey:    "1/abc/bad.png",
		StorageBucket: "skyvault",
		MimeType:      strPtr("image/png"),
	})
	st.objects["skyvault/1/abc/bad.png"] = []byte("not an image at all")

	// 损坏的图片是失败而不是成功,但重试无意义,不重新入队
	requeue, err := w.Process(context.Background(), models.ThumbnailTask{FileID: file.ID})
	if err == nil {
		t.Fatal("corrupt image must surface as a failure")
	}
	if requeue {
		t.Fatalf("corrupt image must not be requeued, got err=%v", err)
	}
}

func TestProcessRequeuesOnStorageError(t *testing.T) {
	fileRepo := repotest.NewFakeFileRepo()
	st := newStubStorage()
	st.getErr = errors.New("connection refused")
	w := testWorker(fileRepo, st)

	file := fileRepo.Put(&models.File{
		UserID:        1,
		Name:          "photo.png",
		StorageKey:    "1/abc/photo.png",
		StorageBucket: "skyvault",
		MimeType:      strPtr("image/png"),
	})

	requeue, err := w.Process(context.Background(), models.ThumbnailTask{FileID: file.ID})
	if err == nil || !requeue {
		t.Fatalf("transient storage failure must requeue, got requeue=%v err=%v", requeue, err)
	}
}
