package explorer

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/kxrica/go-skyvault/internal/models"
	"github.com/kxrica/go-skyvault/internal/pkg/mq"
	"github.com/kxrica/go-skyvault/internal/pkg/xerr"
	"github.com/kxrica/go-skyvault/internal/repositories/repotest"
	"github.com/kxrica/go-skyvault/internal/services/access"
)

const uploaderID uint64 = 1

type uploadFixture struct {
	svc        UploadService
	fileRepo   *repotest.FakeFileRepo
	folderRepo *repotest.FakeFolderRepo
	shareRepo  *repotest.FakeShareRepo
	storage    *fakeStorage
	publisher  *fakePublisher
	indexer    *fakeIndexer
}

func newUploadFixture() *uploadFixture {
	fileRepo := repotest.NewFakeFileRepo()
	folderRepo := repotest.NewFakeFolderRepo()
	shareRepo := repotest.NewFakeShareRepo()
	st := newFakeStorage()
	pub := newFakePublisher()
	idx := newFakeIndexer()
	resolver := access.NewResolver(fileRepo, folderRepo, shareRepo)
	svc := NewUploadService(fileRepo, folderRepo, resolver, st, pub, idx, testConfig())
	return &uploadFixture{
		svc:        svc,
		fileRepo:   fileRepo,
		folderRepo: folderRepo,
		shareRepo:  shareRepo,
		storage:    st,
		publisher:  pub,
		indexer:    idx,
	}
}

func TestInitUploadValidatesRequest(t *testing.T) {
	fx := newUploadFixture()
	ctx := context.Background()

	cases := []struct {
		name string
		req  *models.UploadInitRequest
		want int
	}{
		{"空文件名", &models.UploadInitRequest{Name: "  ", Size: 10}, xerr.InvalidParamsCode},
		{"非法大小", &models.UploadInitRequest{Name: "a.txt", Size: 0}, xerr.InvalidParamsCode},
		{"超过大小上限", &models.UploadInitRequest{Name: "a.txt", Size: 200 * 1024 * 1024}, xerr.FileTooLargeCode},
		{"分块数超限", &models.UploadInitRequest{Name: "a.txt", Size: 10, PartCount: 1000}, xerr.InvalidParamsCode},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := fx.svc.InitUpload(ctx, uploaderID, tc.req)
			if codeOf(t, err) != tc.want {
				t.Fatalf("expected code %d, got %v", tc.want, err)
			}
		})
	}
	if len(fx.fileRepo.Files) != 0 {
		t.Fatalf("validation failures must not create file records, got %d", len(fx.fileRepo.Files))
	}
}

func TestInitUploadCreatesUploadingRecord(t *testing.T) {
	fx := newUploadFixture()

	resp, err := fx.svc.InitUpload(context.Background(), uploaderID, &models.UploadInitRequest{
		Name:     "photo.png",
		Size:     1024,
		MimeType: "image/png",
	})
	if err != nil {
		t.Fatalf("InitUpload failed: %v", err)
	}
	if len(resp.UploadURLs) != 1 || resp.UploadID != "" {
		t.Fatalf("simple upload should return one URL without uploadID, got %+v", resp)
	}

	file, _ := fx.fileRepo.FindByID(resp.FileID)
	if file == nil {
		t.Fatal("file record not created")
	}
	if file.Status != models.FileStatusUploading {
		t.Fatalf("expected uploading status, got %s", file.Status)
	}
	if file.StorageKey != resp.StorageKey {
		t.Fatalf("storage key mismatch: %s vs %s", file.StorageKey, resp.StorageKey)
	}
}

func TestInitUploadMultipart(t *testing.T) {
	fx := newUploadFixture()

	resp, err := fx.svc.InitUpload(context.Background(), uploaderID, &models.UploadInitRequest{
		Name:      "big.bin",
		Size:      50 * 1024 * 1024,
		PartCount: 4,
	})
	if err != nil {
		t.Fatalf("InitUpload failed: %v", err)
	}
	if resp.UploadID == "" {
		t.Fatal("multipart upload must return an uploadID")
	}
	if len(resp.UploadURLs) != 4 {
		t.Fatalf("expected 4 part URLs, got %d", len(resp.UploadURLs))
	}
}

func TestInitUploadPresignFailureMarksError(t *testing.T) {
	fx := newUploadFixture()
	fx.storage.presign = false

	_, err := fx.svc.InitUpload(context.Background(), uploaderID, &models.UploadInitRequest{
		Name: "a.txt",
		Size: 10,
	})
	if codeOf(t, err) != xerr.StorageNotConfiguredCode {
		t.Fatalf("expected StorageNotConfigured, got %v", err)
	}

	// 记录不能悬在 uploading 状态
	for _, f := range fx.fileRepo.Files {
		if f.Status != models.FileStatusError {
			t.Fatalf("expected error status after presign failure, got %s", f.Status)
		}
	}
}

func TestInitUploadRejectsDuplicateName(t *testing.T) {
	fx := newUploadFixture()
	fx.fileRepo.Put(&models.File{UserID: uploaderID, Name: "a.txt", Status: models.FileStatusReady})
	fx.folderRepo.Put(&models.Folder{UserID: uploaderID, Name: "docs"})

	_, err := fx.svc.InitUpload(context.Background(), uploaderID, &models.UploadInitRequest{Name: "a.txt", Size: 10})
	if codeOf(t, err) != xerr.DuplicateNameCode {
		t.Fatalf("duplicate file name must be rejected, got %v", err)
	}

	// 和文件夹重名同样拒绝
	_, err = fx.svc.InitUpload(context.Background(), uploaderID, &models.UploadInitRequest{Name: "docs", Size: 10})
	if codeOf(t, err) != xerr.DuplicateNameCode {
		t.Fatalf("name clashing with a folder must be rejected, got %v", err)
	}
}

func TestInitUploadRequiresEditorOnTargetFolder(t *testing.T) {
	fx := newUploadFixture()
	folder := fx.folderRepo.Put(&models.Folder{UserID: 99, Name: "other"})

	_, err := fx.svc.InitUpload(context.Background(), uploaderID, &models.UploadInitRequest{
		Name:     "a.txt",
		Size:     10,
		FolderID: &folder.ID,
	})
	if codeOf(t, err) != xerr.PermissionDeniedCode {
		t.Fatalf("uploading into a stranger's folder must be denied, got %v", err)
	}
}

func TestCompleteUploadFlipsToReady(t *testing.T) {
	fx := newUploadFixture()
	ctx := context.Background()

	resp, err := fx.svc.InitUpload(ctx, uploaderID, &models.UploadInitRequest{
		Name:     "photo.png",
		Size:     1024,
		MimeType: "image/png",
	})
	if err != nil {
		t.Fatalf("InitUpload failed: %v", err)
	}

	file, err := fx.svc.CompleteUpload(ctx, uploaderID, &models.UploadCompleteRequest{FileID: resp.FileID})
	if err != nil {
		t.Fatalf("CompleteUpload failed: %v", err)
	}
	if file.Status != models.FileStatusReady {
		t.Fatalf("expected ready status, got %s", file.Status)
	}

	// 图片要投递缩略图任务并进搜索索引
	if fx.publisher.count(mq.ThumbnailQueueName) != 1 {
		t.Fatalf("expected 1 thumbnail task, got %d", fx.publisher.count(mq.ThumbnailQueueName))
	}
	if len(fx.indexer.Indexed) != 1 || fx.indexer.Indexed[0] != file.ID {
		t.Fatalf("file should be indexed after completion, got %v", fx.indexer.Indexed)
	}

	// 重复确认被拒
	_, err = fx.svc.CompleteUpload(ctx, uploaderID, &models.UploadCompleteRequest{FileID: resp.FileID})
	if codeOf(t, err) != xerr.InvalidStatusCode {
		t.Fatalf("second complete must fail with invalid status, got %v", err)
	}
}

func TestCompleteUploadNonImageSkipsThumbnail(t *testing.T) {
	fx := newUploadFixture()
	ctx := context.Background()

	resp, err := fx.svc.InitUpload(ctx, uploaderID, &models.UploadInitRequest{
		Name:     "report.pdf",
		Size:     2048,
		MimeType: "application/pdf",
	})
	if err != nil {
		t.Fatalf("InitUpload failed: %v", err)
	}
	if _, err := fx.svc.CompleteUpload(ctx, uploaderID, &models.UploadCompleteRequest{FileID: resp.FileID}); err != nil {
		t.Fatalf("CompleteUpload failed: %v", err)
	}
	if fx.publisher.count(mq.ThumbnailQueueName) != 0 {
		t.Fatal("non-image upload must not enqueue a thumbnail task")
	}
}

func TestCompleteUploadOnlyByUploader(t *testing.T) {
	fx := newUploadFixture()
	ctx := context.Background()

	resp, err := fx.svc.InitUpload(ctx, uploaderID, &models.UploadInitRequest{Name: "a.txt", Size: 10})
	if err != nil {
		t.Fatalf("InitUpload failed: %v", err)
	}

	_, err = fx.svc.CompleteUpload(ctx, 42, &models.UploadCompleteRequest{FileID: resp.FileID})
	if codeOf(t, err) != xerr.PermissionDeniedCode {
		t.Fatalf("only the uploader may complete, got %v", err)
	}
}

func TestDirectUploadStoresBytes(t *testing.T) {
	fx := newUploadFixture()
	content := []byte("hello skyvault")

	file, err := fx.svc.DirectUpload(context.Background(), uploaderID, nil, "hello.txt", "text/plain",
		bytes.NewReader(content), int64(len(content)))
	if err != nil {
		t.Fatalf("DirectUpload failed: %v", err)
	}
	if file.Status != models.FileStatusReady {
		t.Fatalf("expected ready status, got %s", file.Status)
	}

	obj, err := fx.storage.GetObject(context.Background(), file.StorageBucket, file.StorageKey)
	if err != nil {
		t.Fatalf("object not stored: %v", err)
	}
	obj.Reader.Close()
	if obj.Size != int64(len(content)) {
		t.Fatalf("stored size mismatch: %d", obj.Size)
	}
	if len(fx.indexer.Indexed) != 1 {
		t.Fatalf("direct upload should index the file, got %v", fx.indexer.Indexed)
	}
}

func TestDirectUploadStorageFailure(t *testing.T) {
	fx := newUploadFixture()
	_, err := fx.svc.DirectUpload(context.Background(), uploaderID, nil, "bad.bin", "application/octet-stream",
		&failingReader{}, 10)
	if codeOf(t, err) != xerr.StorageErrorCode {
		t.Fatalf("expected StorageError, got %v", err)
	}
	if len(fx.fileRepo.Files) != 0 {
		t.Fatal("failed upload must not leave a file record")
	}
}

type failingReader struct{}

func (failingReader) Read(p []byte) (int, error) { return 0, errors.New("read error") }
