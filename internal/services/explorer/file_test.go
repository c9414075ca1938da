package explorer

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/kxrica/go-skyvault/internal/models"
	"github.com/kxrica/go-skyvault/internal/pkg/xerr"
	"github.com/kxrica/go-skyvault/internal/repositories/repotest"
	"github.com/kxrica/go-skyvault/internal/services/access"
)

type fileFixture struct {
	svc        FileService
	fileRepo   *repotest.FakeFileRepo
	folderRepo *repotest.FakeFolderRepo
	shareRepo  *repotest.FakeShareRepo
	storage    *fakeStorage
	indexer    *fakeIndexer
}

func newFileFixture() *fileFixture {
	fileRepo := repotest.NewFakeFileRepo()
	folderRepo := repotest.NewFakeFolderRepo()
	shareRepo := repotest.NewFakeShareRepo()
	st := newFakeStorage()
	idx := newFakeIndexer()
	resolver := access.NewResolver(fileRepo, folderRepo, shareRepo)
	svc := NewFileService(fileRepo, folderRepo, resolver, st, idx, testConfig())
	return &fileFixture{svc: svc, fileRepo: fileRepo, folderRepo: folderRepo, shareRepo: shareRepo, storage: st, indexer: idx}
}

func (fx *fileFixture) putReadyFile(userID uint64, folderID *uint64, name, content string) *models.File {
	key := "k/" + name
	file := fx.fileRepo.Put(&models.File{
		UserID:        userID,
		FolderID:      folderID,
		Name:          name,
		StorageKey:    key,
		StorageBucket: "skyvault",
		Size:          int64(len(content)),
		Status:        models.FileStatusReady,
	})
	fx.storage.objects["skyvault/"+key] = []byte(content)
	return file
}

func TestRenameFile(t *testing.T) {
	fx := newFileFixture()
	ctx := context.Background()
	file := fx.putReadyFile(uploaderID, nil, "old.txt", "x")

	renamed, err := fx.svc.RenameFile(ctx, uploaderID, file.ID, "new.txt")
	if err != nil {
		t.Fatalf("RenameFile failed: %v", err)
	}
	if renamed.Name != "new.txt" {
		t.Fatalf("unexpected name: %s", renamed.Name)
	}
	if len(fx.indexer.Indexed) != 1 {
		t.Fatal("rename should refresh the search index")
	}

	// 重名拒绝
	fx.putReadyFile(uploaderID, nil, "taken.txt", "y")
	_, err = fx.svc.RenameFile(ctx, uploaderID, file.ID, "taken.txt")
	if codeOf(t, err) != xerr.DuplicateNameCode {
		t.Fatalf("rename into a sibling clash must be rejected, got %v", err)
	}
}

func TestMoveFileChecksTargetAccess(t *testing.T) {
	fx := newFileFixture()
	ctx := context.Background()
	file := fx.putReadyFile(uploaderID, nil, "a.txt", "x")
	other := fx.folderRepo.Put(&models.Folder{UserID: 99, Name: "theirs"})

	_, err := fx.svc.MoveFile(ctx, uploaderID, file.ID, &other.ID)
	if codeOf(t, err) != xerr.PermissionDeniedCode {
		t.Fatalf("moving into a stranger's folder must be denied, got %v", err)
	}

	mine := fx.folderRepo.Put(&models.Folder{UserID: uploaderID, Name: "mine"})
	moved, err := fx.svc.MoveFile(ctx, uploaderID, file.ID, &mine.ID)
	if err != nil {
		t.Fatalf("MoveFile failed: %v", err)
	}
	if moved.FolderID == nil || *moved.FolderID != mine.ID {
		t.Fatalf("file not moved: %v", moved.FolderID)
	}
}

func TestDeleteAndRestoreFile(t *testing.T) {
	fx := newFileFixture()
	ctx := context.Background()
	folder := fx.folderRepo.Put(&models.Folder{UserID: uploaderID, Name: "docs"})
	file := fx.putReadyFile(uploaderID, &folder.ID, "a.txt", "x")

	if err := fx.svc.DeleteFile(ctx, uploaderID, file.ID); err != nil {
		t.Fatalf("DeleteFile failed: %v", err)
	}
	got, _ := fx.fileRepo.FindByID(file.ID)
	if !got.IsDeleted {
		t.Fatal("file should be soft-deleted")
	}
	if len(fx.indexer.Removed) != 1 {
		t.Fatal("deleted file must leave the search index")
	}

	restored, err := fx.svc.RestoreFile(ctx, uploaderID, file.ID)
	if err != nil {
		t.Fatalf("RestoreFile failed: %v", err)
	}
	if restored.IsDeleted {
		t.Fatal("restored file must not stay deleted")
	}
	// 原文件夹还在,位置不变
	if restored.FolderID == nil || *restored.FolderID != folder.ID {
		t.Fatalf("restore should keep the original folder, got %v", restored.FolderID)
	}
}

func TestRestoreFileReattachesToRoot(t *testing.T) {
	fx := newFileFixture()
	ctx := context.Background()
	folder := fx.folderRepo.Put(&models.Folder{UserID: uploaderID, Name: "docs", IsDeleted: true})
	file := fx.fileRepo.Put(&models.File{
		UserID:    uploaderID,
		FolderID:  &folder.ID,
		Name:      "a.txt",
		IsDeleted: true,
	})

	restored, err := fx.svc.RestoreFile(ctx, uploaderID, file.ID)
	if err != nil {
		t.Fatalf("RestoreFile failed: %v", err)
	}
	if restored.FolderID != nil {
		t.Fatalf("expected reattach to root, got %v", restored.FolderID)
	}
}

func TestRestoreFileOnlyByOwner(t *testing.T) {
	fx := newFileFixture()
	file := fx.fileRepo.Put(&models.File{UserID: uploaderID, Name: "a.txt", IsDeleted: true})

	_, err := fx.svc.RestoreFile(context.Background(), 42, file.ID)
	if codeOf(t, err) != xerr.PermissionDeniedCode {
		t.Fatalf("only the owner may restore, got %v", err)
	}
}

func TestPermanentDeleteRemovesObjectAndThumbnail(t *testing.T) {
	fx := newFileFixture()
	ctx := context.Background()
	file := fx.putReadyFile(uploaderID, nil, "photo.png", "img")
	thumbKey := ThumbnailKey(file.StorageKey)
	fx.storage.objects["skyvault/"+thumbKey] = []byte("thumb")
	thumbURL := "http://storage.local/skyvault/" + thumbKey
	file.ThumbnailURL = &thumbURL
	_ = fx.fileRepo.Update(file)

	if err := fx.svc.PermanentDeleteFile(ctx, uploaderID, file.ID); err != nil {
		t.Fatalf("PermanentDeleteFile failed: %v", err)
	}

	if got, _ := fx.fileRepo.FindByID(file.ID); got != nil {
		t.Fatal("record should be gone")
	}
	if _, ok := fx.storage.objects["skyvault/"+file.StorageKey]; ok {
		t.Fatal("physical object should be removed")
	}
	if _, ok := fx.storage.objects["skyvault/"+thumbKey]; ok {
		t.Fatal("thumbnail object should be removed")
	}
	if len(fx.indexer.Removed) != 1 {
		t.Fatal("permanently deleted file must leave the search index")
	}
}

func TestDownloadURLRequiresReadyStatus(t *testing.T) {
	fx := newFileFixture()
	ctx := context.Background()

	ready := fx.putReadyFile(uploaderID, nil, "a.txt", "x")
	url, err := fx.svc.DownloadURL(ctx, uploaderID, ready.ID)
	if err != nil {
		t.Fatalf("DownloadURL failed: %v", err)
	}
	if !strings.Contains(url, "presign-get") {
		t.Fatalf("expected presigned URL, got %s", url)
	}

	pending := fx.fileRepo.Put(&models.File{
		UserID: uploaderID, Name: "b.txt", StorageKey: "k/b.txt", StorageBucket: "skyvault",
		Status: models.FileStatusUploading,
	})
	_, err = fx.svc.DownloadURL(ctx, uploaderID, pending.ID)
	if codeOf(t, err) != xerr.InvalidStatusCode {
		t.Fatalf("uploading file must not be downloadable, got %v", err)
	}
}

func TestDownloadURLFallsBackWhenPresignUnsupported(t *testing.T) {
	fx := newFileFixture()
	fx.storage.presign = false
	file := fx.putReadyFile(uploaderID, nil, "a.txt", "content")

	_, err := fx.svc.DownloadURL(context.Background(), uploaderID, file.ID)
	if codeOf(t, err) != xerr.StorageNotConfiguredCode {
		t.Fatalf("expected StorageNotConfigured, got %v", err)
	}

	// 直接流式下载仍然可用
	got, reader, err := fx.svc.DownloadContent(context.Background(), uploaderID, file.ID)
	if err != nil {
		t.Fatalf("DownloadContent failed: %v", err)
	}
	defer reader.Close()
	data, _ := io.ReadAll(reader)
	if string(data) != "content" || got.ID != file.ID {
		t.Fatalf("unexpected content %q for file %d", data, got.ID)
	}
}

func TestDownloadFolderZip(t *testing.T) {
	fx := newFileFixture()
	ctx := context.Background()

	root := fx.folderRepo.Put(&models.Folder{UserID: uploaderID, Name: "docs"})
	sub := fx.folderRepo.Put(&models.Folder{UserID: uploaderID, Name: "img", ParentID: &root.ID})
	fx.putReadyFile(uploaderID, &root.ID, "readme.txt", "hello")
	fx.putReadyFile(uploaderID, &sub.ID, "logo.png", "fakepng")
	// 未完成上传的文件不进包
	fx.fileRepo.Put(&models.File{
		UserID: uploaderID, FolderID: &root.ID, Name: "partial.bin",
		StorageKey: "k/partial.bin", StorageBucket: "skyvault",
		Status: models.FileStatusUploading,
	})

	folder, reader, err := fx.svc.DownloadFolderZip(ctx, uploaderID, root.ID)
	if err != nil {
		t.Fatalf("DownloadFolderZip failed: %v", err)
	}
	defer reader.Close()
	if folder.ID != root.ID {
		t.Fatalf("unexpected folder returned: %d", folder.ID)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("reading zip stream failed: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("invalid zip produced: %v", err)
	}

	names := make(map[string]bool)
	for _, f := range zr.File {
		names[f.Name] = true
	}
	for _, want := range []string{"docs/", "docs/img/", "docs/readme.txt", "docs/img/logo.png"} {
		if !names[want] {
			t.Fatalf("zip missing entry %q, got %v", want, names)
		}
	}
	if names["docs/partial.bin"] {
		t.Fatal("uploading file must not be packed")
	}

	rc, err := zr.Open("docs/readme.txt")
	if err != nil {
		t.Fatalf("opening zip entry failed: %v", err)
	}
	content, _ := io.ReadAll(rc)
	rc.Close()
	if string(content) != "hello" {
		t.Fatalf("unexpected entry content %q", content)
	}
}

func TestSearchFilesValidatesKeyword(t *testing.T) {
	fx := newFileFixture()
	_, err := fx.svc.SearchFiles(context.Background(), uploaderID, "   ", 10)
	if codeOf(t, err) != xerr.InvalidParamsCode {
		t.Fatalf("blank keyword must be rejected, got %v", err)
	}
}

func TestThumbnailKey(t *testing.T) {
	cases := map[string]string{
		"a/b/photo.png": "a/b/photo_thumb.jpg",
		"a/b/noext":     "a/b/noext_thumb.jpg",
		"x.jpeg":        "x_thumb.jpg",
	}
	for in, want := range cases {
		if got := ThumbnailKey(in); got != want {
			t.Fatalf("ThumbnailKey(%q) = %q, want %q", in, got, want)
		}
	}
}
