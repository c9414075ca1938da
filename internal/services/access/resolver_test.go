package access

import (
	"context"
	"errors"
	"testing"

	"github.com/kxrica/go-skyvault/internal/models"
	"github.com/kxrica/go-skyvault/internal/pkg/xerr"
	"github.com/kxrica/go-skyvault/internal/repositories/repotest"
)

const (
	ownerID    uint64 = 1
	strangerID uint64 = 2
)

func newTestResolver() (Resolver, *repotest.FakeFileRepo, *repotest.FakeFolderRepo, *repotest.FakeShareRepo) {
	fileRepo := repotest.NewFakeFileRepo()
	folderRepo := repotest.NewFakeFolderRepo()
	shareRepo := repotest.NewFakeShareRepo()
	return NewResolver(fileRepo, folderRepo, shareRepo), fileRepo, folderRepo, shareRepo
}

func codeOf(t *testing.T, err error) int {
	t.Helper()
	var codeErr *xerr.CodeError
	if !errors.As(err, &codeErr) {
		t.Fatalf("expected CodeError, got %v", err)
	}
	return codeErr.Code
}

func TestOwnerHasFullAccess(t *testing.T) {
	r, fileRepo, _, _ := newTestResolver()
	file := fileRepo.Put(&models.File{UserID: ownerID, Name: "报表.xlsx", Status: models.FileStatusReady})

	got, err := r.CheckFileAccess(context.Background(), ownerID, file.ID, models.PermissionEditor)
	if err != nil {
		t.Fatalf("owner should have editor access, got error: %v", err)
	}
	if got.ID != file.ID {
		t.Fatalf("unexpected file returned: %d", got.ID)
	}
}

func TestStrangerDenied(t *testing.T) {
	r, fileRepo, _, _ := newTestResolver()
	file := fileRepo.Put(&models.File{UserID: ownerID, Name: "a.txt"})

	_, err := r.CheckFileAccess(context.Background(), strangerID, file.ID, models.PermissionViewer)
	if codeOf(t, err) != xerr.PermissionDeniedCode {
		t.Fatalf("expected PermissionDenied, got %v", err)
	}
}

func TestDeletedFileLooksMissing(t *testing.T) {
	r, fileRepo, _, _ := newTestResolver()
	file := fileRepo.Put(&models.File{UserID: ownerID, Name: "a.txt", IsDeleted: true})

	// 对所有者也一样,回收站里的条目视为不存在
	_, err := r.CheckFileAccess(context.Background(), ownerID, file.ID, models.PermissionViewer)
	if codeOf(t, err) != xerr.FileNotFoundCode {
		t.Fatalf("expected FileNotFound, got %v", err)
	}
}

func TestDirectShareGrantsAccess(t *testing.T) {
	r, fileRepo, _, shareRepo := newTestResolver()
	file := fileRepo.Put(&models.File{UserID: ownerID, Name: "a.txt"})
	_ = shareRepo.Upsert(&models.Share{
		ItemKind:     models.KindFile,
		ItemID:       file.ID,
		OwnerID:      ownerID,
		SharedWithID: strangerID,
		Permission:   models.PermissionViewer,
	})

	if _, err := r.CheckFileAccess(context.Background(), strangerID, file.ID, models.PermissionViewer); err != nil {
		t.Fatalf("viewer share should grant viewer access: %v", err)
	}

	// viewer 不覆盖 editor
	_, err := r.CheckFileAccess(context.Background(), strangerID, file.ID, models.PermissionEditor)
	if codeOf(t, err) != xerr.PermissionDeniedCode {
		t.Fatalf("viewer share must not grant editor access, got %v", err)
	}
}

func TestEditorShareCoversViewer(t *testing.T) {
	r, _, folderRepo, shareRepo := newTestResolver()
	folder := folderRepo.Put(&models.Folder{UserID: ownerID, Name: "docs"})
	_ = shareRepo.Upsert(&models.Share{
		ItemKind:     models.KindFolder,
		ItemID:       folder.ID,
		OwnerID:      ownerID,
		SharedWithID: strangerID,
		Permission:   models.PermissionEditor,
	})

	if _, err := r.CheckFolderAccess(context.Background(), strangerID, folder.ID, models.PermissionViewer); err != nil {
		t.Fatalf("editor share should cover viewer access: %v", err)
	}
	if _, err := r.CheckFolderAccess(context.Background(), strangerID, folder.ID, models.PermissionEditor); err != nil {
		t.Fatalf("editor share should grant editor access: %v", err)
	}
}

func TestAncestorShareInherited(t *testing.T) {
	r, fileRepo, folderRepo, shareRepo := newTestResolver()

	// root/sub/file.txt,分享挂在 root 上
	root := folderRepo.Put(&models.Folder{UserID: ownerID, Name: "root"})
	sub := folderRepo.Put(&models.Folder{UserID: ownerID, Name: "sub", ParentID: &root.ID})
	file := fileRepo.Put(&models.File{UserID: ownerID, Name: "file.txt", FolderID: &sub.ID})

	_ = shareRepo.Upsert(&models.Share{
		ItemKind:     models.KindFolder,
		ItemID:       root.ID,
		OwnerID:      ownerID,
		SharedWithID: strangerID,
		Permission:   models.PermissionViewer,
	})

	if _, err := r.CheckFileAccess(context.Background(), strangerID, file.ID, models.PermissionViewer); err != nil {
		t.Fatalf("share on ancestor folder should be inherited: %v", err)
	}
	if _, err := r.CheckFolderAccess(context.Background(), strangerID, sub.ID, models.PermissionViewer); err != nil {
		t.Fatalf("subfolder should inherit ancestor share: %v", err)
	}
}

func TestEditorAncestorShareGrantsEditorOnDescendants(t *testing.T) {
	r, fileRepo, folderRepo, shareRepo := newTestResolver()

	// editor 分享挂在 root,整棵子树都应拿到 editor
	root := folderRepo.Put(&models.Folder{UserID: ownerID, Name: "root"})
	sub := folderRepo.Put(&models.Folder{UserID: ownerID, Name: "sub", ParentID: &root.ID})
	file := fileRepo.Put(&models.File{UserID: ownerID, Name: "file.txt", FolderID: &sub.ID})

	_ = shareRepo.Upsert(&models.Share{
		ItemKind:     models.KindFolder,
		ItemID:       root.ID,
		OwnerID:      ownerID,
		SharedWithID: strangerID,
		Permission:   models.PermissionEditor,
	})

	if _, err := r.CheckFileAccess(context.Background(), strangerID, file.ID, models.PermissionEditor); err != nil {
		t.Fatalf("editor share on ancestor should grant editor on descendant file: %v", err)
	}
	if _, err := r.CheckFolderAccess(context.Background(), strangerID, sub.ID, models.PermissionEditor); err != nil {
		t.Fatalf("editor share on ancestor should grant editor on descendant folder: %v", err)
	}
}

func TestViewerAncestorShareDeniesEditor(t *testing.T) {
	r, fileRepo, folderRepo, shareRepo := newTestResolver()

	root := folderRepo.Put(&models.Folder{UserID: ownerID, Name: "root"})
	file := fileRepo.Put(&models.File{UserID: ownerID, Name: "file.txt", FolderID: &root.ID})

	_ = shareRepo.Upsert(&models.Share{
		ItemKind:     models.KindFolder,
		ItemID:       root.ID,
		OwnerID:      ownerID,
		SharedWithID: strangerID,
		Permission:   models.PermissionViewer,
	})

	// 继承来的 viewer 不升级成 editor
	_, err := r.CheckFileAccess(context.Background(), strangerID, file.ID, models.PermissionEditor)
	if codeOf(t, err) != xerr.PermissionDeniedCode {
		t.Fatalf("inherited viewer share must not grant editor, got %v", err)
	}
	if _, err := r.CheckFileAccess(context.Background(), strangerID, file.ID, models.PermissionViewer); err != nil {
		t.Fatalf("inherited viewer share should still grant viewer: %v", err)
	}
}

func TestDeletedAncestorBreaksInheritance(t *testing.T) {
	r, fileRepo, folderRepo, shareRepo := newTestResolver()

	root := folderRepo.Put(&models.Folder{UserID: ownerID, Name: "root", IsDeleted: true})
	file := fileRepo.Put(&models.File{UserID: ownerID, Name: "file.txt", FolderID: &root.ID})

	_ = shareRepo.Upsert(&models.Share{
		ItemKind:     models.KindFolder,
		ItemID:       root.ID,
		OwnerID:      ownerID,
		SharedWithID: strangerID,
		Permission:   models.PermissionEditor,
	})

	_, err := r.CheckFileAccess(context.Background(), strangerID, file.ID, models.PermissionViewer)
	if codeOf(t, err) != xerr.PermissionDeniedCode {
		t.Fatalf("deleted ancestor must break inheritance, got %v", err)
	}
}

func TestParentCycleReportsDataIntegrity(t *testing.T) {
	r, fileRepo, folderRepo, _ := newTestResolver()

	// a <-> b 互为父目录,构造脏数据
	a := folderRepo.Put(&models.Folder{ID: 10, UserID: ownerID, Name: "a"})
	b := folderRepo.Put(&models.Folder{ID: 11, UserID: ownerID, Name: "b", ParentID: &a.ID})
	a.ParentID = &b.ID
	_ = folderRepo.Update(a)

	file := fileRepo.Put(&models.File{UserID: ownerID, Name: "f", FolderID: &a.ID})

	_, err := r.CheckFileAccess(context.Background(), strangerID, file.ID, models.PermissionViewer)
	if codeOf(t, err) != xerr.DataIntegrityErrorCode {
		t.Fatalf("cycle in folder tree must surface as data integrity error, got %v", err)
	}
}

func TestCheckAccessRejectsUnknownKind(t *testing.T) {
	r, _, _, _ := newTestResolver()
	err := r.CheckAccess(context.Background(), ownerID, models.ItemRef{Kind: "bucket", ID: 1}, models.PermissionViewer)
	if codeOf(t, err) != xerr.InvalidItemKindCode {
		t.Fatalf("expected InvalidItemKind, got %v", err)
	}
}
