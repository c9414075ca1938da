package share

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kxrica/go-skyvault/internal/config"
	"github.com/kxrica/go-skyvault/internal/models"
	"github.com/kxrica/go-skyvault/internal/pkg/utils"
	"github.com/kxrica/go-skyvault/internal/pkg/xerr"
	"github.com/kxrica/go-skyvault/internal/repositories/repotest"
	"github.com/kxrica/go-skyvault/internal/services/access"
)

type shareFixture struct {
	svc        ShareService
	fileRepo   *repotest.FakeFileRepo
	folderRepo *repotest.FakeFolderRepo
	shareRepo  *repotest.FakeShareRepo
	linkRepo   *repotest.FakeLinkShareRepo
	userRepo   *repotest.FakeUserRepo
}

func newShareFixture() *shareFixture {
	fileRepo := repotest.NewFakeFileRepo()
	folderRepo := repotest.NewFakeFolderRepo()
	shareRepo := repotest.NewFakeShareRepo()
	linkRepo := repotest.NewFakeLinkShareRepo()
	userRepo := repotest.NewFakeUserRepo()
	resolver := access.NewResolver(fileRepo, folderRepo, shareRepo)
	svc := NewShareService(shareRepo, linkRepo, fileRepo, folderRepo, userRepo, resolver,
		utils.NewEmailSender(&config.SMTPConfig{}), &config.Config{})
	return &shareFixture{
		svc:        svc,
		fileRepo:   fileRepo,
		folderRepo: folderRepo,
		shareRepo:  shareRepo,
		linkRepo:   linkRepo,
		userRepo:   userRepo,
	}
}

func codeOf(t *testing.T, err error) int {
	t.Helper()
	var codeErr *xerr.CodeError
	if !errors.As(err, &codeErr) {
		t.Fatalf("expected CodeError, got %v", err)
	}
	return codeErr.Code
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
func i64Ptr(i int64) *int64   { return &i }

func TestShareWithUser(t *testing.T) {
	f := newShareFixture()
	owner := f.userRepo.Put(&models.User{Username: "alice", Email: "alice@example.com"})
	target := f.userRepo.Put(&models.User{Username: "bob", Email: "bob@example.com"})
	file := f.fileRepo.Put(&models.File{UserID: owner.ID, Name: "plan.md"})

	record, err := f.svc.ShareWithUser(context.Background(), owner.ID, file.Ref(), target.Email, models.PermissionViewer)
	if err != nil {
		t.Fatalf("ShareWithUser failed: %v", err)
	}
	if record.SharedWithID != target.ID || record.Permission != models.PermissionViewer {
		t.Fatalf("unexpected share record: %+v", record)
	}

	// 重复分享升级权限,不应产生第二条记录
	updated, err := f.svc.ShareWithUser(context.Background(), owner.ID, file.Ref(), target.Email, models.PermissionEditor)
	if err != nil {
		t.Fatalf("re-share failed: %v", err)
	}
	if updated.ID != record.ID {
		t.Fatalf("re-share must update in place, got new id %d (was %d)", updated.ID, record.ID)
	}
	if len(f.shareRepo.Shares) != 1 {
		t.Fatalf("expected 1 share record, got %d", len(f.shareRepo.Shares))
	}
	stored, _ := f.shareRepo.FindByID(record.ID)
	if stored.Permission != models.PermissionEditor {
		t.Fatalf("permission not updated: %s", stored.Permission)
	}
}

func TestShareWithUserRejectsSelfAndUnknownTarget(t *testing.T) {
	f := newShareFixture()
	owner := f.userRepo.Put(&models.User{Username: "alice", Email: "alice@example.com"})
	file := f.fileRepo.Put(&models.File{UserID: owner.ID, Name: "plan.md"})

	_, err := f.svc.ShareWithUser(context.Background(), owner.ID, file.Ref(), "alice@example.com", models.PermissionViewer)
	if codeOf(t, err) != xerr.InvalidShareTargetCode {
		t.Fatalf("self-share must be rejected, got %v", err)
	}

	_, err = f.svc.ShareWithUser(context.Background(), owner.ID, file.Ref(), "ghost@example.com", models.PermissionViewer)
	if codeOf(t, err) != xerr.UserNotFoundCode {
		t.Fatalf("unknown target must be rejected, got %v", err)
	}
}

func TestShareRequiresEditorAccess(t *testing.T) {
	f := newShareFixture()
	owner := f.userRepo.Put(&models.User{Username: "alice", Email: "alice@example.com"})
	viewer := f.userRepo.Put(&models.User{Username: "bob", Email: "bob@example.com"})
	third := f.userRepo.Put(&models.User{Username: "carol", Email: "carol@example.com"})
	file := f.fileRepo.Put(&models.File{UserID: owner.ID, Name: "plan.md"})

	// bob 只有 viewer 权限,不能再分享
	_ = f.shareRepo.Upsert(&models.Share{
		ItemKind: models.KindFile, ItemID: file.ID,
		OwnerID: owner.ID, SharedWithID: viewer.ID,
		Permission: models.PermissionViewer,
	})

	_, err := f.svc.ShareWithUser(context.Background(), viewer.ID, file.Ref(), third.Email, models.PermissionViewer)
	if codeOf(t, err) != xerr.PermissionDeniedCode {
		t.Fatalf("viewer must not be able to share, got %v", err)
	}
}

func TestRevokeShareOnlyByCreator(t *testing.T) {
	f := newShareFixture()
	owner := f.userRepo.Put(&models.User{Username: "alice", Email: "alice@example.com"})
	target := f.userRepo.Put(&models.User{Username: "bob", Email: "bob@example.com"})
	file := f.fileRepo.Put(&models.File{UserID: owner.ID, Name: "plan.md"})

	record, err := f.svc.ShareWithUser(context.Background(), owner.ID, file.Ref(), target.Email, models.PermissionViewer)
	if err != nil {
		t.Fatalf("ShareWithUser failed: %v", err)
	}

	if err := f.svc.RevokeShare(context.Background(), target.ID, record.ID); codeOf(t, err) != xerr.PermissionDeniedCode {
		t.Fatalf("non-creator revoke must be denied, got %v", err)
	}
	if err := f.svc.RevokeShare(context.Background(), owner.ID, record.ID); err != nil {
		t.Fatalf("creator revoke failed: %v", err)
	}
	if err := f.svc.RevokeShare(context.Background(), owner.ID, record.ID); codeOf(t, err) != xerr.ShareNotFoundCode {
		t.Fatalf("double revoke must be not-found, got %v", err)
	}
}

func TestResolvePublicLinkChecksOrder(t *testing.T) {
	f := newShareFixture()
	owner := f.userRepo.Put(&models.User{Username: "alice", Email: "alice@example.com"})
	file := f.fileRepo.Put(&models.File{UserID: owner.ID, Name: "plan.md"})

	link, err := f.svc.CreatePublicLink(context.Background(), owner.ID, file.Ref(), CreateLinkOptions{
		Password:         strPtr("s3cret"),
		ExpiresInMinutes: intPtr(60),
	})
	if err != nil {
		t.Fatalf("CreatePublicLink failed: %v", err)
	}
	if link.PasswordHash == nil || *link.PasswordHash == "s3cret" {
		t.Fatalf("password must be stored hashed")
	}

	// 未知令牌
	_, err = f.svc.ResolvePublicLink(context.Background(), "no-such-token", nil)
	if codeOf(t, err) != xerr.LinkNotFoundCode {
		t.Fatalf("expected LinkNotFound, got %v", err)
	}

	// 缺密码与错密码
	_, err = f.svc.ResolvePublicLink(context.Background(), link.Token, nil)
	if codeOf(t, err) != xerr.LinkPasswordRequiredCode {
		t.Fatalf("expected PasswordRequired, got %v", err)
	}
	_, err = f.svc.ResolvePublicLink(context.Background(), link.Token, strPtr("wrong"))
	if codeOf(t, err) != xerr.LinkPasswordIncorrectCode {
		t.Fatalf("expected PasswordIncorrect, got %v", err)
	}

	// 密码错误不消耗配额
	stored, _ := f.linkRepo.FindByID(link.ID)
	if stored.AccessCount != 0 {
		t.Fatalf("failed attempts must not consume quota, count=%d", stored.AccessCount)
	}

	resolved, err := f.svc.ResolvePublicLink(context.Background(), link.Token, strPtr("s3cret"))
	if err != nil {
		t.Fatalf("resolve with correct password failed: %v", err)
	}
	if resolved.AccessCount != 1 {
		t.Fatalf("expected access count 1, got %d", resolved.AccessCount)
	}
}

func TestResolvePublicLinkExpiryBeforePassword(t *testing.T) {
	f := newShareFixture()
	owner := f.userRepo.Put(&models.User{Username: "alice", Email: "alice@example.com"})
	file := f.fileRepo.Put(&models.File{UserID: owner.ID, Name: "plan.md"})

	link, err := f.svc.CreatePublicLink(context.Background(), owner.ID, file.Ref(), CreateLinkOptions{Password: strPtr("s3cret")})
	if err != nil {
		t.Fatalf("CreatePublicLink failed: %v", err)
	}
	// 手动把链接置为已过期
	expired := time.Now().Add(-time.Minute)
	stored, _ := f.linkRepo.FindByID(link.ID)
	stored.ExpiresAt = &expired
	_ = f.linkRepo.Delete(link.ID)
	_ = f.linkRepo.Create(stored)

	// 即使没带密码,报的也是过期而不是要密码
	_, err = f.svc.ResolvePublicLink(context.Background(), link.Token, nil)
	if codeOf(t, err) != xerr.LinkExpiredCode {
		t.Fatalf("expiry must be checked before password, got %v", err)
	}
}

func TestResolvePublicLinkDeletedItem(t *testing.T) {
	f := newShareFixture()
	owner := f.userRepo.Put(&models.User{Username: "alice", Email: "alice@example.com"})
	file := f.fileRepo.Put(&models.File{UserID: owner.ID, Name: "plan.md"})

	link, err := f.svc.CreatePublicLink(context.Background(), owner.ID, file.Ref(), CreateLinkOptions{})
	if err != nil {
		t.Fatalf("CreatePublicLink failed: %v", err)
	}
	_ = f.fileRepo.SoftDelete(nil, file.ID)

	_, err = f.svc.ResolvePublicLink(context.Background(), link.Token, nil)
	if codeOf(t, err) != xerr.FileNotFoundCode {
		t.Fatalf("deleted item must surface as not found, got %v", err)
	}
	stored, _ := f.linkRepo.FindByID(link.ID)
	if stored.AccessCount != 0 {
		t.Fatalf("failed resolve must not consume quota, count=%d", stored.AccessCount)
	}
}

func TestPublicLinkQuotaUnderConcurrency(t *testing.T) {
	f := newShareFixture()
	owner := f.userRepo.Put(&models.User{Username: "alice", Email: "alice@example.com"})
	file := f.fileRepo.Put(&models.File{UserID: owner.ID, Name: "plan.md"})

	const quota = 5
	link, err := f.svc.CreatePublicLink(context.Background(), owner.ID, file.Ref(), CreateLinkOptions{MaxAccessCount: i64Ptr(quota)})
	if err != nil {
		t.Fatalf("CreatePublicLink failed: %v", err)
	}

	const attempts = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.ResolvePublicLink(context.Background(), link.Token, nil); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != quota {
		t.Fatalf("exactly %d accesses must succeed, got %d", quota, succeeded)
	}
	stored, _ := f.linkRepo.FindByID(link.ID)
	if stored.AccessCount != quota {
		t.Fatalf("access count overshot quota: %d", stored.AccessCount)
	}
}

func TestListItemSharesRequiresEditor(t *testing.T) {
	f := newShareFixture()
	owner := f.userRepo.Put(&models.User{Username: "alice", Email: "alice@example.com"})
	target := f.userRepo.Put(&models.User{Username: "bob", Email: "bob@example.com"})
	file := f.fileRepo.Put(&models.File{UserID: owner.ID, Name: "plan.md"})

	if _, err := f.svc.ShareWithUser(context.Background(), owner.ID, file.Ref(), target.Email, models.PermissionViewer); err != nil {
		t.Fatalf("ShareWithUser failed: %v", err)
	}
	if _, err := f.svc.CreatePublicLink(context.Background(), owner.ID, file.Ref(), CreateLinkOptions{}); err != nil {
		t.Fatalf("CreatePublicLink failed: %v", err)
	}

	listing, err := f.svc.ListItemShares(context.Background(), owner.ID, file.Ref())
	if err != nil {
		t.Fatalf("ListItemShares failed: %v", err)
	}
	if len(listing.Shares) != 1 || len(listing.Links) != 1 {
		t.Fatalf("unexpected listing: %d shares, %d links", len(listing.Shares), len(listing.Links))
	}

	// viewer 不能查看条目上的分享配置
	_, err = f.svc.ListItemShares(context.Background(), target.ID, file.Ref())
	if codeOf(t, err) != xerr.PermissionDeniedCode {
		t.Fatalf("viewer must not list item shares, got %v", err)
	}
}
