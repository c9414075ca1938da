package router

import (
	"net/http"

	"github.com/kxrica/go-skyvault/internal/config"
	"github.com/kxrica/go-skyvault/internal/handlers"
	"github.com/kxrica/go-skyvault/internal/middlewares"
	"github.com/kxrica/go-skyvault/internal/pkg/xerr"
	"github.com/gin-gonic/gin"
)

// InitRouter 注册全部路由
// 公开链接入口不走认证,但带每 IP 限流防止密码爆破
func InitRouter(
	authHandler *handlers.AuthHandler,
	folderHandler *handlers.FolderHandler,
	fileHandler *handlers.FileHandler,
	uploadHandler *handlers.UploadHandler,
	shareHandler *handlers.ShareHandler,
	publicLimiter *middlewares.RateLimiter,
	authLimiter *middlewares.RateLimiter,
	cfg *config.Config,
) *gin.Engine {
	router := gin.Default() // 使用默认的 Gin 引擎，包含 Logger 和 Recovery 中间件

	// Health Check 路由
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	// 公开分享链接入口(无需认证)
	publicShare := router.Group("/share")
	publicShare.Use(publicLimiter.Middleware())
	{
		publicShare.POST("/:token", shareHandler.ResolvePublicLink)
		publicShare.GET("/:token", shareHandler.ResolvePublicLink)
		publicShare.GET("/:token/download", shareHandler.DownloadPublicLink)
	}

	v1 := router.Group("/api/v1")
	{
		// 认证相关路由 (无需认证)
		authGroup := v1.Group("/auth")
		authGroup.Use(authLimiter.Middleware())
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
		}

		// 需要认证的路由组
		authenticated := v1.Group("/")
		authenticated.Use(middlewares.AuthMiddleware(cfg))

		authenticated.POST("/auth/refresh", authHandler.RefreshToken)

		// 用户相关路由
		userGroup := authenticated.Group("/users")
		{
			userGroup.GET("/me", authHandler.GetProfile)
		}

		// 文件夹相关路由
		folderGroup := authenticated.Group("/folders")
		{
			folderGroup.POST("/", folderHandler.CreateFolder)
			folderGroup.GET("/", folderHandler.ListItems)
			folderGroup.PUT("/:folder_id/rename", folderHandler.RenameFolder)
			folderGroup.PUT("/:folder_id/move", folderHandler.MoveFolder)
			folderGroup.DELETE("/:folder_id", folderHandler.DeleteFolder)
			folderGroup.PUT("/:folder_id/restore", folderHandler.RestoreFolder)
			folderGroup.GET("/:folder_id/download", fileHandler.DownloadFolderZip)
		}

		// 文件相关路由
		fileGroup := authenticated.Group("/files")
		{
			fileGroup.GET("/search", fileHandler.SearchFiles)
			fileGroup.GET("/recyclebin", folderHandler.ListRecycleBin)
			fileGroup.GET("/:file_id", fileHandler.GetFile)
			fileGroup.PUT("/:file_id/rename", fileHandler.RenameFile)
			fileGroup.PUT("/:file_id/move", fileHandler.MoveFile)
			fileGroup.DELETE("/:file_id", fileHandler.DeleteFile)
			fileGroup.PUT("/:file_id/restore", fileHandler.RestoreFile)
			fileGroup.DELETE("/:file_id/permanent", fileHandler.PermanentDeleteFile)
			fileGroup.GET("/:file_id/download", fileHandler.DownloadFile)
		}

		// 上传相关路由
		uploadGroup := authenticated.Group("/uploads")
		{
			uploadGroup.POST("/init", uploadHandler.InitUpload)
			uploadGroup.POST("/complete", uploadHandler.CompleteUpload)
			uploadGroup.POST("/direct", uploadHandler.DirectUpload)
		}

		// 分享相关路由
		shareGroup := authenticated.Group("/shares")
		{
			shareGroup.POST("/", shareHandler.ShareWithUser)
			shareGroup.GET("/", shareHandler.ListShares)
			shareGroup.DELETE("/:share_id", shareHandler.RevokeShare)
			shareGroup.POST("/links", shareHandler.CreatePublicLink)
			shareGroup.DELETE("/links/:link_id", shareHandler.RevokePublicLink)
			shareGroup.GET("/items/:item_kind/:item_id", shareHandler.ListItemShares)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		xerr.Error(c, http.StatusNotFound, xerr.NotFoundCode, "Route not found")
	})

	return router
}
