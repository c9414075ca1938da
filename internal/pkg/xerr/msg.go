package xerr

import "errors"

var (
	// 通用错误
	ErrInternalServer = errors.New("服务器内部错误")

	// 客户端请求错误
	ErrInvalidParams       = errors.New("无效的请求参数")
	ErrFileTooLarge        = errors.New("上传文件过大，超出限制")
	ErrInvalidUploadStatus = errors.New("文件状态异常，无法完成此操作")
	ErrCannotMoveIntoSelf  = errors.New("不能把文件夹移动到自身或其子目录下")
	ErrInvalidShareTarget  = errors.New("不能分享给自己")
	ErrInvalidItemKind     = errors.New("非法的条目类型")

	// 认证与授权错误
	ErrUnauthorized          = errors.New("用户未授权")
	ErrTokenInvalid          = errors.New("认证 Token 无效或已过期")
	ErrInvalidCredentials    = errors.New("用户名或密码不正确")
	ErrLinkPasswordRequired  = errors.New("分享链接需要密码")
	ErrLinkPasswordIncorrect = errors.New("分享链接密码不正确")

	// 权限错误
	ErrPermissionDenied = errors.New("您没有操作此资源的权限")

	// 资源未找到错误
	ErrUserNotFound   = errors.New("用户不存在")
	ErrFileNotFound   = errors.New("文件不存在")
	ErrFolderNotFound = errors.New("文件夹不存在")
	ErrShareNotFound  = errors.New("分享记录不存在")
	ErrLinkNotFound   = errors.New("分享链接不存在")

	// 业务逻辑冲突
	ErrUserAlreadyExists  = errors.New("该用户名已被注册")
	ErrEmailAlreadyExists = errors.New("邮箱已被注册")
	ErrDuplicateName      = errors.New("同目录下已存在同名文件或文件夹")

	// 资源已失效
	ErrLinkExpired      = errors.New("分享链接已过期")
	ErrLinkLimitReached = errors.New("分享链接访问次数已达上限")

	// 数据库与外部服务错误
	ErrDatabaseError        = errors.New("数据库操作失败")
	ErrStorageError         = errors.New("存储服务操作失败")
	ErrStorageNotConfigured = errors.New("未配置可用的存储后端")
	ErrMQError              = errors.New("消息队列操作失败")
	ErrDataIntegrity        = errors.New("目录树数据异常")
)
