package xerr

// 定义了统一的业务错误码
const (
	SuccessCode = 20000 // 通用成功码

	// --- 客户端请求错误系列 (400xx) ---
	InvalidParamsCode       = 40000 // 无效的请求参数
	ValidationFailedCode    = 40001 // 参数验证失败
	FileTooLargeCode        = 40002 // 文件超出大小限制
	InvalidStatusCode       = 40003 // 文件状态不允许此操作(如重复完成上传)
	CannotMoveIntoSelfCode  = 40004 // 不能把文件夹移动到自身或其子孙之下
	InvalidShareTargetCode  = 40005 // 非法的分享对象(如分享给自己)
	InvalidItemKindCode     = 40006 // 非法的条目类型

	// --- 认证与授权错误系列 (401xx) ---
	UnauthorizedCode           = 40100 // 通用未授权
	TokenInvalidCode           = 40101 // Token 无效或过期
	InvalidCredentialsCode     = 40102 // 用户名或密码错误
	LinkPasswordRequiredCode   = 40103 // 分享链接需要密码
	LinkPasswordIncorrectCode  = 40104 // 分享链接密码不正确

	// --- 权限错误系列 (403xx) ---
	ForbiddenCode        = 40300 // 通用无权限
	PermissionDeniedCode = 40301 // 权限不足

	// --- 资源未找到错误系列 (404xx) ---
	NotFoundCode       = 40400 // 通用资源未找到
	UserNotFoundCode   = 40401 // 用户不存在
	FileNotFoundCode   = 40402 // 文件不存在
	FolderNotFoundCode = 40403 // 文件夹不存在
	ShareNotFoundCode  = 40404 // 分享记录不存在
	LinkNotFoundCode   = 40405 // 分享链接不存在

	// --- 业务逻辑冲突系列 (409xx) ---
	UserAlreadyExistsCode  = 40900 // 用户名已存在
	EmailAlreadyExistsCode = 40901 // 邮箱已存在
	DuplicateNameCode      = 40902 // 同目录下存在同名条目

	// --- 请求频率限制 (429xx) ---
	RateLimitedCode = 42900 // 请求过于频繁

	// --- 资源已失效系列 (410xx) ---
	LinkExpiredCode      = 41000 // 分享链接已过期
	LinkLimitReachedCode = 41001 // 分享链接访问次数已达上限

	// --- 服务器内部错误系列 (500xx) ---
	InternalServerErrorCode  = 50000 // 服务器内部通用错误
	DatabaseErrorCode        = 50001 // 数据库操作失败
	StorageErrorCode         = 50002 // 存储服务操作失败
	StorageNotConfiguredCode = 50003 // 未配置可用的存储后端
	MQErrorCode              = 50004 // 消息队列操作失败
	DataIntegrityErrorCode   = 50005 // 数据完整性异常(如目录树出现环)
)
