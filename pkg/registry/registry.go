package registry

import "context"

// ServiceRegistry 定义服务目录存储接口
//
// 五个操作彼此原子：任何调用者都不会观察到半完成的变更。接口允许
// 替换不同的存储引擎（如持久化引擎），调用方无需改动。
type ServiceRegistry interface {
	// Register 注册服务实例
	//
	// 以实例ID作为唯一标识插入；ID已存在时返回ErrAlreadyExists。
	Register(ctx context.Context, entry *ServiceEntry) error

	// Resolve 根据服务名和环境查询服务实例列表
	//
	// 精确匹配（区分大小写），无匹配时返回空列表而不是错误。
	Resolve(ctx context.Context, serviceName, environment string) ([]*ServiceEntry, error)

	// Deregister 注销服务实例
	//
	// environment非空时只移除该环境下的匹配实例；为空字符串时移除
	// 该服务名在所有环境下的实例。零匹配返回ErrNotFound，且不产生
	// 任何部分移除。
	Deregister(ctx context.Context, serviceName, environment string) error

	// Heartbeat 更新匹配实例的最后心跳时间
	//
	// 对每个匹配实例更新LastHeartbeat；零匹配返回ErrNotFound。
	Heartbeat(ctx context.Context, serviceName, environment string) error

	// List 获取所有服务实例列表（顺序不保证）
	List(ctx context.Context) ([]*ServiceEntry, error)
}

// RegistryError 定义注册表操作可能返回的错误类型
type RegistryError struct {
	Code    int
	Message string
}

// Error 实现error接口
func (e *RegistryError) Error() string {
	return e.Message
}

// 定义错误代码
const (
	// ErrNotFound 资源不存在
	ErrNotFound = iota + 1
	// ErrAlreadyExists 资源已存在
	ErrAlreadyExists
	// ErrInvalidArgument 参数无效
	ErrInvalidArgument
	// ErrInternal 内部错误
	ErrInternal
)

// NewNotFoundError 创建资源不存在错误
func NewNotFoundError(message string) *RegistryError {
	return &RegistryError{
		Code:    ErrNotFound,
		Message: message,
	}
}

// NewAlreadyExistsError 创建资源已存在错误
func NewAlreadyExistsError(message string) *RegistryError {
	return &RegistryError{
		Code:    ErrAlreadyExists,
		Message: message,
	}
}

// NewInvalidArgumentError 创建参数无效错误
func NewInvalidArgumentError(message string) *RegistryError {
	return &RegistryError{
		Code:    ErrInvalidArgument,
		Message: message,
	}
}

// NewInternalError 创建内部错误
func NewInternalError(message string) *RegistryError {
	return &RegistryError{
		Code:    ErrInternal,
		Message: message,
	}
}

// ErrorCode 返回错误对应的错误代码，非RegistryError时返回ErrInternal
func ErrorCode(err error) int {
	if re, ok := err.(*RegistryError); ok {
		return re.Code
	}
	return ErrInternal
}

// IsNotFound 判断错误是否为资源不存在
func IsNotFound(err error) bool {
	re, ok := err.(*RegistryError)
	return ok && re.Code == ErrNotFound
}

// IsAlreadyExists 判断错误是否为资源已存在
func IsAlreadyExists(err error) bool {
	re, ok := err.(*RegistryError)
	return ok && re.Code == ErrAlreadyExists
}
