package registry

import (
	"strconv"
	"strings"
)

// securePrefixes 安全协议前缀列表
var securePrefixes = []string{
	"https://",
	"wss://",
	"ftps://",
	"sftp://",
	"ssh://",
}

// ServiceAddress 表示服务实例的连接地址
//
// 地址是原始连接字符串（如 "http://10.0.0.1:9000/api" 或 "10.0.0.1:9000"），
// 注册时不做任何规范化或校验，所有查询方法都是只读派生。
type ServiceAddress string

// String 返回原始地址字符串
func (a ServiceAddress) String() string {
	return string(a)
}

// hostPort 去掉协议前缀和路径，返回 host[:port] 部分
func (a ServiceAddress) hostPort() string {
	s := string(a)

	// 去掉协议前缀
	if idx := strings.Index(s, "://"); idx >= 0 {
		s = s[idx+len("://"):]
	}

	// 去掉路径部分
	if idx := strings.Index(s, "/"); idx >= 0 {
		s = s[:idx]
	}

	return s
}

// Host 返回地址中的主机部分（不含端口）
func (a ServiceAddress) Host() string {
	hp := a.hostPort()
	if idx := strings.LastIndex(hp, ":"); idx >= 0 {
		return hp[:idx]
	}
	return hp
}

// ExtractPort 从地址中解析端口号
//
// 解析路径之前、最后一个":"之后的数字端口；不存在或无法解析时返回 false。
func (a ServiceAddress) ExtractPort() (int, bool) {
	hp := a.hostPort()

	idx := strings.LastIndex(hp, ":")
	if idx < 0 {
		return 0, false
	}

	port, err := strconv.Atoi(hp[idx+1:])
	if err != nil || port < 0 || port > 65535 {
		return 0, false
	}

	return port, true
}

// IsSecure 判断地址是否使用安全协议（https、wss等）
func (a ServiceAddress) IsSecure() bool {
	for _, prefix := range securePrefixes {
		if strings.HasPrefix(string(a), prefix) {
			return true
		}
	}
	return false
}
