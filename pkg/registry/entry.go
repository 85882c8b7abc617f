package registry

import (
	"time"

	"github.com/google/uuid"
)

// HealthStatus 表示服务健康状态
type HealthStatus string

const (
	// HealthStatusHealthy 健康状态
	HealthStatusHealthy HealthStatus = "healthy"
	// HealthStatusStale 心跳已过期但尚未判定为不健康
	HealthStatusStale HealthStatus = "stale"
	// HealthStatusUnhealthy 不健康状态
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	// HealthStatusUnknown 未知状态（未启用健康判定时返回）
	HealthStatusUnknown HealthStatus = "unknown"
)

// ServiceEntry 表示一个已注册的服务实例
type ServiceEntry struct {
	ID            string            `json:"id"`             // 服务实例唯一ID，创建时生成，不可变
	ServiceName   string            `json:"service_name"`   // 服务逻辑名称
	Environment   string            `json:"environment"`    // 部署环境（如 "dev"、"prod"）
	Address       ServiceAddress    `json:"address"`        // 服务连接地址
	Tags          map[string]string `json:"tags"`           // 服务标签
	RegisteredAt  time.Time         `json:"registered_at"`  // 注册时间，创建后不可变
	LastHeartbeat time.Time         `json:"last_heartbeat"` // 最后心跳时间，仅由心跳操作更新
}

// NewServiceEntry 创建一个新的服务实例记录
//
// ID使用uuid生成，注册时间和最后心跳时间初始化为当前时间。
func NewServiceEntry(serviceName, environment string, address ServiceAddress, tags map[string]string) *ServiceEntry {
	now := time.Now()
	return &ServiceEntry{
		ID:            uuid.New().String(),
		ServiceName:   serviceName,
		Environment:   environment,
		Address:       address,
		Tags:          tags,
		RegisteredAt:  now,
		LastHeartbeat: now,
	}
}

// Clone 返回实例记录的深拷贝（标签映射独立复制）
func (e *ServiceEntry) Clone() *ServiceEntry {
	clone := *e
	if e.Tags != nil {
		clone.Tags = make(map[string]string, len(e.Tags))
		for k, v := range e.Tags {
			clone.Tags[k] = v
		}
	}
	return &clone
}

// TimeSinceLastHeartbeat 返回距最后一次心跳经过的时间
func (e *ServiceEntry) TimeSinceLastHeartbeat(now time.Time) time.Duration {
	return now.Sub(e.LastHeartbeat)
}

// HealthPolicy 根据心跳时效判定服务健康状态
//
// 两个时间窗口均为正值时启用判定，否则一律返回unknown。
type HealthPolicy struct {
	HealthyWindow time.Duration // 心跳间隔在此窗口内视为健康
	StaleWindow   time.Duration // 超过健康窗口但在此窗口内视为过期
}

// Enabled 判断健康判定是否启用
func (p HealthPolicy) Enabled() bool {
	return p.HealthyWindow > 0 && p.StaleWindow > 0
}

// Evaluate 计算实例当前的健康状态
//
// 健康状态只在读取时派生，不持久化，也不触发任何清理动作。
func (p HealthPolicy) Evaluate(e *ServiceEntry, now time.Time) HealthStatus {
	if !p.Enabled() {
		return HealthStatusUnknown
	}

	since := e.TimeSinceLastHeartbeat(now)
	switch {
	case since <= p.HealthyWindow:
		return HealthStatusHealthy
	case since <= p.StaleWindow:
		return HealthStatusStale
	default:
		return HealthStatusUnhealthy
	}
}
