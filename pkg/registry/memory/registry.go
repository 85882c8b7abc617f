package memory

import (
	"context"
	"sync"
	"time"

	"github.com/xolotl-project/xolotl/pkg/registry"
)

// Registry 是基于内存的服务目录实现
//
// 内部表以实例ID为键，而不是以 服务名+环境 为键，因此同一逻辑服务
// 可以同时存在多个实例。按名称/环境的查询使用全表线性扫描，服务
// 数量预期在数百级，不建二级索引。
type Registry struct {
	entries map[string]*registry.ServiceEntry
	mutex   sync.RWMutex
}

// NewRegistry 创建新的内存注册表
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*registry.ServiceEntry),
	}
}

// Register 注册服务实例
func (m *Registry) Register(ctx context.Context, entry *registry.ServiceEntry) error {
	if entry == nil || entry.ID == "" {
		return registry.NewInvalidArgumentError("服务实例及其ID不能为空")
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, exists := m.entries[entry.ID]; exists {
		return registry.NewAlreadyExistsError("服务实例已存在: " + entry.ID)
	}

	// 存入副本，调用方后续修改不影响表内记录
	m.entries[entry.ID] = entry.Clone()
	return nil
}

// Resolve 根据服务名和环境查询服务实例列表
func (m *Registry) Resolve(ctx context.Context, serviceName, environment string) ([]*registry.ServiceEntry, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	matches := make([]*registry.ServiceEntry, 0)
	for _, entry := range m.entries {
		if entry.ServiceName == serviceName && entry.Environment == environment {
			matches = append(matches, entry.Clone())
		}
	}

	return matches, nil
}

// Deregister 注销服务实例
//
// environment为空字符串时移除该服务名在所有环境下的实例。先在排他
// 锁内收集全部匹配ID，再整体删除，保证批量注销的原子性。
func (m *Registry) Deregister(ctx context.Context, serviceName, environment string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	ids := make([]string, 0)
	for id, entry := range m.entries {
		if entry.ServiceName != serviceName {
			continue
		}
		if environment != "" && entry.Environment != environment {
			continue
		}
		ids = append(ids, id)
	}

	if len(ids) == 0 {
		return registry.NewNotFoundError("服务不存在: " + serviceName)
	}

	for _, id := range ids {
		delete(m.entries, id)
	}

	return nil
}

// Heartbeat 更新匹配实例的最后心跳时间
func (m *Registry) Heartbeat(ctx context.Context, serviceName, environment string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	now := time.Now()
	updated := 0
	for _, entry := range m.entries {
		if entry.ServiceName == serviceName && entry.Environment == environment {
			entry.LastHeartbeat = now
			updated++
		}
	}

	if updated == 0 {
		return registry.NewNotFoundError("服务不存在: " + serviceName)
	}

	return nil
}

// List 获取所有服务实例列表
func (m *Registry) List(ctx context.Context) ([]*registry.ServiceEntry, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	entries := make([]*registry.ServiceEntry, 0, len(m.entries))
	for _, entry := range m.entries {
		entries = append(entries, entry.Clone())
	}

	return entries, nil
}
