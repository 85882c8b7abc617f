package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xolotl-project/xolotl/pkg/registry"
)

// createTestEntry 创建测试服务实例
func createTestEntry(name, env string) *registry.ServiceEntry {
	address := registry.ServiceAddress(fmt.Sprintf("http://%s-%s.example.com:8080", name, env))
	return registry.NewServiceEntry(name, env, address, map[string]string{"test": "true"})
}

func TestRegistry_Register(t *testing.T) {
	m := NewRegistry()
	ctx := context.Background()

	entry := createTestEntry("service1", "dev")
	err := m.Register(ctx, entry)
	require.NoError(t, err)

	// 验证实例已可见
	entries, err := m.Resolve(ctx, "service1", "dev")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entry.ID, entries[0].ID)
	assert.Equal(t, entry.Address, entries[0].Address)
}

func TestRegistry_RegisterDuplicateID(t *testing.T) {
	m := NewRegistry()
	ctx := context.Background()

	entry := createTestEntry("service1", "dev")
	require.NoError(t, m.Register(ctx, entry))

	// 相同ID再次注册返回已存在错误
	err := m.Register(ctx, entry)
	require.Error(t, err)
	assert.True(t, registry.IsAlreadyExists(err))
}

func TestRegistry_RegisterInvalidEntry(t *testing.T) {
	m := NewRegistry()
	ctx := context.Background()

	err := m.Register(ctx, nil)
	require.Error(t, err)
	assert.Equal(t, registry.ErrInvalidArgument, registry.ErrorCode(err))

	err = m.Register(ctx, &registry.ServiceEntry{ServiceName: "service1"})
	require.Error(t, err)
	assert.Equal(t, registry.ErrInvalidArgument, registry.ErrorCode(err))
}

func TestRegistry_MultipleInstances(t *testing.T) {
	m := NewRegistry()
	ctx := context.Background()

	// 同一服务名+环境允许多个实例共存
	e1 := registry.NewServiceEntry("api", "prod", "http://10.0.0.1:9000", nil)
	e2 := registry.NewServiceEntry("api", "prod", "http://10.0.0.2:9000", nil)
	require.NoError(t, m.Register(ctx, e1))
	require.NoError(t, m.Register(ctx, e2))

	entries, err := m.Resolve(ctx, "api", "prod")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	addresses := []string{entries[0].Address.String(), entries[1].Address.String()}
	assert.Contains(t, addresses, "http://10.0.0.1:9000")
	assert.Contains(t, addresses, "http://10.0.0.2:9000")
}

func TestRegistry_ResolveEmpty(t *testing.T) {
	m := NewRegistry()
	ctx := context.Background()

	// 无匹配时返回空列表而不是错误
	entries, err := m.Resolve(ctx, "nope", "dev")
	require.NoError(t, err)
	assert.Empty(t, entries)

	// 环境精确匹配，区分大小写
	require.NoError(t, m.Register(ctx, createTestEntry("service1", "dev")))
	entries, err = m.Resolve(ctx, "service1", "Dev")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRegistry_ResolveReturnsCopies(t *testing.T) {
	m := NewRegistry()
	ctx := context.Background()

	require.NoError(t, m.Register(ctx, createTestEntry("service1", "dev")))

	// 修改查询结果不影响表内记录
	entries, err := m.Resolve(ctx, "service1", "dev")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	entries[0].Tags["test"] = "mutated"

	again, err := m.Resolve(ctx, "service1", "dev")
	require.NoError(t, err)
	assert.Equal(t, "true", again[0].Tags["test"])
}

func TestRegistry_DeregisterSpecificEnvironment(t *testing.T) {
	m := NewRegistry()
	ctx := context.Background()

	require.NoError(t, m.Register(ctx, createTestEntry("svc", "dev")))
	require.NoError(t, m.Register(ctx, createTestEntry("svc", "prod")))

	// 只移除指定环境
	err := m.Deregister(ctx, "svc", "dev")
	require.NoError(t, err)

	entries, err := m.Resolve(ctx, "svc", "dev")
	require.NoError(t, err)
	assert.Empty(t, entries)

	entries, err = m.Resolve(ctx, "svc", "prod")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRegistry_DeregisterAllEnvironments(t *testing.T) {
	m := NewRegistry()
	ctx := context.Background()

	require.NoError(t, m.Register(ctx, createTestEntry("svc", "dev")))
	require.NoError(t, m.Register(ctx, createTestEntry("svc", "prod")))
	require.NoError(t, m.Register(ctx, createTestEntry("other", "dev")))

	// 空环境表示移除所有环境下的实例
	err := m.Deregister(ctx, "svc", "")
	require.NoError(t, err)

	entries, err := m.Resolve(ctx, "svc", "dev")
	require.NoError(t, err)
	assert.Empty(t, entries)

	entries, err = m.Resolve(ctx, "svc", "prod")
	require.NoError(t, err)
	assert.Empty(t, entries)

	// 其他服务不受影响
	entries, err = m.Resolve(ctx, "other", "dev")
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	// 再次注销返回不存在错误
	err = m.Deregister(ctx, "svc", "")
	require.Error(t, err)
	assert.True(t, registry.IsNotFound(err))
}

func TestRegistry_DeregisterNotFound(t *testing.T) {
	m := NewRegistry()
	ctx := context.Background()

	err := m.Deregister(ctx, "nonexistent", "dev")
	require.Error(t, err)
	assert.True(t, registry.IsNotFound(err))
}

func TestRegistry_Heartbeat(t *testing.T) {
	m := NewRegistry()
	ctx := context.Background()

	entry := createTestEntry("service1", "dev")
	require.NoError(t, m.Register(ctx, entry))

	before, err := m.Resolve(ctx, "service1", "dev")
	require.NoError(t, err)
	require.Len(t, before, 1)

	time.Sleep(10 * time.Millisecond)

	err = m.Heartbeat(ctx, "service1", "dev")
	require.NoError(t, err)

	// 心跳时间单调递增，且不早于注册时间
	after, err := m.Resolve(ctx, "service1", "dev")
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.True(t, after[0].LastHeartbeat.After(before[0].LastHeartbeat))
	assert.False(t, after[0].LastHeartbeat.Before(after[0].RegisteredAt))

	// 心跳不改变其他字段
	assert.Equal(t, before[0].ID, after[0].ID)
	assert.Equal(t, before[0].RegisteredAt, after[0].RegisteredAt)
	assert.Equal(t, before[0].Address, after[0].Address)
}

func TestRegistry_HeartbeatUpdatesAllMatches(t *testing.T) {
	m := NewRegistry()
	ctx := context.Background()

	e1 := registry.NewServiceEntry("api", "prod", "http://10.0.0.1:9000", nil)
	e2 := registry.NewServiceEntry("api", "prod", "http://10.0.0.2:9000", nil)
	require.NoError(t, m.Register(ctx, e1))
	require.NoError(t, m.Register(ctx, e2))

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, m.Heartbeat(ctx, "api", "prod"))

	entries, err := m.Resolve(ctx, "api", "prod")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, entry := range entries {
		assert.True(t, entry.LastHeartbeat.After(entry.RegisteredAt))
	}
}

func TestRegistry_HeartbeatNotFound(t *testing.T) {
	m := NewRegistry()
	ctx := context.Background()

	err := m.Heartbeat(ctx, "nonexistent", "dev")
	require.Error(t, err)
	assert.True(t, registry.IsNotFound(err))
}

func TestRegistry_List(t *testing.T) {
	m := NewRegistry()
	ctx := context.Background()

	// 空注册表
	entries, err := m.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)

	require.NoError(t, m.Register(ctx, createTestEntry("service1", "dev")))
	require.NoError(t, m.Register(ctx, createTestEntry("service1", "prod")))
	require.NoError(t, m.Register(ctx, createTestEntry("service2", "dev")))

	entries, err = m.List(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.ServiceName)
	}
	assert.Contains(t, names, "service1")
	assert.Contains(t, names, "service2")
}

func TestRegistry_ConcurrentRegister(t *testing.T) {
	m := NewRegistry()
	ctx := context.Background()

	// N个并发注册全部成功且无丢失
	const n = 100
	var wg sync.WaitGroup
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			entry := registry.NewServiceEntry("api", "prod",
				registry.ServiceAddress(fmt.Sprintf("http://10.0.0.%d:9000", i)), nil)
			errs[i] = m.Register(ctx, entry)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "第%d个并发注册不应失败", i)
	}

	entries, err := m.List(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, n)
}

func TestRegistry_ConcurrentMixedOperations(t *testing.T) {
	m := NewRegistry()
	ctx := context.Background()

	require.NoError(t, m.Register(ctx, createTestEntry("stable", "prod")))

	// 读写并发执行不应产生竞争或崩溃
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			entry := createTestEntry(fmt.Sprintf("svc-%d", i), "dev")
			_ = m.Register(ctx, entry)
			_, _ = m.Resolve(ctx, entry.ServiceName, "dev")
			_ = m.Heartbeat(ctx, entry.ServiceName, "dev")
			_, _ = m.List(ctx)
			_ = m.Deregister(ctx, entry.ServiceName, "")
		}(i)
	}
	wg.Wait()

	// 稳定实例始终存在，临时实例全部被移除
	entries, err := m.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "stable", entries[0].ServiceName)
}

func TestRegistry_EndToEndScenario(t *testing.T) {
	m := NewRegistry()
	ctx := context.Background()

	// 注册 → 查询 → 注销 → 查询为空 → 再次注销失败
	entry := registry.NewServiceEntry("api", "prod", "http://10.0.0.1:9000", map[string]string{"v": "1"})
	require.NoError(t, m.Register(ctx, entry))

	entries, err := m.Resolve(ctx, "api", "prod")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "http://10.0.0.1:9000", entries[0].Address.String())
	assert.Equal(t, "1", entries[0].Tags["v"])

	require.NoError(t, m.Deregister(ctx, "api", "prod"))

	entries, err = m.Resolve(ctx, "api", "prod")
	require.NoError(t, err)
	assert.Empty(t, entries)

	err = m.Deregister(ctx, "api", "prod")
	require.Error(t, err)
	assert.True(t, registry.IsNotFound(err))
}
