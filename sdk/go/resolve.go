package sdk

import (
	"context"
	"fmt"
)

// Resolve 根据服务名和环境查询服务实例列表
func (c *Client) Resolve(ctx context.Context, serviceName, environment string) ([]*Entry, error) {
	var entries []*Entry
	path := fmt.Sprintf("/services/%s/%s", serviceName, environment)
	if err := c.doGet(ctx, path, &entries); err != nil {
		return nil, fmt.Errorf("查询服务失败: %w", err)
	}

	return entries, nil
}

// ListServices 获取所有服务实例列表
func (c *Client) ListServices(ctx context.Context) ([]*Entry, error) {
	var entries []*Entry
	if err := c.doGet(ctx, "/services", &entries); err != nil {
		return nil, fmt.Errorf("获取服务列表失败: %w", err)
	}

	return entries, nil
}
