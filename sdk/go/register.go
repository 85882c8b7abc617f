package sdk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// RegisterRequest 服务注册请求
type RegisterRequest struct {
	ServiceName string            `json:"service_name"`
	Environment string            `json:"environment"`
	Address     string            `json:"address"`
	Tags        map[string]string `json:"tags,omitempty"`
}

// HeartbeatRequest 服务心跳请求
type HeartbeatRequest struct {
	ServiceName string `json:"service_name"`
	Environment string `json:"environment"`
}

// registerData 注册响应数据
type registerData struct {
	ID string `json:"id"`
}

// Register 注册服务
func (c *Client) Register(ctx context.Context) error {
	// 判断是否已注册
	if c.isRegistered {
		return fmt.Errorf("服务已注册，服务ID: %s", c.serviceID)
	}

	req := RegisterRequest{
		ServiceName: c.config.ServiceName,
		Environment: c.config.Environment,
		Address:     c.config.Address,
		Tags:        c.config.Tags,
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/services", req)
	if err != nil {
		return fmt.Errorf("服务注册失败: %w", err)
	}

	var data registerData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return fmt.Errorf("解析注册响应失败: %w", err)
	}

	c.serviceID = data.ID
	c.isRegistered = true

	return nil
}

// Deregister 注销服务
func (c *Client) Deregister(ctx context.Context) error {
	if !c.isRegistered {
		return fmt.Errorf("服务尚未注册")
	}

	path := fmt.Sprintf("/services/%s/%s", c.config.ServiceName, c.config.Environment)
	if _, err := c.doRequest(ctx, http.MethodDelete, path, nil); err != nil {
		return fmt.Errorf("服务注销失败: %w", err)
	}

	c.serviceID = ""
	c.isRegistered = false

	return nil
}
