package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Config SDK客户端配置
type Config struct {
	// 服务目录服务器地址
	ServerAddr string `json:"server_addr"`
	// 服务名称
	ServiceName string `json:"service_name"`
	// 部署环境
	Environment string `json:"environment"`
	// 服务连接地址（如 "http://10.0.0.1:9000"）
	Address string `json:"address"`
	// 标签
	Tags map[string]string `json:"tags"`
	// 心跳间隔
	HeartbeatInterval time.Duration `json:"heartbeat_interval"`
	// 操作超时时间
	Timeout time.Duration `json:"timeout"`
}

// Client SDK客户端
type Client struct {
	config       *Config
	httpClient   *http.Client
	serviceID    string
	isRegistered bool
	stopChan     chan struct{}
}

// Response API响应结构
type Response struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Entry 服务目录返回的服务实例
type Entry struct {
	ID            string            `json:"id"`
	ServiceName   string            `json:"service_name"`
	Environment   string            `json:"environment"`
	Address       string            `json:"address"`
	Tags          map[string]string `json:"tags"`
	RegisteredAt  time.Time         `json:"registered_at"`
	LastHeartbeat time.Time         `json:"last_heartbeat"`
	Health        string            `json:"health"`
}

// NewClient 创建SDK客户端
func NewClient(config *Config) (*Client, error) {
	// 验证必填配置
	if config.ServerAddr == "" {
		return nil, fmt.Errorf("服务器地址不能为空")
	}
	if config.ServiceName == "" {
		return nil, fmt.Errorf("服务名称不能为空")
	}
	if config.Address == "" {
		return nil, fmt.Errorf("服务地址不能为空")
	}

	// 设置默认值
	if config.HeartbeatInterval == 0 {
		config.HeartbeatInterval = 10 * time.Second
	}
	if config.Timeout == 0 {
		config.Timeout = 5 * time.Second
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}, nil
}

// ServiceID 返回注册后分配的服务实例ID
func (c *Client) ServiceID() string {
	return c.serviceID
}

// baseURL 返回服务器基础URL
func (c *Client) baseURL() string {
	addr := c.config.ServerAddr
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		addr = "http://" + addr
	}
	return strings.TrimSuffix(addr, "/")
}

// doRequest 发送HTTP请求并解析响应封套
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) (*Response, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("序列化请求失败: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL()+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("发送请求失败: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}

	var apiResp Response
	if err := json.Unmarshal(data, &apiResp); err != nil {
		return nil, fmt.Errorf("解析响应失败: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("请求失败，状态码: %d, 消息: %s", resp.StatusCode, apiResp.Message)
	}

	return &apiResp, nil
}

// doGet 发送GET请求并解析JSON数组响应
func (c *Client) doGet(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL()+path, nil)
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("发送请求失败: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取响应失败: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("请求失败，状态码: %d", resp.StatusCode)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("解析响应失败: %w", err)
	}

	return nil
}
