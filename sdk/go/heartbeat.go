package sdk

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"
)

// SendHeartbeat 发送心跳
func (c *Client) SendHeartbeat(ctx context.Context) error {
	if !c.isRegistered {
		return fmt.Errorf("服务尚未注册")
	}

	req := HeartbeatRequest{
		ServiceName: c.config.ServiceName,
		Environment: c.config.Environment,
	}

	if _, err := c.doRequest(ctx, http.MethodPut, "/services/heartbeat", req); err != nil {
		return fmt.Errorf("发送心跳失败: %w", err)
	}

	return nil
}

// StartHeartbeat 开始心跳任务
func (c *Client) StartHeartbeat() {
	// 停止已有心跳任务
	c.StopHeartbeat()

	c.stopChan = make(chan struct{})
	stop := c.stopChan

	go func() {
		ticker := time.NewTicker(c.config.HeartbeatInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), c.config.Timeout)
				if err := c.SendHeartbeat(ctx); err != nil {
					log.Printf("心跳发送失败: %v, 将在下一个周期重试", err)
				}
				cancel()
			case <-stop:
				return
			}
		}
	}()
}

// StopHeartbeat 停止心跳任务
func (c *Client) StopHeartbeat() {
	if c.stopChan != nil {
		close(c.stopChan)
		c.stopChan = nil
	}
}

// Close 关闭客户端，停止心跳并注销服务
func (c *Client) Close(ctx context.Context) error {
	c.StopHeartbeat()

	if c.isRegistered {
		return c.Deregister(ctx)
	}

	return nil
}
