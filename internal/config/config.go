package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用程序配置结构
type Config struct {
	// HTTP API服务配置
	Server struct {
		ListenAddress string `mapstructure:"listen_address"`
		Port          int    `mapstructure:"port"`
	} `mapstructure:"server"`

	// DNS服务配置
	DNS struct {
		Enabled       bool   `mapstructure:"enabled"`
		ListenAddress string `mapstructure:"listen_address"`
		Port          int    `mapstructure:"port"`
		Protocol      string `mapstructure:"protocol"` // "udp", "tcp", 或 "both"
		Domain        string `mapstructure:"domain"`   // 本地域名后缀
		TTL           int    `mapstructure:"ttl"`      // DNS记录TTL(秒)
	} `mapstructure:"dns"`

	// 健康判定配置
	Health struct {
		HealthyWindow time.Duration `mapstructure:"healthy_window"`
		StaleWindow   time.Duration `mapstructure:"stale_window"`
	} `mapstructure:"health"`

	// 日志配置
	Log struct {
		Level       string `mapstructure:"level"`
		Development bool   `mapstructure:"development"`
	} `mapstructure:"log"`
}

// LoadConfig 从文件和环境变量加载配置
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// 设置默认值
	setDefaults(v)

	// 如果指定了配置文件路径
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// 设置配置文件名和路径
		v.SetConfigName("config")        // 配置文件名（无扩展名）
		v.AddConfigPath(".")             // 当前目录
		v.AddConfigPath("./configs")     // configs目录
		v.AddConfigPath("$HOME/.xolotl") // 用户目录
		v.AddConfigPath("/etc/xolotl")   // 系统目录
	}

	// 配置文件格式
	v.SetConfigType("yaml")

	// 尝试从配置文件加载
	if err := v.ReadInConfig(); err != nil {
		// 如果找不到配置文件，使用默认值；其他错误则返回
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件错误: %w", err)
		}
	}

	// 绑定环境变量
	v.SetEnvPrefix("XOLOTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 从环境变量覆盖
	bindEnvVariables(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置错误: %w", err)
	}

	return &config, nil
}

// setDefaults 设置配置默认值
func setDefaults(v *viper.Viper) {
	// HTTP API服务默认配置
	v.SetDefault("server.listen_address", "0.0.0.0")
	v.SetDefault("server.port", 8080)

	// DNS服务默认配置
	v.SetDefault("dns.enabled", false)
	v.SetDefault("dns.listen_address", "0.0.0.0")
	v.SetDefault("dns.port", 5353)
	v.SetDefault("dns.protocol", "both")
	v.SetDefault("dns.domain", "service.local")
	v.SetDefault("dns.ttl", 30)

	// 健康判定默认配置
	v.SetDefault("health.healthy_window", "30s")
	v.SetDefault("health.stale_window", "90s")

	// 日志默认配置
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", true)
}

// bindEnvVariables 绑定特定的环境变量
func bindEnvVariables(v *viper.Viper) {
	v.BindEnv("server.port", "XOLOTL_SERVER_PORT")
	v.BindEnv("server.listen_address", "XOLOTL_SERVER_LISTEN_ADDRESS")
	v.BindEnv("dns.enabled", "XOLOTL_DNS_ENABLED")
	v.BindEnv("dns.port", "XOLOTL_DNS_PORT")
	v.BindEnv("dns.domain", "XOLOTL_DNS_DOMAIN")
}
