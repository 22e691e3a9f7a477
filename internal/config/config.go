package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// AppConfig 应用配置
type AppConfig struct {
	Server    ServerConfig    `toml:"server"`
	Data      DataConfig      `toml:"data"`
	Telemetry TelemetryConfig `toml:"telemetry"`
	Billing   BillingConfig   `toml:"billing"`
	Devices   DevicesConfig   `toml:"devices"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port    int  `toml:"port"`
	DevMode bool `toml:"dev_mode"`
}

// DataConfig 数据配置
type DataConfig struct {
	DataDir string `toml:"data_dir"`
}

// TelemetryConfig 流量遥测上游配置
type TelemetryConfig struct {
	BaseURL string `toml:"base_url"`
	// BatchSize 单次远端读取最多携带的时间点数
	BatchSize int `toml:"batch_size"`
	// TimeoutSeconds 单次远端请求超时
	TimeoutSeconds int `toml:"timeout_seconds"`
	// LocalOffsetHours 分桶用的本地时区偏移（小时），仅影响桶边界
	LocalOffsetHours int `toml:"local_offset_hours"`
}

// BillingConfig 计费上游配置
type BillingConfig struct {
	BaseURL        string `toml:"base_url"`
	Username       string `toml:"username"`
	Password       string `toml:"password"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// DeviceEntry 设备映射表的一项：规范短名 -> 设备码
type DeviceEntry struct {
	Key   string `toml:"key"`
	Code  string `toml:"code"`
	Label string `toml:"label"`
}

// DevicesConfig 设备映射配置
//
// Mapping 必须保持声明顺序：子串匹配按先声明者优先，顺序即语义。
type DevicesConfig struct {
	Mapping []DeviceEntry `toml:"mapping"`
}

// LoadConfigInfo 配置加载元信息
type LoadConfigInfo struct {
	PortSpecified bool
}

// DefaultConfig 默认配置
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:    20330,
			DevMode: false,
		},
		Data: DataConfig{
			DataDir: "data",
		},
		Telemetry: TelemetryConfig{
			BaseURL:          "https://neptune.kyogojo.com/api/v4/statistics",
			BatchSize:        30,
			TimeoutSeconds:   30,
			LocalOffsetHours: 8,
		},
		Billing: BillingConfig{
			BaseURL:        "https://p-673a9fc335d088609f177102-ocelotapigw.kyogojo.com",
			TimeoutSeconds: 30,
		},
		Devices: DevicesConfig{
			Mapping: []DeviceEntry{
				{Key: "libona", Code: "40961", Label: "Libona WTP"},
				{Key: "cotabato", Code: "3993042952", Label: "Cotabato WTP"},
				{Key: "dansolihon", Code: "3993042948", Label: "Dansolihon WTP"},
				{Key: "taguanao", Code: "3993042954", Label: "Taguanao WTP"},
				{Key: "camarines_sur_1", Code: "3993042950", Label: "Camarines Sur 1"},
				{Key: "camarines_sur_2", Code: "3993042951", Label: "Camarines Sur 2"},
			},
		},
	}
}

// TelemetryTimeout 遥测请求超时时长
func (c *AppConfig) TelemetryTimeout() time.Duration {
	if c.Telemetry.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Telemetry.TimeoutSeconds) * time.Second
}

// BillingTimeout 计费请求超时时长
func (c *AppConfig) BillingTimeout() time.Duration {
	if c.Billing.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Billing.TimeoutSeconds) * time.Second
}

// LocalOffset 分桶用本地时区偏移
func (c *AppConfig) LocalOffset() time.Duration {
	return time.Duration(c.Telemetry.LocalOffsetHours) * time.Hour
}

func isPortSpecifiedInToml(data []byte) bool {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return false
	}

	serverAny, ok := raw["server"]
	if !ok {
		return false
	}

	serverMap, ok := serverAny.(map[string]any)
	if !ok {
		return false
	}

	_, ok = serverMap["port"]
	return ok
}

// GetExeDir 获取可执行文件所在目录
func GetExeDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Dir(exe), nil
}

// LoadConfigWithInfo 从 config.toml 加载配置并返回元信息
func LoadConfigWithInfo(path string) (*AppConfig, LoadConfigInfo, error) {
	info := LoadConfigInfo{}
	config := DefaultConfig()

	configPath := path
	if configPath == "" {
		exeDir, err := GetExeDir()
		if err != nil {
			// 无法获取可执行文件目录，使用当前目录
			exeDir = "."
		}
		configPath = filepath.Join(exeDir, "config.toml")
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// 配置文件不存在，使用默认配置
			applyEnvOverrides(config)
			return config, info, nil
		}
		return nil, info, err
	}

	info.PortSpecified = isPortSpecifiedInToml(data)

	if err := toml.Unmarshal(data, config); err != nil {
		return nil, info, err
	}

	applyEnvOverrides(config)

	return config, info, nil
}

// applyEnvOverrides 环境变量覆盖（凭据不落配置文件时使用）
func applyEnvOverrides(config *AppConfig) {
	if v := os.Getenv("NRW_FLOW_BASE_URL"); v != "" {
		config.Telemetry.BaseURL = v
	}
	if v := os.Getenv("NRW_BILLING_BASE_URL"); v != "" {
		config.Billing.BaseURL = v
	}
	if v := os.Getenv("NRW_BILLING_USERNAME"); v != "" {
		config.Billing.Username = v
	}
	if v := os.Getenv("NRW_BILLING_PASSWORD"); v != "" {
		config.Billing.Password = v
	}
}

// EnsureDataDir 确保数据目录存在
// 数据目录位于可执行文件同目录下
func EnsureDataDir(config *AppConfig) (string, error) {
	dataDir := config.Data.DataDir
	if !filepath.IsAbs(dataDir) {
		exeDir, err := GetExeDir()
		if err != nil {
			exeDir = "."
		}
		dataDir = filepath.Join(exeDir, dataDir)
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", err
	}

	// 创建子目录
	subdirs := []string{"exports"}
	for _, subdir := range subdirs {
		path := filepath.Join(dataDir, subdir)
		if err := os.MkdirAll(path, 0755); err != nil {
			return "", err
		}
	}

	return dataDir, nil
}
