package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// 进程阶段名称，用于日志文件、HTTP 地址与指标标签
const (
	StageDisplay   = "display"
	StageSpectrum  = "spectrum"
	StageBTBridge  = "bt-bridge"
	StageUDPBridge = "udp-bridge"
	StageChain     = "chain"
)

// BluetoothConfig RFCOMM 入口配置
type BluetoothConfig struct {
	Channel  int    `mapstructure:"channel" yaml:"channel"`
	BindMAC  string `mapstructure:"bindMac" yaml:"bindMac"`   // 本地适配器地址（可选）
	AllowMAC string `mapstructure:"allowMac" yaml:"allowMac"` // 允许的远端地址（可选）
	Adapter  string `mapstructure:"adapter" yaml:"adapter"`   // HCI 设备名，如 hci0
	BringUp  bool   `mapstructure:"bringUp" yaml:"bringUp"`   // 监听前尝试上电并开启扫描
}

// GridConfig 逻辑像素网格
type GridConfig struct {
	Cols int `mapstructure:"cols" yaml:"cols"`
	Rows int `mapstructure:"rows" yaml:"rows"`
}

// Cells 网格单元数（即网格帧字节数）
func (g GridConfig) Cells() int { return g.Cols * g.Rows }

// DisplayConfig SSD1306 面板配置
type DisplayConfig struct {
	I2CBus    int `mapstructure:"i2cBus" yaml:"i2cBus"`
	I2CAddr   int `mapstructure:"i2cAddr" yaml:"i2cAddr"`
	Width     int `mapstructure:"width" yaml:"width"`
	Height    int `mapstructure:"height" yaml:"height"`
	ChunkSize int `mapstructure:"chunkSize" yaml:"chunkSize"`
}

// PortsConfig 本地回环端口
type PortsConfig struct {
	UDPBands int `mapstructure:"udpBands" yaml:"udpBands"` // UDP 入口（来自外部发送端）
	TCPBands int `mapstructure:"tcpBands" yaml:"tcpBands"` // 桥接 -> 频谱
	Grid     int `mapstructure:"grid" yaml:"grid"`         // 频谱 -> 显示
}

// RelayConfig 转发链路与监听重试参数
type RelayConfig struct {
	Host             string        `mapstructure:"host" yaml:"host"`
	DialTimeout      time.Duration `mapstructure:"dialTimeout" yaml:"dialTimeout"`
	WriteTimeout     time.Duration `mapstructure:"writeTimeout" yaml:"writeTimeout"`
	RetryDelay       time.Duration `mapstructure:"retryDelay" yaml:"retryDelay"`
	ListenRetryDelay time.Duration `mapstructure:"listenRetryDelay" yaml:"listenRetryDelay"`
}

// HTTPConfig 每个进程可选的健康检查/指标 HTTP 服务
type HTTPConfig struct {
	Enable       bool              `mapstructure:"enable" yaml:"enable"`
	ReadTimeout  time.Duration     `mapstructure:"readTimeout" yaml:"readTimeout"`
	WriteTimeout time.Duration     `mapstructure:"writeTimeout" yaml:"writeTimeout"`
	Addrs        map[string]string `mapstructure:"addrs" yaml:"addrs"`
}

// Addr 返回指定阶段的监听地址，未配置时为空
func (h HTTPConfig) Addr(stage string) string {
	if h.Addrs == nil {
		return ""
	}
	return h.Addrs[stage]
}

// LumberjackConfig 日志滚动（lumberjack）配置
type LumberjackConfig struct {
	Dir        string `mapstructure:"dir" yaml:"dir"`
	MaxSizeMB  int    `mapstructure:"maxSize" yaml:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups" yaml:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAge" yaml:"maxAge"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// LoggingConfig 日志级别与输出配置
type LoggingConfig struct {
	Level  string           `mapstructure:"level" yaml:"level"`
	Format string           `mapstructure:"format" yaml:"format"`
	File   LumberjackConfig `mapstructure:"file" yaml:"file"`
}

// MetricsConfig Prometheus 指标暴露配置
type MetricsConfig struct {
	Enable bool   `mapstructure:"enable" yaml:"enable"`
	Path   string `mapstructure:"path" yaml:"path"`
}

// Config 顶层配置结构
type Config struct {
	BT      BluetoothConfig `mapstructure:"bt" yaml:"bt"`
	Grid    GridConfig      `mapstructure:"grid" yaml:"grid"`
	Display DisplayConfig   `mapstructure:"display" yaml:"display"`
	Ports   PortsConfig     `mapstructure:"ports" yaml:"ports"`
	Relay   RelayConfig     `mapstructure:"relay" yaml:"relay"`
	FPS     int             `mapstructure:"fps" yaml:"fps"`
	HTTP    HTTPConfig      `mapstructure:"http" yaml:"http"`
	Logging LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
}

// LoopbackAddr 拼接回环地址
func (c *Config) LoopbackAddr(port int) string {
	return fmt.Sprintf("%s:%d", c.Relay.Host, port)
}

// Load 从 YAML/JSON 文件与环境变量加载配置。
// 若 path 为空，则尝试从环境变量 BEE_CONFIG 读取；否则回退到 ./bee_config.* 或 ./configs/bee_config.*。
func Load(path string) (*Config, error) {
	v := viper.New()

	if path == "" {
		_ = v.BindEnv("config", "BEE_CONFIG")
		path = v.GetString("config")
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.SetConfigName("bee_config")
	}

	// 默认值
	setDefaults(v)

	// 环境变量覆盖：前缀 BEE_，并将点号替换为下划线
	v.SetEnvPrefix("BEE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// 兼容旧部署脚本中的环境变量
	_ = v.BindEnv("bt.bindMac", "BEE_BT_BINDMAC", "BEE_BT_BIND")
	_ = v.BindEnv("bt.allowMac", "BEE_BT_ALLOWMAC", "BEE_BT_ALLOW")
	_ = v.BindEnv("bt.adapter", "BEE_BT_ADAPTER", "BEE_HCI")

	if err := v.ReadInConfig(); err != nil {
		// 首次运行允许缺少配置文件，依赖默认值与环境变量
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 校验启动期不可恢复的配置错误
func (c *Config) Validate() error {
	if c.BT.Channel < 1 || c.BT.Channel > 30 {
		return fmt.Errorf("config: bt.channel %d out of range 1..30", c.BT.Channel)
	}
	for key, mac := range map[string]string{"bt.bindMac": c.BT.BindMAC, "bt.allowMac": c.BT.AllowMAC} {
		if mac != "" && !looksLikeMAC(mac) {
			return fmt.Errorf("config: %s %q is not a hardware address", key, mac)
		}
	}
	if c.Grid.Cols <= 0 || c.Grid.Rows <= 0 {
		return fmt.Errorf("config: grid %dx%d must be positive", c.Grid.Cols, c.Grid.Rows)
	}
	if c.Display.Width <= 0 || c.Display.Height <= 0 ||
		c.Display.Width%8 != 0 || c.Display.Height%8 != 0 {
		return fmt.Errorf("config: display %dx%d must be positive multiples of 8", c.Display.Width, c.Display.Height)
	}
	if c.Display.ChunkSize <= 0 {
		return fmt.Errorf("config: display.chunkSize must be positive")
	}
	if c.FPS <= 0 {
		c.FPS = 1
	}
	return nil
}

// looksLikeMAC 粗校验 AA:BB:CC:DD:EE:FF 形式，完整解析在 rfcomm.ParseAddr
func looksLikeMAC(s string) bool {
	parts := strings.Split(s, ":")
	if len(parts) != 6 {
		return false
	}
	for _, p := range parts {
		if len(p) != 2 {
			return false
		}
	}
	return true
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("bt.channel", 1)
	v.SetDefault("bt.bindMac", "")
	v.SetDefault("bt.allowMac", "")
	v.SetDefault("bt.adapter", "hci0")
	v.SetDefault("bt.bringUp", true)

	v.SetDefault("grid.cols", 16)
	v.SetDefault("grid.rows", 8)

	v.SetDefault("display.i2cBus", 0)
	v.SetDefault("display.i2cAddr", 0x3C)
	v.SetDefault("display.width", 128)
	v.SetDefault("display.height", 64)
	v.SetDefault("display.chunkSize", 64)

	v.SetDefault("ports.udpBands", 7001)
	v.SetDefault("ports.tcpBands", 7003)
	v.SetDefault("ports.grid", 7002)

	v.SetDefault("relay.host", "127.0.0.1")
	v.SetDefault("relay.dialTimeout", "1s")
	v.SetDefault("relay.writeTimeout", "1s")
	v.SetDefault("relay.retryDelay", "250ms")
	v.SetDefault("relay.listenRetryDelay", "500ms")

	v.SetDefault("fps", 24)

	v.SetDefault("http.enable", false)
	v.SetDefault("http.readTimeout", "5s")
	v.SetDefault("http.writeTimeout", "10s")
	v.SetDefault("http.addrs", map[string]string{
		StageDisplay:   "127.0.0.1:9101",
		StageSpectrum:  "127.0.0.1:9102",
		StageBTBridge:  "127.0.0.1:9103",
		StageUDPBridge: "127.0.0.1:9104",
	})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file.dir", "logs")
	v.SetDefault("logging.file.maxSize", 20)
	v.SetDefault("logging.file.maxBackups", 3)
	v.SetDefault("logging.file.maxAge", 7)
	v.SetDefault("logging.file.compress", true)

	v.SetDefault("metrics.enable", true)
	v.SetDefault("metrics.path", "/metrics")
}
