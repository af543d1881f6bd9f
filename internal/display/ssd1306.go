package display

import (
	"fmt"
	"strconv"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// SSD1306 控制字节
const (
	ctrlCommand = 0x00
	ctrlData    = 0x40
)

// SSD1306 页寻址模式下的单色 OLED，经 I2C 访问
type SSD1306 struct {
	dev    *i2c.Dev
	width  int
	height int
	buf    []byte
}

// NewSSD1306 在已打开的 I2C 总线上创建设备，不发送任何命令
func NewSSD1306(bus i2c.Bus, addr uint16, width, height int) *SSD1306 {
	return &SSD1306{
		dev:    &i2c.Dev{Bus: bus, Addr: addr},
		width:  width,
		height: height,
		buf:    make([]byte, 0, 1+DefaultChunkSize),
	}
}

// OpenI2C 初始化主机驱动并打开 /dev/i2c-<bus>，返回已完成上电序列的面板
func OpenI2C(busNum, addr, width, height int) (*SSD1306, i2c.BusCloser, error) {
	if _, err := host.Init(); err != nil {
		return nil, nil, fmt.Errorf("periph host init: %w", err)
	}
	bus, err := i2creg.Open(strconv.Itoa(busNum))
	if err != nil {
		return nil, nil, fmt.Errorf("open i2c bus %d: %w", busNum, err)
	}
	d := NewSSD1306(bus, uint16(addr), width, height)
	if err := d.Init(); err != nil {
		_ = bus.Close()
		return nil, nil, fmt.Errorf("ssd1306 init at 0x%02X: %w", addr, err)
	}
	return d, bus, nil
}

// command 逐条发送命令字节
func (d *SSD1306) command(cmds ...byte) error {
	for _, c := range cmds {
		if err := d.dev.Tx([]byte{ctrlCommand, c}, nil); err != nil {
			return err
		}
	}
	return nil
}

// Init 内部 VCC、页寻址模式的上电序列
func (d *SSD1306) Init() error {
	comPins := byte(0x02)
	if d.height == 64 {
		comPins = 0x12
	}
	return d.command(
		0xAE,                     // display off
		0xD5, 0x80,               // clock divide
		0xA8, byte(d.height - 1), // multiplex ratio
		0xD3, 0x00,               // display offset
		0x40,                     // start line 0
		0x8D, 0x14,               // charge pump on
		0x20, 0x02,               // page addressing
		0xA1,                     // segment remap
		0xC8,                     // COM scan remap
		0xDA, comPins,            // COM pins
		0x81, 0x7F,               // contrast
		0xD9, 0xF1,               // precharge
		0xDB, 0x40,               // VCOM detect
		0xA4,                     // resume to RAM
		0xA6,                     // normal
		0xAF,                     // display on
	)
}

// SelectPage 设置页地址
func (d *SSD1306) SelectPage(p int) error {
	return d.command(0xB0 | byte(p&0x07))
}

// SetColumn 设置列起始地址（低4位、高4位分两条命令）
func (d *SSD1306) SetColumn(c int) error {
	return d.command(byte(c&0x0F), 0x10|byte((c>>4)&0x0F))
}

// WriteChunk 以数据控制字节前缀写入像素数据
func (d *SSD1306) WriteChunk(b []byte) error {
	d.buf = append(d.buf[:0], ctrlData)
	d.buf = append(d.buf, b...)
	return d.dev.Tx(d.buf, nil)
}

// Clear 全屏写零（不经过脏页缓存）
func (d *SSD1306) Clear() error {
	zero := make([]byte, d.width)
	for p := 0; p < d.height/8; p++ {
		if err := d.SelectPage(p); err != nil {
			return err
		}
		if err := d.SetColumn(0); err != nil {
			return err
		}
		for i := 0; i < len(zero); i += DefaultChunkSize {
			if err := d.WriteChunk(zero[i:min(i+DefaultChunkSize, len(zero))]); err != nil {
				return err
			}
		}
	}
	return nil
}

// PowerOff 关闭显示
func (d *SSD1306) PowerOff() error { return d.command(0xAE) }
