package addon

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrMalformedReport hexRd 长度或内容不合法
var ErrMalformedReport = errors.New("malformed report")

// 颜色传感器标定寄存器起始地址，每通道 2 字节
const colourCalBaseAddr = 0x20

// Reading 颜色传感器一次原始读数
type Reading struct {
	Clear uint16 `json:"clear"`
	Red   uint16 `json:"red"`
	Green uint16 `json:"green"`
	Blue  uint16 `json:"blue"`
}

// Channels 按 clear, red, green, blue 顺序返回
func (r Reading) Channels() [colourChannels]uint16 {
	return [colourChannels]uint16{r.Clear, r.Red, r.Green, r.Blue}
}

// ColourInitCommand 启动时读取标定寄存器的命令
func ColourInitCommand(name string) string {
	return fmt.Sprintf("elem/%s/json?cmd=raw&hexWr=104020&numToRd=20&msgKey=1234", name)
}

// GetCalibrationCommand 只读取四个通道标定值的命令
func GetCalibrationCommand(name string) string {
	return fmt.Sprintf("elem/%s/json?cmd=raw&hexWr=104020&numToRd=8&msgKey=1234", name)
}

// ReadingCommand 读取一次原始颜色读数的命令
func ReadingCommand(name string) string {
	return fmt.Sprintf("elem/%s/json?cmd=raw&hexWr=&numToRd=5&msgKey=1", name)
}

// CalibrateCommands 把一次读数写入四个标定寄存器的命令序列
func CalibrateCommands(name string, reading Reading) []string {
	channels := reading.Channels()
	cmds := make([]string, 0, len(channels))
	for i, ch := range channels {
		addr := colourCalBaseAddr + 2*i
		cmds = append(cmds, fmt.Sprintf("elem/%s/json?cmd=raw&hexWr=ff4040%x%02x%02x&numToRd=0&msgKey=11%d",
			name, addr, ch>>8, ch&0xff, i))
	}
	return cmds
}

// ParseCalibrationReport 解析标定回报：每通道 4 个十六进制字符，大端 u16
func ParseCalibrationReport(hexRd string) ([colourChannels]uint16, error) {
	var out [colourChannels]uint16
	if len(hexRd) < 4*colourChannels {
		return out, fmt.Errorf("%w: calibration needs %d hex chars, got %d", ErrMalformedReport, 4*colourChannels, len(hexRd))
	}
	for i := range out {
		v, err := strconv.ParseUint(hexRd[4*i:4*i+4], 16, 16)
		if err != nil {
			return out, fmt.Errorf("%w: channel %d: %v", ErrMalformedReport, i, err)
		}
		out[i] = uint16(v)
	}
	return out, nil
}

// ParseReadingReport 解析原始读数回报：首字节为状态，随后每通道 1 字节
func ParseReadingReport(hexRd string) (Reading, error) {
	if len(hexRd) < 10 {
		return Reading{}, fmt.Errorf("%w: reading needs 10 hex chars, got %d", ErrMalformedReport, len(hexRd))
	}
	var ch [colourChannels]uint16
	for i := range ch {
		v, err := strconv.ParseUint(hexRd[2+2*i:4+2*i], 16, 8)
		if err != nil {
			return Reading{}, fmt.Errorf("%w: channel %d: %v", ErrMalformedReport, i, err)
		}
		ch[i] = uint16(v)
	}
	return Reading{Clear: ch[0], Red: ch[1], Green: ch[2], Blue: ch[3]}, nil
}
