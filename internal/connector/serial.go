package connector

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"addongate/internal/pkg"

	"github.com/mitchellh/mapstructure"
	"go.bug.st/serial"
	"go.uber.org/zap"
)

// SerialConfig 串口连接器配置，报告为按行分隔的 JSON
type SerialConfig struct {
	Port        string        `mapstructure:"port"`
	BaudRate    int           `mapstructure:"baudRate"`
	ReadTimeout time.Duration `mapstructure:"readTimeout"`
	MaxLine     int           `mapstructure:"maxLine"` // 单行最大字节数
}

// 测试中替换
var openSerial = func(path string, mode *serial.Mode, timeout time.Duration) (io.ReadWriteCloser, error) {
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, err
	}
	if timeout > 0 {
		if err := port.SetReadTimeout(timeout); err != nil {
			port.Close()
			return nil, err
		}
	}
	return port, nil
}

// SerialConnector 从串口逐行读取附加模块报告，命令同样按行写回
type SerialConnector struct {
	ctx    context.Context
	config SerialConfig

	mu   sync.Mutex // 保护 port 的写入
	port io.ReadWriteCloser
	done chan struct{}
}

func init() {
	Register("serial", NewSerialConnector)
}

func NewSerialConnector(ctx context.Context) (Template, error) {
	var cfg SerialConfig
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return nil, fmt.Errorf("配置文件解析失败: %w", err)
	}
	if err := decoder.Decode(pkg.ConfigFromContext(ctx).Connector.Config); err != nil {
		return nil, fmt.Errorf("配置文件解析失败: %w", err)
	}
	if cfg.Port == "" {
		return nil, fmt.Errorf("配置文件解析失败: 缺少 port")
	}
	if cfg.BaudRate == 0 {
		cfg.BaudRate = 115200
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 200 * time.Millisecond
	}
	if cfg.MaxLine == 0 {
		cfg.MaxLine = 4096
	}
	return &SerialConnector{ctx: ctx, config: cfg, done: make(chan struct{})}, nil
}

func (s *SerialConnector) GetType() string {
	return "serial"
}

func (s *SerialConnector) Start(out chan<- []byte) error {
	mode := &serial.Mode{
		BaudRate: s.config.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := openSerial(s.config.Port, mode, s.config.ReadTimeout)
	if err != nil {
		pkg.GetPerformanceMetrics().IncMsgErrors("serial_open")
		return fmt.Errorf("串口打开失败 %s: %w", s.config.Port, err)
	}
	s.mu.Lock()
	s.port = port
	s.mu.Unlock()
	pkg.LoggerFromContext(s.ctx).Info("串口已连接", zap.String("port", s.config.Port), zap.Int("baud", s.config.BaudRate))
	go s.readLoop(port, out)
	return nil
}

// readLoop 读超时返回 0 字节，bufio 连续空读后给出 io.ErrNoProgress，此时继续读。
// 端口关闭或 ctx 结束时退出。
func (s *SerialConnector) readLoop(port io.Reader, out chan<- []byte) {
	logger := pkg.LoggerFromContext(s.ctx)
	metrics := pkg.GetPerformanceMetrics()
	defer close(s.done)

	reader := bufio.NewReaderSize(port, s.config.MaxLine)
	var line []byte
	discard := false
	for {
		if s.ctx.Err() != nil {
			return
		}
		chunk, err := reader.ReadSlice('\n')
		switch {
		case err == nil:
		case errors.Is(err, bufio.ErrBufferFull):
			if !discard {
				metrics.IncMsgErrors("serial")
				logger.Warn("串口行过长，已丢弃", zap.Int("maxLine", s.config.MaxLine))
			}
			discard = true
			line = line[:0]
			continue
		case errors.Is(err, io.ErrNoProgress):
			line = append(line, chunk...)
			continue
		default:
			logger.Info("串口读取结束", zap.Error(err))
			return
		}

		line = append(line, chunk...)
		if discard {
			discard = false
			line = line[:0]
			continue
		}
		payload := bytes.TrimSpace(line)
		line = nil
		if len(payload) == 0 {
			continue
		}
		metrics.IncMsgReceived("serial")
		select {
		case out <- payload:
			metrics.IncMsgProcessed("serial")
		case <-s.ctx.Done():
			return
		}
	}
}

// Send 写入一行命令
func (s *SerialConnector) Send(cmd string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return fmt.Errorf("串口未连接")
	}
	if _, err := io.WriteString(s.port, cmd+"\n"); err != nil {
		return fmt.Errorf("串口命令发送失败: %w", err)
	}
	pkg.LoggerFromContext(s.ctx).Debug("command sent", zap.String("port", s.config.Port), zap.String("cmd", cmd))
	return nil
}

func (s *SerialConnector) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return fmt.Errorf("串口未连接")
	}
	err := s.port.Close()
	s.port = nil
	pkg.LoggerFromContext(s.ctx).Info("串口已关闭", zap.String("port", s.config.Port))
	return err
}
