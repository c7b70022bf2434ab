package api

import (
	"net/http"
	"time"

	"addongate/internal/addon"
	ex "addongate/internal/extractor"
	"addongate/internal/pkg"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// InstanceSource 提供当前在线实例的快照，由 pipeline 实现
type InstanceSource interface {
	Instances() []addon.Info
}

// Handler 管理接口的处理函数集合
type Handler struct {
	registry  *addon.Registry
	instances InstanceSource
	metrics   *pkg.PerformanceMetrics
	logger    *zap.Logger
}

// NewHandler instances 可以为 nil，此时实例列表为空
func NewHandler(registry *addon.Registry, instances InstanceSource, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		registry:  registry,
		instances: instances,
		metrics:   pkg.GetPerformanceMetrics(),
		logger:    logger,
	}
}

// 辅助函数：发送错误响应
func errorResponse(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{"error": message})
}

// GetTypes 已注册的 (总线族, who-am-i) -> 类型
func (h *Handler) GetTypes(c *gin.Context) {
	c.JSON(http.StatusOK, h.registry.Entries())
}

// FieldView 字段定义的 JSON 视图
type FieldView struct {
	Suffix    string  `json:"suffix" yaml:"suffix"`
	AtBit     uint    `json:"atBit" yaml:"atBit"`
	Bits      uint    `json:"bits" yaml:"bits"`
	Kind      string  `json:"kind" yaml:"kind"`
	PostMult  float64 `json:"postMult" yaml:"postMult"`
	PostAdd   float64 `json:"postAdd" yaml:"postAdd"`
	ByteOrder string  `json:"byteOrder" yaml:"byteOrder"`
}

// FormatView 布局定义的 JSON 视图
type FormatView struct {
	Name     string      `json:"name" yaml:"name"`
	MinBytes int         `json:"minBytes" yaml:"minBytes"`
	Fields   []FieldView `json:"fields" yaml:"fields"`
}

// NewFormatView 把布局定义转换为视图
func NewFormatView(f *ex.Format) FormatView {
	view := FormatView{Name: f.Name(), MinBytes: f.MinBytes(), Fields: make([]FieldView, 0, f.Len())}
	for _, field := range f.Fields() {
		view.Fields = append(view.Fields, FieldView{
			Suffix:    field.Suffix,
			AtBit:     field.AtBit,
			Bits:      field.Bits,
			Kind:      field.Kind.String(),
			PostMult:  field.PostMult,
			PostAdd:   field.PostAdd,
			ByteOrder: field.ByteOrder.String(),
		})
	}
	return view
}

// GetFormats 所有布局定义
func (h *Handler) GetFormats(c *gin.Context) {
	names := addon.FormatNames()
	out := make([]FormatView, 0, len(names))
	for _, name := range names {
		f, _ := addon.FormatByName(name)
		out = append(out, NewFormatView(f))
	}
	c.JSON(http.StatusOK, out)
}

// GetFormat 单个布局定义
func (h *Handler) GetFormat(c *gin.Context) {
	f, ok := addon.FormatByName(c.Param("name"))
	if !ok {
		errorResponse(c, http.StatusNotFound, "布局定义未找到")
		return
	}
	c.JSON(http.StatusOK, NewFormatView(f))
}

// GetInstances 当前实例及其标定
func (h *Handler) GetInstances(c *gin.Context) {
	if h.instances == nil {
		c.JSON(http.StatusOK, []addon.Info{})
		return
	}
	c.JSON(http.StatusOK, h.instances.Instances())
}

// StatsResponse 运行统计
type StatsResponse struct {
	Uptime   string                   `json:"uptime" yaml:"uptime"`
	Messages map[string]pkg.MsgCounts `json:"messages" yaml:"messages"`
}

// GetStats 按类型统计的消息数
func (h *Handler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, StatsResponse{
		Uptime:   time.Since(h.metrics.StartTime).Round(time.Second).String(),
		Messages: h.metrics.Snapshot(),
	})
}
