package api

import (
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"

	"addongate/internal/addon"
	"addongate/internal/estimator"
	ex "addongate/internal/extractor"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DecodeRequest 离线解码一条状态报文，不影响在线实例
type DecodeRequest struct {
	Family      string    `json:"family"` // 缺省 RSAddOn
	WhoAmI      string    `json:"whoAmI" binding:"required"`
	Name        string    `json:"name"` // 缺省 whoAmI
	Revision    string    `json:"revision"`
	Status      uint8     `json:"status"`
	HexPayload  string    `json:"hexPayload"`
	Calibration []float64 `json:"calibration"` // 仅颜色传感器
}

// DecodeResponse 解码结果
type DecodeResponse struct {
	TypeName       string                 `json:"typeName"`
	Status         *addon.Status          `json:"status"`
	Estimated      bool                   `json:"estimated"` // 该类型是否做估计
	Known          bool                   `json:"known"`     // 修订版本是否有参数
	Predictions    []estimator.Prediction `json:"predictions,omitempty"`
	Skipped        map[string]string      `json:"skipped,omitempty"`
	ProcessingTime int64                  `json:"processingTime"` // 纳秒
}

// DecodeHandler 用注册表创建临时实例并解码
func (h *Handler) DecodeHandler(c *gin.Context) {
	var request DecodeRequest

	// 1. 绑定请求
	if err := c.ShouldBindJSON(&request); err != nil {
		h.logger.Warn("Failed to bind request JSON", zap.Error(err))
		errorResponse(c, http.StatusBadRequest, "无效的请求数据: "+err.Error())
		return
	}
	if request.Family == "" {
		request.Family = addon.FamilyRSAddOn
	}
	if request.Name == "" {
		request.Name = request.WhoAmI
	}

	// 2. 解码 hex
	payload := strings.TrimPrefix(strings.ReplaceAll(request.HexPayload, " ", ""), "0x")
	raw, err := hex.DecodeString(payload)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "无效的 hex 数据: "+err.Error())
		return
	}

	// 3. 创建临时实例
	a, err := h.registry.Create(request.Family, request.WhoAmI, request.Name, request.Revision)
	if err != nil {
		errorResponse(c, http.StatusNotFound, err.Error())
		return
	}
	if len(request.Calibration) > 0 {
		if err := a.SetCalibration(request.Calibration); err != nil {
			errorResponse(c, http.StatusBadRequest, err.Error())
			return
		}
	}

	// 4. 解码
	startTime := time.Now()
	status, err := a.ProcessPublishedData(0, request.Status, raw)
	elapsed := time.Since(startTime)
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, ex.ErrFieldOutOfRange) {
			code = http.StatusUnprocessableEntity
		}
		errorResponse(c, code, err.Error())
		return
	}

	resp := DecodeResponse{
		TypeName:       a.TypeName(),
		Status:         status,
		ProcessingTime: elapsed.Nanoseconds(),
	}
	if o := status.Outcome; o != nil {
		resp.Estimated = true
		resp.Known = o.Known
		resp.Predictions = o.Predictions
		for flag, err := range o.Skipped {
			if resp.Skipped == nil {
				resp.Skipped = make(map[string]string)
			}
			resp.Skipped[flag] = err.Error()
		}
	}
	c.JSON(http.StatusOK, resp)
}
