package internal

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"addongate/internal/addon"
)

// 报告类型
const (
	MsgTypeStatus = "status"
	MsgTypeInit   = "init"
)

var ErrBadReport = errors.New("bad report")

// RawReport 上游送来的一条附加模块报告
type RawReport struct {
	MsgType  string `json:"msgType"`
	ID       int    `json:"id"`
	Name     string `json:"name"`
	WhoAmI   string `json:"whoAmI"`
	Family   string `json:"family"`
	Revision string `json:"revision"`
	Status   uint8  `json:"status"`
	Hex      string `json:"hex"`

	// 初始化回报
	ElemName string `json:"elemName"`
	HexRd    string `json:"hexRd"`
	MsgKey   string `json:"msgKey"`
	Rslt     string `json:"rslt"`
}

// ParseReport 解析并校验 JSON 报告，缺省 msgType 为 status，缺省 family 为 RSAddOn
func ParseReport(payload []byte) (RawReport, error) {
	var r RawReport
	if err := json.Unmarshal(payload, &r); err != nil {
		return r, fmt.Errorf("%w: %v", ErrBadReport, err)
	}
	if r.MsgType == "" {
		r.MsgType = MsgTypeStatus
	}
	if r.Family == "" {
		r.Family = addon.FamilyRSAddOn
	}
	switch r.MsgType {
	case MsgTypeStatus:
		if r.Name == "" || r.WhoAmI == "" {
			return r, fmt.Errorf("%w: status report needs name and whoAmI", ErrBadReport)
		}
	case MsgTypeInit:
		if r.ElemName == "" {
			r.ElemName = r.Name
		}
		if r.ElemName == "" {
			return r, fmt.Errorf("%w: init report needs elemName", ErrBadReport)
		}
	default:
		return r, fmt.Errorf("%w: unknown msgType %q", ErrBadReport, r.MsgType)
	}
	return r, nil
}

// Raw 解码 hex 字段，允许 0x 前缀和空格
func (r RawReport) Raw() ([]byte, error) {
	s := strings.TrimPrefix(strings.ReplaceAll(r.Hex, " ", ""), "0x")
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: hex: %v", ErrBadReport, err)
	}
	return raw, nil
}

// InitMsg 转换为附加模块的初始化回报
func (r RawReport) InitMsg() addon.ReportMsg {
	return addon.ReportMsg{
		MsgType:  r.MsgType,
		ElemName: r.ElemName,
		HexRd:    r.HexRd,
		MsgKey:   r.MsgKey,
		Rslt:     r.Rslt,
	}
}
