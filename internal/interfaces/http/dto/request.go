// Package dto 提供 HTTP 层数据传输对象
package dto

import "encoding/json"

// GenerateRequest 路线图生成请求
type GenerateRequest struct {
	Topic string `json:"topic"`
	// Format markdown（默认）或 html
	Format string `json:"format" binding:"omitempty,oneof=markdown html"`
}

// SalaryRequest 薪资查询（JSON 请求体）
//
// location 缺省时取默认值；显式给出的值（包括空串和 null）原样回显。
type SalaryRequest struct {
	Tech       string         `json:"tech"`
	Location   OptionalString `json:"location"`
	Experience string         `json:"experience"`
	Exp        string         `json:"exp"`
}

// OptionalString 区分字段缺省、null 与字符串
type OptionalString struct {
	Present bool
	Value   *string
}

// UnmarshalJSON 只在字段出现时被调用
func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Present = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	o.Value = &s
	return nil
}
