package jsontree

import (
	"errors"

	"github.com/tidwall/gjson"
)

// ErrInvalidJSON 输入不是合法的 JSON 文本，或嵌套超过 MaxDepth
var ErrInvalidJSON = errors.New("jsontree: invalid json")

// MaxDepth 允许的最大嵌套层数
//
// 逐层展开的开销与层数成正比，超限的输入按非法 JSON 处理（ParseOrRaw 会降级为 raw）。
const MaxDepth = 512

// Parse 解析 JSON 文本，映射字段保持文档顺序
func Parse(data []byte) (*Node, error) {
	if exceedsDepth(data, MaxDepth) || !gjson.ValidBytes(data) {
		return nil, ErrInvalidJSON
	}
	return fromResult(gjson.ParseBytes(data)), nil
}

// exceedsDepth 单次线性扫描，统计字符串之外的括号嵌套
func exceedsDepth(data []byte, limit int) bool {
	depth := 0
	inString, escaped := false, false
	for _, b := range data {
		if inString {
			switch {
			case escaped:
				escaped = false
			case b == '\\':
				escaped = true
			case b == '"':
				inString = false
			}
			continue
		}
		switch b {
		case '"':
			inString = true
		case '[', '{':
			if depth++; depth > limit {
				return true
			}
		case ']', '}':
			depth--
		}
	}
	return false
}

// ParseOrRaw 解析 JSON 文本；无法解析时降级为 {"raw": <原始文本>}
func ParseOrRaw(data []byte) *Node {
	n, err := Parse(data)
	if err != nil {
		return Map(F("raw", String(string(data))))
	}
	return n
}

func fromResult(r gjson.Result) *Node {
	switch r.Type {
	case gjson.String:
		return String(r.Str)
	case gjson.Number:
		return Number(r.Raw)
	case gjson.True:
		return Bool(true)
	case gjson.False:
		return Bool(false)
	case gjson.JSON:
		if r.IsArray() {
			n := &Node{kind: KindSequence, items: []*Node{}}
			r.ForEach(func(_, value gjson.Result) bool {
				n.items = append(n.items, fromResult(value))
				return true
			})
			return n
		}
		// 重复键保留首次出现的位置，取最后一次的值
		n := &Node{kind: KindMapping, fields: []Field{}}
		seen := make(map[string]int)
		r.ForEach(func(key, value gjson.Result) bool {
			if i, ok := seen[key.Str]; ok {
				n.fields[i].Value = fromResult(value)
				return true
			}
			seen[key.Str] = len(n.fields)
			n.fields = append(n.fields, Field{Key: key.Str, Value: fromResult(value)})
			return true
		})
		return n
	default:
		return Null()
	}
}
