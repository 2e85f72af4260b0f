// Package jsontree 提供保留键顺序的 JSON 树（标量 / 序列 / 映射三态变体）
//
// 上游模型 API 的响应结构随版本与端点变化，业务代码不绑定具体 schema，
// 而是在该变体上做通用遍历。映射节点保留字段的插入（文档）顺序。
package jsontree

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Kind 节点类型
type Kind int

const (
	KindNull Kind = iota
	KindScalar
	KindSequence
	KindMapping
)

// Field 映射中的一个键值对
type Field struct {
	Key   string
	Value *Node
}

// Node JSON 树节点
//
// 零值与 nil 都表示 null；所有读取方法对 nil 接收者安全。
type Node struct {
	kind   Kind
	scalar any // string | json.Number | bool
	items  []*Node
	fields []Field
}

// Null 创建 null 节点
func Null() *Node { return &Node{kind: KindNull} }

// String 创建字符串节点
func String(s string) *Node { return &Node{kind: KindScalar, scalar: s} }

// Number 创建数值节点，raw 为 JSON 数字字面量
func Number(raw string) *Node { return &Node{kind: KindScalar, scalar: json.Number(raw)} }

// Int 创建整数节点
func Int(n int) *Node { return Number(strconv.Itoa(n)) }

// Bool 创建布尔节点
func Bool(b bool) *Node { return &Node{kind: KindScalar, scalar: b} }

// Seq 创建序列节点
func Seq(items ...*Node) *Node {
	return &Node{kind: KindSequence, items: append([]*Node{}, items...)}
}

// Map 创建映射节点，字段顺序即插入顺序
func Map(fields ...Field) *Node {
	return &Node{kind: KindMapping, fields: append([]Field{}, fields...)}
}

// F 构造映射字段
func F(key string, value *Node) Field { return Field{Key: key, Value: value} }

// Kind 返回节点类型
func (n *Node) Kind() Kind {
	if n == nil {
		return KindNull
	}
	return n.kind
}

// IsNull 是否为 null（含 nil）
func (n *Node) IsNull() bool { return n.Kind() == KindNull }

// IsMapping 是否为映射
func (n *Node) IsMapping() bool { return n.Kind() == KindMapping }

// IsSequence 是否为序列
func (n *Node) IsSequence() bool { return n.Kind() == KindSequence }

// Str 若节点为字符串则返回其值
func (n *Node) Str() (string, bool) {
	if n.Kind() != KindScalar {
		return "", false
	}
	s, ok := n.scalar.(string)
	return s, ok
}

// Get 返回映射中第一个名为 key 的字段值；非映射或不存在时返回 nil
func (n *Node) Get(key string) *Node {
	if n.Kind() != KindMapping {
		return nil
	}
	for _, f := range n.fields {
		if f.Key == key {
			return f.Value
		}
	}
	return nil
}

// Items 返回序列元素；非序列返回 nil
func (n *Node) Items() []*Node {
	if n.Kind() != KindSequence {
		return nil
	}
	return n.items
}

// Fields 返回映射字段；非映射返回 nil
func (n *Node) Fields() []Field {
	if n.Kind() != KindMapping {
		return nil
	}
	return n.fields
}

// Len 序列或映射的元素个数，其余为 0
func (n *Node) Len() int {
	switch n.Kind() {
	case KindSequence:
		return len(n.items)
	case KindMapping:
		return len(n.fields)
	default:
		return 0
	}
}

// Truthy 按"非空即真"的规则判断节点值
func (n *Node) Truthy() bool {
	switch n.Kind() {
	case KindSequence, KindMapping:
		return n.Len() > 0
	case KindScalar:
		switch v := n.scalar.(type) {
		case string:
			return v != ""
		case bool:
			return v
		case json.Number:
			f, err := v.Float64()
			return err != nil || f != 0
		}
	}
	return false
}

// Walk 先序、深度优先、从左到右访问所有节点；映射字段值与序列元素都会被访问
func Walk(n *Node, visit func(*Node)) {
	if n == nil {
		return
	}
	visit(n)
	switch n.kind {
	case KindMapping:
		for _, f := range n.fields {
			Walk(f.Value, visit)
		}
	case KindSequence:
		for _, item := range n.items {
			Walk(item, visit)
		}
	}
}

// MarshalJSON 按字段原顺序序列化
func (n *Node) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := n.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (n *Node) encode(buf *bytes.Buffer) error {
	switch n.Kind() {
	case KindNull:
		buf.WriteString("null")
	case KindScalar:
		switch v := n.scalar.(type) {
		case json.Number:
			buf.WriteString(v.String())
		default:
			b, err := json.Marshal(v)
			if err != nil {
				return err
			}
			buf.Write(b)
		}
	case KindSequence:
		buf.WriteByte('[')
		for i, item := range n.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindMapping:
		buf.WriteByte('{')
		for i, f := range n.fields {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(f.Key)
			if err != nil {
				return err
			}
			buf.Write(key)
			buf.WriteByte(':')
			if err := f.Value.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	}
	return nil
}

// String 返回紧凑 JSON 文本
func (n *Node) String() string {
	b, err := n.MarshalJSON()
	if err != nil {
		return ""
	}
	return string(b)
}
