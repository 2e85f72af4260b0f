package roadmap

import (
	"strings"

	"skillforge-api/pkg/jsontree"
)

// ExtractTexts 按先序、深度优先、从左到右收集所有映射中字符串类型的 "text" 字段
//
// 映射自身的 "text" 先于其子节点输出；nil 输入不产出任何内容。
func ExtractTexts(node *jsontree.Node) []string {
	var out []string
	jsontree.Walk(node, func(n *jsontree.Node) {
		if !n.IsMapping() {
			return
		}
		if s, ok := n.Get("text").Str(); ok {
			out = append(out, s)
		}
	})
	return out
}

// candidateTexts 依次提取每个候选的 content
func candidateTexts(candidates []*jsontree.Node) []string {
	var out []string
	for _, c := range candidates {
		out = append(out, ExtractTexts(c.Get("content"))...)
	}
	return out
}

// joinTexts 去除首尾空白、丢弃空串后以换行拼接
//
// 是否成功只看是否提取到字符串：仅含空白的文本也算成功，结果可能为空串。
func joinTexts(texts []string) (string, bool) {
	kept := make([]string, 0, len(texts))
	for _, t := range texts {
		if t = strings.TrimSpace(t); t != "" {
			kept = append(kept, t)
		}
	}
	return strings.Join(kept, "\n"), len(texts) > 0
}
