package roadmap

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// Heading 路线图中的一个标题
type Heading struct {
	Level int    `json:"level"`
	Title string `json:"title"`
}

// 路线图包含周计划表格，需要 GFM 表格扩展
var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// Outline 提取 Markdown 中的标题层级
func Outline(md string) []Heading {
	src := []byte(md)
	doc := markdown.Parser().Parse(text.NewReader(src))

	headings := make([]Heading, 0)
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		h, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		title := strings.TrimSpace(inlineText(h, src))
		if title != "" {
			headings = append(headings, Heading{Level: h.Level, Title: title})
		}
		return ast.WalkSkipChildren, nil
	})
	return headings
}

// RenderHTML 将 Markdown 渲染为 HTML
func RenderHTML(md string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func inlineText(n ast.Node, src []byte) string {
	var sb strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			sb.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteByte(' ')
			}
		case *ast.String:
			sb.Write(t.Value)
		default:
			sb.WriteString(inlineText(c, src))
		}
	}
	return sb.String()
}
