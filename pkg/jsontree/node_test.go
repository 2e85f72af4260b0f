package jsontree

import (
	"strings"
	"testing"
	"time"
)

func TestParse_PreservesFieldOrder(t *testing.T) {
	n, err := Parse([]byte(`{"z":1,"a":{"y":true,"b":null},"m":["x",2.50]}`))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	var keys []string
	for _, f := range n.Fields() {
		keys = append(keys, f.Key)
	}
	if got := len(keys); got != 3 || keys[0] != "z" || keys[1] != "a" || keys[2] != "m" {
		t.Fatalf("keys = %v", keys)
	}
	if got := n.String(); got != `{"z":1,"a":{"y":true,"b":null},"m":["x",2.50]}` {
		t.Fatalf("String() = %s", got)
	}
}

func TestParse_DuplicateKeysLastValueWins(t *testing.T) {
	n, err := Parse([]byte(`{"text":"a","x":1,"text":"b"}`))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if got, _ := n.Get("text").Str(); got != "b" {
		t.Fatalf("text = %q, want b", got)
	}
	if got := n.String(); got != `{"text":"b","x":1}` {
		t.Fatalf("String() = %s", got)
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, in := range []string{"", "<html>", `{"a":`} {
		if _, err := Parse([]byte(in)); err != ErrInvalidJSON {
			t.Fatalf("Parse(%q) err = %v, want ErrInvalidJSON", in, err)
		}
	}
}

func TestParse_DepthLimit(t *testing.T) {
	nested := func(d int) []byte {
		return []byte(strings.Repeat("[", d) + strings.Repeat("]", d))
	}
	if _, err := Parse(nested(MaxDepth)); err != nil {
		t.Fatalf("depth %d: %v", MaxDepth, err)
	}
	if _, err := Parse(nested(MaxDepth + 1)); err != ErrInvalidJSON {
		t.Fatalf("depth %d err = %v, want ErrInvalidJSON", MaxDepth+1, err)
	}

	// 字符串内的括号不计入嵌套
	quoted := []byte(`{"a":"` + strings.Repeat("[{", 2*MaxDepth) + `\"]"}`)
	if _, err := Parse(quoted); err != nil {
		t.Fatalf("brackets inside strings: %v", err)
	}
}

func TestParseOrRaw_DeepNestingDegradesQuickly(t *testing.T) {
	data := []byte(strings.Repeat("[", 1<<20) + strings.Repeat("]", 1<<20))
	start := time.Now()
	n := ParseOrRaw(data)
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("ParseOrRaw took %v", elapsed)
	}
	if raw, ok := n.Get("raw").Str(); !ok || len(raw) != len(data) {
		t.Fatalf("expected raw fallback, got kind %v", n.Kind())
	}
}

func TestParseOrRaw_DegradesToRaw(t *testing.T) {
	n := ParseOrRaw([]byte("Bad Gateway"))
	raw, ok := n.Get("raw").Str()
	if !ok || raw != "Bad Gateway" {
		t.Fatalf("raw = %q, ok=%v", raw, ok)
	}
}

func TestNilSafety(t *testing.T) {
	var n *Node
	if !n.IsNull() || n.Get("a") != nil || n.Items() != nil || n.Len() != 0 || n.Truthy() {
		t.Fatal("nil node should behave as null")
	}
	if n.String() != "null" {
		t.Fatalf("nil String() = %q", n.String())
	}
	called := false
	Walk(nil, func(*Node) { called = true })
	if called {
		t.Fatal("Walk(nil) must not visit")
	}
}

func TestTruthy(t *testing.T) {
	cases := []struct {
		name string
		node *Node
		want bool
	}{
		{"empty string", String(""), false},
		{"string", String("SAFETY"), true},
		{"zero", Number("0"), false},
		{"number", Number("3"), true},
		{"false", Bool(false), false},
		{"true", Bool(true), true},
		{"empty seq", Seq(), false},
		{"seq", Seq(Null()), true},
		{"empty map", Map(), false},
		{"map", Map(F("a", Null())), true},
		{"null", Null(), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.node.Truthy(); got != tc.want {
				t.Fatalf("Truthy() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestWalk_PreOrder(t *testing.T) {
	tree := Map(
		F("a", String("1")),
		F("b", Seq(String("2"), Map(F("c", String("3"))))),
		F("d", String("4")),
	)
	var got []string
	Walk(tree, func(n *Node) {
		if s, ok := n.Str(); ok {
			got = append(got, s)
		}
	})
	want := []string{"1", "2", "3", "4"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
