// internal/services/json_clean_test.go
package services

import (
	"encoding/json"
	"testing"
)

func TestCleanJSONString(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "markdown代码块",
			input: "```json\n{\"a\":1}\n```",
			want:  `{"a":1}`,
		},
		{
			name:  "无语言标记的代码块",
			input: "```\n{\"a\":1}\n```",
			want:  `{"a":1}`,
		},
		{
			name:  "JSON前的解说文字",
			input: `好的，结果如下：{"a":1}`,
			want:  `{"a":1}`,
		},
		{
			name:  "JSON后的解说文字",
			input: `{"a":1}以上就是结果。`,
			want:  `{"a":1}`,
		},
		{
			name:  "数组形式",
			input: `前言[1,2,3]后记`,
			want:  `[1,2,3]`,
		},
		{
			name:  "已经是干净的JSON",
			input: `{"a":{"b":[1,2]}}`,
			want:  `{"a":{"b":[1,2]}}`,
		},
		{
			name:  "完全没有JSON时原样返回",
			input: "抱歉，无法处理。",
			want:  "抱歉，无法处理。",
		},
		{
			name:  "空字符串",
			input: "",
			want:  "",
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := cleanJSONString(c.input)
			if got != c.want {
				t.Errorf("cleanJSONString(%q) = %q, 期望 %q", c.input, got, c.want)
			}
		})
	}
}

// 清洗后的结果必须是可解析的JSON
func TestCleanJSONStringParseable(t *testing.T) {
	inputs := []string{
		"```json\n{\"characters\":[{\"name\":\"小明\"}],\"scenes\":[]}\n```",
		`解析结果：{"plotSummary":"摘要","genre":"冒险"}，请查收。`,
		`{"nested":{"deep":{"list":[{"a":1},{"b":2}]}}}`,
	}

	for _, input := range inputs {
		cleaned := cleanJSONString(input)
		if cleaned == "" {
			t.Errorf("清洗结果为空: %q", input)
			continue
		}
		var v interface{}
		if err := json.Unmarshal([]byte(cleaned), &v); err != nil {
			t.Errorf("清洗结果不可解析: %q → %q: %v", input, cleaned, err)
		}
	}
}

// 全角标点在字符串字面量外被归一化
func TestNormalizeJSONStructure(t *testing.T) {
	got := normalizeJSONStructure(`{"a"：1，"b"：2}`)
	want := `{"a":1,"b":2}`
	if got != want {
		t.Errorf("归一化 = %q, 期望 %q", got, want)
	}

	// 字符串字面量内部的全角标点保持原样
	got = normalizeJSONStructure(`{"a":"你好，世界"}`)
	want = `{"a":"你好，世界"}`
	if got != want {
		t.Errorf("字面量内标点被误改: %q", got)
	}
}
