package lesson

import "testing"

func TestPlainText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "plain paragraph",
			in:   "Learning English is fun.",
			want: "Learning English is fun.",
		},
		{
			name: "emphasis and links",
			in:   "Hello *world*. This is [a link](https://example.com).",
			want: "Hello world. This is a link.",
		},
		{
			name: "heading and code block",
			in:   "# Lesson\n\nRead this.\n\n```go\nfmt.Println(1)\n```\n",
			want: "Lesson\nRead this.",
		},
		{
			name: "list items",
			in:   "- First item.\n- Second item.\n",
			want: "First item.\nSecond item.",
		},
		{
			name: "soft line breaks join",
			in:   "One line\nsame paragraph.",
			want: "One line same paragraph.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PlainText([]byte(tt.in))
			if err != nil {
				t.Fatalf("PlainText failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestIsMarkdownFile(t *testing.T) {
	if !IsMarkdownFile("notes/README.MD") {
		t.Error("Expected .MD to be markdown")
	}
	if IsMarkdownFile("passage.txt") {
		t.Error("Expected .txt not to be markdown")
	}
}
