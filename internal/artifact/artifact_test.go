package artifact

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var pythonTags = []string{"python", "python3", "py"}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "fenced with language",
			input: "```python\nprint('hi')\n```",
			want:  "print('hi')\n",
		},
		{
			name:  "bare fence",
			input: "```\nx = 1\n```\n",
			want:  "x = 1\n",
		},
		{
			name:  "stray tag first line",
			input: "python\ndef add(a, b):\n    return a + b",
			want:  "def add(a, b):\n    return a + b\n",
		},
		{
			name:  "tag match is case-insensitive",
			input: "Python3\nx = 1",
			want:  "x = 1\n",
		},
		{
			name:  "prose around block",
			input: "Here is the code:\n\n```py\nimport sys\nprint(sys.argv)\n```\nLet me know!",
			want:  "import sys\nprint(sys.argv)\n",
		},
		{
			name:  "wrapping single backticks",
			input: "`print(1)`",
			want:  "print(1)\n",
		},
		{
			name:  "plain code untouched",
			input: "def main():\n    pass\n",
			want:  "def main():\n    pass\n",
		},
		{
			name:  "inline backticks in unfenced code",
			input: "def fence():\n    return \"```\"\n\nprint(fence())\n",
			want:  "def fence():\n    return \"```\"\n\nprint(fence())\n",
		},
		{
			name:  "inline backticks inside fenced block",
			input: "Here you go:\n```python\ns = \"```\"\nprint(s)\n```",
			want:  "s = \"```\"\nprint(s)\n",
		},
		{
			name:  "crlf line endings",
			input: "```python\r\nx = 1\r\ny = 2\r\n```",
			want:  "x = 1\ny = 2\n",
		},
		{
			name:  "only fences",
			input: "```\n```",
			want:  "",
		},
		{
			name:  "pythonic word is not a tag",
			input: "pythonic = True\n",
			want:  "pythonic = True\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input, pythonTags))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"```python\nprint('hi')\n```",
		"python\npython\nx = 1",
		"``` \n```python\nnested = True\n```\n```",
		"Sure!\n```\nfoo()\n```",
		"   \n\n",
		"def f():\n    return '`'\n",
	}

	for _, in := range inputs {
		once := Normalize(in, pythonTags)
		assert.Equal(t, once, Normalize(once, pythonTags), "input %q", in)
	}
}

func TestNewArtifact(t *testing.T) {
	a := New("main.py", "```python\nprint(1 + 2)\n```", pythonTags)
	assert.Equal(t, "main.py", a.Filename)
	assert.Equal(t, "print(1 + 2)\n", a.Content)
	assert.False(t, a.Empty())

	assert.True(t, New("main.py", "```\n```", pythonTags).Empty())
}
