package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripCodeFence(t *testing.T) {
	cases := map[string]string{
		`{"a":1}`:                      `{"a":1}`,
		"```json\n{\"a\":1}\n```":      `{"a":1}`,
		"```\n{\"a\":1}\n```":          `{"a":1}`,
		"  ```json\n{\"a\":1}\n```  ":  `{"a":1}`,
		"plain text, no fence at all.": "plain text, no fence at all.",
	}
	for in, want := range cases {
		assert.Equal(t, want, StripCodeFence(in), "input %q", in)
	}
}
