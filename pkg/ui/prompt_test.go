package ui

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrompterConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"  yes  \n", true},
		{"n\n", false},
		{"\n", false},
		{"maybe\n", false},
		{"y", true},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.input), func(t *testing.T) {
			var out bytes.Buffer
			p := NewPrompter(strings.NewReader(tt.input), &out, false)

			got, err := p.Confirm("Update pool?")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Contains(t, out.String(), "Update pool? [y/N]")
		})
	}
}

func TestPrompterAssumeYes(t *testing.T) {
	var out bytes.Buffer
	p := NewPrompter(strings.NewReader("n\n"), &out, true)

	got, err := p.Confirm("Update pool?")
	require.NoError(t, err)
	assert.True(t, got)

	// input is left unread
	line, err := p.ReadLine("> ")
	require.NoError(t, err)
	assert.Equal(t, "n", line)
}

func TestPrompterSequentialQuestions(t *testing.T) {
	var out bytes.Buffer
	p := NewPrompter(strings.NewReader("y\nn\ny\n"), &out, false)

	var answers []bool
	for i := 0; i < 3; i++ {
		ok, err := p.Confirm("again?")
		require.NoError(t, err)
		answers = append(answers, ok)
	}
	assert.Equal(t, []bool{true, false, true}, answers)
}

func TestPrompterReadPoolArgs(t *testing.T) {
	var out bytes.Buffer
	p := NewPrompter(strings.NewReader("1234, https://e621.net/pools/99  42\n"), &out, false)

	args, err := p.ReadPoolArgs("Pool IDs: ")
	require.NoError(t, err)
	assert.Equal(t, []string{"1234", "https://e621.net/pools/99", "42"}, args)
	assert.Equal(t, "Pool IDs: ", out.String())

	_, err = p.ReadPoolArgs("Pool IDs: ")
	assert.ErrorIs(t, err, io.EOF)
}

func TestSplitPoolArgs(t *testing.T) {
	assert.Empty(t, SplitPoolArgs("   "))
	assert.Equal(t, []string{"1", "2"}, SplitPoolArgs("1,2"))
	assert.Equal(t, []string{"1", "2"}, SplitPoolArgs("\t1 ,, 2 "))
}
