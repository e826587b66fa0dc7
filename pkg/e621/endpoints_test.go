package e621

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePoolID(t *testing.T) {
	tests := []struct {
		input   string
		want    int
		wantErr bool
	}{
		{"1234", 1234, false},
		{"  1234\n", 1234, false},
		{"https://e621.net/pools/1234", 1234, false},
		{"https://e621.net/pools/1234/", 1234, false},
		{"https://e621.net/pools/1234.json", 1234, false},
		{"https://e621.net/pools/1234?page=2", 1234, false},
		{"e621.net/pools/1234", 1234, false},
		{"/pools/77", 77, false},
		{"", 0, true},
		{"0", 0, true},
		{"-5", 0, true},
		{"abc", 0, true},
		{"https://e621.net/posts/1234", 0, true},
		{"https://e621.net/pools/abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParsePoolID(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPoolURL(t *testing.T) {
	assert.Equal(t, "https://e621.net/pools/12", PoolURL("https://e621.net/", 12))
}

func TestSelectArtist(t *testing.T) {
	assert.Equal(t, "artist_a", SelectArtist([]string{"avoid_posting", "artist_a", "artist_b"}))
	assert.Equal(t, UnknownArtist, SelectArtist([]string{"epilepsy_warning", "unknown_artist"}))
	assert.Equal(t, UnknownArtist, SelectArtist(nil))
}
