package chain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAddress(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{
			name: "short form is padded",
			in:   "0x2",
			want: "0x" + strings.Repeat("0", 63) + "2",
		},
		{
			name: "upper case is lowered",
			in:   "0xAB",
			want: "0x" + strings.Repeat("0", 62) + "ab",
		},
		{
			name: "full width unchanged",
			in:   "0x" + strings.Repeat("1", 64),
			want: "0x" + strings.Repeat("1", 64),
		},
		{
			name: "prefix optional",
			in:   "ff",
			want: "0x" + strings.Repeat("0", 62) + "ff",
		},
		{
			name:    "empty",
			in:      "",
			wantErr: true,
		},
		{
			name:    "non hex",
			in:      "0xzz",
			wantErr: true,
		},
		{
			name:    "too long",
			in:      "0x" + strings.Repeat("1", 65),
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeAddress(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, Address(tt.want), got)
		})
	}
}

func TestNormalizeTarget(t *testing.T) {
	got, err := NormalizeTarget("0x2::coin::transfer")
	require.NoError(t, err)
	assert.Equal(t, "0x"+strings.Repeat("0", 63)+"2::coin::transfer", got)

	_, err = NormalizeTarget("0x2::coin")
	assert.Error(t, err)
	_, err = NormalizeTarget("0x2::::transfer")
	assert.Error(t, err)
	_, err = NormalizeTarget("bogus::coin::transfer")
	assert.Error(t, err)
}
