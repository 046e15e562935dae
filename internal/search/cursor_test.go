package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursor_EncodeDecode_RoundTripsExactly(t *testing.T) {
	orig := Cursor{
		Prefix:  "a/",
		Keyword: "golang schedulers",
		Key:     "a/weird key&=?.md",
		Count:   25,
		Offset:  75,
	}

	decoded, err := DecodeCursor(orig.Encode())

	require.NoError(t, err)
	assert.Equal(t, orig, decoded)
}

func TestCursor_Decode_EmptyTokenIsStartOfWalk(t *testing.T) {
	c, err := DecodeCursor("")

	require.NoError(t, err)
	assert.Equal(t, Cursor{}, c)
}

func TestCursor_Decode_MalformedTokens(t *testing.T) {
	cases := []struct {
		name  string
		token string
	}{
		{"not base64", "!!!not-base64!!!"},
		{"negative count", Cursor{Count: -1}.Encode()},
		{"negative offset", Cursor{Offset: -2}.Encode()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeCursor(tc.token)
			assert.ErrorIs(t, err, ErrInvalidCursor)
		})
	}
}

func TestCursor_Encode_OmitsEmptyFields(t *testing.T) {
	token := Cursor{Count: 10}.Encode()

	decoded, err := DecodeCursor(token)

	require.NoError(t, err)
	assert.Empty(t, decoded.Prefix)
	assert.Empty(t, decoded.Keyword)
	assert.Empty(t, decoded.Key)
	assert.Equal(t, 10, decoded.Count)
}
