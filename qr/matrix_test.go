package qr_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/qrkit/qr"
)

var allLevels = []qr.Level{qr.LevelLow, qr.LevelMedium, qr.LevelQuartile, qr.LevelHigh}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want qr.Level
	}{
		{"L", qr.LevelLow},
		{"m", qr.LevelMedium},
		{"Q", qr.LevelQuartile},
		{"h", qr.LevelHigh},
		{"medium", qr.LevelMedium},
		{" High ", qr.LevelHigh},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := qr.ParseLevel(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := qr.ParseLevel("X")
	assert.ErrorIs(t, err, qr.ErrInvalidGeometry)
}

func TestLevel_TextRoundTrip(t *testing.T) {
	t.Parallel()

	var l qr.Level
	require.NoError(t, l.UnmarshalText([]byte("q")))
	assert.Equal(t, qr.LevelQuartile, l)

	text, err := l.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "Q", string(text))

	_, err = qr.Level(9).MarshalText()
	assert.ErrorIs(t, err, qr.ErrInvalidGeometry)
}

func TestGenerateMatrix_SquareForAllLevels(t *testing.T) {
	t.Parallel()

	payloads := []string{
		"",
		"hello",
		"HELLO WORLD 123",
		"0123456789",
		"wc:7f6e504bfad60b485450578e05678ed3e8e8c4751d3c6160be17160d63ec90f9@2?relay-protocol=irn&symKey=587d5484ce2a2a6ee3ba1962fdd7e8588e06200c46823bd18fbd67def96ad303",
		strings.Repeat("a", 500),
	}

	for _, level := range allLevels {
		for _, payload := range payloads {
			m, err := qr.GenerateMatrix(payload, level)
			require.NoError(t, err, "level %s, %d bytes", level, len(payload))
			assert.True(t, m.Square(), "level %s, %d bytes", level, len(payload))
			assert.GreaterOrEqual(t, m.Size(), qr.MinMatrixSize)
			assert.Zero(t, (m.Size()-qr.MinMatrixSize)%4, "side must be 21+4k")
		}
	}
}

func TestGenerateMatrix_EmptyPayloadIsMinimal(t *testing.T) {
	t.Parallel()

	m, err := qr.GenerateMatrix("", qr.LevelMedium)
	require.NoError(t, err)
	assert.Equal(t, qr.MinMatrixSize, m.Size())
}

func TestGenerateMatrix_CapacityExceeded(t *testing.T) {
	t.Parallel()

	payload := strings.Repeat("x", 3000)

	for _, enc := range []qr.Encoder{qr.GoQRCodeEncoder{}, qr.RSCEncoder{}} {
		m, err := enc.Encode(payload, qr.LevelHigh)
		assert.ErrorIs(t, err, qr.ErrCapacityExceeded)
		assert.Nil(t, m)
	}
}

func TestGenerateMatrix_InvalidLevel(t *testing.T) {
	t.Parallel()

	_, err := qr.GenerateMatrix("hello", qr.Level(7))
	assert.ErrorIs(t, err, qr.ErrInvalidGeometry)

	_, err = qr.RSCEncoder{}.Encode("hello", qr.Level(-1))
	assert.ErrorIs(t, err, qr.ErrInvalidGeometry)
}

func TestEncoders_FinderPatternAtOrigin(t *testing.T) {
	t.Parallel()

	// The matrix carries no quiet zone, so the top-left finder starts at
	// (0, 0): a dark 7x7 ring, a light ring and a dark 3x3 core.
	for _, enc := range []qr.Encoder{qr.GoQRCodeEncoder{}, qr.RSCEncoder{}} {
		m, err := enc.Encode("hello", qr.LevelMedium)
		require.NoError(t, err)

		for k := 0; k < qr.FinderSize; k++ {
			assert.True(t, m[0][k], "top edge %d", k)
			assert.True(t, m[6][k], "bottom edge %d", k)
			assert.True(t, m[k][0], "left edge %d", k)
		}
		assert.False(t, m[1][1])
		assert.False(t, m[5][5])
		assert.True(t, m[3][3])
		assert.False(t, m[7][7], "separator")

		last := m.Size() - 1
		assert.True(t, m[0][last], "top-right finder")
		assert.True(t, m[last][0], "bottom-left finder")
	}
}

func TestNewEncoder(t *testing.T) {
	t.Parallel()

	enc, err := qr.NewEncoder("")
	require.NoError(t, err)
	assert.IsType(t, qr.GoQRCodeEncoder{}, enc)

	enc, err = qr.NewEncoder("RSC")
	require.NoError(t, err)
	assert.IsType(t, qr.RSCEncoder{}, enc)

	_, err = qr.NewEncoder("zxing")
	assert.Error(t, err)
}
