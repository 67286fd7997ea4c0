package zvt

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUnit_AuthorisationEmpty(t *testing.T) {
	p := NewParser(nil, Options{})
	u, err := p.ParseUnit([]byte{0x06, 0x01, 0x00}, 0)
	require.NoError(t, err)

	assert.Equal(t, CtrlAuthorisation, u.Control)
	assert.Equal(t, DirectionECRToPT, u.Direction)
	assert.Equal(t, AddrECR, u.Source())
	assert.Equal(t, AddrPT, u.Destination())
	assert.Empty(t, u.Payload)
	assert.Equal(t, 3, u.Size)
	require.NotNil(t, u.Auth)
	assert.Empty(t, u.Auth.Fields)
	assert.Equal(t, StopEnd, u.Auth.Stop)
}

func TestParseUnit_ExtendedLength(t *testing.T) {
	p := NewParser(nil, Options{})
	u, err := p.ParseUnit([]byte{0x04, 0x0F, 0xFF, 0x00, 0x02, 0xAA, 0xBB}, 0)
	require.NoError(t, err)

	assert.Equal(t, CtrlStatus, u.Control)
	assert.Equal(t, 2, u.LengthField)
	assert.Equal(t, 3, u.LengthWidth)
	assert.Equal(t, []byte{0xAA, 0xBB}, u.Payload)
	assert.Equal(t, 7, u.Size)
	assert.Equal(t, DirectionPTToECR, u.Direction)
}

func TestParseUnit_LengthWidth(t *testing.T) {
	p := NewParser(nil, Options{})

	t.Run("一字节长度", func(t *testing.T) {
		for _, l := range []int{0, 1, 100, 254} {
			raw := BuildUnit(CtrlPrintLine, bytes.Repeat([]byte{0x41}, l))
			u, err := p.ParseUnit(raw, 0)
			require.NoError(t, err)
			assert.Equal(t, 1, u.LengthWidth)
			assert.Equal(t, l, u.LengthField)
			assert.Equal(t, 3+l, u.Size)
		}
	})

	t.Run("扩展长度", func(t *testing.T) {
		for _, l := range []int{255, 256, 1000, 0xFFFF} {
			raw := BuildUnit(CtrlPrintLine, bytes.Repeat([]byte{0x41}, l))
			assert.Equal(t, byte(0xFF), raw[2])
			u, err := p.ParseUnit(raw, 0)
			require.NoError(t, err)
			assert.Equal(t, 3, u.LengthWidth)
			assert.Equal(t, l, u.LengthField)
			assert.Equal(t, 5+l, u.Size)
		}
	})
}

func TestParseUnit_NeedMore(t *testing.T) {
	p := NewParser(nil, Options{})
	cases := map[string][]byte{
		"空":       {},
		"不足最小长度":  {0x06, 0x01},
		"负载不完整":   {0x06, 0xD1, 0x03, 0x41, 0x42},
		"扩展长度不完整": {0x04, 0x0F, 0xFF, 0x00},
		"扩展负载不完整": {0x04, 0x0F, 0xFF, 0x00, 0x02, 0xAA},
		"短状态仅两字节": {0x80, 0x00},
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := p.ParseUnit(raw, 0)
			assert.ErrorIs(t, err, ErrNeedMore)
		})
	}
}

func TestParseUnit_Offset(t *testing.T) {
	p := NewParser(nil, Options{})
	raw := append([]byte{0x80, 0x00}, 0x06, 0x1E, 0x01, 0x6C)

	u, err := p.ParseUnit(raw, 2)
	require.NoError(t, err)
	assert.Equal(t, CtrlAbort, u.Control)
	assert.Equal(t, []byte{0x6C}, u.Payload)

	_, err = p.ParseUnit(raw, len(raw)+1)
	assert.ErrorIs(t, err, ErrNotZVT)
	_, err = p.ParseUnit(raw, -1)
	assert.ErrorIs(t, err, ErrNotZVT)
}

func TestParseUnit_ShortStatus(t *testing.T) {
	t.Run("无长度字段", func(t *testing.T) {
		p := NewParser(nil, Options{})
		u, err := p.ParseUnit([]byte{0x84, 0x6F, 0x06, 0x0F, 0x00}, 0)
		require.NoError(t, err)
		assert.True(t, u.IsStatus())
		assert.Equal(t, StatusMarkerError, u.CCRC)
		assert.Equal(t, byte(0x6F), u.APRC)
		assert.Equal(t, 2, u.Size)
		assert.Equal(t, 0, u.LengthWidth)
		assert.Empty(t, u.Payload)
		assert.Equal(t, DirectionUnknown, u.Direction)
	})

	t.Run("带长度字段", func(t *testing.T) {
		p := NewParser(nil, Options{StatusLengthField: true})
		u, err := p.ParseUnit([]byte{0x80, 0x00, 0x01, 0x09}, 0)
		require.NoError(t, err)
		assert.True(t, u.IsStatus())
		assert.Equal(t, 1, u.LengthWidth)
		assert.Equal(t, []byte{0x09}, u.Payload)
		assert.Equal(t, 4, u.Size)

		_, err = p.ParseUnit([]byte{0x80, 0x00, 0x02, 0x09}, 0)
		assert.ErrorIs(t, err, ErrNeedMore)
	})
}

func TestParseUnit_UnknownControl(t *testing.T) {
	p := NewParser(nil, Options{})
	u, err := p.ParseUnit([]byte{0x06, 0xB0, 0x00}, 0)
	require.NoError(t, err)
	assert.Equal(t, ControlCode(0x06B0), u.Control)
	assert.Equal(t, DirectionUnknown, u.Direction)
	assert.Equal(t, PayloadOpaque, u.Kind)
	assert.Equal(t, "Unknown 0x6b0", p.Registry().Name(u.Control))
}

func TestParseUnit_StrictMinLength(t *testing.T) {
	raw := []byte{0x06, 0x00, 0x02, 0x00, 0x00}

	lenient := NewParser(nil, Options{})
	u, err := lenient.ParseUnit(raw, 0)
	require.NoError(t, err)
	assert.Equal(t, CtrlRegistration, u.Control)

	strict := NewParser(nil, Options{StrictMinLength: true})
	_, err = strict.ParseUnit(raw, 0)
	assert.ErrorIs(t, err, ErrNotZVT)

	ok := BuildUnit(CtrlRegistration, []byte{0x00, 0x00, 0x00, 0x00})
	_, err = strict.ParseUnit(ok, 0)
	assert.NoError(t, err)
}

func TestParseUnit_Idempotent(t *testing.T) {
	p := NewParser(nil, Options{})
	raw := BuildUnit(CtrlAuthorisation, []byte{0x04, 0, 0, 0, 0, 0x10, 0x00, 0x49, 0x09, 0x78})
	first, err := p.ParseUnit(raw, 0)
	require.NoError(t, err)
	second, err := p.ParseUnit(raw, 0)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestParseUnit_PayloadIsView(t *testing.T) {
	p := NewParser(nil, Options{})
	raw := BuildUnit(CtrlPrintLine, []byte{0x01, 0x02})
	u, err := p.ParseUnit(raw, 0)
	require.NoError(t, err)
	raw[3] = 0x7F
	assert.Equal(t, byte(0x7F), u.Payload[0])
}
