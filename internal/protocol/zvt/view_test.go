package zvt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUnitView(t *testing.T) {
	p := NewParser(nil, Options{})

	t.Run("授权数据项提前停止", func(t *testing.T) {
		payload := []byte{AuthTagAmount, 0, 0, 0, 0, 0x01, 0x00, AuthTagCardNum, 0xF0}
		u, err := p.ParseUnit(BuildUnit(CtrlAuthorisation, payload), 0)
		require.NoError(t, err)

		v := NewUnitView(nil, u)
		assert.Equal(t, "0x0601", v.Control)
		assert.Equal(t, "ECR", v.Source)
		assert.Equal(t, "PT", v.Destination)
		require.Len(t, v.Fields, 1)
		assert.Equal(t, "0x04", v.Fields[0].Tag)
		assert.Equal(t, "000000000100", v.Fields[0].Value)
		assert.Contains(t, v.FieldsStop, "variable_length_tag")
		assert.Equal(t, "22f0", v.Unparsed)
	})

	t.Run("短状态应答", func(t *testing.T) {
		u, err := p.ParseUnit([]byte{StatusMarkerError, 0x6C, 0x00}, 0)
		require.NoError(t, err)
		v := NewUnitView(nil, u)
		assert.Empty(t, v.Control)
		assert.Equal(t, "Negative Completion", v.Name)
		require.NotNil(t, v.Status)
		assert.Equal(t, "0x6C", v.Status.APRC)
		assert.Equal(t, "unknown", v.Direction)
	})
}

func TestNewFrameView(t *testing.T) {
	p := NewParser(nil, Options{})
	raw := append([]byte{ACK}, BuildSerial(BuildUnit(CtrlDiag, nil), 0xA1B2)...)

	d := NewStreamDecoder(p, 0)
	frames, err := d.Feed(raw)
	require.NoError(t, err)
	require.Len(t, frames, 2)

	hs := NewFrameView(nil, frames[0])
	assert.Equal(t, "serial_handshake", hs.Transport)
	assert.Equal(t, "06", hs.Raw)
	assert.Nil(t, hs.Unit)

	fv := NewFrameView(nil, frames[1])
	assert.Equal(t, "0xA1B2", fv.CRC)
	require.NotNil(t, fv.Unit)
	assert.Equal(t, "Diagnosis", fv.Unit.Name)
	assert.Equal(t, "10020670001003b2a1", fv.Raw)
}
