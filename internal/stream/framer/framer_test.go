package framer

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/objection-go/pkg/util/merr"
)

func TestLengthPrefixedFramer(t *testing.T) {
	f := NewLengthPrefixedFramer(0)
	var buf bytes.Buffer
	require.NoError(t, f.WriteFrame(&buf, &Frame{Flags: 3, Payload: []byte("abc")}))
	require.NoError(t, f.WriteFrame(&buf, &Frame{}))
	assert.Equal(t, []byte{0, 0, 0, 4, 3, 'a', 'b', 'c', 0, 0, 0, 1, 0}, buf.Bytes())

	frame, err := f.ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, uint8(3), frame.Flags)
	assert.Equal(t, []byte("abc"), frame.Payload)

	frame, err = f.ReadFrame(&buf)
	require.NoError(t, err)
	assert.Empty(t, frame.Payload)

	_, err = f.ReadFrame(&buf)
	assert.ErrorIs(t, err, merr.ErrIoUnexpectEOF)
}

func TestLengthPrefixedFramerLimits(t *testing.T) {
	f := NewLengthPrefixedFramer(4)
	assert.ErrorIs(t, f.WriteFrame(&bytes.Buffer{}, &Frame{Payload: []byte("abcd")}), merr.ErrParameterTooLarge)
	assert.ErrorIs(t, f.WriteFrame(&bytes.Buffer{}, nil), merr.ErrParameterInvalid)

	_, err := f.ReadFrame(bytes.NewReader([]byte{0, 0, 1, 0}))
	assert.ErrorIs(t, err, merr.ErrParameterTooLarge)

	_, err = f.ReadFrame(bytes.NewReader([]byte{0, 0, 0, 0}))
	assert.ErrorIs(t, err, merr.ErrIoCorrupted)

	_, err = f.ReadFrame(bytes.NewReader([]byte{0, 0, 0, 3, 1}))
	assert.ErrorIs(t, err, merr.ErrIoUnexpectEOF)
}
