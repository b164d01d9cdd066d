package tcp

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carboniq/pkg/models"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, Ack{Status: StatusAccepted, SourceReportID: "r1"}))

	length := binary.BigEndian.Uint32(buf.Bytes()[:4])
	assert.Equal(t, int(length), buf.Len()-4)

	data, err := ReadFrame(&buf, MaxFrameSize)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"accepted","source_report_id":"r1"}`, string(data))
}

func TestReadFrame_Rejects(t *testing.T) {
	var zero bytes.Buffer
	binary.Write(&zero, binary.BigEndian, uint32(0))
	_, err := ReadFrame(&zero, MaxFrameSize)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	var big bytes.Buffer
	binary.Write(&big, binary.BigEndian, uint32(MaxFrameSize+1))
	_, err = ReadFrame(&big, MaxFrameSize)
	assert.ErrorIs(t, err, models.ErrTCPFrameTooLarge)

	var short bytes.Buffer
	binary.Write(&short, binary.BigEndian, uint32(10))
	short.WriteString("abc")
	_, err = ReadFrame(&short, MaxFrameSize)
	assert.Error(t, err)
}

func TestWriteFrame_TooLarge(t *testing.T) {
	var buf bytes.Buffer
	err := WriteFrame(&buf, Ack{Message: string(bytes.Repeat([]byte("x"), MaxFrameSize))})
	assert.ErrorIs(t, err, models.ErrTCPFrameTooLarge)
	assert.Zero(t, buf.Len())
}
