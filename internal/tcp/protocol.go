// Package tcp implements the length-prefixed JSON framing used by the
// report ingest socket. Each frame is a 4-byte big-endian length followed
// by that many bytes of JSON.
package tcp

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"time"

	"carboniq/pkg/models"
)

// MaxFrameSize bounds a single frame's payload
const MaxFrameSize = 4096

// Ack statuses
const (
	StatusAccepted = "accepted"
	StatusError    = "error"
)

// Ack answers every inbound frame
type Ack struct {
	Status         string `json:"status"`
	Code           string `json:"code,omitempty"`
	Message        string `json:"message,omitempty"`
	SourceReportID string `json:"source_report_id,omitempty"`
}

// ReadFrame reads one frame. A zero length or one over max is rejected
// before the payload is read.
func ReadFrame(r io.Reader, max int) ([]byte, error) {
	var length uint32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return nil, err
	}
	if length == 0 {
		return nil, fmt.Errorf("%w: empty frame", models.ErrInvalidInput)
	}
	if int(length) > max {
		return nil, fmt.Errorf("%w: %d bytes", models.ErrTCPFrameTooLarge, length)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("read frame payload: %w", err)
	}
	return data, nil
}

// WriteFrame encodes v as JSON and writes it as one frame
func WriteFrame(w io.Writer, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	if len(data) > MaxFrameSize {
		return fmt.Errorf("%w: %d bytes", models.ErrTCPFrameTooLarge, len(data))
	}

	buf := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(buf, uint32(len(data)))
	copy(buf[4:], data)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Client sends report events over one persistent connection
type Client struct {
	conn    net.Conn
	timeout time.Duration
}

// Dial connects to an ingest server
func Dial(ctx context.Context, addr string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &Client{conn: conn, timeout: 5 * time.Second}, nil
}

// Send writes one event and waits for its acknowledgement
func (c *Client) Send(ev models.ReportCreated) (Ack, error) {
	c.conn.SetDeadline(time.Now().Add(c.timeout))

	if err := WriteFrame(c.conn, ev); err != nil {
		return Ack{}, err
	}
	data, err := ReadFrame(c.conn, MaxFrameSize)
	if err != nil {
		return Ack{}, fmt.Errorf("read ack: %w", err)
	}

	var ack Ack
	if err := json.Unmarshal(data, &ack); err != nil {
		return Ack{}, fmt.Errorf("parse ack: %w", err)
	}
	return ack, nil
}

// Close closes the connection
func (c *Client) Close() error {
	return c.conn.Close()
}
