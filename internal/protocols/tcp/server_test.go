package tcp

import (
	"context"
	"encoding/binary"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carboniq/internal/tcp"
	"carboniq/pkg/models"
)

type fakeSubmitter struct {
	mu     sync.Mutex
	events []models.ReportCreated
	err    error
}

func (f *fakeSubmitter) Submit(ev models.ReportCreated) error {
	ev.Normalize()
	if err := ev.Validate(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeSubmitter) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func startServer(t *testing.T, events EventSubmitter, rateLimit float64) *Server {
	t.Helper()
	s := NewServer("127.0.0.1:0", events, rateLimit)
	require.NoError(t, s.Start())
	t.Cleanup(s.Stop)
	return s
}

func dial(t *testing.T, s *Server) *tcp.Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, err := tcp.Dial(ctx, s.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func event(reportID string) models.ReportCreated {
	return models.ReportCreated{
		UserID:         "alice",
		SourceReportID: reportID,
		Timestamp:      time.Date(2025, 3, 3, 9, 30, 0, 0, time.UTC),
		WasteType:      models.WasteOrganic,
	}
}

func TestServer_AcceptsReports(t *testing.T) {
	events := &fakeSubmitter{}
	s := startServer(t, events, 0)
	c := dial(t, s)

	for _, id := range []string{"r1", "r2", "r3"} {
		ack, err := c.Send(event(id))
		require.NoError(t, err)
		assert.Equal(t, tcp.StatusAccepted, ack.Status)
		assert.Equal(t, id, ack.SourceReportID)
	}

	events.mu.Lock()
	defer events.mu.Unlock()
	require.Len(t, events.events, 3)
	assert.Equal(t, "r2", events.events[1].SourceReportID)
}

func TestServer_RejectsInvalidEventsAndContinues(t *testing.T) {
	events := &fakeSubmitter{}
	s := startServer(t, events, 0)
	c := dial(t, s)

	ack, err := c.Send(models.ReportCreated{UserID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, tcp.StatusError, ack.Status)
	assert.Equal(t, models.ErrCodeValidation, ack.Code)

	events.setErr(models.ErrQueueFull)
	ack, err = c.Send(event("r1"))
	require.NoError(t, err)
	assert.Equal(t, models.ErrCodeServiceUnavailable, ack.Code)

	events.setErr(nil)
	ack, err = c.Send(event("r2"))
	require.NoError(t, err)
	assert.Equal(t, tcp.StatusAccepted, ack.Status)
}

func TestServer_RateLimitsPerConnection(t *testing.T) {
	s := startServer(t, &fakeSubmitter{}, 1)
	c := dial(t, s)

	ack, err := c.Send(event("r1"))
	require.NoError(t, err)
	assert.Equal(t, tcp.StatusAccepted, ack.Status)

	ack, err = c.Send(event("r2"))
	require.NoError(t, err)
	assert.Equal(t, tcp.StatusError, ack.Status)
	assert.Contains(t, ack.Message, "rate limit")

	// a second connection has its own budget
	other := dial(t, s)
	ack, err = other.Send(event("r3"))
	require.NoError(t, err)
	assert.Equal(t, tcp.StatusAccepted, ack.Status)
}

func TestServer_ClosesOnOversizedFrame(t *testing.T) {
	s := startServer(t, &fakeSubmitter{}, 0)

	conn, err := net.DialTimeout("tcp", s.Addr(), 2*time.Second)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(2 * time.Second))

	require.NoError(t, binary.Write(conn, binary.BigEndian, uint32(tcp.MaxFrameSize+1)))
	data, err := tcp.ReadFrame(conn, tcp.MaxFrameSize)
	require.NoError(t, err)
	assert.Contains(t, string(data), models.ErrCodeTCPFrameInvalid)

	_, err = tcp.ReadFrame(conn, tcp.MaxFrameSize)
	assert.Error(t, err, "server closed the connection")
}
