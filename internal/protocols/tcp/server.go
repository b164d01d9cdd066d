package tcp

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"carboniq/internal/metrics"
	"carboniq/internal/tcp"
	"carboniq/pkg/logger"
	"carboniq/pkg/models"
)

// EventSubmitter queues report events for asynchronous processing
type EventSubmitter interface {
	Submit(ev models.ReportCreated) error
}

// Server accepts ReportCreated frames from trusted internal producers and
// hands them to the reward dispatcher
type Server struct {
	addr      string
	events    EventSubmitter
	rateLimit rate.Limit
	burst     int
	idle      time.Duration

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	stop     chan struct{}
	wg       sync.WaitGroup
}

// NewServer creates an ingest server. framesPerSecond bounds each
// connection; 0 disables the limit.
func NewServer(addr string, events EventSubmitter, framesPerSecond float64) *Server {
	limit := rate.Inf
	burst := 0
	if framesPerSecond > 0 {
		limit = rate.Limit(framesPerSecond)
		burst = int(framesPerSecond)
		if burst < 1 {
			burst = 1
		}
	}
	return &Server{
		addr:      addr,
		events:    events,
		rateLimit: limit,
		burst:     burst,
		idle:      2 * time.Minute,
		conns:     make(map[net.Conn]struct{}),
		stop:      make(chan struct{}),
	}
}

// Start listens and accepts connections in the background
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("tcp listen failed on %s: %w", s.addr, err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	logger.Infof("TCP ingest listening on %s", listener.Addr())

	s.wg.Add(1)
	go s.acceptLoop(listener)
	return nil
}

// Addr is the bound listen address, useful when started on port 0
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Stop closes the listener and every open connection, then waits for handlers
func (s *Server) Stop() {
	s.mu.Lock()
	select {
	case <-s.stop:
		s.mu.Unlock()
		return
	default:
	}
	close(s.stop)
	if s.listener != nil {
		s.listener.Close()
	}
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	logger.Info("TCP ingest stopped")
}

func (s *Server) acceptLoop(listener net.Listener) {
	defer s.wg.Done()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-s.stop:
				return
			default:
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			logger.Errorf("TCP accept error: %v", err)
			return
		}

		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

// handleConnection reads frames until the peer disconnects or sends a frame
// that breaks framing. Bad payloads are answered and the stream continues.
func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("TCP handler panic recovered: %v", r)
		}
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	client := conn.RemoteAddr().String()
	limiter := rate.NewLimiter(s.rateLimit, s.burst)
	reader := bufio.NewReader(conn)

	for {
		conn.SetReadDeadline(time.Now().Add(s.idle))
		data, err := tcp.ReadFrame(reader, tcp.MaxFrameSize)
		if err != nil {
			var netErr net.Error
			if errors.Is(err, io.EOF) || (errors.As(err, &netErr) && netErr.Timeout()) {
				return
			}
			metrics.TCPFrames.WithLabelValues("malformed").Inc()
			logger.Warnf("TCP closing %s: %v", client, err)
			if errors.Is(err, models.ErrTCPFrameTooLarge) || errors.Is(err, models.ErrInvalidInput) {
				s.reply(conn, tcp.Ack{Status: tcp.StatusError, Code: models.ErrCodeTCPFrameInvalid, Message: err.Error()})
			}
			return
		}

		if !limiter.Allow() {
			metrics.TCPFrames.WithLabelValues("rate_limited").Inc()
			s.reply(conn, tcp.Ack{Status: tcp.StatusError, Code: models.ErrCodeServiceUnavailable, Message: models.ErrTCPRateLimited.Error()})
			continue
		}

		var ev models.ReportCreated
		if err := json.Unmarshal(data, &ev); err != nil {
			metrics.TCPFrames.WithLabelValues("invalid").Inc()
			s.reply(conn, tcp.Ack{Status: tcp.StatusError, Code: models.ErrCodeValidation, Message: "invalid event format"})
			continue
		}

		if err := s.events.Submit(ev); err != nil {
			code := models.ErrCodeInternal
			switch {
			case errors.Is(err, models.ErrInvalidInput):
				code = models.ErrCodeValidation
				metrics.TCPFrames.WithLabelValues("invalid").Inc()
			case errors.Is(err, models.ErrQueueFull):
				code = models.ErrCodeServiceUnavailable
				metrics.TCPFrames.WithLabelValues("rejected").Inc()
			}
			s.reply(conn, tcp.Ack{Status: tcp.StatusError, Code: code, Message: err.Error(), SourceReportID: ev.SourceReportID})
			continue
		}

		metrics.TCPFrames.WithLabelValues("accepted").Inc()
		logger.TCP("report_created", ev.UserID, 1)
		s.reply(conn, tcp.Ack{Status: tcp.StatusAccepted, SourceReportID: ev.SourceReportID})
	}
}

func (s *Server) reply(conn net.Conn, ack tcp.Ack) {
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := tcp.WriteFrame(conn, ack); err != nil {
		logger.Warnf("TCP reply to %s failed: %v", conn.RemoteAddr(), err)
	}
}
