// Package tcp serves the policy store's command protocol over raw TCP.
//
// Each connection carries exactly one JSON request object with a "cmd"
// member. The server writes one JSON response and closes the connection.
package tcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"frost/internal/policy/models"
	rlmodels "frost/internal/ratelimit/models"
	"frost/pkg/requestcontext"
)

const (
	CmdAddPolicy       = "addPolicy"
	CmdGetPolicy       = "getPolicy"
	CmdGetPolicyList   = "getPolicyList"
	CmdClearPolicyList = "clearPolicyList"
)

const (
	defaultReadTimeout    = 30 * time.Second
	defaultWriteTimeout   = 10 * time.Second
	defaultMaxRequestSize = 1 << 20

	transportTCP = "tcp"
)

// Service defines the policy store operations served over TCP.
type Service interface {
	Publish(ctx context.Context, req models.PublishRequest) (*models.Result, error)
	Retrieve(ctx context.Context, policyID string) (*models.Result, error)
	ListIDs(ctx context.Context, deviceID, clientFingerprint string) (*models.Result, error)
	ClearAll(ctx context.Context, deviceID string) (*models.Result, error)
}

// Request is the union of the fields every command reads.
type Request struct {
	Cmd           string          `json:"cmd"`
	Policy        json.RawMessage `json:"policy,omitempty"`
	Owner         string          `json:"owner,omitempty"`
	DeviceID      string          `json:"deviceId,omitempty"`
	Signature     string          `json:"signature,omitempty"`
	PolicyID      string          `json:"policyId,omitempty"`
	PolicyStoreID string          `json:"policyStoreId,omitempty"`
}

// RateLimiter counts requests per client address.
type RateLimiter interface {
	Allow(ctx context.Context, transport, client string) (*rlmodels.Result, error)
}

type commandFunc func(ctx context.Context, req *Request) (any, error)

// Server accepts connections and dispatches their command to the service.
type Server struct {
	service        Service
	logger         *slog.Logger
	commands       map[string]commandFunc
	readTimeout    time.Duration
	writeTimeout   time.Duration
	maxRequestSize int64
	limiter        RateLimiter

	activeConnections sync.WaitGroup
}

type Option func(*Server)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithTimeouts bounds how long a client may take to send its request and
// to receive the response.
func WithTimeouts(read, write time.Duration) Option {
	return func(s *Server) {
		if read > 0 {
			s.readTimeout = read
		}
		if write > 0 {
			s.writeTimeout = write
		}
	}
}

func WithMaxRequestSize(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxRequestSize = n
		}
	}
}

// WithRateLimiter rejects requests from clients over their limit. A failing
// limiter lets requests through.
func WithRateLimiter(l RateLimiter) Option {
	return func(s *Server) {
		s.limiter = l
	}
}

func NewServer(service Service, opts ...Option) *Server {
	s := &Server{
		service:        service,
		logger:         slog.Default(),
		readTimeout:    defaultReadTimeout,
		writeTimeout:   defaultWriteTimeout,
		maxRequestSize: defaultMaxRequestSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.commands = map[string]commandFunc{
		CmdAddPolicy:       s.addPolicy,
		CmdGetPolicy:       s.getPolicy,
		CmdGetPolicyList:   s.getPolicyList,
		CmdClearPolicyList: s.clearPolicyList,
	}
	return s
}

// ListenAndServe listens on addr and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.Serve(ctx, listener)
}

// Serve accepts connections on listener until ctx is cancelled, then waits
// for in-flight requests to finish. It closes the listener on return.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	defer listener.Close()

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	s.logger.InfoContext(ctx, "tcp server listening", "addr", listener.Addr().String())

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.ErrorContext(ctx, "accept failed", "error", err)
			continue
		}

		s.activeConnections.Add(1)
		go func() {
			defer s.activeConnections.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.activeConnections.Wait()
	return nil
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	ctx = requestcontext.WithRequestID(ctx, uuid.NewString())
	ctx = requestcontext.WithTime(ctx, time.Now())
	if host, _, err := net.SplitHostPort(conn.RemoteAddr().String()); err == nil {
		ctx = requestcontext.WithClientIP(ctx, host)
	}

	_ = conn.SetReadDeadline(time.Now().Add(s.readTimeout))

	var raw json.RawMessage
	if err := json.NewDecoder(io.LimitReader(conn, s.maxRequestSize)).Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return
		}
		s.logger.WarnContext(ctx, "malformed request",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		s.write(ctx, conn, errorResponse{Error: models.MsgMalformedJSON})
		return
	}

	if !s.allow(ctx) {
		s.write(ctx, conn, rejection(rlmodels.MsgTooManyRequests))
		return
	}
	s.write(ctx, conn, s.Dispatch(ctx, raw))
}

func (s *Server) allow(ctx context.Context) bool {
	if s.limiter == nil {
		return true
	}
	client := requestcontext.ClientIP(ctx)
	result, err := s.limiter.Allow(ctx, transportTCP, client)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to check rate limit",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return true
	}
	if !result.Allowed {
		s.logger.WarnContext(ctx, "rate limit exceeded",
			"request_id", requestcontext.RequestID(ctx),
			"client_ip", client,
		)
	}
	return result.Allowed
}

// Dispatch runs the command in raw and returns the response value.
func (s *Server) Dispatch(ctx context.Context, raw json.RawMessage) any {
	requestID := requestcontext.RequestID(ctx)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || len(fields) == 0 {
		return rejection(models.MsgMissingBody)
	}
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		s.logger.WarnContext(ctx, "request fields of the wrong type",
			"request_id", requestID,
			"error", err,
		)
		return rejection(models.MsgMalformedJSON)
	}
	if req.Cmd == "" {
		return rejection(models.MsgMissingCommand)
	}
	command, ok := s.commands[req.Cmd]
	if !ok {
		return rejection(models.MsgUnsupportedCommand)
	}

	response, err := command(ctx, &req)
	if err != nil {
		s.logger.WarnContext(ctx, "command rejected",
			"request_id", requestID,
			"cmd", req.Cmd,
			"error", err,
		)
		return rejectionFor(err)
	}
	s.logger.InfoContext(ctx, "command handled",
		"request_id", requestID,
		"cmd", req.Cmd,
	)
	return response
}

func (s *Server) write(ctx context.Context, conn net.Conn, response any) {
	_ = conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	if err := json.NewEncoder(conn).Encode(response); err != nil {
		s.logger.DebugContext(ctx, "failed to write response",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
}
