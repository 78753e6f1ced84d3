package tcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"frost/internal/ledger/memory"
	"frost/internal/policy/service"
	"frost/internal/policy/store"
	"frost/internal/ratelimit"
	"frost/internal/ratelimit/store/bucket"
)

type ServerSuite struct {
	suite.Suite
	cancel context.CancelFunc
	done   chan error
	addr   string
}

func TestServerSuite(t *testing.T) {
	suite.Run(t, new(ServerSuite))
}

func (s *ServerSuite) SetupTest() {
	s.start()
}

func (s *ServerSuite) start(opts ...Option) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := service.New(store.NewInMemory(), memory.New(), "TCPSEED", service.WithLogger(logger))
	s.Require().NoError(err)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	s.Require().NoError(err)
	s.addr = listener.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan error, 1)
	opts = append([]Option{WithLogger(logger), WithTimeouts(2*time.Second, 2*time.Second)}, opts...)
	server := NewServer(svc, opts...)
	go func() { s.done <- server.Serve(ctx, listener) }()
}

func (s *ServerSuite) TearDownTest() {
	s.cancel()
	select {
	case err := <-s.done:
		s.NoError(err)
	case <-time.After(2 * time.Second):
		s.Fail("server did not stop")
	}
}

// send writes one raw request and returns the decoded response.
func (s *ServerSuite) send(raw string) map[string]any {
	conn, err := net.Dial("tcp", s.addr)
	s.Require().NoError(err)
	defer conn.Close()

	_, err = conn.Write([]byte(raw))
	s.Require().NoError(err)
	s.Require().NoError(conn.(*net.TCPConn).CloseWrite())

	body, err := io.ReadAll(conn)
	s.Require().NoError(err)
	var resp map[string]any
	s.Require().NoError(json.Unmarshal(body, &resp), string(body))
	return resp
}

const addPolicy = `{"cmd":"addPolicy","policy":{"policy_id":"p1","k":"v"},"owner":"o1","deviceId":"d1","signature":"sig"}`

func (s *ServerSuite) TestPublishRetrieveList() {
	s.Equal(map[string]any{"response": "Policy added successfully."}, s.send(addPolicy))
	s.Equal(map[string]any{"response": "Policy already published."}, s.send(addPolicy))

	doc := s.send(`{"cmd":"getPolicy","policyId":"p1"}`)
	s.Equal("p1", doc["policyId"])
	s.Equal("d1", doc["deviceId"])
	s.Equal(map[string]any{"policy_id": "p1", "k": "v"}, doc["policy"])

	list := s.send(`{"cmd":"getPolicyList","deviceId":"d1","policyStoreId":"0x0"}`)
	s.Equal([]any{"p1"}, list["response"])
	fp, ok := list["policyStoreId"].(string)
	s.Require().True(ok)

	s.Equal(map[string]any{"response": "OK"},
		s.send(`{"cmd":"getPolicyList","deviceId":"d1","policyStoreId":"`+fp+`"}`))
}

func (s *ServerSuite) TestClearPolicyList() {
	s.Equal(map[string]any{"response": "Policy store is empty."},
		s.send(`{"cmd":"clearPolicyList","deviceId":"unknown-device"}`))

	s.send(addPolicy)
	s.Equal(map[string]any{"response": "Deleting all policies."},
		s.send(`{"cmd":"clearPolicyList","deviceId":"d1"}`))
	s.Equal(map[string]any{"response": "Policy not found."},
		s.send(`{"cmd":"getPolicy","policyId":"p1"}`))
}

func (s *ServerSuite) TestRejections() {
	tests := []struct {
		name string
		raw  string
		want map[string]any
	}{
		{"malformed json", `{"cmd":`, map[string]any{"error": "Malformed JSON."}},
		{"empty object", `{}`, map[string]any{"error": true, "message": "Missing body."}},
		{"not an object", `[1,2]`, map[string]any{"error": true, "message": "Missing body."}},
		{"missing command", `{"deviceId":"d1"}`, map[string]any{"error": true, "message": "Missing command."}},
		{"unknown command", `{"cmd":"dropTables"}`, map[string]any{"error": true, "message": "Unsupported command."}},
		{"missing owner", `{"cmd":"addPolicy","policy":{"policy_id":"p1"},"deviceId":"d1","signature":"s"}`,
			map[string]any{"error": true, "message": "Missing owner."}},
		{"missing policy store id", `{"cmd":"getPolicyList","deviceId":"d1"}`,
			map[string]any{"error": true, "message": "Missing policyStoreId."}},
	}
	for _, tc := range tests {
		s.Run(tc.name, func() {
			s.Equal(tc.want, s.send(tc.raw))
		})
	}
}

func (s *ServerSuite) TestSilentClientIsDropped() {
	conn, err := net.Dial("tcp", s.addr)
	s.Require().NoError(err)
	s.Require().NoError(conn.(*net.TCPConn).CloseWrite())

	body, err := io.ReadAll(conn)
	s.Require().NoError(err)
	s.Empty(body)
	conn.Close()
}

func (s *ServerSuite) TestRateLimitedClientIsRejected() {
	s.TearDownTest()
	limiter, err := ratelimit.New(bucket.NewInMemoryBucketStore(), 2, time.Minute)
	s.Require().NoError(err)
	s.start(WithRateLimiter(limiter))

	list := `{"cmd":"getPolicyList","deviceId":"d1","policyStoreId":"0x0"}`
	s.NotContains(s.send(list), "message")
	s.NotContains(s.send(list), "message")
	s.Equal(map[string]any{"error": true, "message": "Too many requests. Please try again later."}, s.send(list))
}
