package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// TestContext talks to a running frost server over HTTP and TCP and keeps
// the last response for assertions.
type TestContext struct {
	BaseURL string
	TCPAddr string

	client     *http.Client
	lastStatus int
	lastBody   []byte
	vars       map[string]string
}

func NewTestContext(baseURL, tcpAddr string) *TestContext {
	return &TestContext{
		BaseURL: strings.TrimRight(baseURL, "/"),
		TCPAddr: tcpAddr,
		client:  &http.Client{Timeout: 10 * time.Second},
		vars:    map[string]string{},
	}
}

// Reset clears per-scenario state.
func (tc *TestContext) Reset() {
	tc.lastStatus = 0
	tc.lastBody = nil
	tc.vars = map[string]string{}
}

func (tc *TestContext) Do(method, path string, body any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, tc.BaseURL+tc.Expand(path), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := tc.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	tc.lastStatus = resp.StatusCode
	tc.lastBody, err = io.ReadAll(resp.Body)
	return err
}

// SendTCP writes one command and reads the single response.
func (tc *TestContext) SendTCP(command string) error {
	if tc.TCPAddr == "" {
		return fmt.Errorf("FROST_E2E_TCP_ADDR is not set")
	}
	conn, err := net.DialTimeout("tcp", tc.TCPAddr, 5*time.Second)
	if err != nil {
		return err
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(10 * time.Second))

	if _, err := conn.Write([]byte(tc.Expand(command))); err != nil {
		return err
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.CloseWrite()
	}
	tc.lastStatus = 0
	tc.lastBody, err = io.ReadAll(conn)
	return err
}

func (tc *TestContext) GetLastResponseStatus() int {
	return tc.lastStatus
}

func (tc *TestContext) GetLastResponseBody() []byte {
	return tc.lastBody
}

// GetResponseField reads a dotted path such as "data.policyStoreId" from the
// last JSON response.
func (tc *TestContext) GetResponseField(path string) (any, error) {
	var value any
	if err := json.Unmarshal(tc.lastBody, &value); err != nil {
		return nil, fmt.Errorf("response is not JSON: %s", tc.lastBody)
	}
	for _, key := range strings.Split(path, ".") {
		obj, ok := value.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s: not an object in %s", key, tc.lastBody)
		}
		if value, ok = obj[key]; !ok {
			return nil, fmt.Errorf("field %q missing from %s", path, tc.lastBody)
		}
	}
	return value, nil
}

func (tc *TestContext) Set(name, value string) {
	tc.vars[name] = value
}

// Expand replaces {name} placeholders with saved values.
func (tc *TestContext) Expand(s string) string {
	for name, value := range tc.vars {
		s = strings.ReplaceAll(s, "{"+name+"}", value)
	}
	return s
}
