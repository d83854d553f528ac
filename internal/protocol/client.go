package protocol

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"
)

const (
	// DefaultTimeout is the per-request timeout when the caller's context
	// carries no deadline
	DefaultTimeout = 5 * time.Second

	// authHeader carries the pairing token on authenticated requests
	authHeader = "AUTH"

	// maxResponseBody caps response reads; control API payloads are small
	maxResponseBody = 1 << 20
)

// Client dispatches control API requests to a single device.
//
// Devices terminate TLS with self-issued certificates, so certificate
// chain verification is disabled while the transport remains encrypted.
// The client is stateless apart from connection pooling and is safe for
// concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a dispatcher for the device at host:port
func NewClient(host string, port int) *Client {
	return &Client{
		baseURL: "https://" + net.JoinHostPort(host, strconv.Itoa(port)),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
	}
}

// NewClientWithURL creates a dispatcher with a full base URL.
// Used by tests to point at a local TLS server.
func NewClientWithURL(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
	}
}

// BaseURL returns the device base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetTimeout sets the fallback per-request timeout
func (c *Client) SetTimeout(timeout time.Duration) {
	c.httpClient.Timeout = timeout
}

// Send issues one control API request and interprets the response.
//
// body is marshalled as the JSON request body when non-nil. token is added
// as the AUTH header only when non-empty; Send never attaches credentials
// on its own. Outcomes map to the error taxonomy:
//
//   - network failure, timeout, cancellation -> *TransportError
//   - unparseable body or missing STATUS envelope -> *ProtocolError
//   - STATUS.RESULT other than success, or bare non-2xx -> *DeviceError
//
// Send never retries; retry policy belongs to the caller.
func (c *Client) Send(ctx context.Context, method, path string, body any, token string) (*Response, error) {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, &ProtocolError{Message: "failed to encode request body", Err: err}
		}
		reqBody = bytes.NewReader(encoded)
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, &ProtocolError{Message: "failed to build request", Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(authHeader, token)
	}

	logRequest(method, url, token != "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransport(ctx, "send", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, classifyTransport(ctx, "read", err)
	}

	return interpret(url, resp.StatusCode, raw)
}

// interpret maps an HTTP status and raw body to a Response or typed error
func interpret(url string, statusCode int, raw []byte) (*Response, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Status == nil {
		// No parseable STATUS envelope. A non-success HTTP status is the
		// device rejecting the request; a success status with an
		// unreadable body is a version mismatch.
		if statusCode < 200 || statusCode > 299 {
			return nil, &DeviceError{
				Code:       fmt.Sprintf("http_%d", statusCode),
				StatusCode: statusCode,
			}
		}
		return nil, &ProtocolError{Message: "response is not a control API envelope", Err: err}
	}

	result := env.Status.result()
	logResponse(url, statusCode, result)

	if result != resultSuccess {
		return nil, &DeviceError{
			Code:       result,
			Detail:     env.Status.Detail,
			StatusCode: statusCode,
		}
	}

	return &Response{env: env}, nil
}
