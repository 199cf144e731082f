package connector

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/kevin07696/payment-router/internal/domain"
	"github.com/kevin07696/payment-router/internal/domain/ports"
	"github.com/kevin07696/payment-router/pkg/resilience"
)

// maxResponseBytes caps how much of a connector reply is read into memory
const maxResponseBytes = 4 << 20

// Sender performs the network round trip for a built request
type Sender interface {
	Send(ctx context.Context, req *Request) (*Response, error)
}

// HTTPSender sends requests over HTTP with one circuit breaker per connector host
type HTTPSender struct {
	client   ports.HTTPClient
	breakers *resilience.CircuitBreakerGroup
}

// NewHTTPSender creates a sender. breakers may be nil to disable circuit breaking.
func NewHTTPSender(client ports.HTTPClient, breakers *resilience.CircuitBreakerGroup) *HTTPSender {
	return &HTTPSender{client: client, breakers: breakers}
}

// Send executes the request. Any failure to obtain a response, including an
// open circuit, is a transport error.
func (s *HTTPSender) Send(ctx context.Context, req *Request) (*Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeRequestEncoding, "create http request", err)
	}
	httpReq.Header = req.HTTPHeader()

	var resp *Response
	call := func() error {
		httpResp, err := s.client.Do(httpReq)
		if err != nil {
			return err
		}
		defer httpResp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
		if err != nil {
			return fmt.Errorf("read response body: %w", err)
		}
		resp = &Response{
			StatusCode: httpResp.StatusCode,
			Headers:    httpResp.Header,
			Body:       body,
		}
		return nil
	}

	if s.breakers != nil {
		err = s.breakers.Get(httpReq.URL.Host).Call(call)
	} else {
		err = call()
	}
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeTransport,
			fmt.Sprintf("%s %s", req.Method, httpReq.URL.Host), err)
	}
	return resp, nil
}
