package connector

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/kevin07696/payment-router/internal/domain"
	"github.com/kevin07696/payment-router/pkg/encoding"
)

// Content types used by the bundled connectors
const (
	ContentTypeJSON = "application/json"
	ContentTypeForm = "application/x-www-form-urlencoded"
	ContentTypeXML  = "application/xml"
)

// Header is one outbound header. Masked headers are redacted in logs.
type Header struct {
	Name   string
	Value  string
	Masked bool
}

// ContentKind is the wire encoding of a request body
type ContentKind string

const (
	ContentKindJSON ContentKind = "json"
	ContentKindForm ContentKind = "form"
	ContentKindXML  ContentKind = "xml"
	ContentKindRaw  ContentKind = "raw"
)

// RequestContent is a request body before encoding
type RequestContent struct {
	Kind ContentKind
	JSON any
	Form url.Values
	XML  any
	Raw  []byte
}

// JSONContent wraps a value to be encoded as JSON
func JSONContent(v any) *RequestContent {
	return &RequestContent{Kind: ContentKindJSON, JSON: v}
}

// FormContent wraps form-urlencoded values
func FormContent(v url.Values) *RequestContent {
	return &RequestContent{Kind: ContentKindForm, Form: v}
}

// XMLContent wraps a value to be encoded as XML
func XMLContent(v any) *RequestContent {
	return &RequestContent{Kind: ContentKindXML, XML: v}
}

// RawContent passes bytes through untouched
func RawContent(b []byte) *RequestContent {
	return &RequestContent{Kind: ContentKindRaw, Raw: b}
}

// Encode renders the body bytes
func (c *RequestContent) Encode() ([]byte, error) {
	if c == nil {
		return nil, nil
	}

	switch c.Kind {
	case ContentKindJSON:
		b, err := encoding.MarshalJSON(c.JSON)
		if err != nil {
			return nil, domain.WrapError(domain.ErrorCodeRequestEncoding, "encode json body", err)
		}
		return b, nil
	case ContentKindForm:
		return []byte(c.Form.Encode()), nil
	case ContentKindXML:
		b, err := encoding.MarshalXML(c.XML)
		if err != nil {
			return nil, domain.WrapError(domain.ErrorCodeRequestEncoding, "encode xml body", err)
		}
		return b, nil
	case ContentKindRaw:
		return c.Raw, nil
	default:
		return nil, domain.NewDomainError(domain.ErrorCodeRequestEncoding,
			fmt.Sprintf("unknown content kind %q", c.Kind))
	}
}

// Request is a fully built outbound connector call
type Request struct {
	Method      string
	URL         string
	Headers     []Header
	ContentType string
	Body        []byte
}

// HTTPHeader converts the header list for net/http
func (r *Request) HTTPHeader() http.Header {
	h := make(http.Header, len(r.Headers)+1)
	for _, hdr := range r.Headers {
		h.Add(hdr.Name, hdr.Value)
	}
	if r.ContentType != "" && h.Get("Content-Type") == "" {
		h.Set("Content-Type", r.ContentType)
	}
	return h
}

// RequestBuilder assembles a Request step by step
type RequestBuilder struct {
	req     Request
	content *RequestContent
}

// NewRequestBuilder starts a request with the given HTTP method
func NewRequestBuilder(method string) *RequestBuilder {
	return &RequestBuilder{req: Request{Method: method}}
}

// URL sets the target URL
func (b *RequestBuilder) URL(u string) *RequestBuilder {
	b.req.URL = u
	return b
}

// Headers appends headers
func (b *RequestBuilder) Headers(h []Header) *RequestBuilder {
	b.req.Headers = append(b.req.Headers, h...)
	return b
}

// ContentType sets the body content type
func (b *RequestBuilder) ContentType(ct string) *RequestBuilder {
	b.req.ContentType = ct
	return b
}

// Body sets the body to be encoded at Build time
func (b *RequestBuilder) Body(c *RequestContent) *RequestBuilder {
	b.content = c
	return b
}

// Build encodes the body and returns the request
func (b *RequestBuilder) Build() (*Request, error) {
	if b.req.URL == "" {
		return nil, domain.NewDomainError(domain.ErrorCodeRequestEncoding, "request url is empty")
	}
	body, err := b.content.Encode()
	if err != nil {
		return nil, err
	}
	req := b.req
	req.Body = body
	return &req, nil
}

// Response is the raw connector reply
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}
