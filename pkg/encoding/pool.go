// Package encoding renders outbound request bodies through pooled buffers.
package encoding

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"sync"
)

// maxPooledBuffer keeps outlier payloads from pinning memory in the pool
const maxPooledBuffer = 64 * 1024

var bufferPool = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

func getBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

func putBuffer(buf *bytes.Buffer) {
	if buf.Cap() > maxPooledBuffer {
		return
	}
	bufferPool.Put(buf)
}

// MarshalJSON encodes v without HTML escaping and without the trailing
// newline json.Encoder adds. Processors sign and compare the exact bytes.
func MarshalJSON(v any) ([]byte, error) {
	buf := getBuffer()
	defer putBuffer(buf)

	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return detach(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// MarshalXML encodes v with the standard XML header
func MarshalXML(v any) ([]byte, error) {
	buf := getBuffer()
	defer putBuffer(buf)

	buf.WriteString(xml.Header)
	if err := xml.NewEncoder(buf).Encode(v); err != nil {
		return nil, err
	}
	return detach(buf.Bytes()), nil
}

// detach copies b out of a buffer that is about to return to the pool
func detach(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
