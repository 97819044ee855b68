package offlinekit

import (
	"bufio"
	"bytes"
	"fmt"
	"net/http"
)

// ResponseSaver is an http.ResponseWriter that saves the response to a
// buffer in its HTTP/1.1 wire representation. It is how the middleware
// mode captures the inner handler's response before the interception
// policy decides what to do with it.
type ResponseSaver struct {
	b            *bytes.Buffer
	header       http.Header
	status       int
	wroteHeaders bool
}

// Implementation of http.ResponseWriter
func (t *ResponseSaver) Header() http.Header {
	return t.header
}

// Implementation of http.ResponseWriter
func (t *ResponseSaver) WriteHeader(statusCode int) {
	t.wroteHeaders = true
	t.status = statusCode
	// write http status, headers, and separator to buffer
	// this uses HTTP 1.1 format only
	t.b.WriteString(fmt.Sprintf("HTTP/1.1 %d %s\r\n", statusCode, http.StatusText(statusCode)))
	t.header.Write(t.b)
	t.b.WriteString("\r\n")
}

// Implementation of http.ResponseWriter
func (t *ResponseSaver) Write(b []byte) (int, error) {
	if !t.wroteHeaders {
		t.WriteHeader(http.StatusOK)
	}
	return t.b.Write(b)
}

// Response returns the recorded response as a byte slice.
// A handler that never wrote anything still produced a response under
// net/http semantics (an implicit 200 with an empty body), so the
// headers are finalized here if needed.
func (t *ResponseSaver) Response() []byte {
	if !t.wroteHeaders {
		t.WriteHeader(http.StatusOK)
	}
	return t.b.Bytes()
}

// StatusCode returns the status code of the response.
func (t *ResponseSaver) StatusCode() int {
	return t.status
}

// NewResponseSaver returns a new ResponseSaver.
func NewResponseSaver() *ResponseSaver {
	return &ResponseSaver{
		b:      &bytes.Buffer{},
		header: http.Header{},
	}
}

// bytesToResponse converts a byte slice to a http.Response.
func bytesToResponse(b []byte) (*http.Response, error) {
	return http.ReadResponse(bufio.NewReader(bytes.NewReader(b)), nil)
}

// responseBytes serializes a response whose body has already been read
// into its HTTP/1.1 representation, the format the cache stores.
// Content-Length is fixed up to match the body, since the body may have
// been rewritten after it left the origin.
func responseBytes(statusCode int, header http.Header, body []byte) []byte {
	h := header.Clone()
	h.Del("Transfer-Encoding")
	h.Set("Content-Length", fmt.Sprintf("%d", len(body)))
	buf := &bytes.Buffer{}
	fmt.Fprintf(buf, "HTTP/1.1 %d %s\r\n", statusCode, http.StatusText(statusCode))
	h.Write(buf)
	buf.WriteString("\r\n")
	buf.Write(body)
	return buf.Bytes()
}
