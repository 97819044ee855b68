package offlinekit

import (
	"io"
	"net/http"
	"testing"
)

func TestResponseSaverRoundtrip(t *testing.T) {
	rw := NewResponseSaver()
	rw.Header().Set("Content-Type", "text/test")
	rw.WriteHeader(http.StatusTeapot)
	rw.Write([]byte("short and stout"))

	res, err := bytesToResponse(rw.Response())
	if err != nil {
		t.Fatal(err)
	}
	if res.StatusCode != http.StatusTeapot {
		t.Fatalf("Status is %d", res.StatusCode)
	}
	if ct := res.Header.Get("Content-Type"); ct != "text/test" {
		t.Fatalf("Content-Type is %s", ct)
	}
	if body, _ := io.ReadAll(res.Body); string(body) != "short and stout" {
		t.Fatalf("Body is %s", body)
	}
}

func TestResponseSaverDefaultsToOK(t *testing.T) {
	rw := NewResponseSaver()
	rw.Write([]byte("hi"))
	if rw.StatusCode() != http.StatusOK {
		t.Fatalf("Status is %d", rw.StatusCode())
	}
}

func TestResponseSaverUntouchedIsEmptyOK(t *testing.T) {
	rw := NewResponseSaver()

	res, err := bytesToResponse(rw.Response())
	if err != nil {
		t.Fatal(err)
	}
	if res.StatusCode != http.StatusOK {
		t.Fatalf("Status is %d", res.StatusCode)
	}
	if body, _ := io.ReadAll(res.Body); len(body) != 0 {
		t.Fatalf("Body is %s", body)
	}
}

func TestResponseBytesFixesContentLength(t *testing.T) {
	header := http.Header{}
	header.Set("Content-Length", "9999")
	header.Set("Transfer-Encoding", "chunked")

	res, err := bytesToResponse(responseBytes(http.StatusOK, header, []byte("body")))
	if err != nil {
		t.Fatal(err)
	}
	if res.ContentLength != 4 {
		t.Fatalf("Content-Length is %d", res.ContentLength)
	}
	if body, _ := io.ReadAll(res.Body); string(body) != "body" {
		t.Fatalf("Body is %s", body)
	}
}
