package worker

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/gustavoa6791/k8s-colcap-news/internal/types"
)

// buildWARCRecord assembles one record with CRLF framing.
func buildWARCRecord(warcType, date string, body []byte) []byte {
	var b bytes.Buffer
	b.WriteString("WARC/1.0\r\n")
	fmt.Fprintf(&b, "WARC-Type: %s\r\n", warcType)
	fmt.Fprintf(&b, "WARC-Date: %s\r\n", date)
	b.WriteString("WARC-Record-ID: <urn:uuid:test>\r\n")
	fmt.Fprintf(&b, "Content-Length: %d\r\n", len(body))
	b.WriteString("\r\n")
	b.Write(body)
	b.WriteString("\r\n\r\n")
	return b.Bytes()
}

func httpPayload(html string) []byte {
	return []byte("HTTP/1.1 200 OK\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		fmt.Sprintf("Content-Length: %d\r\n", len(html)) +
		"\r\n" + html)
}

func TestFirstResponseSkipsNonResponseRecords(t *testing.T) {
	html := "<html><body><p>noticia</p></body></html>"

	var segment bytes.Buffer
	segment.Write(buildWARCRecord("warcinfo", "2024-03-15T10:00:00Z", []byte("software: crawler")))
	segment.Write(buildWARCRecord("request", "2024-03-15T10:00:01Z", []byte("GET / HTTP/1.1\r\nHost: x\r\n\r\n")))
	segment.Write(buildWARCRecord("response", "2024-03-15T10:00:02Z", httpPayload(html)))

	body, date, err := firstResponse(&segment)
	if err != nil {
		t.Fatalf("firstResponse: %v", err)
	}
	if string(body) != html {
		t.Errorf("body = %q, want %q", body, html)
	}
	if date != "2024-03-15T10:00:02Z" {
		t.Errorf("capture date = %q, want the response record's date", date)
	}
}

func TestFirstResponseNoResponseRecord(t *testing.T) {
	var segment bytes.Buffer
	segment.Write(buildWARCRecord("warcinfo", "2024-03-15T10:00:00Z", []byte("software: crawler")))

	_, _, err := firstResponse(&segment)
	if !errors.Is(err, types.ErrNoResponseRec) {
		t.Errorf("err = %v, want ErrNoResponseRec", err)
	}
}

func TestFirstResponseGarbageStream(t *testing.T) {
	if _, _, err := firstResponse(strings.NewReader("this is not an archive")); err == nil {
		t.Fatal("firstResponse on garbage should fail")
	}
}

func TestWARCReaderMultipleRecords(t *testing.T) {
	var segment bytes.Buffer
	segment.Write(buildWARCRecord("request", "2024-01-01T00:00:00Z", []byte("GET /a HTTP/1.1\r\n\r\n")))
	segment.Write(buildWARCRecord("response", "2024-01-01T00:00:01Z", httpPayload("<p>a</p>")))

	r := newWARCReader(&segment)

	first, err := r.Next()
	if err != nil {
		t.Fatalf("Next #1: %v", err)
	}
	if first.Type() != "request" {
		t.Errorf("record 1 type = %q, want request", first.Type())
	}

	second, err := r.Next()
	if err != nil {
		t.Fatalf("Next #2: %v", err)
	}
	if second.Type() != "response" {
		t.Errorf("record 2 type = %q, want response", second.Type())
	}
	if len(second.Body) == 0 {
		t.Error("response record body is empty")
	}

	if _, err := r.Next(); err == nil {
		t.Error("Next past the last record should return an error")
	}
}
