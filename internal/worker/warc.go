package worker

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/gustavoa6791/k8s-colcap-news/internal/types"
)

// warcRecord is one record of an ISO 28500 archive segment.
type warcRecord struct {
	Headers textproto.MIMEHeader
	Body    []byte
}

func (r *warcRecord) Type() string { return r.Headers.Get("WARC-Type") }
func (r *warcRecord) Date() string { return r.Headers.Get("WARC-Date") }

// warcReader iterates records in an uncompressed archive stream.
type warcReader struct {
	br *bufio.Reader
}

func newWARCReader(r io.Reader) *warcReader {
	return &warcReader{br: bufio.NewReaderSize(r, 64*1024)}
}

// Next returns the next record, io.EOF at end of stream.
func (w *warcReader) Next() (*warcRecord, error) {
	// Skip record separators and any leading blank lines.
	var version string
	for {
		line, err := w.br.ReadString('\n')
		if err != nil {
			if err == io.EOF && strings.TrimSpace(line) == "" {
				return nil, io.EOF
			}
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}
		version = line
		break
	}
	if !strings.HasPrefix(version, "WARC/") {
		return nil, &types.ParseError{Source: "warc", Err: fmt.Errorf("unexpected record header %q", version)}
	}

	tp := textproto.NewReader(w.br)
	headers, err := tp.ReadMIMEHeader()
	if err != nil {
		return nil, &types.ParseError{Source: "warc headers", Err: err}
	}

	length, err := strconv.ParseInt(headers.Get("Content-Length"), 10, 64)
	if err != nil || length < 0 {
		return nil, &types.ParseError{Source: "warc content-length", Err: err}
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(w.br, body); err != nil {
		return nil, &types.ParseError{Source: "warc body", Err: err}
	}

	return &warcRecord{Headers: headers, Body: body}, nil
}

// firstResponse scans the stream for the first response record and parses
// the HTTP payload inside it. Returns the HTML body and the capture date.
func firstResponse(r io.Reader) (html []byte, captureDate string, err error) {
	wr := newWARCReader(r)
	for {
		rec, err := wr.Next()
		if err == io.EOF {
			return nil, "", types.ErrNoResponseRec
		}
		if err != nil {
			return nil, "", err
		}
		if rec.Type() != "response" {
			continue
		}

		resp, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(rec.Body)), nil)
		if err != nil {
			return nil, "", &types.ParseError{Source: "warc http payload", Err: err}
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, "", &types.ParseError{Source: "warc http body", Err: err}
		}
		return body, rec.Date(), nil
	}
}
