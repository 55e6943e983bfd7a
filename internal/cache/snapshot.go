package cache

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net/http"

	"github.com/holepuncher/holepuncher/internal/transport"
)

const (
	snapshotURLHeader  = "Holepuncher-Url"
	snapshotTypeHeader = "Holepuncher-Type"
)

// encodeSnapshot 以 HTTP/1.1 报文形式序列化响应，URL 与类型写入扩展头。
func encodeSnapshot(resp *transport.Response) ([]byte, error) {
	if resp == nil {
		return nil, fmt.Errorf("nil response")
	}

	header := resp.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	header.Del("Content-Length")
	header.Set(snapshotURLHeader, resp.URL)
	header.Set(snapshotTypeHeader, string(resp.Type))

	body := resp.Bytes()
	wire := &http.Response{
		StatusCode:    resp.StatusCode,
		Status:        resp.Status,
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		ContentLength: int64(len(body)),
		Body:          io.NopCloser(bytes.NewReader(body)),
	}

	buf := &bytes.Buffer{}
	if err := wire.Write(buf); err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// decodeSnapshot 是 encodeSnapshot 的逆过程。
func decodeSnapshot(raw []byte) (*transport.Response, error) {
	wire, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(raw)), nil)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	defer wire.Body.Close()

	body, err := io.ReadAll(wire.Body)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot body: %w", err)
	}

	url := wire.Header.Get(snapshotURLHeader)
	kind := transport.ResponseType(wire.Header.Get(snapshotTypeHeader))
	wire.Header.Del(snapshotURLHeader)
	wire.Header.Del(snapshotTypeHeader)
	wire.Header.Del("Content-Length")

	resp := transport.NewResponse(url, wire.StatusCode, wire.Header, body)
	if wire.Status != "" {
		resp.Status = wire.Status
	}
	if kind != "" {
		resp.Type = kind
	}
	return resp, nil
}
