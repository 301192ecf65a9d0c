package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"
)

// ErrMalformedResponse はステータス行を解釈できない場合
var ErrMalformedResponse = errors.New("malformed response")

// Response はサーバーからの応答
type Response struct {
	Status int
	Reason string
	Body   []byte
}

// Do は addr に接続して raw をそのまま送り、接続が閉じられるまで応答を読む
// ctx の期限は接続全体の期限になる
func Do(ctx context.Context, addr, raw string) (*Response, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	if _, err := io.WriteString(conn, raw); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.CloseWrite()
	}

	data, err := io.ReadAll(conn)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return ParseResponse(data)
}

// Get は path に対する GET リクエストを送る
func Get(ctx context.Context, addr, path string) (*Response, error) {
	return Do(ctx, addr, "GET "+path+" HTTP/1.1\r\n\r\n")
}

// ParseResponse はステータス行と本文を分離する
func ParseResponse(data []byte) (*Response, error) {
	head, body, found := bytes.Cut(data, []byte("\r\n\r\n"))
	if !found {
		return nil, fmt.Errorf("%w: missing header terminator", ErrMalformedResponse)
	}

	line := string(head)
	if i := strings.Index(line, "\r\n"); i >= 0 {
		line = line[:i]
	}

	version, rest, ok := strings.Cut(line, " ")
	if !ok || !strings.HasPrefix(version, "HTTP/") {
		return nil, fmt.Errorf("%w: %q", ErrMalformedResponse, line)
	}
	code, reason, _ := strings.Cut(rest, " ")
	status, err := strconv.Atoi(code)
	if err != nil {
		return nil, fmt.Errorf("%w: bad status code %q", ErrMalformedResponse, code)
	}

	return &Response{
		Status: status,
		Reason: strings.TrimSpace(reason),
		Body:   body,
	}, nil
}
