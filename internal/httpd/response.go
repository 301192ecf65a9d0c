package httpd

import (
	"bufio"
	"fmt"
	"io"
)

// ステータスコード
const (
	StatusOK                  = 200
	StatusBadRequest          = 400
	StatusNotFound            = 404
	StatusMethodNotAllowed    = 405
	StatusRequestTooLarge     = 413
	StatusInternalServerError = 500
	StatusNotImplemented      = 501
)

// statusLines はステータス行とヘッダ終端をまとめたもの
// 成功時の行は "OK" の後ろに空白を1つ含む
var statusLines = map[int]string{
	StatusOK:                  "HTTP/1.1 200 OK \r\n\r\n",
	StatusBadRequest:          "HTTP/1.1 400 BAD REQUEST\r\n\r\n",
	StatusNotFound:            "HTTP/1.1 404 NOT FOUND\r\n\r\n",
	StatusMethodNotAllowed:    "HTTP/1.1 405 METHOD NOT ALLOWED\r\n\r\n",
	StatusRequestTooLarge:     "HTTP/1.1 413 REQUEST TOO LARGE\r\n\r\n",
	StatusInternalServerError: "HTTP/1.1 500 INTERNAL SERVER ERROR\r\n\r\n",
	StatusNotImplemented:      "HTTP/1.1 501 NOT IMPLEMENTED\r\n\r\n",
}

// Response は1回分の応答
type Response struct {
	Status int
	Body   []byte
}

// StatusLine はヘッダ終端までを含むステータス行を返す
func StatusLine(status int) string {
	if line, ok := statusLines[status]; ok {
		return line
	}
	return fmt.Sprintf("HTTP/1.1 %d UNKNOWN\r\n\r\n", status)
}

// ok はファイル内容をそのまま本文にした成功応答
func ok(contents []byte) *Response {
	return &Response{Status: StatusOK, Body: contents}
}

// errorResponse は短いテキスト本文を持つエラー応答
func errorResponse(status int, format string, args ...any) *Response {
	return &Response{
		Status: status,
		Body:   []byte(fmt.Sprintf(format, args...) + "\n"),
	}
}

// WriteTo はステータス行と本文を書き込み、フラッシュする
func (r *Response) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriterSize(w, 4<<10)

	n, err := bw.WriteString(StatusLine(r.Status))
	if err != nil {
		return int64(n), err
	}
	m, err := bw.Write(r.Body)
	total := int64(n + m)
	if err != nil {
		return total, err
	}
	return total, bw.Flush()
}

// Bytes は応答全体のバイト列を返す
func (r *Response) Bytes() []byte {
	line := StatusLine(r.Status)
	out := make([]byte, 0, len(line)+len(r.Body))
	out = append(out, line...)
	return append(out, r.Body...)
}
