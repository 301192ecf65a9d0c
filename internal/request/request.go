// Package request parses the request line of an incoming connection.
package request

import (
	"errors"
	"fmt"
	"strings"
)

// Method はサポートするリクエストメソッド
type Method int

const (
	MethodGet Method = iota
	MethodPut
	MethodPost
)

func (m Method) String() string {
	switch m {
	case MethodGet:
		return "GET"
	case MethodPut:
		return "PUT"
	case MethodPost:
		return "POST"
	default:
		return "UNKNOWN"
	}
}

var (
	// ErrUnrecognizedMethod はメソッドトークンが GET/PUT/POST 以外の場合
	ErrUnrecognizedMethod = errors.New("unrecognized method")
	// ErrMalformedRequestLine はリクエスト行にパスが無い場合
	ErrMalformedRequestLine = errors.New("malformed request line")
)

// UnrecognizedMethodError は未知のメソッドトークンを保持する
type UnrecognizedMethodError struct {
	Token string
}

func (e *UnrecognizedMethodError) Error() string {
	return fmt.Sprintf("%s: %q", ErrUnrecognizedMethod, e.Token)
}

func (e *UnrecognizedMethodError) Unwrap() error {
	return ErrUnrecognizedMethod
}

// Request は解析済みのリクエスト行
type Request struct {
	Method Method
	Path   string
}

// ParseMethod はメソッドトークンを大文字小文字を区別して解析する
func ParseMethod(token string) (Method, error) {
	switch token {
	case "GET":
		return MethodGet, nil
	case "PUT":
		return MethodPut, nil
	case "POST":
		return MethodPost, nil
	default:
		return 0, &UnrecognizedMethodError{Token: token}
	}
}

// Parse は text の最初の行だけを解析する
// 行が無い（または最初の行が空白のみ）場合は ok == false, err == nil を返す
// パスはパーセントデコードもクエリ分離もせずそのまま使う
func Parse(text string) (req Request, ok bool, err error) {
	line, _, _ := strings.Cut(text, "\n")
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Request{}, false, nil
	}

	method, err := ParseMethod(fields[0])
	if err != nil {
		return Request{}, true, err
	}
	if len(fields) < 2 {
		return Request{}, true, fmt.Errorf("%w: missing path in %q", ErrMalformedRequestLine, strings.TrimSpace(line))
	}

	return Request{Method: method, Path: fields[1]}, true, nil
}
