package httpd

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"net"
)

var (
	// ErrRequestTooLarge はリクエスト行が上限を超えた場合
	ErrRequestTooLarge = errors.New("request line too large")
	// ErrNoRequestLine はリクエスト行を1バイトも受け取れなかった場合
	ErrNoRequestLine = errors.New("no request line")
)

// readRequestLine は r から最初の1行を読み込む（改行は含まない）
// limit バイト以内に改行が来なければ ErrRequestTooLarge を返す
// 改行なしで相手が送信を終えた場合や、読み込み期限が切れた場合は
// それまでのバイト列を1行として扱う
func readRequestLine(r io.Reader, limit int) ([]byte, error) {
	lr := &io.LimitedReader{R: r, N: int64(limit)}
	br := bufio.NewReaderSize(lr, min(limit, 4<<10))

	var line []byte
	for {
		chunk, err := br.ReadSlice('\n')
		line = append(line, chunk...)

		switch {
		case err == nil:
			return trimEOL(line), nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			if lr.N <= 0 {
				return nil, ErrRequestTooLarge
			}
			if len(line) == 0 {
				return nil, ErrNoRequestLine
			}
			return trimEOL(line), nil
		default:
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() && len(line) > 0 {
				return trimEOL(line), nil
			}
			return nil, err
		}
	}
}

func trimEOL(line []byte) []byte {
	line = bytes.TrimSuffix(line, []byte("\n"))
	return bytes.TrimSuffix(line, []byte("\r"))
}
