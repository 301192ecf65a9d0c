package httpd

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"time"

	"poolhttpd/internal/config"
	"poolhttpd/internal/docroot"
	"poolhttpd/internal/logger"
	"poolhttpd/internal/request"
	"poolhttpd/internal/worker"

	"github.com/google/uuid"
)

// lingerLimit は応答後に読み捨てる入力の上限
const lingerLimit = 64 << 10

// Result は1接続分の処理結果
type Result struct {
	ConnID  string
	Method  string
	Path    string
	Status  int // 応答を書けなかった場合は 0
	Latency time.Duration
	Err     error
}

// Observer は処理結果を受け取る
type Observer func(Result)

// Handler は接続ごとのジョブ本体
// config と source は全ジョブで読み取り専用として共有される
type Handler struct {
	config   *config.Config
	source   docroot.Source
	observer Observer
}

// NewHandler は新しい Handler を作成する
func NewHandler(cfg *config.Config, source docroot.Source, observer Observer) *Handler {
	return &Handler{
		config:   cfg,
		source:   source,
		observer: observer,
	}
}

// Job は conn を処理するジョブを返す。レイテンシは呼び出し時点から計測する
func (h *Handler) Job(conn net.Conn) worker.Job {
	accepted := time.Now()
	return func() {
		h.serve(conn, accepted)
	}
}

// ServeConn は1つの接続で1回だけリクエストを処理し、接続を閉じる
func (h *Handler) ServeConn(conn net.Conn) {
	h.serve(conn, time.Now())
}

func (h *Handler) serve(conn net.Conn, accepted time.Time) {
	result := Result{ConnID: "conn-" + uuid.NewString()[:8]}
	defer func() {
		h.report(result)
	}()
	defer h.close(conn, result.ConnID)
	// レイテンシは応答を書き終えた時点までで、linger は含めない
	defer func() {
		result.Latency = time.Since(accepted)
	}()

	if h.config.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))
	}

	var resp *Response
	line, err := readRequestLine(conn, h.config.MaxRequestLine)
	switch {
	case err == nil:
		resp = h.handleLine(line, &result)
	case errors.Is(err, ErrRequestTooLarge):
		resp = errorResponse(StatusRequestTooLarge, "413 REQUEST TOO LARGE: request line exceeds %d bytes", h.config.MaxRequestLine)
	case errors.Is(err, ErrNoRequestLine):
		resp = errorResponse(StatusBadRequest, "400 BAD REQUEST: no request line")
	default:
		logger.Warn(result.ConnID, "Read failed: %v", err)
		result.Err = err
		return
	}

	if h.config.WriteTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
	}
	if _, err := resp.WriteTo(conn); err != nil {
		logger.Warn(result.ConnID, "Write failed: %v", err)
		result.Err = err
		return
	}
	result.Status = resp.Status
}

// handleLine はリクエスト行を解析して応答を組み立てる
func (h *Handler) handleLine(line []byte, result *Result) *Response {
	text := strings.ToValidUTF8(string(line), "�")
	logger.Debug(result.ConnID, "Request: %s", text)

	req, ok, err := request.Parse(text)
	switch {
	case !ok:
		return errorResponse(StatusBadRequest, "400 BAD REQUEST: no request line")
	case errors.Is(err, request.ErrUnrecognizedMethod):
		var umErr *request.UnrecognizedMethodError
		if errors.As(err, &umErr) {
			result.Method = umErr.Token
		}
		return errorResponse(StatusNotImplemented, "501 NOT IMPLEMENTED: %v", err)
	case err != nil:
		return errorResponse(StatusBadRequest, "400 BAD REQUEST: %v", err)
	}

	result.Method = req.Method.String()
	result.Path = req.Path

	switch req.Method {
	case request.MethodGet:
		return h.get(req.Path)
	default:
		return errorResponse(StatusMethodNotAllowed, "405 METHOD NOT ALLOWED: %s", req.Method)
	}
}

// get はドキュメントルートからファイルを返す
func (h *Handler) get(path string) *Response {
	ctx, cancel := h.fetchContext()
	defer cancel()

	name := docroot.Resolve(path, h.config.DefaultFile)
	contents, err := h.source.ReadFile(ctx, name)
	if err == nil {
		return ok(contents)
	}

	if errors.Is(err, docroot.ErrNotFound) {
		return h.notFound(ctx, path)
	}

	logger.Error("", "Failed to read %s from %s: %v", name, h.source.Name(), err)
	return errorResponse(StatusInternalServerError, "500 INTERNAL SERVER ERROR: cannot read %s", path)
}

// notFound は設定された 404 ページ、無ければ短いテキストを返す
func (h *Handler) notFound(ctx context.Context, path string) *Response {
	if h.config.NotFoundFile != "" {
		if page, err := h.source.ReadFile(ctx, h.config.NotFoundFile); err == nil {
			return &Response{Status: StatusNotFound, Body: page}
		}
	}
	return errorResponse(StatusNotFound, "404 NOT FOUND: %s", path)
}

// fetchContext はドキュメントルートからの読み込み1回分の期限を返す
// 404 ページの読み込みも同じ期限を共有する
func (h *Handler) fetchContext() (context.Context, context.CancelFunc) {
	if h.config.FetchTimeout > 0 {
		return context.WithTimeout(context.Background(), h.config.FetchTimeout)
	}
	return context.WithCancel(context.Background())
}

// close は送信側を閉じ、残りの入力を短時間読み捨ててから接続を閉じる
// 未読データを残したまま閉じると RST で応答が失われることがある
func (h *Handler) close(conn net.Conn, connID string) {
	if cw, ok := conn.(interface{ CloseWrite() error }); ok && h.config.LingerTimeout > 0 {
		if err := cw.CloseWrite(); err == nil {
			_ = conn.SetReadDeadline(time.Now().Add(h.config.LingerTimeout))
			_, _ = io.Copy(io.Discard, io.LimitReader(conn, lingerLimit))
		}
	}
	if err := conn.Close(); err != nil {
		logger.Debug(connID, "Close failed: %v", err)
	}
}

func (h *Handler) report(result Result) {
	if result.Status != 0 {
		logger.Info(result.ConnID, "%s %s -> %d (%v)",
			orDash(result.Method), orDash(result.Path), result.Status, result.Latency)
	}
	if h.observer != nil {
		h.observer(result)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
