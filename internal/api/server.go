package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"poolhttpd/internal/events"
	"poolhttpd/internal/logger"
	"poolhttpd/internal/metrics"
	"poolhttpd/internal/server"
	"poolhttpd/internal/worker"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/websocket"
)

// statusInterval は WebSocket へステータスを配信する間隔
const statusInterval = time.Second

// Server は管理用 API サーバー
type Server struct {
	addr   string
	target *server.Server
	router *mux.Router

	mu        sync.RWMutex
	wsClients map[*websocket.Conn]bool

	server *http.Server
}

// NewServer は target を公開する API サーバーを作成する
func NewServer(addr string, target *server.Server) *Server {
	s := &Server{
		addr:      addr,
		target:    target,
		wsClients: make(map[*websocket.Conn]bool),
	}

	s.router = mux.NewRouter()
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/workers", s.handleWorkers).Methods(http.MethodGet)
	api.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)

	s.router.Handle("/metrics", promhttp.HandlerFor(target.Registry(), promhttp.HandlerOpts{})).Methods(http.MethodGet)
	s.router.Handle("/ws", websocket.Handler(s.handleWebSocket))

	return s
}

// Handler はルーターを返す
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start は ctx がキャンセルされるまでサーバーを実行する
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// バックグラウンドでイベントとステータスを配信
	go s.broadcastLoop(ctx)

	logger.Info("", "Admin API starting on http://%s", s.addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// StatusResponse はステータスレスポンス
type StatusResponse struct {
	Running        bool    `json:"running"`
	Addr           string  `json:"addr"`
	Root           string  `json:"root"`
	Workers        int     `json:"workers"`
	RunningWorkers int     `json:"running_workers"`
	BusyWorkers    int     `json:"busy_workers"`
	QueueDepth     int     `json:"queue_depth"`
	UptimeSeconds  float64 `json:"uptime_seconds"`
}

func (s *Server) status() StatusResponse {
	pool := s.target.Pool()
	return StatusResponse{
		Running:        !s.target.ShuttingDown(),
		Addr:           s.target.Addr(),
		Root:           s.target.Source().Name(),
		Workers:        pool.NumWorkers(),
		RunningWorkers: pool.Running(),
		BusyWorkers:    pool.Busy(),
		QueueDepth:     pool.QueueSize(),
		UptimeSeconds:  s.target.Uptime().Seconds(),
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, s.status())
}

func (s *Server) handleWorkers(w http.ResponseWriter, _ *http.Request) {
	workers := s.target.Pool().Workers()
	if workers == nil {
		workers = []worker.WorkerInfo{}
	}
	s.writeJSON(w, workers)
}

// MetricsResponse はメトリクスレスポンス
type MetricsResponse struct {
	TotalRequests   uint64         `json:"total_requests"`
	SuccessRequests uint64         `json:"success_requests"`
	FailedRequests  uint64         `json:"failed_requests"`
	RPS             float64        `json:"rps"`
	AvgLatencyMs    float64        `json:"avg_latency_ms"`
	P99LatencyMs    float64        `json:"p99_latency_ms"`
	ErrorRate       float64        `json:"error_rate"`
	StatusCounts    map[int]uint64 `json:"status_counts"`
}

func newMetricsResponse(snap metrics.Snapshot) MetricsResponse {
	return MetricsResponse{
		TotalRequests:   snap.TotalRequests,
		SuccessRequests: snap.SuccessRequests,
		FailedRequests:  snap.FailedRequests,
		RPS:             snap.OverallRPS,
		AvgLatencyMs:    float64(snap.AverageLatency.Microseconds()) / 1000,
		P99LatencyMs:    float64(snap.P99Latency.Microseconds()) / 1000,
		ErrorRate:       snap.ErrorRate,
		StatusCounts:    snap.StatusCounts,
	}
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, newMetricsResponse(s.target.Metrics().Snapshot()))
}

// WebSocket handling
func (s *Server) handleWebSocket(ws *websocket.Conn) {
	s.mu.Lock()
	s.wsClients[ws] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.wsClients, ws)
		s.mu.Unlock()
		_ = ws.Close()
	}()

	// Keep connection alive
	for {
		var msg string
		if err := websocket.Message.Receive(ws, &msg); err != nil {
			break
		}
	}
}

// ClientCount は接続中の WebSocket クライアント数を返す
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.wsClients)
}

func (s *Server) broadcast(data any) {
	s.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(s.wsClients))
	for ws := range s.wsClients {
		clients = append(clients, ws)
	}
	s.mu.RUnlock()

	if len(clients) == 0 {
		return
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}

	for _, ws := range clients {
		_ = websocket.Message.Send(ws, string(jsonData))
	}
}

// broadcastLoop はバスのイベントを転送し、定期的にステータスを配信する
func (s *Server) broadcastLoop(ctx context.Context) {
	bus := s.target.Bus()
	ch := bus.Subscribe()
	defer bus.Unsubscribe(ch)

	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			s.broadcast(eventMessage{Type: "event", Event: event})
		case <-ticker.C:
			s.broadcast(statusMessage{Type: "status", Status: s.status()})
		}
	}
}

type eventMessage struct {
	Type  string       `json:"type"`
	Event events.Event `json:"event"`
}

type statusMessage struct {
	Type   string         `json:"type"`
	Status StatusResponse `json:"status"`
}

func (s *Server) writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("", "Failed to encode JSON: %v", err)
	}
}
