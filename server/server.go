package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"mediabridge/logger"

	"github.com/gorilla/mux"
)

// Server 媒体桥接的本地 HTTP 与 WebSocket 服务
type Server struct {
	addr    string
	hub     *Hub
	handler *MediaHandler
	router  *mux.Router
}

// New 创建服务并注册路由，store 可以为 nil
func New(addr string, service MediaService, store SnapshotStore) *Server {
	hub := NewHub()
	s := &Server{
		addr:    addr,
		hub:     hub,
		handler: NewMediaHandler(service, store, hub),
	}
	s.router = s.routes()
	return s
}

// Handler 返回路由，供测试和嵌入使用
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *mux.Router {
	router := mux.NewRouter()

	// 添加 CORS 中间件
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Max-Age", "86400") // 24 小时

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	})

	router.HandleFunc("/healthz", s.handler.HealthHandler).Methods(http.MethodGet)

	api := router.NewRoute().Subrouter()
	api.Use(AuthMiddleware)
	api.HandleFunc("/api/media", s.handler.GetMediaHandler).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/api/media/action", s.handler.ActionHandler).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/ws/media", s.handler.WebSocketHandler).Methods(http.MethodGet)

	return router
}

// Run 启动服务，ctx 取消后优雅关闭
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go s.hub.Run()
	defer s.hub.Stop()

	fwdCtx, stopForward := context.WithCancel(ctx)
	defer stopForward()
	go s.handler.Forward(fwdCtx)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("media bridge listening",
			logger.String("addr", s.addr),
			logger.String("poll", "GET /api/media"),
			logger.String("action", "POST /api/media/action"),
			logger.String("events", "GET /ws/media"))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("Server stopped")
	return nil
}
