package server

import (
	"net/http"
	"strings"

	"mediabridge/core/auth"
	"mediabridge/logger"
)

// AuthMiddleware 配置了 API 密钥时校验 Bearer token
// 浏览器中的 WebSocket 客户端无法设置请求头，可以改用 token 查询参数
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.Enabled() || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		token := r.URL.Query().Get("token")
		if authHeader := r.Header.Get("Authorization"); authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				http.Error(w, "Invalid authorization header format", http.StatusUnauthorized)
				return
			}
			token = parts[1]
		}
		if token == "" {
			http.Error(w, "Authorization header is required", http.StatusUnauthorized)
			return
		}

		claims, err := auth.ParseToken(token)
		if err != nil {
			logger.Warn("Invalid API token", logger.ErrorField(err))
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		logger.Debug("authorized request",
			logger.String("client", claims.Client), logger.String("path", r.URL.Path))
		next.ServeHTTP(w, r)
	})
}
