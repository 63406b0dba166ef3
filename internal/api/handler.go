// Package api 路由配置
package api

import (
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"agents-workflow/pkg/logging"
)

// Router 返回配置好的 HTTP 路由
//
// 路由规则：
//
// 健康检查:
//   - GET /health  - 服务健康检查
//   - GET /metrics - Prometheus 指标
//
// 任务结果 (TaskResponse):
//   - GET    /api/v1/task-responses             - 列出任务结果（存储形态）
//   - POST   /api/v1/task-responses             - 保存任务结果（存储形态）
//   - GET    /api/v1/task-responses/{id}        - 获取任务结果（运行时形态）
//   - GET    /api/v1/task-responses/{id}/stored - 获取任务结果（存储形态）
//   - GET    /api/v1/task-responses/{id}/render - 渲染文本
//   - DELETE /api/v1/task-responses/{id}        - 删除任务结果
//
// 消息 (Message):
//   - GET    /api/v1/messages            - 列出消息
//   - POST   /api/v1/messages            - 保存消息
//   - GET    /api/v1/messages/{id}       - 获取消息
//   - GET    /api/v1/messages/{id}/render - 渲染文本
//   - DELETE /api/v1/messages/{id}       - 删除消息
//   - POST   /api/v1/messages/{id}/files - 上传附件
//   - GET    /api/v1/messages/{id}/files/{fileID} - 下载附件
//
// 文档事件:
//   - GET    /api/v1/events/{collection} - 读取文档事件
//   - GET    /ws/events/{collection}     - WebSocket 实时推送（不经过访问日志中间件）
func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health)
	if h.metrics != nil {
		mux.Handle("GET /metrics", h.metrics)
	}

	// TaskResponse 接口
	mux.HandleFunc("GET /api/v1/task-responses", h.ListTaskResponses)
	mux.HandleFunc("POST /api/v1/task-responses", h.CreateTaskResponse)
	mux.HandleFunc("GET /api/v1/task-responses/{id}", h.GetTaskResponse)
	mux.HandleFunc("GET /api/v1/task-responses/{id}/stored", h.GetStoredTaskResponse)
	mux.HandleFunc("GET /api/v1/task-responses/{id}/render", h.RenderTaskResponse)
	mux.HandleFunc("DELETE /api/v1/task-responses/{id}", h.DeleteTaskResponse)

	// Message 接口
	mux.HandleFunc("GET /api/v1/messages", h.ListMessages)
	mux.HandleFunc("POST /api/v1/messages", h.CreateMessage)
	mux.HandleFunc("GET /api/v1/messages/{id}", h.GetMessage)
	mux.HandleFunc("GET /api/v1/messages/{id}/render", h.RenderMessage)
	mux.HandleFunc("DELETE /api/v1/messages/{id}", h.DeleteMessage)
	mux.HandleFunc("POST /api/v1/messages/{id}/files", h.UploadMessageFile)
	mux.HandleFunc("GET /api/v1/messages/{id}/files/{fileID}", h.DownloadMessageFile)

	// 文档事件
	mux.HandleFunc("GET /api/v1/events/{collection}", h.GetDocumentEvents)

	// WebSocket 需要 http.Hijacker，statusRecorder 不支持，单独挂载
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /ws/events/{collection}", h.StreamDocumentEvents)
	topMux.Handle("/", corsMiddleware(h.requestLogMiddleware(mux)))
	return topMux
}

// corsMiddleware 添加 CORS 头支持跨域请求
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// statusRecorder 记录响应状态码
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// requestLogMiddleware 为请求注入 trace_id 并记录访问日志
//
// 优先沿用请求头 X-Request-ID，缺省时生成 UUID。
func (h *Handler) requestLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		traceID := r.Header.Get("X-Request-ID")
		if traceID == "" {
			traceID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", traceID)

		ctx := logging.ContextWithTraceID(r.Context(), traceID)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		h.log.WithContext(ctx).HTTPRequestLog(r.Method, r.URL.Path, rec.status, time.Since(start), clientIP(r))
	})
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
