// Package api 提供 HTTP API 处理器
//
// 本包实现任务执行结果与消息的 RESTful API：
//   - 任务结果（TaskResponse）接口
//   - 消息（Message）接口与附件上传下载
//   - 文档事件查询与 WebSocket 推送接口
//
// 文件组织：
//   - common.go: 通用工具函数和 Handler 定义
//   - handler.go: 路由与中间件
//   - task_responses.go: 任务结果相关接口
//   - messages.go: 消息相关接口
//   - events.go: 文档事件接口
//   - websocket.go: 文档事件实时推送
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"agents-workflow/internal/archive"
	"agents-workflow/internal/shared/eventbus"
	"agents-workflow/internal/shared/model"
	"agents-workflow/internal/shared/storage"
	"agents-workflow/pkg/logging"
)

// maxListLimit 列表接口单页上限
const maxListLimit = 1000

// Handler API 处理器
type Handler struct {
	svc     *archive.Service
	events  eventbus.EventBus
	metrics http.Handler
	log     *logging.Logger

	// maxUpload 单个附件请求体上限
	maxUpload int64
}

// NewHandler 创建 Handler 实例
//
// events 为 nil 时使用 NoOp 事件总线；metricsHandler 为 nil 时不注册 /metrics。
func NewHandler(svc *archive.Service, events eventbus.EventBus, metricsHandler http.Handler) *Handler {
	if events == nil {
		events = eventbus.NewNoOpEventBus()
	}
	return &Handler{
		svc:       svc,
		events:    events,
		metrics:   metricsHandler,
		log:       logging.Default("api"),
		maxUpload: maxUploadSize,
	}
}

// writeJSON 将数据以 JSON 格式写入 HTTP 响应
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError 将错误信息以 JSON 格式写入 HTTP 响应
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError 按错误类型映射状态码
//
//   - storage.ErrNotFound → 404
//   - model.ErrValidation / storage.ErrInvalidKey → 400
//   - archive.ErrFilesDisabled → 503
//   - 其他 → 500
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, model.ErrValidation), errors.Is(err, storage.ErrInvalidKey):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, archive.ErrFilesDisabled):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.log.WithContext(r.Context()).WithError(err).Error("request failed", "method", r.Method, "path", r.URL.Path)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// listOptions 解析列表查询参数
//
// limit/offset 为分页参数，filterKeys 中出现的查询参数作为等值过滤条件。
func listOptions(r *http.Request, filterKeys ...string) storage.ListOptions {
	q := r.URL.Query()
	opts := storage.ListOptions{}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil && limit > 0 {
		opts.Limit = min(limit, maxListLimit)
	}
	if offset, err := strconv.Atoi(q.Get("offset")); err == nil && offset > 0 {
		opts.Offset = offset
	}
	for _, key := range filterKeys {
		if v := q.Get(key); v != "" {
			if opts.Filter == nil {
				opts.Filter = make(map[string]string)
			}
			opts.Filter[key] = v
		}
	}
	return opts
}

// Health 健康检查接口
//
// 路由: GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
