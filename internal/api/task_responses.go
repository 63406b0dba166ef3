// Package api 任务结果接口
package api

import (
	"encoding/json"
	"net/http"

	"agents-workflow/internal/shared/model"
)

// CreateTaskResponseRequest 保存任务结果的请求体
//
// 与存储形态一致：标量字段 + task_content。task_content 需携带 kind 字段，
// 未知 kind 不会被拒绝，读取时回退为 StringOutput。
type CreateTaskResponseRequest struct {
	model.TaskResponseBase
	TaskContent any `json:"task_content"`
}

// ListTaskResponses 列出任务结果
//
// 路由: GET /api/v1/task-responses
//
// 查询参数:
//   - task_id / status / task_name: 等值过滤
//   - limit / offset: 分页
func (h *Handler) ListTaskResponses(w http.ResponseWriter, r *http.Request) {
	opts := listOptions(r, "task_id", "status", "task_name")
	items, err := h.svc.ListTaskResponses(r.Context(), opts)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"task_responses": items, "count": len(items)})
}

// CreateTaskResponse 保存任务结果
//
// 路由: POST /api/v1/task-responses
//
// 响应:
//   - 201 Created: 返回存储形态
//   - 400 Bad Request: 请求体格式错误或校验失败
func (h *Handler) CreateTaskResponse(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskResponseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	stored, err := model.NewStoredTaskResponse(req.TaskResponseBase, req.TaskContent)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if err := h.svc.PutStoredTaskResponse(r.Context(), stored); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

// GetTaskResponse 获取任务结果（运行时形态，task_content 已按 kind 还原）
//
// 路由: GET /api/v1/task-responses/{id}
func (h *Handler) GetTaskResponse(w http.ResponseWriter, r *http.Request) {
	resp, err := h.svc.LoadTaskResponse(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetStoredTaskResponse 获取任务结果（存储形态，原样返回）
//
// 路由: GET /api/v1/task-responses/{id}/stored
func (h *Handler) GetStoredTaskResponse(w http.ResponseWriter, r *http.Request) {
	stored, err := h.svc.LoadStoredTaskResponse(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stored)
}

// RenderTaskResponse 渲染任务结果
//
// 路由: GET /api/v1/task-responses/{id}/render
//
// 响应: {"id": "...", "text": "..."}
func (h *Handler) RenderTaskResponse(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	text, err := h.svc.RenderTaskResponse(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "text": text})
}

// DeleteTaskResponse 删除任务结果
//
// 路由: DELETE /api/v1/task-responses/{id}
func (h *Handler) DeleteTaskResponse(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteTaskResponse(r.Context(), r.PathValue("id")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
