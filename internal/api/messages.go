// Package api 消息接口
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"agents-workflow/internal/shared/model"
)

// maxUploadSize 单个附件上限（32 MiB）
const maxUploadSize = 32 << 20

// ListMessages 列出消息
//
// 路由: GET /api/v1/messages
//
// 查询参数:
//   - role / type / step / generated_by: 等值过滤
//   - limit / offset: 分页
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	opts := listOptions(r, "role", "type", "step", "generated_by")
	items, err := h.svc.ListMessages(r.Context(), opts)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"messages": items, "count": len(items)})
}

// CreateMessage 保存消息
//
// 路由: POST /api/v1/messages
//
// 请求体为消息文档；tool_calls 中的非法元素、未知枚举值、未知引用类型返回 400。
func (h *Handler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	var msg model.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		h.writeDecodeError(w, r, err)
		return
	}
	saved, err := h.svc.SaveMessage(r.Context(), &msg)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

// GetMessage 获取消息
//
// 路由: GET /api/v1/messages/{id}
func (h *Handler) GetMessage(w http.ResponseWriter, r *http.Request) {
	msg, err := h.svc.LoadMessage(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

// RenderMessage 渲染消息
//
// 路由: GET /api/v1/messages/{id}/render
func (h *Handler) RenderMessage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	text, err := h.svc.RenderMessage(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "text": text})
}

// DeleteMessage 删除消息
//
// 路由: DELETE /api/v1/messages/{id}
func (h *Handler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteMessage(r.Context(), r.PathValue("id")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadMessageFile 上传附件并追加到消息引用
//
// 路由: POST /api/v1/messages/{id}/files
//
// 请求体: multipart/form-data，字段名 file
//
// 响应:
//   - 201 Created: 返回文件引用
//   - 413 Request Entity Too Large: 超过附件上限
//   - 503 Service Unavailable: 未配置对象存储
func (h *Handler) UploadMessageFile(w http.ResponseWriter, r *http.Request) {
	if !h.svc.FilesEnabled() {
		writeError(w, http.StatusServiceUnavailable, "file storage not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("file exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	ref, _, err := h.svc.UploadFile(r.Context(), r.PathValue("id"), header.Filename, contentType, file, header.Size)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ref)
}

// DownloadMessageFile 下载消息附件
//
// 路由: GET /api/v1/messages/{id}/files/{fileID}
func (h *Handler) DownloadMessageFile(w http.ResponseWriter, r *http.Request) {
	ref, rc, err := h.svc.OpenFile(r.Context(), r.PathValue("id"), r.PathValue("fileID"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	defer rc.Close()

	contentType := ref.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": ref.Filename}))
	if ref.FileSize > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(ref.FileSize, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.log.WithContext(r.Context()).WithError(err).Warn("stream attachment failed", "file_id", ref.ID)
	}
}

// writeDecodeError 请求体中的校验错误返回具体原因，其余统一为格式错误
func (h *Handler) writeDecodeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *model.ValidationError
	if errors.As(err, &verr) {
		writeError(w, http.StatusBadRequest, verr.Error())
		return
	}
	writeError(w, http.StatusBadRequest, "invalid request body")
}
