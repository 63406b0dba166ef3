// Package api 文档事件接口
package api

import (
	"net/http"
	"strconv"

	"agents-workflow/internal/shared/storage"
)

// GetDocumentEvents 读取集合的文档事件
//
// 路由: GET /api/v1/events/{collection}
//
// 查询参数:
//   - from: 起始事件 ID（不包含），默认从头读取
//   - count: 返回数量，默认 100，最大 1000
//
// 响应:
//
//	{
//	  "events": [...],
//	  "count": 10
//	}
func (h *Handler) GetDocumentEvents(w http.ResponseWriter, r *http.Request) {
	collection := r.PathValue("collection")
	if !knownCollection(collection) {
		writeError(w, http.StatusNotFound, "unknown collection")
		return
	}
	count, _ := strconv.ParseInt(r.URL.Query().Get("count"), 10, 64)
	if count <= 0 || count > maxListLimit {
		count = 100
	}

	events, err := h.events.GetDocumentEvents(r.Context(), collection, r.URL.Query().Get("from"), count)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": events, "count": len(events)})
}

func knownCollection(collection string) bool {
	return collection == storage.CollectionTaskResponses || collection == storage.CollectionMessages
}
