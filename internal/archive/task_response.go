package archive

import (
	"context"
	"fmt"

	"agents-workflow/internal/shared/eventbus"
	"agents-workflow/internal/shared/model"
	"agents-workflow/internal/shared/storage"
	"agents-workflow/pkg/logging"
)

// SaveTaskResponse 保存运行时形态的任务结果，ID 为空时自动分配
func (s *Service) SaveTaskResponse(ctx context.Context, resp *model.TaskResponse) (*model.StoredTaskResponse, error) {
	if resp == nil {
		return nil, &model.ValidationError{Field: "task_response", Reason: "must not be nil"}
	}
	if err := resp.Validate(); err != nil {
		return nil, err
	}
	if err := resp.Normalize(); err != nil {
		return nil, err
	}
	if resp.ID == "" {
		resp.ID = s.newID()
	}

	stored, err := resp.ToStored()
	if err != nil {
		return nil, err
	}
	if err := s.PutStoredTaskResponse(ctx, stored); err != nil {
		return nil, err
	}
	return stored, nil
}

// PutStoredTaskResponse 保存存储形态的任务结果，ID 为空时自动分配
func (s *Service) PutStoredTaskResponse(ctx context.Context, stored *model.StoredTaskResponse) error {
	if err := stored.Validate(); err != nil {
		return err
	}
	if stored.ID == "" {
		stored.ID = s.newID()
	}
	ctx = context.WithValue(ctx, logging.TaskResponseIDKey, stored.ID)

	doc, err := stored.ToDocument()
	if err != nil {
		return fmt.Errorf("archive: encode task response %s: %w", stored.ID, err)
	}
	if err := s.store.Put(ctx, storage.CollectionTaskResponses, stored.ID, doc); err != nil {
		return err
	}

	s.metrics.RecordTaskResponse(string(stored.Status))
	s.afterWrite(ctx, eventbus.EventDocumentSaved, storage.CollectionTaskResponses, renderKindTaskResponse, stored.ID,
		map[string]interface{}{
			"task_id":   stored.TaskID,
			"task_name": stored.TaskName,
			"status":    string(stored.Status),
			"kind":      string(stored.Kind()),
		})
	s.log.WithContext(ctx).TaskLog("saved", stored.TaskID, stored.TaskName, "status", string(stored.Status))
	return nil
}

// LoadStoredTaskResponse 读取存储形态
func (s *Service) LoadStoredTaskResponse(ctx context.Context, id string) (*model.StoredTaskResponse, error) {
	doc, err := s.store.Get(ctx, storage.CollectionTaskResponses, id)
	if err != nil {
		return nil, err
	}
	stored, err := model.StoredTaskResponseFromDocument(doc)
	if err != nil {
		return nil, fmt.Errorf("archive: decode task response %s: %w", id, err)
	}
	return stored, nil
}

// LoadTaskResponse 读取并还原为运行时形态；task_content 无法还原时回退为 StringOutput
func (s *Service) LoadTaskResponse(ctx context.Context, id string) (*model.TaskResponse, error) {
	stored, err := s.LoadStoredTaskResponse(ctx, id)
	if err != nil {
		return nil, err
	}
	out, reconstructErr := stored.TryReconstructOutput()
	s.metrics.RecordReconstruction(string(stored.Kind()), reconstructErr != nil)
	if reconstructErr != nil && stored.TaskContent != nil {
		s.log.WithContext(ctx).WithError(reconstructErr).Warn("task content reconstruction fell back to string output",
			"task_response_id", stored.ID, "kind", string(stored.Kind()))
	}
	return stored.ToLiveWith(out), nil
}

// RenderTaskResponse 返回任务结果的渲染文本（经渲染缓存）
func (s *Service) RenderTaskResponse(ctx context.Context, id string) (string, error) {
	return s.render(ctx, renderKindTaskResponse, id, func() (string, error) {
		live, err := s.LoadTaskResponse(ctx, id)
		if err != nil {
			return "", err
		}
		return live.String(), nil
	})
}

// ListTaskResponses 列出存储形态的任务结果
func (s *Service) ListTaskResponses(ctx context.Context, opts storage.ListOptions) ([]*model.StoredTaskResponse, error) {
	docs, err := s.store.List(ctx, storage.CollectionTaskResponses, opts)
	if err != nil {
		return nil, err
	}
	out := make([]*model.StoredTaskResponse, 0, len(docs))
	for _, doc := range docs {
		stored, err := model.StoredTaskResponseFromDocument(doc)
		if err != nil {
			s.log.WithContext(ctx).WithError(err).Warn("skip undecodable task response", "id", doc.String("id"))
			continue
		}
		out = append(out, stored)
	}
	return out, nil
}

// DeleteTaskResponse 删除任务结果
func (s *Service) DeleteTaskResponse(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, storage.CollectionTaskResponses, id); err != nil {
		return err
	}
	s.afterWrite(ctx, eventbus.EventDocumentDeleted, storage.CollectionTaskResponses, renderKindTaskResponse, id, nil)
	return nil
}
