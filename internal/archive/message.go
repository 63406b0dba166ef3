package archive

import (
	"context"
	"fmt"
	"io"

	"agents-workflow/internal/shared/eventbus"
	objstore "agents-workflow/internal/shared/minio"
	"agents-workflow/internal/shared/model"
	"agents-workflow/internal/shared/storage"
	"agents-workflow/pkg/logging"
)

// SaveMessage 保存消息；ID 为空时自动分配，并维护时间戳
func (s *Service) SaveMessage(ctx context.Context, msg *model.Message) (*model.Message, error) {
	if msg == nil {
		return nil, &model.ValidationError{Field: "message", Reason: "must not be nil"}
	}
	normalized, err := model.NewMessage(*msg)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if normalized.ID == "" {
		normalized.ID = s.newID()
	}
	if normalized.CreatedAt == nil {
		normalized.CreatedAt = &now
	}
	normalized.UpdatedAt = &now
	ctx = context.WithValue(ctx, logging.MessageIDKey, normalized.ID)

	doc, err := model.ToDocument(normalized)
	if err != nil {
		return nil, fmt.Errorf("archive: encode message %s: %w", normalized.ID, err)
	}
	if err := s.store.Put(ctx, storage.CollectionMessages, normalized.ID, doc); err != nil {
		return nil, err
	}

	s.afterWrite(ctx, eventbus.EventDocumentSaved, storage.CollectionMessages, renderKindMessage, normalized.ID,
		map[string]interface{}{
			"role": string(normalized.Role),
			"type": string(normalized.Type),
			"step": normalized.Step,
		})
	*msg = *normalized
	return msg, nil
}

// LoadMessage 读取消息
func (s *Service) LoadMessage(ctx context.Context, id string) (*model.Message, error) {
	doc, err := s.store.Get(ctx, storage.CollectionMessages, id)
	if err != nil {
		return nil, err
	}
	return decodeMessage(id, doc)
}

// ListMessages 列出消息
func (s *Service) ListMessages(ctx context.Context, opts storage.ListOptions) ([]*model.Message, error) {
	docs, err := s.store.List(ctx, storage.CollectionMessages, opts)
	if err != nil {
		return nil, err
	}
	out := make([]*model.Message, 0, len(docs))
	for _, doc := range docs {
		msg, err := decodeMessage(doc.String("id"), doc)
		if err != nil {
			s.log.WithContext(ctx).WithError(err).Warn("skip undecodable message", "id", doc.String("id"))
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

// RenderMessage 返回消息的渲染文本（经渲染缓存）
func (s *Service) RenderMessage(ctx context.Context, id string) (string, error) {
	return s.render(ctx, renderKindMessage, id, func() (string, error) {
		msg, err := s.LoadMessage(ctx, id)
		if err != nil {
			return "", err
		}
		return msg.String(), nil
	})
}

// DeleteMessage 删除消息及其附件对象
//
// 附件删除失败只记录日志，消息文档的删除结果以存储为准。
func (s *Service) DeleteMessage(ctx context.Context, id string) error {
	var attachments []*model.FileReference
	if s.files != nil {
		if msg, err := s.LoadMessage(ctx, id); err == nil {
			attachments = fileReferences(msg)
		}
	}
	if err := s.store.Delete(ctx, storage.CollectionMessages, id); err != nil {
		return err
	}
	ctx = context.WithValue(ctx, logging.MessageIDKey, id)
	for _, ref := range attachments {
		s.removeObject(ctx, ref.StorageKey)
	}
	s.afterWrite(ctx, eventbus.EventDocumentDeleted, storage.CollectionMessages, renderKindMessage, id, nil)
	return nil
}

// AttachFile 上传附件并在消息上追加文件引用；消息本身需由调用方保存
func (s *Service) AttachFile(ctx context.Context, msg *model.Message, filename, contentType string, reader io.Reader, size int64) (*model.FileReference, error) {
	if s.files == nil {
		return nil, ErrFilesDisabled
	}
	ref := &model.FileReference{
		ID:          s.newID(),
		Filename:    filename,
		Type:        model.FileTypeFromContentType(contentType),
		ContentType: contentType,
	}
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	ref.StorageKey = objstore.FileKey(ref.ID, filename)

	n, err := s.files.Upload(ctx, ref.StorageKey, reader, size, contentType)
	if err != nil {
		return nil, fmt.Errorf("archive: upload %s: %w", filename, err)
	}
	ref.FileSize = n
	ref.CreatedAt = s.now()

	msg.AddReference(ref)
	return ref, nil
}

// UploadFile 为已保存的消息上传附件并重新保存消息
//
// 消息保存失败时删除刚上传的对象，不留下无引用的附件。
func (s *Service) UploadFile(ctx context.Context, messageID, filename, contentType string, reader io.Reader, size int64) (*model.FileReference, *model.Message, error) {
	if s.files == nil {
		return nil, nil, ErrFilesDisabled
	}
	msg, err := s.LoadMessage(ctx, messageID)
	if err != nil {
		return nil, nil, err
	}
	ref, err := s.AttachFile(ctx, msg, filename, contentType, reader, size)
	if err != nil {
		return nil, nil, err
	}
	if _, err := s.SaveMessage(ctx, msg); err != nil {
		s.removeObject(context.WithValue(ctx, logging.MessageIDKey, messageID), ref.StorageKey)
		return nil, nil, err
	}
	return ref, msg, nil
}

// OpenFile 打开消息上的附件，调用方负责关闭返回的 reader
func (s *Service) OpenFile(ctx context.Context, messageID, fileID string) (*model.FileReference, io.ReadCloser, error) {
	if s.files == nil {
		return nil, nil, ErrFilesDisabled
	}
	msg, err := s.LoadMessage(ctx, messageID)
	if err != nil {
		return nil, nil, err
	}
	for _, ref := range fileReferences(msg) {
		if ref.ID != fileID {
			continue
		}
		rc, err := s.files.Download(ctx, ref.StorageKey)
		if err != nil {
			return nil, nil, fmt.Errorf("archive: download %s: %w", ref.StorageKey, err)
		}
		return ref, rc, nil
	}
	return nil, nil, fmt.Errorf("%w: file %s on message %s", storage.ErrNotFound, fileID, messageID)
}

func (s *Service) removeObject(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.files.Delete(ctx, key); err != nil {
		s.log.WithContext(ctx).WithError(err).Warn("delete attachment object failed", "storage_key", key)
	}
}

func fileReferences(msg *model.Message) []*model.FileReference {
	var out []*model.FileReference
	for _, ref := range msg.GetReferencesByType(model.ReferenceTypeFiles) {
		if f, ok := ref.(*model.FileReference); ok {
			out = append(out, f)
		}
	}
	return out
}

// AttachTaskResponse 在消息上追加任务结果引用
func (s *Service) AttachTaskResponse(msg *model.Message, resp *model.TaskResponse) {
	msg.AddReference(resp)
}

func decodeMessage(id string, doc model.Document) (*model.Message, error) {
	var msg model.Message
	if err := model.DecodeDocument(doc, &msg); err != nil {
		return nil, fmt.Errorf("archive: decode message %s: %w", id, err)
	}
	return &msg, nil
}
