package model

import (
	"fmt"
	"strings"
	"time"
)

// FileType 文件类型
type FileType string

const (
	FileTypeImage FileType = "image"
	FileTypeAudio FileType = "audio"
	FileTypeVideo FileType = "video"
	FileTypeFile  FileType = "file"
)

// FileReference 文件引用
//
// 文件本体存放在对象存储中，消息只携带引用信息。
type FileReference struct {
	// ID 文件 ID
	ID string `json:"id"`

	// Filename 原始文件名
	Filename string `json:"filename" validate:"required"`

	// Type 文件类型（image, audio, video, file）
	Type FileType `json:"type" validate:"oneof=image audio video file"`

	// ContentType MIME 类型
	ContentType string `json:"content_type,omitempty"`

	// FileSize 文件大小（字节）
	FileSize int64 `json:"file_size"`

	// StorageKey 对象存储中的 key
	StorageKey string `json:"storage_key,omitempty"`

	// CreatedAt 上传时间
	CreatedAt time.Time `json:"created_at,omitzero"`
}

// ReferenceType 实现 Reference 接口
func (f *FileReference) ReferenceType() ReferenceType {
	return ReferenceTypeFiles
}

// Validate 校验文件名与文件类型
func (f *FileReference) Validate() error {
	return validateStruct(f)
}

func (f *FileReference) String() string {
	return fmt.Sprintf("File: %s (%s, %d bytes)", f.Filename, f.Type, f.FileSize)
}

// FileTypeFromContentType 根据 MIME 类型推断文件类型
func FileTypeFromContentType(contentType string) FileType {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return FileTypeImage
	case strings.HasPrefix(contentType, "audio/"):
		return FileTypeAudio
	case strings.HasPrefix(contentType, "video/"):
		return FileTypeVideo
	default:
		return FileTypeFile
	}
}

