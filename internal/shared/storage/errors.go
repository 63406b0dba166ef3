// Package storage 定义存储层领域错误
//
// 这些错误用于隔离业务层与底层存储引擎的错误类型，
// 各驱动实现（memory/repository/mongostore/etcd）负责将底层错误转换为这些领域错误。
package storage

import "errors"

var (
	// ErrNotFound 文档不存在
	// 替代 sql.ErrNoRows / mongo.ErrNoDocuments / etcd 空结果
	ErrNotFound = errors.New("document not found")

	// ErrDuplicate 唯一键冲突
	ErrDuplicate = errors.New("duplicate: document already exists")

	// ErrInvalidKey collection 或 id 非法
	ErrInvalidKey = errors.New("invalid document key")
)
