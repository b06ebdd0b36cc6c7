package imerr

import (
	"errors"
	"fmt"
)

// Kind 错误分类，决定回滚策略与 HTTP 映射
type Kind int

const (
	KindValidation Kind = iota // 参数/形态错误，事务开启前拒绝
	KindPermission             // 权限错误，读后拒绝，无状态变更
	KindNotFound               // 目标不存在，通常降级处理
	KindStorage                // 存储失败，整个逻辑操作回滚，客户端可重试
)

// Error 携带分类与对外文案的业务错误
type Error struct {
	Kind Kind
	Msg  string
	Err  error // 底层原因，可为空
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Msg: msg}
}

func Permission(msg string) *Error {
	return &Error{Kind: KindPermission, Msg: msg}
}

func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Msg: msg}
}

func Storage(msg string, cause error) *Error {
	return &Error{Kind: KindStorage, Msg: msg, Err: cause}
}

// KindOf 提取错误分类；未分类错误一律按存储错误处理（可重试）
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStorage
}

// HTTPStatus 分类到 HTTP 状态码的映射
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return 400
	case KindPermission:
		return 403
	case KindNotFound:
		return 404
	default:
		return 500
	}
}
