package query

import (
	"errors"
	"fmt"
)

// ErrQueryNotRegistered 句柄上没有注册该查询
var ErrQueryNotRegistered = errors.New("query not registered")

// ConflictError 同一所有者和类型存在多个默认文件夹
type ConflictError struct {
	Owner       string
	Type        string
	Existing    string
	Conflicting string
	Personal    bool
}

// Error 实现error接口
func (e *ConflictError) Error() string {
	scope := "owner " + fmt.Sprintf("%q", e.Owner)
	if e.Personal {
		scope = "personal namespace"
	}
	return fmt.Sprintf("conflicting default %s folders for %s: %q and %q", e.Type, scope, e.Existing, e.Conflicting)
}

// IsConflict 检查是否为默认文件夹冲突
func IsConflict(err error) bool {
	var conflict *ConflictError
	return errors.As(err, &conflict)
}
