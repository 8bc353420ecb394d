package storage

import "errors"

var (
	ErrReadOnly      = errors.New("write in read-only transaction")
	ErrEmptyKey      = errors.New("empty key")
	ErrClosed        = errors.New("storage closed")
	ErrCorruptRecord = errors.New("corrupt wal record")
)
