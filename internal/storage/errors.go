package storage

import "errors"

var (
	ErrStoreUnreachable  = errors.New("vector store unreachable")
	ErrIndexNotFound     = errors.New("index not found")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
