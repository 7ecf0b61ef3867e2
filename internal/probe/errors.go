// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Shrinkr - 批量转码代理文件工具

package probe

import (
	"errors"
	"fmt"
)

// InvocationError means the prober could not produce output for a file:
// binary missing, non-zero exit, or the library refused the file.
// Invocation failures are never cached.
type InvocationError struct {
	Path string
	Err  error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("probe %q: %v", e.Path, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }

// IsInvocation reports whether err is an *InvocationError
func IsInvocation(err error) bool {
	var e *InvocationError
	return errors.As(err, &e)
}

// MetadataError means the prober succeeded but its output is malformed
// or lacks a required field.
type MetadataError struct {
	Field  string
	Reason string
}

func (e *MetadataError) Error() string {
	if e.Field == "" {
		return "malformed probe output: " + e.Reason
	}
	return fmt.Sprintf("malformed probe output: %s: %s", e.Field, e.Reason)
}

// IsMetadata reports whether err is a *MetadataError
func IsMetadata(err error) bool {
	var e *MetadataError
	return errors.As(err, &e)
}
