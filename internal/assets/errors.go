// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package assets

import "fmt"

// ErrorKind classifies why no asset could be resolved.
type ErrorKind string

const (
	KindConfig   ErrorKind = "config"
	KindNotFound ErrorKind = "not_found"
	KindHTTP     ErrorKind = "http"
	KindDownload ErrorKind = "download"
)

// AssetError reports that a segment has no usable stock media. Callers
// recover by substituting a placeholder.
type AssetError struct {
	Index int
	Kind  ErrorKind
	Err   error
}

func (e *AssetError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("segment %d: asset unavailable (%s)", e.Index, e.Kind)
	}
	return fmt.Sprintf("segment %d: asset unavailable (%s): %v", e.Index, e.Kind, e.Err)
}

func (e *AssetError) Unwrap() error { return e.Err }
