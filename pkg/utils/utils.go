// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package utils

import (
	"context"
	"log"
	"runtime/debug"
)

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

// Go spawns fn on a new goroutine with panic recovery. The context is
// accepted so call sites document which lifetime the goroutine belongs
// to; fn itself is responsible for honouring cancellation.
func Go(ctx context.Context, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("recovered panic in background goroutine: %v\n%s", r, debug.Stack())
			}
		}()
		fn()
	}()
}
