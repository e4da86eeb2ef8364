// Package middleware wraps a ports.ProjectCodec to add behavior such as
// encryption at rest.
package middleware

import "github.com/kmol-editor/kmol/pkg/ports"

// Middleware allows wrapping a ProjectCodec to add behavior.
type Middleware func(ports.ProjectCodec) ports.ProjectCodec

// Chain applies mws so that the first one is the outermost wrapper.
func Chain(codec ports.ProjectCodec, mws ...Middleware) ports.ProjectCodec {
	for i := len(mws) - 1; i >= 0; i-- {
		codec = mws[i](codec)
	}
	return codec
}
