// Copyright 2026 The Ledgerglass Authors
// SPDX-License-Identifier: Apache-2.0

package form

// LoadPolicy decides which embedded sub-forms need a follow-up load
// before a page can be described completely. The decision is a
// heuristic over stub attributes, isolated behind this interface so a
// server build that changes the stub shape gets a new policy rather
// than edits scattered through the loader.
type LoadPolicy interface {
	// ShouldLoad reports whether the embedded form needs an explicit
	// load. Container is the shell child holding the embedding, form
	// the embedded node.
	ShouldLoad(container, form *Node) bool
}

// StandardLoadPolicy matches current server builds: a sub-form needs
// loading when its container is visible and either the form defers its
// controls or the container declares expression-driven properties.
// Derived from captured traffic; hidden containers never need loading
// because the server resolves them only when they become visible.
type StandardLoadPolicy struct{}

// ShouldLoad implements LoadPolicy.
func (StandardLoadPolicy) ShouldLoad(container, form *Node) bool {
	if container == nil || form == nil {
		return false
	}
	if !container.IsVisible() {
		return false
	}
	return form.DelayedControls || container.ExpressionProperties
}
