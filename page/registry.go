// Copyright 2026 The Ledgerglass Authors
// SPDX-License-Identifier: Apache-2.0

package page

import (
	"fmt"
	"slices"

	"github.com/ledgerglass/ledgerglass/wire"
)

// Registry tracks which server form id backs which logical page, and
// the first-bound order of open forms for the openForms echo. One
// loader owns one registry and accesses it sequentially; there is no
// locking beyond the session's invoke mutex.
type Registry struct {
	// pageByForm maps server form id to the logical page bound to it.
	pageByForm map[string]string

	// formByPage is the reverse index for mutation lookups.
	formByPage map[string]string

	// order holds open form ids in first-bound order. Never contains
	// duplicates; a duplicated echo corrupts server-side open-form
	// bookkeeping.
	order []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		pageByForm: make(map[string]string),
		formByPage: make(map[string]string),
	}
}

// Bind records that formID backs pageID. Binding a form that already
// backs a different page is a *wire.ProtocolError and leaves the
// registry untouched; the server reused a cached form and nothing
// about the current load can be trusted. Rebinding the same page to a
// new form releases the old form first.
func (r *Registry) Bind(pageID, formID string) error {
	if bound, ok := r.pageByForm[formID]; ok && bound != pageID {
		return &wire.ProtocolError{
			Op:     "bind",
			FormID: formID,
			Reason: fmt.Sprintf("form already bound to page %q, refusing to rebind to %q", bound, pageID),
		}
	}

	if previous, ok := r.formByPage[pageID]; ok && previous != formID {
		r.Release(previous)
	}

	if _, ok := r.pageByForm[formID]; !ok {
		r.order = append(r.order, formID)
	}
	r.pageByForm[formID] = pageID
	r.formByPage[pageID] = formID
	return nil
}

// PageID returns the logical page bound to formID.
func (r *Registry) PageID(formID string) (string, bool) {
	pageID, ok := r.pageByForm[formID]
	return pageID, ok
}

// FormID returns the server form id backing pageID.
func (r *Registry) FormID(pageID string) (string, bool) {
	formID, ok := r.formByPage[pageID]
	return formID, ok
}

// OpenFormIDs returns the open form ids in first-bound order. The
// slice is a copy; callers may hold it across later bindings.
func (r *Registry) OpenFormIDs() []string {
	return slices.Clone(r.order)
}

// Release drops the binding for formID. Releasing an unknown form is
// a no-op.
func (r *Registry) Release(formID string) {
	pageID, ok := r.pageByForm[formID]
	if !ok {
		return
	}
	delete(r.pageByForm, formID)
	delete(r.formByPage, pageID)
	r.order = slices.DeleteFunc(r.order, func(id string) bool { return id == formID })
}
