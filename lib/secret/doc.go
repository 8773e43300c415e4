// Copyright 2026 The Ledgerglass Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret provides a memory-safe buffer for sensitive data such
// as passwords and age identities.
//
// [Buffer] allocates memory outside the Go heap via mmap(MAP_ANONYMOUS),
// locks it into physical RAM via mlock (preventing swap), and marks it
// excluded from core dumps via madvise(MADV_DONTDUMP). On Close, the
// memory is zeroed, unlocked, and unmapped. Because the memory lives
// outside the Go heap, the garbage collector cannot copy or relocate
// it, guaranteeing secret material does not persist after release.
//
// Constructors:
//
//   - [New] -- allocates a zero-filled buffer of a given size
//   - [NewFromBytes] -- copies into protected memory, zeros the source
//   - [NewFromString] -- copies from a string (which cannot be zeroed)
//   - [ReadFromPath] -- reads from a file, or stdin when the path is "-"
//   - [PromptFromTerminal] -- reads from the controlling terminal, no echo
//
// Access via [Buffer.Bytes] (slice into mmap region) or
// [Buffer.String] (heap copy for API boundaries). After Close, any
// access panics. Close is idempotent.
//
// Depends on golang.org/x/sys/unix and golang.org/x/term. Imported by
// lib/sealed for age identity protection and by the session layer for
// login passwords.
package secret
