// Copyright 2026 The Ledgerglass Authors
// SPDX-License-Identifier: Apache-2.0

package form

// Walk visits root and every descendant in depth-first pre-order,
// children in display order. Iterative with an explicit stack: nesting
// depth is the server's choice, and captured hierarchies have run deep
// enough that recursion is not worth trusting.
func Walk(root *Node, visit func(*Node)) {
	if root == nil {
		return
	}
	stack := []*Node{root}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		visit(node)
		for i := len(node.Controls) - 1; i >= 0; i-- {
			if node.Controls[i] != nil {
				stack = append(stack, node.Controls[i])
			}
		}
	}
}
