/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package render

import (
	"fmt"
	"strings"
)

// Kind identifies a render node type.
type Kind string

const (
	KindContainer Kind = "container"
	KindText      Kind = "text"
	KindTable     Kind = "table"
	KindImage     Kind = "image"
)

// Column is a resolved table column.
type Column struct {
	Header string
	Field  string
	Width  float64 // relative weight, > 0
	Type   string
	Align  string // left or right
}

// Node is one element of a rendered document. Style holds CSS-like properties
// with fully resolved values.
type Node struct {
	Kind     Kind
	Role     string
	Label    string
	Text     string
	Src      string
	Style    map[string]string
	Columns  []Column
	Rows     [][]string
	Children []*Node
}

// Tree is the output of Render. Styles is the resolved style set it was built with.
type Tree struct {
	Root   *Node
	Styles map[string]string
}

// Walk visits nodes depth-first. Returning false from fn skips the node's children.
func (t *Tree) Walk(fn func(n *Node, depth int) bool) {
	if t == nil || t.Root == nil {
		return
	}
	walk(t.Root, 0, fn)
}

func walk(n *Node, depth int, fn func(*Node, int) bool) {
	if !fn(n, depth) {
		return
	}
	for _, c := range n.Children {
		walk(c, depth+1, fn)
	}
}

// Find returns the first node with role, or nil.
func (t *Tree) Find(role string) *Node {
	var found *Node
	t.Walk(func(n *Node, _ int) bool {
		if found != nil {
			return false
		}
		if n.Role == role {
			found = n
			return false
		}
		return true
	})
	return found
}

// Roles lists the roles present in the tree in document order.
func (t *Tree) Roles() []string {
	var out []string
	t.Walk(func(n *Node, _ int) bool {
		if n.Role != "" {
			out = append(out, n.Role)
		}
		return true
	})
	return out
}

// Display returns the label and text joined for presentation.
func (n *Node) Display() string {
	if n.Label == "" {
		return n.Text
	}
	return n.Label + ": " + n.Text
}

// Text dumps the tree as plain text, one line per text node and table row.
func (t *Tree) Text() string {
	var b strings.Builder
	t.Walk(func(n *Node, _ int) bool {
		switch n.Kind {
		case KindText:
			b.WriteString(n.Display())
			b.WriteByte('\n')
		case KindImage:
			fmt.Fprintf(&b, "[image %s]\n", n.Src)
		case KindTable:
			writeTable(&b, n)
		}
		return true
	})
	return b.String()
}

func writeTable(b *strings.Builder, n *Node) {
	widths := make([]int, len(n.Columns))
	for i, c := range n.Columns {
		widths[i] = len([]rune(c.Header))
	}
	for _, r := range n.Rows {
		for i, cell := range r {
			if i < len(widths) && len([]rune(cell)) > widths[i] {
				widths[i] = len([]rune(cell))
			}
		}
	}
	line := func(cells []string) {
		for i, cell := range cells {
			if i >= len(widths) {
				break
			}
			if i > 0 {
				b.WriteString("  ")
			}
			pad := strings.Repeat(" ", widths[i]-len([]rune(cell)))
			if n.Columns[i].Align == "right" {
				b.WriteString(pad + cell)
			} else {
				b.WriteString(cell + pad)
			}
		}
		b.WriteByte('\n')
	}
	headers := make([]string, len(n.Columns))
	for i, c := range n.Columns {
		headers[i] = c.Header
	}
	line(headers)
	for _, r := range n.Rows {
		line(r)
	}
}
