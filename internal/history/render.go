// Custodia - File Integrity Monitoring and Hash History Forensics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package history

import (
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Format selects one of the chain's render forms.
type Format string

const (
	FormatASCII      Format = "ascii"
	FormatMermaid    Format = "mermaid"
	FormatDOT        Format = "dot"
	FormatStructured Format = "json"
)

// ParseFormat maps a wire format name to a Format. Empty selects the ASCII
// default; unknown names are rejected rather than silently defaulted.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "ascii":
		return FormatASCII, nil
	case "mermaid":
		return FormatMermaid, nil
	case "dot":
		return FormatDOT, nil
	case "json":
		return FormatStructured, nil
	default:
		return "", fmt.Errorf("unknown graph format %q", name)
	}
}

// ContentType returns the HTTP content type for the rendered form.
func (f Format) ContentType() string {
	if f == FormatStructured {
		return "application/json; charset=utf-8"
	}
	return "text/plain; charset=utf-8"
}

// Render serializes the chain in the requested form. Every form walks the
// same ordered node sequence; an empty chain is a valid render in all four.
func Render(c Chain, f Format) (string, error) {
	switch f {
	case FormatASCII:
		return RenderLinear(c), nil
	case FormatMermaid:
		return RenderFlowchart(c), nil
	case FormatDOT:
		return RenderDOT(c), nil
	case FormatStructured:
		return RenderStructured(c)
	default:
		return "", fmt.Errorf("unknown graph format %q", string(f))
	}
}

// nodeLabel is the one-line human form of a node, shared by the linear and
// graph renders.
func nodeLabel(n Node) string {
	return fmt.Sprintf("%s:%s @ %s", n.MachineName, n.FilePath, n.IngestedAt.UTC().Format(time.RFC3339))
}

// RenderLinear renders the chain as a single arrow-joined line.
func RenderLinear(c Chain) string {
	if c.Empty() {
		return "(no data)"
	}
	parts := make([]string, len(c.Nodes))
	for i, n := range c.Nodes {
		parts[i] = nodeLabel(n)
	}
	return strings.Join(parts, " -> ")
}

// RenderFlowchart renders the chain as a mermaid flowchart, left to right.
func RenderFlowchart(c Chain) string {
	var b strings.Builder
	b.WriteString("flowchart LR\n")
	for i, n := range c.Nodes {
		fmt.Fprintf(&b, "    n%d[%q]\n", i, nodeLabel(n))
	}
	for i := 1; i < len(c.Nodes); i++ {
		fmt.Fprintf(&b, "    n%d --> n%d\n", i-1, i)
	}
	return b.String()
}

// RenderDOT renders the chain in Graphviz dot form.
func RenderDOT(c Chain) string {
	var b strings.Builder
	b.WriteString("digraph hash_history {\n")
	b.WriteString("    rankdir=LR;\n")
	b.WriteString("    node [shape=box];\n")
	for i, n := range c.Nodes {
		fmt.Fprintf(&b, "    n%d [label=%q];\n", i, nodeLabel(n))
	}
	for i := 1; i < len(c.Nodes); i++ {
		fmt.Fprintf(&b, "    n%d -> n%d;\n", i-1, i)
	}
	b.WriteString("}\n")
	return b.String()
}

// RenderStructured renders the chain as its JSON payload. Nodes is always a
// list, never null, so empty chains decode the same shape as populated ones.
func RenderStructured(c Chain) (string, error) {
	if c.Nodes == nil {
		c.Nodes = []Node{}
	}
	out, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal hash history: %w", err)
	}
	return string(out), nil
}
