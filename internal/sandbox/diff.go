package sandbox

import (
	"fmt"
	"strings"
)

// diffContext is the number of unchanged lines kept around each change.
const diffContext = 3

// Diff renders a unified diff of two contents under caller-supplied
// labels: LCS-aligned hunks with up to three lines of context, empty
// string when the contents are line-identical.
func Diff(leftLabel, rightLabel, left, right string) string {
	leftLines := splitLines(left)
	rightLines := splitLines(right)

	ops := editScript(leftLines, rightLines)
	changed := false
	for _, op := range ops {
		if op.kind != ' ' {
			changed = true
			break
		}
	}
	if !changed {
		return ""
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("--- %s\n", leftLabel))
	b.WriteString(fmt.Sprintf("+++ %s\n", rightLabel))
	for _, h := range hunks(ops) {
		writeHunk(&b, ops, h)
	}
	return b.String()
}

type editOp struct {
	kind byte // ' ', '-', '+'
	text string
}

// editScript aligns the two line slices on their longest common
// subsequence and emits keep/delete/insert operations in order.
func editScript(a, b []string) []editOp {
	n, m := len(a), len(b)
	lcs := make([][]int, n+1)
	for i := range lcs {
		lcs[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			switch {
			case a[i] == b[j]:
				lcs[i][j] = lcs[i+1][j+1] + 1
			case lcs[i+1][j] >= lcs[i][j+1]:
				lcs[i][j] = lcs[i+1][j]
			default:
				lcs[i][j] = lcs[i][j+1]
			}
		}
	}

	ops := make([]editOp, 0, n+m)
	i, j := 0, 0
	for i < n && j < m {
		switch {
		case a[i] == b[j]:
			ops = append(ops, editOp{' ', a[i]})
			i++
			j++
		case lcs[i+1][j] >= lcs[i][j+1]:
			ops = append(ops, editOp{'-', a[i]})
			i++
		default:
			ops = append(ops, editOp{'+', b[j]})
			j++
		}
	}
	for ; i < n; i++ {
		ops = append(ops, editOp{'-', a[i]})
	}
	for ; j < m; j++ {
		ops = append(ops, editOp{'+', b[j]})
	}
	return ops
}

// span is a half-open op-index range forming one hunk.
type span struct{ start, end int }

// hunks groups changed ops into spans, padding each with context and
// merging spans whose context would touch.
func hunks(ops []editOp) []span {
	var out []span
	for i := 0; i < len(ops); i++ {
		if ops[i].kind == ' ' {
			continue
		}
		start := i - diffContext
		if start < 0 {
			start = 0
		}
		end := i + 1
		// Extend through subsequent changes closer than two context widths.
		for j := i + 1; j < len(ops); j++ {
			if ops[j].kind != ' ' {
				end = j + 1
				i = j
			} else if j-end >= 2*diffContext {
				break
			}
		}
		end += diffContext
		if end > len(ops) {
			end = len(ops)
		}
		if len(out) > 0 && start <= out[len(out)-1].end {
			out[len(out)-1].end = end
		} else {
			out = append(out, span{start: start, end: end})
		}
	}
	return out
}

func writeHunk(b *strings.Builder, ops []editOp, h span) {
	aBefore, bBefore := 0, 0
	for _, op := range ops[:h.start] {
		if op.kind != '+' {
			aBefore++
		}
		if op.kind != '-' {
			bBefore++
		}
	}
	aCount, bCount := 0, 0
	for _, op := range ops[h.start:h.end] {
		if op.kind != '+' {
			aCount++
		}
		if op.kind != '-' {
			bCount++
		}
	}

	aStart, bStart := aBefore+1, bBefore+1
	if aCount == 0 {
		aStart = aBefore
	}
	if bCount == 0 {
		bStart = bBefore
	}
	b.WriteString(fmt.Sprintf("@@ -%d,%d +%d,%d @@\n", aStart, aCount, bStart, bCount))

	for _, op := range ops[h.start:h.end] {
		b.WriteByte(op.kind)
		b.WriteString(op.text)
		b.WriteByte('\n')
	}
}

func splitLines(content string) []string {
	if content == "" {
		return []string{}
	}
	normalized := strings.ReplaceAll(content, "\r\n", "\n")
	normalized = strings.TrimSuffix(normalized, "\n")
	if normalized == "" {
		return []string{}
	}
	return strings.Split(normalized, "\n")
}
