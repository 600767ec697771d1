package segment

import "strings"

// continuation holds the characters that, at the end of a candidate,
// mean the expression goes on.
const continuation = `+-*/%=<>&|^!~?:,.\`

// Balanced is a heuristic oracle for C-like syntax used when no parser is
// available. A candidate is complete when every bracket is closed, no
// string, template or block comment is left open, and the last
// significant character does not continue the expression.
type Balanced struct{}

// Complete implements expr.Oracle.
func (Balanced) Complete(src string) (bool, error) {
	var stack []rune
	var last, prev rune

	runes := []rune(src)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '/' && i+1 < len(runes) && runes[i+1] == '/':
			for i < len(runes) && runes[i] != '\n' {
				i++
			}
			continue
		case r == '/' && i+1 < len(runes) && runes[i+1] == '*':
			j := i + 2
			for j+1 < len(runes) && !(runes[j] == '*' && runes[j+1] == '/') {
				j++
			}
			if j+1 >= len(runes) {
				return false, nil
			}
			i = j + 1
			continue
		case r == '"' || r == '\'' || r == '`':
			j, ok := skipQuoted(runes, i)
			if !ok {
				return false, nil
			}
			i = j
			prev, last = last, r
			continue
		case r == '(' || r == '[' || r == '{':
			stack = append(stack, r)
		case r == ')' || r == ']' || r == '}':
			if len(stack) == 0 || stack[len(stack)-1] != opener(r) {
				return false, nil
			}
			stack = stack[:len(stack)-1]
		}
		if r != ' ' && r != '\t' && r != '\r' && r != '\n' {
			prev, last = last, r
		}
	}

	if len(stack) > 0 {
		return false, nil
	}
	// x++ and x-- end on an operator but are complete.
	if (last == '+' || last == '-') && prev == last {
		return true, nil
	}
	return !strings.ContainsRune(continuation, last), nil
}

// skipQuoted returns the index of the quote closing the literal opened at
// runes[start]. Single and double quoted literals end at a newline.
func skipQuoted(runes []rune, start int) (int, bool) {
	quote := runes[start]
	for i := start + 1; i < len(runes); i++ {
		switch runes[i] {
		case '\\':
			i++
		case '\n':
			if quote != '`' {
				return i, false
			}
		case quote:
			return i, true
		}
	}
	return len(runes), false
}

func opener(r rune) rune {
	switch r {
	case ')':
		return '('
	case ']':
		return '['
	}
	return '{'
}
