// Package command tokenizes console lines into invocations the way the
// host's console does.
package command

import (
	"strconv"
	"strings"
)

// Source identifies where a console line came from
type Source int

const (
	SourceConsole Source = iota
	SourceRcon
	SourceScript
)

func (s Source) String() string {
	switch s {
	case SourceConsole:
		return "console"
	case SourceRcon:
		return "rcon"
	case SourceScript:
		return "script"
	default:
		return "unknown"
	}
}

// Invocation is one tokenized console line. It is only valid for the
// dispatch call it was produced for.
type Invocation struct {
	Name   string
	Source Source
	argv   []string
	args   string
}

// Parse tokenizes a console line. Tokens are separated by whitespace, a
// double-quoted token may contain whitespace, and // outside quotes starts a
// comment that runs to the end of the line.
func Parse(line string, source Source) Invocation {
	inv := Invocation{Source: source}

	end := len(line)
	argsStart := -1
	i := 0
	for i < end {
		for i < end && isSpace(line[i]) {
			i++
		}
		if i >= end {
			break
		}
		if strings.HasPrefix(line[i:], "//") {
			end = i
			break
		}

		var token string
		if line[i] == '"' {
			i++
			start := i
			for i < end && line[i] != '"' {
				i++
			}
			token = line[start:i]
			if i < end {
				i++
			}
		} else {
			start := i
			for i < end && !isSpace(line[i]) && line[i] != '"' && !strings.HasPrefix(line[i:], "//") {
				i++
			}
			token = line[start:i]
		}

		inv.argv = append(inv.argv, token)
		if len(inv.argv) == 1 {
			argsStart = i
		}
	}

	if len(inv.argv) > 0 {
		inv.Name = strings.ToLower(inv.argv[0])
	}
	if argsStart >= 0 && argsStart <= end {
		inv.args = strings.TrimSpace(line[argsStart:end])
	}
	return inv
}

// Empty reports whether the line held no tokens
func (inv Invocation) Empty() bool {
	return len(inv.argv) == 0
}

// Argc returns the number of tokens including the command name
func (inv Invocation) Argc() int {
	return len(inv.argv)
}

// Argv returns token i, or "" when i is out of range
func (inv Invocation) Argv(i int) string {
	if i < 0 || i >= len(inv.argv) {
		return ""
	}
	return inv.argv[i]
}

// Args returns the raw text following the command name
func (inv Invocation) Args() string {
	return inv.args
}

// IntArg parses token i as a base 10 integer
func (inv Invocation) IntArg(i int, usage string) (int, error) {
	n, err := strconv.Atoi(inv.Argv(i))
	if err != nil {
		return 0, &UsageError{Usage: usage}
	}
	return n, nil
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}
