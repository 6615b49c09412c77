package controlmode

import (
	"fmt"
	"strings"
)

// commandLine renders argv as one control-mode request line, quoting
// arguments the way tmux's command parser expects. Arguments containing line
// breaks are rejected: the protocol is line-delimited, so a break would
// smuggle a second, unregistered request onto the connection.
func commandLine(argv []string) (string, error) {
	parts := make([]string, len(argv))
	for i, arg := range argv {
		if strings.ContainsAny(arg, "\n\r") {
			return "", fmt.Errorf("argument %q contains a line break", arg)
		}
		parts[i] = quoteArg(arg)
	}
	return strings.Join(parts, " "), nil
}

func quoteArg(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t;'\"\\#~$") {
		return s
	}
	// Single-quote, splicing in escaped quotes where the argument
	// contains one. tmux does not interpret anything inside single
	// quotes except the closing quote.
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
