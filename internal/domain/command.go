package domain

import "strings"

// Command is one operator instruction, e.g. "mix DRY MARTINI".
type Command struct {
	Verb string
	Arg  string
}

// ParseCommand splits a console line into its verb and the remaining text.
// The verb is case-insensitive; the argument is kept as typed since recipe
// and ingredient names are case-significant.
func ParseCommand(line string) (Command, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return Command{}, false
	}
	verb, arg, _ := strings.Cut(line, " ")
	return Command{Verb: strings.ToLower(verb), Arg: strings.TrimSpace(arg)}, true
}
