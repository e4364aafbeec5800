package command

import (
	"strings"
)

// Flag renders an option key as a command-line flag.
func Flag(key string) string {
	name := strings.ReplaceAll(key, "_", "-")
	if len(key) == 1 {
		return "-" + name
	}
	return "--" + name
}

// Compile converts options into tokens: one flag per key, followed by a value token
// unless the value is nil or a boolean. Mapping values become a single "a=b:c=d" token.
// Key semantics are not validated.
func Compile(opts Options) []string {
	tokens := make([]string, 0, len(opts)*2)
	for _, opt := range opts {
		tokens = append(tokens, Flag(opt.Key))
		switch opt.Value.(type) {
		case nil, bool:
			continue
		}
		tokens = append(tokens, FormatValue(opt.Value))
	}
	return tokens
}

// Quote joins tokens into a copy-pasteable shell command line.
func Quote(tokens []string) string {
	quoted := make([]string, len(tokens))
	for i, t := range tokens {
		quoted[i] = quoteToken(t)
	}
	return strings.Join(quoted, " ")
}

func quoteToken(t string) string {
	if t == "" {
		return "''"
	}
	if !strings.ContainsAny(t, " \t\n'\"\\$`|&;<>()*?[]#~!{}") {
		return t
	}
	return "'" + strings.ReplaceAll(t, "'", `'"'"'`) + "'"
}
