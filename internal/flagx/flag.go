// Package flagx has helpers that let several independent flag sets share one
// command line: each consumer filters os.Args down to the flags it owns
// before parsing.
package flagx

import (
	"flag"
	"os"
	"strings"
)

// flagName strips one or two leading dashes and any "=value" suffix, so that
// "-c", "--c" and "--c=x" all name the flag "c".
func flagName(arg string) string {
	name := strings.TrimPrefix(strings.TrimPrefix(arg, "-"), "-")
	if i := strings.IndexByte(name, '='); i >= 0 {
		name = name[:i]
	}
	return name
}

func nameSet(flags []string) map[string]struct{} {
	set := make(map[string]struct{}, len(flags))
	for _, f := range flags {
		set[flagName(f)] = struct{}{}
	}
	return set
}

func isFlag(arg string) bool {
	return strings.HasPrefix(arg, "-") && arg != "-"
}

// FilterArgs returns the subset of args that belongs to allowedFlags, keeping
// their values.
//
// Supported formats:
//  1. Flag and value as separate arguments:  -c conf.json
//  2. Flag and value combined with '=':      --config=conf.json
//  3. Boolean flags listed in boolFlags:     -p (never consumes a value)
//
// Single and double dash spellings are interchangeable.
func FilterArgs(args []string, allowedFlags []string, boolFlags ...string) []string {
	allowed := nameSet(allowedFlags)
	bools := nameSet(boolFlags)

	filtered := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !isFlag(arg) {
			continue
		}
		name := flagName(arg)

		if _, ok := bools[name]; ok {
			filtered = append(filtered, arg)
			continue
		}
		if _, ok := allowed[name]; !ok {
			continue
		}

		filtered = append(filtered, arg)
		if strings.Contains(arg, "=") {
			continue
		}
		// the next token is this flag's value unless it looks like a flag
		if i+1 < len(args) && !isFlag(args[i+1]) {
			filtered = append(filtered, args[i+1])
			i++
		}
	}

	return filtered
}

// Positional returns the arguments that are neither flags nor values of the
// given value flags. Boolean flags need not be listed.
func Positional(args []string, valueFlags []string) []string {
	values := nameSet(valueFlags)
	out := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			return append(out, args[i+1:]...)
		}
		if !isFlag(arg) {
			out = append(out, arg)
			continue
		}
		if strings.Contains(arg, "=") {
			continue
		}
		if _, ok := values[flagName(arg)]; ok && i+1 < len(args) && !isFlag(args[i+1]) {
			i++
		}
	}
	return out
}

// JsonConfigFlags extracts the config file path provided via the -c or
// -config flags, ignoring everything else on the command line. It returns ""
// when neither is present.
func JsonConfigFlags() string {
	var config string

	args := FilterArgs(os.Args[1:], []string{"-c", "-config"})

	fs := flag.NewFlagSet("json", flag.ContinueOnError)
	fs.StringVar(&config, "config", "", "Path to config file")
	fs.StringVar(&config, "c", "", "Path to config file (short)")
	_ = fs.Parse(args)

	return config
}
