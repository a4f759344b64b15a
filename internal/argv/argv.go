// Package argv splits a shell-level argument list into pipeline stage
// shards and provides the sentinel-terminated multi-value extraction
// that flags like parse's "-m <glob>… m-" need on top of ordinary
// pflag parsing.
package argv

import "fmt"

// PipelineToken is the literal argv element that separates stages.
const PipelineToken = "!"

// UsageError reports a problem splitting or parsing argv that should
// exit the process with status 2, before any stage has run.
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string { return e.Message }

// SplitPipeline splits args on every standalone "!" element into
// non-empty shards, one per stage. A leading, trailing, or doubled "!"
// (which would yield an empty shard) is a usage error.
func SplitPipeline(args []string) ([][]string, error) {
	var shards [][]string
	var current []string
	for _, a := range args {
		if a == PipelineToken {
			if len(current) == 0 {
				return nil, &UsageError{Message: "empty stage in pipeline (stray '!')"}
			}
			shards = append(shards, current)
			current = nil
			continue
		}
		current = append(current, a)
	}
	if len(current) == 0 {
		if len(shards) == 0 {
			return nil, &UsageError{Message: "empty pipeline"}
		}
		return nil, &UsageError{Message: "empty stage in pipeline (trailing '!')"}
	}
	shards = append(shards, current)
	return shards, nil
}

// ExtractSentinel scans args for a flag token (e.g. "-m") and consumes
// every following element as a value until it finds terminator (e.g.
// "m-"), which is itself consumed but not returned as a value. It
// returns the collected values plus args with that whole span removed,
// so the remainder can be handed to an ordinary flag parser. Missing
// the terminator before the shard ends is a usage error. A flag with
// zero values before its terminator is allowed and contributes no
// values.
func ExtractSentinel(args []string, flag, terminator string) (values []string, remaining []string, err error) {
	for i := 0; i < len(args); i++ {
		if args[i] != flag {
			continue
		}
		j := i + 1
		var collected []string
		for {
			if j >= len(args) {
				return nil, nil, &UsageError{Message: fmt.Sprintf("missing terminator %q for %s", terminator, flag)}
			}
			if args[j] == terminator {
				break
			}
			collected = append(collected, args[j])
			j++
		}
		rest := make([]string, 0, len(args)-(j-i))
		rest = append(rest, args[:i]...)
		rest = append(rest, args[j+1:]...)
		// Multiple occurrences of flag concatenate their spans in
		// argv order, matching "per-pattern, in positional order".
		moreValues, moreRest, err := ExtractSentinel(rest, flag, terminator)
		if err != nil {
			return nil, nil, err
		}
		return append(collected, moreValues...), moreRest, nil
	}
	return nil, args, nil
}
