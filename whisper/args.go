package whisper

import (
	"fmt"
	"strings"

	"github.com/google/shlex"
)

// Flags set by the runner itself; extra args may not override them.
var managedFlags = map[string]bool{
	"-m": true, "--model": true,
	"-l": true, "--language": true,
	"-f": true, "--file": true,
	"-oj": true, "--output-json": true,
	"-of": true, "--output-file": true,
	"-pp": true, "--print-progress": true,
}

// SplitArgs securely splits a flag string into a slice of arguments.
// It prevents shell injection by not using a shell.
func SplitArgs(flags string) ([]string, error) {
	args, err := shlex.Split(flags)
	if err != nil {
		return nil, fmt.Errorf("invalid whisper flags syntax: %w", err)
	}
	return args, nil
}

// ValidateExtraArgs checks configured extra flags for shell metacharacters
// and for flags the runner manages.
func ValidateExtraArgs(args []string) error {
	for _, arg := range args {
		if strings.ContainsAny(arg, "|&;`$()<>") {
			return fmt.Errorf("disallowed character found in argument: %s", arg)
		}
		name, _, _ := strings.Cut(arg, "=")
		if managedFlags[name] {
			return fmt.Errorf("flag %s is set by the service and cannot be overridden", name)
		}
	}
	return nil
}

// BuildArgs assembles the whisper command line for one transcription.
func BuildArgs(model, language, audioPath, outputPrefix string, extra []string) []string {
	args := []string{
		"-m", model,
		"-l", language,
		"-f", audioPath,
		"-oj",
		"-of", outputPrefix,
		"--print-progress",
	}
	return append(args, extra...)
}
