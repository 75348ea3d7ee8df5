package project

import (
	"os"
	"regexp"
)

const (
	ConfigFileName = "tsconfig.json"
	ScriptFileName = "build.sh"
)

// compilerInvocation matches script text that runs the compiler, either
// through the $TS checkout variable or a plain tsc command word.
var compilerInvocation = regexp.MustCompile(`(?m)\$\{?TS\}?/|(?:^|[\s;&|(])(?:npx\s+)?tsc(?:\s|$)`)

// looksLikeBuildScript reports whether script text invokes the compiler.
func looksLikeBuildScript(text string) bool {
	return compilerInvocation.MatchString(text)
}

// readScript loads a build.sh candidate. ok is false when the file was read
// but does not invoke the compiler.
func readScript(path string) (contents string, ok bool, err error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", true, err
	}
	text := string(raw)
	return text, looksLikeBuildScript(text), nil
}
