// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Shrinkr - 批量转码代理文件工具

package profile

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kballard/go-shellquote"
)

const (
	PlaceholderInput  = "input"
	PlaceholderOutput = "output"
)

var rePlaceholder = regexp.MustCompile(`\{([^{}]*)\}`)

// TemplateError is a command template rejected at load time
type TemplateError struct {
	Template string
	Reason   string
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("invalid command template %q: %s", e.Template, e.Reason)
}

// Template is a tokenized command line with {input} and {output} slots
type Template struct {
	raw  string
	args []string
}

// ParseTemplate splits s into words with POSIX shell quoting rules and
// checks the placeholders. Nothing is expanded.
func ParseTemplate(s string) (Template, error) {
	args, err := shellquote.Split(s)
	if err != nil {
		return Template{}, &TemplateError{Template: s, Reason: err.Error()}
	}
	if len(args) == 0 {
		return Template{}, &TemplateError{Template: s, Reason: "empty command"}
	}

	seen := map[string]bool{}
	for _, a := range args {
		for _, m := range rePlaceholder.FindAllStringSubmatch(a, -1) {
			switch m[1] {
			case PlaceholderInput, PlaceholderOutput:
				seen[m[1]] = true
			default:
				return Template{}, &TemplateError{Template: s, Reason: "unknown placeholder {" + m[1] + "}"}
			}
		}
	}
	if strings.Contains(args[0], "{") {
		return Template{}, &TemplateError{Template: s, Reason: "program name can't be a placeholder"}
	}
	for _, name := range []string{PlaceholderInput, PlaceholderOutput} {
		if !seen[name] {
			return Template{}, &TemplateError{Template: s, Reason: "missing {" + name + "}"}
		}
	}

	return Template{raw: s, args: args}, nil
}

// String returns the template as written
func (t Template) String() string {
	return t.raw
}

// Program is the executable the template runs
func (t Template) Program() string {
	if len(t.args) == 0 {
		return ""
	}
	return t.args[0]
}

// Command is a ready to run argv
type Command struct {
	Args []string
}

// Build substitutes input and output into every argument
func (t Template) Build(input, output string) Command {
	r := strings.NewReplacer("{"+PlaceholderInput+"}", input, "{"+PlaceholderOutput+"}", output)
	args := make([]string, len(t.args))
	for i, a := range t.args {
		args[i] = r.Replace(a)
	}
	return Command{Args: args}
}

// String renders the command for display. The result can be pasted into
// a POSIX shell and runs the same argv.
func (c Command) String() string {
	return shellquote.Join(c.Args...)
}
