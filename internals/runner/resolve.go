package runner

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

var errEmptyCommand = errors.New("command is empty")

// Words the shell handles itself. A command starting with one of them never
// needs a binary on PATH.
var shellWords = map[string]struct{}{
	"!": {}, ".": {}, ":": {}, "[": {}, "{": {}, "(": {},
	"alias": {}, "bg": {}, "break": {}, "case": {}, "cd": {}, "command": {},
	"continue": {}, "echo": {}, "eval": {}, "exec": {}, "exit": {}, "export": {},
	"false": {}, "fg": {}, "for": {}, "getopts": {}, "hash": {}, "if": {},
	"jobs": {}, "kill": {}, "local": {}, "printf": {}, "pwd": {}, "read": {},
	"readonly": {}, "return": {}, "set": {}, "shift": {}, "source": {},
	"test": {}, "times": {}, "trap": {}, "true": {}, "type": {}, "ulimit": {},
	"umask": {}, "unalias": {}, "unset": {}, "until": {}, "wait": {}, "while": {},
}

// resolve checks that the program a command line would run exists. Leading
// VAR=value assignments are skipped.
func resolve(command string) error {
	fields := strings.Fields(command)
	for len(fields) > 0 && isAssignment(fields[0]) {
		fields = fields[1:]
	}
	if len(fields) == 0 {
		if strings.TrimSpace(command) == "" {
			return errEmptyCommand
		}
		return nil
	}

	program := fields[0]
	if _, ok := shellWords[program]; ok {
		return nil
	}
	if strings.ContainsRune(program, os.PathSeparator) {
		info, err := os.Stat(program)
		if err != nil {
			return fmt.Errorf("command '%s' not found or not executable: %w", program, err)
		}
		if info.IsDir() || info.Mode().Perm()&0o111 == 0 {
			return fmt.Errorf("command '%s' not found or not executable", program)
		}
		return nil
	}
	if _, err := exec.LookPath(program); err != nil {
		return fmt.Errorf("command '%s' not found or not executable: %w", program, err)
	}
	return nil
}

func isAssignment(word string) bool {
	eq := strings.IndexByte(word, '=')
	if eq <= 0 {
		return false
	}
	for i, r := range word[:eq] {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
