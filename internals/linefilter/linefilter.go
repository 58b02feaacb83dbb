// Package linefilter strips terminal control sequences from process output
// before it is displayed or stored.
package linefilter

import (
	"regexp"
	"strings"
)

var (
	// ESC ] ... terminated by BEL or ST. Hyperlinks and window titles.
	oscSequence = regexp.MustCompile(`\x1b\][^\x07\x1b]*(?:\x07|\x1b\\)`)
	// CSI, SGR and two-byte Fe escapes.
	escSequence = regexp.MustCompile(`\x1b[@-_][0-?]*[ -/]*[@-~]`)
)

// Clean returns line with every recognised escape sequence removed. Bytes that
// do not form a complete sequence are left as they are.
//
// Removing a sequence can join the bytes around it into a new one, so Clean
// repeats until nothing changes. Each productive pass shrinks the line, which
// bounds the loop.
func Clean(line string) string {
	for {
		next := strip(line)
		if next == line {
			return line
		}
		line = next
	}
}

func strip(line string) string {
	if strings.IndexByte(line, 0x1b) < 0 {
		return line
	}
	line = oscSequence.ReplaceAllString(line, "")
	return escSequence.ReplaceAllString(line, "")
}

