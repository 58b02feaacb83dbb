package version

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
)

var identity = sync.OnceValue(computeIdentity)

// Identity is dot-separated build metadata that changes whenever the binary
// is rebuilt: the vcs revision, a dirty flag and a hash of the executable,
// each omitted when unknown. The daemon and CLI compare it to detect a stale
// daemon after an upgrade.
func Identity() string {
	return identity()
}

func computeIdentity() string {
	parts := []string{}
	rev, dirty := vcsInfo()
	if rev != "" {
		parts = append(parts, rev)
	}
	if dirty {
		parts = append(parts, "dirty")
	}
	if hash := executableHash(); hash != "" {
		parts = append(parts, hash)
	}
	return strings.Join(parts, ".")
}

func vcsInfo() (rev12 string, dirty bool) {
	info, ok := debug.ReadBuildInfo()
	if !ok || info == nil {
		return "", false
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			rev12 = shorten(strings.TrimSpace(s.Value))
		case "vcs.modified":
			dirty = strings.EqualFold(strings.TrimSpace(s.Value), "true")
		}
	}
	return rev12, dirty
}

func executableHash() string {
	exe, err := os.Executable()
	if err != nil || exe == "" {
		return ""
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	f, err := os.Open(exe)
	if err != nil {
		return ""
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return ""
	}
	return shorten(hex.EncodeToString(h.Sum(nil)))
}

func shorten(s string) string {
	if len(s) > 12 {
		return s[:12]
	}
	return s
}
