package voice

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

// KeptInputDir is where --keep-input-audio stores recordings, one
// subdirectory per session.
const KeptInputDir = ".voice_inputs"

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

func SafeSessionDirName(raw string) string {
	cleaned := unsafeChars.ReplaceAllString(raw, "_")
	if cleaned == "" {
		return "unknown-session"
	}
	return cleaned
}

// TurnPath reserves the WAV file for one turn. Kept files land in
// root/<session>/<UTC timestamp>-<random>.wav; transient ones go to the OS
// temp dir and cleanup removes them. cleanup is never nil.
func TurnPath(keep bool, session, root string) (path string, cleanup func(), err error) {
	if !keep {
		f, err := os.CreateTemp("", "vincent-*.wav")
		if err != nil {
			return "", func() {}, fmt.Errorf("create temp recording: %w", err)
		}
		name := f.Name()
		f.Close()
		return name, func() { os.Remove(name) }, nil
	}

	if root == "" {
		root = KeptInputDir
	}
	dir := filepath.Join(root, SafeSessionDirName(session))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", func() {}, fmt.Errorf("create recording dir: %w", err)
	}

	stamp := time.Now().UTC().Format("2006-01-02-15-04-05")
	f, err := os.CreateTemp(dir, stamp+"-*.wav")
	if err != nil {
		return "", func() {}, fmt.Errorf("create recording: %w", err)
	}
	name := f.Name()
	f.Close()
	return name, func() {}, nil
}
