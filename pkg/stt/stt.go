// Package stt holds the engine-neutral types of speech recognition.
package stt

import "strings"

const (
	TaskTranscribe = "transcribe"
	TaskTranslate  = "translate"
)

type Options struct {
	Task     string // TaskTranscribe or TaskTranslate (to English)
	Language string // e.g. "en"; empty means auto-detect
	Threads  int    // <=0 => NumCPU()
}

type Segment struct {
	Text     string
	StartSec float64
	EndSec   float64
}

type Result struct {
	Text     string
	Segments []Segment
	Language string // detected or forced
}

// JoinSegments trims every segment, drops the empty ones and joins the rest
// with single spaces.
func JoinSegments(segs []Segment) string {
	parts := make([]string, 0, len(segs))
	for _, s := range segs {
		if t := strings.TrimSpace(s.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}
