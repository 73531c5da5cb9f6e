package matcher

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/hetulpatel/arbscan/internal/models"
)

type LogMode int

const (
	LogModeQuiet LogMode = iota
	LogModeSummary
	LogModeVerbose
)

func ParseLogMode(input string) LogMode {
	switch strings.ToLower(input) {
	case "summary":
		return LogModeSummary
	case "verbose":
		return LogModeVerbose
	default:
		return LogModeQuiet
	}
}

// Logger reports accepted matches to out and, when path is set, appends a
// JSON record per match to that file.
type Logger struct {
	mode LogMode
	out  io.Writer
	path string
}

func NewLogger(mode LogMode, path string) *Logger {
	return &Logger{mode: mode, out: os.Stdout, path: path}
}

func (l *Logger) Mode() LogMode {
	if l == nil {
		return LogModeQuiet
	}
	return l.mode
}

func (l *Logger) Enabled() bool {
	return l != nil && l.mode != LogModeQuiet
}

func (l *Logger) LogMatch(pair models.MatchedPair, threshold int) {
	if !l.Enabled() {
		return
	}
	switch l.mode {
	case LogModeSummary:
		fmt.Fprintf(l.out, "[matcher] matched %s (%s) -> %s (%s) score=%d threshold=%d\n",
			pair.A.Venue, pair.A.Title, pair.B.Venue, pair.B.Title, pair.MatchScore, threshold)
	case LogModeVerbose:
		aJSON, _ := json.MarshalIndent(pair.A, "", "  ")
		bJSON, _ := json.MarshalIndent(pair.B, "", "  ")
		fmt.Fprintf(l.out, "[matcher] match score=%d threshold=%d\nsource=%s\nmatch=%s\n", pair.MatchScore, threshold, aJSON, bJSON)
	}
	if l.path != "" {
		l.appendToFile(pair, threshold)
	}
}

func (l *Logger) appendToFile(pair models.MatchedPair, threshold int) {
	entry := map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"score":     pair.MatchScore,
		"threshold": threshold,
		"source":    pair.A,
		"target":    pair.B,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(l.out, "[matcher] log file marshal error: %v\n", err)
		return
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		fmt.Fprintf(l.out, "[matcher] log file open error: %v\n", err)
		return
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		fmt.Fprintf(l.out, "[matcher] log file write error: %v\n", err)
	}
}
