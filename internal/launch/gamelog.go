// Package launch implements the launch assembler of spec.md §4.6: building
// the game directory from a merged version manifest, assembling the JVM
// argv, and supervising the child process.
package launch

import "strings"

// EntryType tags a GameLog entry's source stream, per spec.md §4.6's
// "System|StdOut|StdErr" glossary entry.
type EntryType int

const (
	System EntryType = iota
	StdOut
	StdErr
)

// internalLine is one slot of the addressable line index: either a
// concrete entry (byte range into buf) or a filler (nil) inserted when a
// push's text carries more than one embedded newline, so that line
// numbers stay stable without storing an entry per blank line.
type internalLine struct {
	hasEntry bool
	typ      EntryType
	start    int
	end      int
}

// LogEntry is the addressable (type, start_line, text) tuple spec.md §4.6
// returns from get_entry/get_region.
type LogEntry struct {
	Type      EntryType
	StartLine int
	Text      string
}

// GameLog is the per-launch coalescing log buffer of spec.md §4.6, ported
// from original_source's managers/instance/log.rs: consecutive pushes of
// the same EntryType are merged into one logical line as long as the
// previous push did not end in a newline.
type GameLog struct {
	buf               strings.Builder
	lines             []internalLine
	lastEntry         int
	lastWasTerminated bool
}

// NewGameLog returns an empty log, ready to accept pushes.
func NewGameLog() *GameLog {
	return &GameLog{lastWasTerminated: true}
}

// Push appends text tagged entryType, coalescing with the previous entry
// when types match and the previous push was not newline-terminated, per
// log.rs's push().
func (g *GameLog) Push(entryType EntryType, text string) {
	newlineCount := strings.Count(text, "\n")
	terminated := strings.HasSuffix(text, "\n")
	if terminated {
		text = text[:len(text)-1]
	}

	if !g.lastWasTerminated && g.lastEntry < len(g.lines) && g.lines[g.lastEntry].hasEntry &&
		g.lines[g.lastEntry].typ == entryType {
		g.buf.WriteString(text)
		g.lines[g.lastEntry].end = g.buf.Len()
		g.lastWasTerminated = terminated
		if terminated {
			for i := 1; i < newlineCount; i++ {
				g.lines = append(g.lines, internalLine{})
			}
		}
		return
	}

	start := g.buf.Len()
	g.buf.WriteString(text)
	end := g.buf.Len()

	g.lastEntry = len(g.lines)
	g.lines = append(g.lines, internalLine{hasEntry: true, typ: entryType, start: start, end: end})
	g.lastWasTerminated = terminated
	if terminated {
		for i := 1; i < newlineCount; i++ {
			g.lines = append(g.lines, internalLine{})
		}
	}
}

// Len returns the number of addressable lines currently stored.
func (g *GameLog) Len() int {
	return len(g.lines)
}

// GetEntry returns the first entry at or before line, per log.rs's
// get_entry (a filler line resolves to the nearest preceding entry).
func (g *GameLog) GetEntry(line int) (LogEntry, bool) {
	if line < 0 || line >= len(g.lines) {
		return LogEntry{}, false
	}
	for i := line; i >= 0; i-- {
		l := g.lines[i]
		if l.hasEntry {
			return LogEntry{Type: l.typ, StartLine: i, Text: g.text(l)}, true
		}
	}
	return LogEntry{}, false
}

// GetRegion returns the entries overlapping [start, end), per log.rs's
// get_region: scan backward from end, collecting each entry found, and
// stop once an entry at or before start has been collected.
func (g *GameLog) GetRegion(start, end int) []LogEntry {
	if start < 0 {
		start = 0
	}
	if end > len(g.lines) {
		end = len(g.lines)
	}
	if end <= 0 {
		return nil
	}

	var entries []LogEntry
	for i := end - 1; i >= 0; i-- {
		l := g.lines[i]
		if l.hasEntry {
			entries = append(entries, LogEntry{Type: l.typ, StartLine: i, Text: g.text(l)})
			if i <= start {
				break
			}
		}
	}

	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries
}

func (g *GameLog) text(l internalLine) string {
	return g.buf.String()[l.start:l.end]
}
