package session

// TranscriptEntry is one utterance in the session transcript.
type TranscriptEntry struct {
	Role  string
	Text  string
	Final bool
}

// transcriptBuffer keeps finalized utterances in arrival order plus at most
// one open streaming utterance per speaker, extended in place until its
// final transcript arrives.
type transcriptBuffer struct {
	entries []TranscriptEntry
	open    map[string]int
}

func newTranscriptBuffer() *transcriptBuffer {
	return &transcriptBuffer{open: make(map[string]int)}
}

// appendDelta extends the speaker's open utterance, opening one if needed.
func (b *transcriptBuffer) appendDelta(role, delta string) {
	if idx, ok := b.open[role]; ok {
		b.entries[idx].Text += delta
		return
	}
	b.entries = append(b.entries, TranscriptEntry{Role: role, Text: delta})
	b.open[role] = len(b.entries) - 1
}

// finalize closes the speaker's open utterance and returns it. A non-empty
// full text replaces the accumulated deltas, since the upstream's final
// transcript is authoritative. With no open utterance the full text becomes
// a new entry, already final.
func (b *transcriptBuffer) finalize(role, full string) TranscriptEntry {
	idx, ok := b.open[role]
	if !ok {
		entry := TranscriptEntry{Role: role, Text: full, Final: true}
		b.entries = append(b.entries, entry)
		return entry
	}
	delete(b.open, role)
	if full != "" {
		b.entries[idx].Text = full
	}
	b.entries[idx].Final = true
	return b.entries[idx]
}

// clear drops everything, open and finalized.
func (b *transcriptBuffer) clear() {
	b.entries = nil
	b.open = make(map[string]int)
}
