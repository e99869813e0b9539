package history

import "sync"

// Log is an ordered, append-only list of records. It is never pruned;
// Clear empties it on explicit request.
type Log struct {
	mu      sync.Mutex
	records []*Record
}

// Append adds rec at the end of the log.
func (l *Log) Append(rec *Record) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, rec)
}

// List returns a copy of the records, oldest first.
func (l *Log) List() []*Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*Record, len(l.records))
	copy(out, l.records)
	return out
}

// Last returns up to n of the most recent records, oldest first.
// n <= 0 returns all records.
func (l *Log) Last(n int) []*Record {
	all := l.List()
	if n <= 0 || n >= len(all) {
		return all
	}
	return all[len(all)-n:]
}

// Len returns the number of records.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// Clear removes every record.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = nil
}
