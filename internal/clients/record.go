package clients

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

var (
	// ErrStore marks a client store that cannot be read or written
	ErrStore = errors.New("client store unavailable")
	// ErrDuplicateID is returned when an account id is already held by another record
	ErrDuplicateID = errors.New("account id already assigned to another client")
	// ErrNotFound is returned by lookups for unknown names
	ErrNotFound = errors.New("client not found")
	// ErrInvalidRecord rejects names that cannot be stored as a single line
	ErrInvalidRecord = errors.New("invalid client record")
)

const commentMarker = "#"

// Record maps a payer name to a billing account id. AccountID is nil until learned.
type Record struct {
	Name      string `json:"name"`
	AccountID *int64 `json:"account_id,omitempty"`
}

// HasID reports whether the record carries an account id
func (r Record) HasID() bool {
	return r.AccountID != nil
}

// Key is the case-insensitive identity of a client name
func Key(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// line is one line of the store: either a record or text kept verbatim.
// A record parsed from a line with an unusable id keeps its raw text until
// it is rewritten by Upsert.
type line struct {
	raw     string
	rec     *Record
	keepRaw bool
}

// MalformedLine is a store line whose account id could not be parsed. Its
// name still resolves, as a record without an id.
type MalformedLine struct {
	Number int
	Text   string
}

// Set is the ordered record set loaded from a backend. Comments, blank lines
// and record order survive a load/render round trip.
type Set struct {
	lines     []line
	index     map[string]int
	touched   map[string]bool
	malformed []MalformedLine
}

// NewSet returns an empty record set
func NewSet() *Set {
	return &Set{index: make(map[string]int), touched: make(map[string]bool)}
}

// LoadSet builds an unchanged set from records a backend has already decoded
func LoadSet(recs []Record) *Set {
	s := NewSet()
	for _, r := range recs {
		rec := copyRecord(r)
		if _, exists := s.index[Key(rec.Name)]; !exists {
			s.index[Key(rec.Name)] = len(s.lines)
		}
		s.lines = append(s.lines, line{rec: &rec})
	}
	return s
}

// ParseSet reads the line-oriented `name|accountId` format
func ParseSet(data []byte) (*Set, error) {
	s := NewSet()
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		text := strings.TrimRight(scanner.Text(), "\r")
		trimmed := strings.TrimSpace(text)

		if trimmed == "" || strings.HasPrefix(trimmed, commentMarker) {
			s.lines = append(s.lines, line{raw: text})
			continue
		}

		name, idText, _ := strings.Cut(trimmed, "|")
		name = strings.TrimSpace(name)
		idText = strings.TrimSpace(idText)
		if name == "" {
			s.lines = append(s.lines, line{raw: text})
			continue
		}

		rec := &Record{Name: name}
		keepRaw := false
		if idText != "" {
			id, err := strconv.ParseInt(idText, 10, 64)
			if err != nil || id <= 0 {
				// hand edits go wrong; one bad line must not take the store down
				keepRaw = true
				s.malformed = append(s.malformed, MalformedLine{Number: lineNum, Text: text})
			} else {
				rec.AccountID = &id
			}
		}

		// first occurrence of a name wins, later ones are kept but never matched
		if _, exists := s.index[Key(name)]; !exists {
			s.index[Key(name)] = len(s.lines)
		}
		s.lines = append(s.lines, line{raw: text, rec: rec, keepRaw: keepRaw})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan records: %w", err)
	}
	return s, nil
}

// Render writes the set back in its on-disk format
func (s *Set) Render() []byte {
	var buf bytes.Buffer
	for _, l := range s.lines {
		if l.rec == nil || l.keepRaw {
			buf.WriteString(l.raw)
		} else {
			buf.WriteString(l.rec.Name)
			buf.WriteByte('|')
			if l.rec.AccountID != nil {
				buf.WriteString(strconv.FormatInt(*l.rec.AccountID, 10))
			}
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// Find looks a record up by case-insensitive name
func (s *Set) Find(name string) (Record, bool) {
	i, ok := s.index[Key(name)]
	if !ok {
		return Record{}, false
	}
	return copyRecord(*s.lines[i].rec), true
}

// FindByAccountID returns the record holding id, if any
func (s *Set) FindByAccountID(id int64) (Record, bool) {
	for _, l := range s.lines {
		if l.rec != nil && l.rec.AccountID != nil && *l.rec.AccountID == id {
			return copyRecord(*l.rec), true
		}
	}
	return Record{}, false
}

// ListAll returns every record in store order
func (s *Set) ListAll() []Record {
	var out []Record
	for _, l := range s.lines {
		if l.rec != nil {
			out = append(out, copyRecord(*l.rec))
		}
	}
	return out
}

// Upsert replaces the record with the same name in place, or appends it.
// An account id already held by a different name is refused with ErrDuplicateID.
func (s *Set) Upsert(rec Record) error {
	name := strings.TrimSpace(rec.Name)
	if name == "" || strings.ContainsAny(name, "|\r\n") || strings.HasPrefix(name, commentMarker) {
		return fmt.Errorf("%w: name %q", ErrInvalidRecord, rec.Name)
	}
	key := Key(name)

	if rec.AccountID != nil {
		if holder, ok := s.FindByAccountID(*rec.AccountID); ok && Key(holder.Name) != key {
			return fmt.Errorf("%w: %d held by %q", ErrDuplicateID, *rec.AccountID, holder.Name)
		}
	}

	stored := copyRecord(Record{Name: name, AccountID: rec.AccountID})
	if i, ok := s.index[key]; ok {
		s.lines[i].rec = &stored
		s.lines[i].keepRaw = false
	} else {
		s.index[key] = len(s.lines)
		s.lines = append(s.lines, line{rec: &stored})
	}
	s.touched[key] = true
	return nil
}

// Malformed lists the lines whose account id was ignored while parsing
func (s *Set) Malformed() []MalformedLine {
	return s.malformed
}

// Dirty reports whether Upsert changed the set since it was loaded
func (s *Set) Dirty() bool {
	return len(s.touched) > 0
}

// Changed returns the records written by Upsert, in store order
func (s *Set) Changed() []Record {
	var out []Record
	for key := range s.touched {
		out = append(out, copyRecord(*s.lines[s.index[key]].rec))
	}
	sort.Slice(out, func(i, j int) bool {
		return s.index[Key(out[i].Name)] < s.index[Key(out[j].Name)]
	})
	return out
}

func copyRecord(r Record) Record {
	if r.AccountID != nil {
		id := *r.AccountID
		r.AccountID = &id
	}
	return r
}
