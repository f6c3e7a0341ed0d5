// Package breakdown builds the ordered, human-readable explanation of how a
// quote line was computed. Entries are typed and validated on append; only the
// rendered strings cross the system boundary.
package breakdown

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

type Kind string

const (
	KindStep    Kind = "STEP"
	KindCheck   Kind = "CHECK"
	KindWarning Kind = "WARNING"
	KindMeta    Kind = "META"
)

type CheckStatus string

const (
	CheckOK    CheckStatus = "OK"
	CheckBlock CheckStatus = "BLOCK"
)

const maxMessageLen = 240

var codeRe = regexp.MustCompile(`^[A-Z][A-Z0-9_]{2,63}$`)

var (
	ErrInvalidCode    = errors.New("breakdown code must be UPPER_SNAKE, 3-64 chars")
	ErrEmptyMessage   = errors.New("breakdown message must be non-empty")
	ErrUnsafeMessage  = errors.New("breakdown message may not contain newlines or tabs")
	ErrMessageTooLong = errors.New("breakdown message too long")
	ErrInvalidStatus  = errors.New("check status must be OK or BLOCK")
)

// Entry is immutable once appended. Code is retained for programmatic tests;
// rendering is string-only.
type Entry struct {
	Seq     int
	Kind    Kind
	Code    string
	Message string
	Status  CheckStatus
}

// Breakdown accumulates entries in insertion order. The zero value is ready
// to use.
type Breakdown struct {
	entries []Entry
	seq     int
}

func New() *Breakdown {
	return &Breakdown{}
}

// Entries returns a copy to keep appended entries immutable.
func (b *Breakdown) Entries() []Entry {
	out := make([]Entry, len(b.entries))
	copy(out, b.entries)
	return out
}

func (b *Breakdown) Len() int {
	return len(b.entries)
}

func (b *Breakdown) AddStep(code, message string) error {
	return b.append(KindStep, code, message, "")
}

func (b *Breakdown) AddCheck(code, message string, status CheckStatus) error {
	if status != CheckOK && status != CheckBlock {
		return errors.Wrapf(ErrInvalidStatus, "code %s", code)
	}
	return b.append(KindCheck, code, message, status)
}

func (b *Breakdown) AddWarning(code, message string) error {
	return b.append(KindWarning, code, message, "")
}

func (b *Breakdown) AddMeta(code, message string) error {
	return b.append(KindMeta, code, message, "")
}

func (b *Breakdown) append(kind Kind, code, message string, status CheckStatus) error {
	code = strings.TrimSpace(code)
	if !codeRe.MatchString(code) {
		return errors.Wrapf(ErrInvalidCode, "got %q", code)
	}
	msg := strings.TrimSpace(message)
	if msg == "" {
		return errors.Wrapf(ErrEmptyMessage, "code %s", code)
	}
	if strings.ContainsAny(msg, "\n\r\t") {
		return errors.Wrapf(ErrUnsafeMessage, "code %s", code)
	}
	if len(msg) > maxMessageLen {
		return errors.Wrapf(ErrMessageTooLong, "code %s, %d chars", code, len(msg))
	}

	b.seq++
	b.entries = append(b.entries, Entry{
		Seq:     b.seq,
		Kind:    kind,
		Code:    code,
		Message: msg,
		Status:  status,
	})
	return nil
}

// Render converts the entries to their output strings. Pure and repeatable:
// the same breakdown always renders to the same slice.
func Render(b *Breakdown) []string {
	out := make([]string, 0, len(b.entries))
	for _, e := range b.entries {
		out = append(out, renderEntry(e))
	}
	return out
}

func renderEntry(e Entry) string {
	switch e.Kind {
	case KindStep:
		return e.Message
	case KindCheck:
		return string(e.Status) + ": " + e.Message
	case KindWarning:
		return "WARNING: " + e.Message
	case KindMeta:
		return "META: " + e.Message
	default:
		return e.Message
	}
}
