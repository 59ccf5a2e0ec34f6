// Package directive parses and formats the line-oriented control messages
// exchanged with capture peers and typed by the local operator.
//
// Outbound lines are "PAUSE", "RESUME", "TEXT:<message>" or a free-form
// result summary, each terminated by a single newline. Inbound peer traffic
// recognizes only RESUME.
package directive

import (
	"strings"

	perr "penwatch/internal/platform/errors"
)

// Kind enumerates directive types
type Kind uint8

const (
	// KindUnknown is never sent
	KindUnknown Kind = iota
	// KindPause asks peers to stop capturing
	KindPause
	// KindResume asks peers to capture again
	KindResume
	// KindText carries a message for display on peers
	KindText
	// KindResult carries a raw analysis summary
	KindResult
	// KindExit ends the operator console; never broadcast
	KindExit
)

func (k Kind) String() string {
	switch k {
	case KindPause:
		return "PAUSE"
	case KindResume:
		return "RESUME"
	case KindText:
		return "TEXT"
	case KindResult:
		return "RESULT"
	case KindExit:
		return "EXIT"
	default:
		return "UNKNOWN"
	}
}

// textPrefix separates the verb from its payload on the wire
const textPrefix = "TEXT:"

// Directive is one control message
type Directive struct {
	Kind Kind
	Text string
}

// Pause is the PAUSE directive
func Pause() Directive { return Directive{Kind: KindPause} }

// Resume is the RESUME directive
func Resume() Directive { return Directive{Kind: KindResume} }

// Text builds a TEXT directive from msg after sanitizing it
func Text(msg string) (Directive, error) {
	clean := Sanitize(msg)
	if clean == "" {
		return Directive{}, perr.New(perr.ErrorCodeInvalidArgument, "text message is empty")
	}
	return Directive{Kind: KindText, Text: clean}, nil
}

// Result wraps an analysis summary as a broadcastable line
func Result(summary string) (Directive, bool) {
	clean := Sanitize(summary)
	return Directive{Kind: KindResult, Text: clean}, clean != ""
}

// Line renders d without the trailing newline
func (d Directive) Line() string {
	switch d.Kind {
	case KindPause, KindResume:
		return d.Kind.String()
	case KindText:
		return textPrefix + d.Text
	case KindResult:
		return d.Text
	default:
		return ""
	}
}

// Wire renders d as a newline-terminated line
func (d Directive) Wire() []byte {
	return []byte(d.Line() + "\n")
}

// ParseToken classifies one whitespace-delimited token read from a control
// peer. Only RESUME is honored; every other token reports false.
func ParseToken(tok string) (Kind, bool) {
	if strings.EqualFold(strings.TrimSpace(tok), "RESUME") {
		return KindResume, true
	}
	return KindUnknown, false
}

// ParseOperator parses one operator console line: PAUSE, RESUME, EXIT or
// TEXT <message>. Verbs are case-insensitive.
func ParseOperator(line string) (Directive, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Directive{}, perr.New(perr.ErrorCodeInvalidArgument, "empty command")
	}

	verb, rest, _ := strings.Cut(line, " ")
	switch strings.ToUpper(verb) {
	case "PAUSE":
		return Pause(), nil
	case "RESUME":
		return Resume(), nil
	case "EXIT", "QUIT":
		return Directive{Kind: KindExit}, nil
	case "TEXT":
		d, err := Text(rest)
		if err != nil {
			return Directive{}, perr.WithField(err, "message")
		}
		return d, nil
	default:
		return Directive{}, perr.InvalidArgf("unknown command %q (want PAUSE, RESUME, TEXT <msg> or EXIT)", verb)
	}
}
