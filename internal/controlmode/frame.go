package controlmode

import "strings"

// FrameKind identifies the kind of a classified control-mode line.
type FrameKind int

// Supported frame kinds.
const (
	// FrameLiteral is a non-% line: one line of output belonging to the
	// currently open response.
	FrameLiteral FrameKind = iota

	// FrameBegin opens a response.
	FrameBegin

	// FrameEnd closes a response successfully.
	FrameEnd

	// FrameError closes a response with a failure.
	FrameError

	// FrameNotification is an unsolicited %-line unrelated to any
	// specific issued command.
	FrameNotification
)

func (k FrameKind) String() string {
	switch k {
	case FrameLiteral:
		return "literal"
	case FrameBegin:
		return "begin"
	case FrameEnd:
		return "end"
	case FrameError:
		return "error"
	case FrameNotification:
		return "notification"
	default:
		return "unknown"
	}
}

// Frame is one classified line of control-mode output. Frames are transient:
// one is produced per input line and none are retained.
type Frame struct {
	Kind FrameKind

	// Name is the %-name of the line without the leading '%'.
	// Set for all kinds except FrameLiteral.
	Name string

	// Args holds the whitespace-separated arguments following the name.
	Args []string

	// Rest is the untokenized remainder of the line after the name, for
	// consumers that need embedded whitespace preserved (%output
	// payloads, window titles).
	Rest string

	// Time, CorrID and Flags carry the <time> <id> <flags> fields of
	// %begin, %end and %error lines. tmux numbers responses on the wire,
	// but correlation is positional; these fields are diagnostic only.
	Time, CorrID, Flags string

	// Text is the literal line, set only for FrameLiteral.
	Text string

	// Raw is the original line, newline stripped.
	Raw string
}

// ClassifyLine classifies a single control-mode line, newline already
// stripped. It never fails: a %-line with an unrecognized name classifies as
// a notification carrying the raw name, so newer tmux versions degrade to
// generic notifications instead of breaking the connection.
func ClassifyLine(line string) Frame {
	if !strings.HasPrefix(line, "%") {
		return Frame{Kind: FrameLiteral, Text: line, Raw: line}
	}

	name, rest, _ := strings.Cut(line[1:], " ")
	f := Frame{
		Name: name,
		Rest: rest,
		Raw:  line,
	}
	if rest != "" {
		f.Args = strings.Fields(rest)
	}

	switch name {
	case "begin":
		f.Kind = FrameBegin
	case "end":
		f.Kind = FrameEnd
	case "error":
		f.Kind = FrameError
	default:
		f.Kind = FrameNotification
		return f
	}

	if len(f.Args) > 0 {
		f.Time = f.Args[0]
	}
	if len(f.Args) > 1 {
		f.CorrID = f.Args[1]
	}
	if len(f.Args) > 2 {
		f.Flags = f.Args[2]
	}
	return f
}
