package controlmode

import (
	"strings"
	"time"

	"github.com/abhinav/tmux-controlmode/internal/stringobj"
)

// NotificationKind classifies unsolicited control-mode notifications into a
// closed taxonomy. Names this package does not know map to KindRaw so that
// notifications added by newer tmux versions still reach consumers.
type NotificationKind int

// Known notification kinds.
const (
	// KindRaw is the fallback for unrecognized notification names. The
	// untouched line is available in Notification.Raw.
	KindRaw NotificationKind = iota

	KindOutput
	KindExtendedOutput
	KindPaneModeChanged

	KindWindowAdd
	KindWindowClose
	KindWindowRenamed
	KindWindowPaneChanged
	KindUnlinkedWindowAdd
	KindUnlinkedWindowClose
	KindUnlinkedWindowRenamed
	KindLayoutChange

	KindSessionChanged
	KindSessionRenamed
	KindSessionsChanged
	KindSessionWindowChanged

	KindClientSessionChanged
	KindClientDetached

	KindPasteBufferChanged
	KindPasteBufferDeleted

	KindSubscriptionChanged

	KindExit
	KindPause
	KindContinue
	KindConfigError
	KindMessage
)

var _kindNames = map[NotificationKind]string{
	KindRaw:                   "raw",
	KindOutput:                "output",
	KindExtendedOutput:        "extended-output",
	KindPaneModeChanged:       "pane-mode-changed",
	KindWindowAdd:             "window-add",
	KindWindowClose:           "window-close",
	KindWindowRenamed:         "window-renamed",
	KindWindowPaneChanged:     "window-pane-changed",
	KindUnlinkedWindowAdd:     "unlinked-window-add",
	KindUnlinkedWindowClose:   "unlinked-window-close",
	KindUnlinkedWindowRenamed: "unlinked-window-renamed",
	KindLayoutChange:          "layout-change",
	KindSessionChanged:        "session-changed",
	KindSessionRenamed:        "session-renamed",
	KindSessionsChanged:       "sessions-changed",
	KindSessionWindowChanged:  "session-window-changed",
	KindClientSessionChanged:  "client-session-changed",
	KindClientDetached:        "client-detached",
	KindPasteBufferChanged:    "paste-buffer-changed",
	KindPasteBufferDeleted:    "paste-buffer-deleted",
	KindSubscriptionChanged:   "subscription-changed",
	KindExit:                  "exit",
	KindPause:                 "pause",
	KindContinue:              "continue",
	KindConfigError:           "config-error",
	KindMessage:               "message",
}

func (k NotificationKind) String() string {
	if s, ok := _kindNames[k]; ok {
		return s
	}
	return "raw"
}

// _kinds maps wire notification names to kinds. Absent names route to
// KindRaw.
var _kinds = map[string]NotificationKind{
	"output":                  KindOutput,
	"extended-output":         KindExtendedOutput,
	"pane-mode-changed":       KindPaneModeChanged,
	"window-add":              KindWindowAdd,
	"window-close":            KindWindowClose,
	"window-renamed":          KindWindowRenamed,
	"window-pane-changed":     KindWindowPaneChanged,
	"unlinked-window-add":     KindUnlinkedWindowAdd,
	"unlinked-window-close":   KindUnlinkedWindowClose,
	"unlinked-window-renamed": KindUnlinkedWindowRenamed,
	"layout-change":           KindLayoutChange,
	"session-changed":         KindSessionChanged,
	"session-renamed":         KindSessionRenamed,
	"sessions-changed":        KindSessionsChanged,
	"session-window-changed":  KindSessionWindowChanged,
	"client-session-changed":  KindClientSessionChanged,
	"client-detached":         KindClientDetached,
	"paste-buffer-changed":    KindPasteBufferChanged,
	"paste-buffer-deleted":    KindPasteBufferDeleted,
	"subscription-changed":    KindSubscriptionChanged,
	"exit":                    KindExit,
	"pause":                   KindPause,
	"continue":                KindContinue,
	"config-error":            KindConfigError,
	"message":                 KindMessage,
}

// _fields names the positional fields of each notification kind, in wire
// order. The last listed field absorbs the untokenized remainder of the
// line, preserving embedded whitespace (%output payloads, names, messages).
var _fields = map[NotificationKind][]string{
	KindOutput:                {"pane", "value"},
	KindExtendedOutput:        {"pane", "value"},
	KindPaneModeChanged:       {"pane"},
	KindWindowAdd:             {"window"},
	KindWindowClose:           {"window"},
	KindWindowRenamed:         {"window", "name"},
	KindWindowPaneChanged:     {"window", "pane"},
	KindUnlinkedWindowAdd:     {"window"},
	KindUnlinkedWindowClose:   {"window"},
	KindUnlinkedWindowRenamed: {"window", "name"},
	KindLayoutChange:          {"window", "layout"},
	KindSessionChanged:        {"session", "name"},
	KindSessionRenamed:        {"session", "name"},
	KindSessionWindowChanged:  {"session", "window"},
	KindClientSessionChanged:  {"client", "session", "name"},
	KindClientDetached:        {"client"},
	KindPasteBufferChanged:    {"buffer"},
	KindPasteBufferDeleted:    {"buffer"},
	KindSubscriptionChanged:   {"name", "value"},
	KindExit:                  {"reason"},
	KindPause:                 {"pane"},
	KindContinue:              {"pane"},
	KindConfigError:           {"value"},
	KindMessage:               {"value"},
}

// Notification is one unsolicited control-mode event. It lives in the
// bounded notification queue until consumed or evicted.
type Notification struct {
	Kind      NotificationKind
	Timestamp time.Time

	// Raw is the original line as received, including the %-name.
	Raw string

	// Target is the tmux object the notification concerns, when one is
	// identifiable: a pane (%N), window (@N), session ($N), or client
	// name.
	Target string

	// Data holds the notification's named fields. For KindRaw it is
	// empty; consult Raw instead.
	Data map[string]string
}

func (n Notification) String() string {
	var b stringobj.Builder
	b.Put("kind", n.Kind)
	b.Put("target", n.Target)
	b.Put("raw", n.Raw)
	return b.String()
}

// routeNotification maps a notification frame to its kind and structured
// fields. It is pure: unknown names degrade to KindRaw with no fields.
func routeNotification(f Frame, now time.Time) Notification {
	n := Notification{
		Kind:      _kinds[f.Name],
		Timestamp: now,
		Raw:       f.Raw,
	}
	if n.Kind == KindRaw {
		return n
	}

	fields := _fields[n.Kind]
	rest := f.Rest
	for i, name := range fields {
		var val string
		if i == len(fields)-1 {
			val = rest
		} else {
			val, rest, _ = strings.Cut(rest, " ")
		}
		if val != "" {
			if n.Data == nil {
				n.Data = make(map[string]string, len(fields))
			}
			n.Data[name] = val
		}
	}

	for _, key := range [...]string{"pane", "window", "session", "client"} {
		if v, ok := n.Data[key]; ok {
			n.Target = v
			break
		}
	}
	return n
}
