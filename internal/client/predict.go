package client

// EditKind identifies the raw edit event being predicted.
type EditKind int

const (
	EditKeyDown EditKind = iota
	EditKeyPress
	EditPaste
)

// EditEvent is a single raw edit: a key going down or a clipboard paste,
// captured before the host environment applies it.
type EditEvent struct {
	Kind          EditKind
	Key           string
	Ctrl          bool
	Meta          bool
	ClipboardText string
}

// InputState is the answer box at the moment the edit event fired.
// MaxLength is the field's maximum length; non-positive means no limit.
type InputState struct {
	Value          string
	SelectionStart int
	SelectionEnd   int
	MaxLength      int
}

// Keys that never change the input value.
var noopKeys = map[string]struct{}{
	"Alt":        {},
	"ArrowDown":  {},
	"ArrowLeft":  {},
	"ArrowRight": {},
	"ArrowUp":    {},
	"Enter":      {},
	"Escape":     {},
	"Shift":      {},
	"Tab":        {},
}

// PredictInput computes the text value the answer box will contain once the
// browser applies the given edit, without waiting for the host page's own
// delayed completion signal. It is a pure function: no state is touched, and
// an unhandled event kind simply returns the current value.
func PredictInput(state InputState, ev EditEvent) string {
	value := []rune(state.Value)
	start, end := clampSelection(len(value), state.SelectionStart, state.SelectionEnd)

	switch ev.Kind {
	case EditPaste:
		return splice(value, start, end, []rune(ev.ClipboardText))
	case EditKeyDown, EditKeyPress:
		// handled below
	default:
		return state.Value
	}

	if _, ok := noopKeys[ev.Key]; ok {
		return state.Value
	}

	modifier := ev.Ctrl || ev.Meta
	switch {
	case modifier && ev.Key == "c":
		return state.Value
	case ev.Key == "Backspace":
		if start == end {
			if start == 0 {
				return state.Value
			}
			return splice(value, start-1, end, nil)
		}
		return splice(value, start, end, nil)
	case ev.Key == "Delete":
		if start == end {
			if end == len(value) {
				return state.Value
			}
			return splice(value, start, end+1, nil)
		}
		return splice(value, start, end, nil)
	case modifier && ev.Key == "x":
		return splice(value, start, end, nil)
	case modifier:
		// Remaining modifier chords (select-all, undo, ...) are navigation
		// from the box's point of view.
		return state.Value
	}

	key := []rune(ev.Key)
	if len(key) != 1 {
		// Function keys and other named keys don't produce text.
		return state.Value
	}

	if state.MaxLength > 0 && len(value)-(end-start)+1 > state.MaxLength {
		// Rejected, mirroring native truncation.
		return state.Value
	}
	return splice(value, start, end, key)
}

func clampSelection(length, start, end int) (int, int) {
	if start < 0 {
		start = 0
	}
	if end < start {
		end = start
	}
	if start > length {
		start = length
	}
	if end > length {
		end = length
	}
	return start, end
}

func splice(value []rune, start, end int, insert []rune) string {
	out := make([]rune, 0, len(value)-(end-start)+len(insert))
	out = append(out, value[:start]...)
	out = append(out, insert...)
	out = append(out, value[end:]...)
	return string(out)
}
