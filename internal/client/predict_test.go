package client

import "testing"

func key(k string) EditEvent {
	return EditEvent{Kind: EditKeyDown, Key: k}
}

func TestPredictInput(t *testing.T) {
	cases := []struct {
		name  string
		state InputState
		ev    EditEvent
		want  string
	}{
		{
			name:  "append at caret",
			state: InputState{Value: "cat", SelectionStart: 3, SelectionEnd: 3},
			ev:    key("s"),
			want:  "cats",
		},
		{
			name:  "backspace over selection",
			state: InputState{Value: "cats", SelectionStart: 1, SelectionEnd: 3},
			ev:    key("Backspace"),
			want:  "cs",
		},
		{
			name:  "backspace collapsed",
			state: InputState{Value: "cats", SelectionStart: 4, SelectionEnd: 4},
			ev:    key("Backspace"),
			want:  "cat",
		},
		{
			name:  "paste into empty box",
			state: InputState{Value: "", SelectionStart: 0, SelectionEnd: 0},
			ev:    EditEvent{Kind: EditPaste, ClipboardText: "dog"},
			want:  "dog",
		},
		{
			name:  "arrow key is a no-op",
			state: InputState{Value: "cat", SelectionStart: 3, SelectionEnd: 3},
			ev:    key("ArrowLeft"),
			want:  "cat",
		},
		{
			name:  "insert replaces selection",
			state: InputState{Value: "cat", SelectionStart: 0, SelectionEnd: 3},
			ev:    key("d"),
			want:  "d",
		},
		{
			name:  "delete collapsed",
			state: InputState{Value: "cats", SelectionStart: 0, SelectionEnd: 0},
			ev:    key("Delete"),
			want:  "ats",
		},
		{
			name:  "delete over selection",
			state: InputState{Value: "cats", SelectionStart: 1, SelectionEnd: 4},
			ev:    key("Delete"),
			want:  "c",
		},
		{
			name:  "cut removes selection",
			state: InputState{Value: "cats", SelectionStart: 1, SelectionEnd: 3},
			ev:    EditEvent{Kind: EditKeyDown, Key: "x", Ctrl: true},
			want:  "cs",
		},
		{
			name:  "copy leaves value alone",
			state: InputState{Value: "cats", SelectionStart: 0, SelectionEnd: 4},
			ev:    EditEvent{Kind: EditKeyDown, Key: "c", Meta: true},
			want:  "cats",
		},
		{
			name:  "paste replaces selection",
			state: InputState{Value: "hot dog", SelectionStart: 0, SelectionEnd: 3},
			ev:    EditEvent{Kind: EditPaste, ClipboardText: "corn"},
			want:  "corn dog",
		},
		{
			name:  "max length rejects insert",
			state: InputState{Value: "cat", SelectionStart: 3, SelectionEnd: 3, MaxLength: 3},
			ev:    key("s"),
			want:  "cat",
		},
		{
			name:  "max length allows replacing selection",
			state: InputState{Value: "cat", SelectionStart: 2, SelectionEnd: 3, MaxLength: 3},
			ev:    key("r"),
			want:  "car",
		},
		{
			name:  "non-positive max length means no limit",
			state: InputState{Value: "cat", SelectionStart: 3, SelectionEnd: 3, MaxLength: -1},
			ev:    key("s"),
			want:  "cats",
		},
		{
			name:  "backspace at start is a no-op",
			state: InputState{Value: "cat", SelectionStart: 0, SelectionEnd: 0},
			ev:    key("Backspace"),
			want:  "cat",
		},
		{
			name:  "delete at end is a no-op",
			state: InputState{Value: "cat", SelectionStart: 3, SelectionEnd: 3},
			ev:    key("Delete"),
			want:  "cat",
		},
		{
			name:  "function key is a no-op",
			state: InputState{Value: "cat", SelectionStart: 3, SelectionEnd: 3},
			ev:    key("F5"),
			want:  "cat",
		},
		{
			name:  "modifier chord is a no-op",
			state: InputState{Value: "cat", SelectionStart: 0, SelectionEnd: 3},
			ev:    EditEvent{Kind: EditKeyDown, Key: "a", Ctrl: true},
			want:  "cat",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := PredictInput(tc.state, tc.ev); got != tc.want {
				t.Fatalf("predicted %q, want %q", got, tc.want)
			}
		})
	}
}

func TestPredictInputNeverMutatesState(t *testing.T) {
	state := InputState{Value: "cats", SelectionStart: 1, SelectionEnd: 3}
	_ = PredictInput(state, key("Backspace"))
	if state.Value != "cats" || state.SelectionStart != 1 || state.SelectionEnd != 3 {
		t.Fatalf("input state mutated: %+v", state)
	}
}
