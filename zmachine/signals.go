package zmachine

// Halt is returned by the quit opcode handler to request clean
// termination of the execution loop, per spec.md §4.8: "the story quits
// (an opcode implementation may request termination by returning a
// distinguished Halt)". It is not a zerr.Error: it isn't a failure.
type Halt struct{}

func (Halt) Error() string { return "story quit" }

// InputRequested is returned when a story executes VAR:4 (sread, or aread
// in V5), which needs line input from the host that this interpreter does
// not serve. Other input opcodes such as read_char have no table entry and
// fail as UnknownOpcode instead. cmd/zgrue treats this the
// same as Halt for the purpose of exiting cleanly, but reports it
// distinctly so a headless run doesn't look like a crash.
type InputRequested struct {
	Opcode string
}

func (i InputRequested) Error() string { return "input requested: " + i.Opcode }
