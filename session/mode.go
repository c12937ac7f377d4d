package session

import (
	"fmt"
	"strings"
)

// Mode selects what a session does with its current source.
type Mode int

const (
	// ModeExecute compiles and runs the program.
	ModeExecute Mode = iota
	// ModeParse renders the syntax tree.
	ModeParse
	// ModeBytecode renders the compiled bytecode.
	ModeBytecode
)

var modeNames = map[Mode]string{
	ModeExecute:  "execute",
	ModeParse:    "parse",
	ModeBytecode: "bytecode",
}

// Modes lists every mode in display order.
func Modes() []Mode {
	return []Mode{ModeExecute, ModeParse, ModeBytecode}
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode accepts a mode name, case-insensitively. "run" is an alias for
// execute and "ast" for parse.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "execute", "run":
		return ModeExecute, nil
	case "parse", "ast":
		return ModeParse, nil
	case "bytecode":
		return ModeBytecode, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// MarshalText encodes the mode by name, so JSON carries "execute" rather
// than a number. Unknown modes fail with ErrUnknownMode.
func (m Mode) MarshalText() ([]byte, error) {
	if _, ok := modeNames[m]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMode, int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText accepts the names understood by ParseMode.
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
