package hostfunc

import "fmt"

// ArgError reports a guest call with a bad argument list.
type ArgError struct {
	Index int
	Want  string
	Got   string
}

func (e ArgError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("expected %s, got %s", e.Want, e.Got)
	}
	return fmt.Sprintf("argument %d: want %s, got %s", e.Index+1, e.Want, e.Got)
}

func expectCount(args []any, n int) error {
	if len(args) != n {
		return ArgError{Index: -1, Want: plural(n, "argument"), Got: fmt.Sprint(len(args))}
	}
	return nil
}

func stringArg(args []any, i int) (string, error) {
	s, ok := args[i].(string)
	if !ok {
		return "", ArgError{Index: i, Want: "string", Got: typeName(args[i])}
	}
	return s, nil
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "nil"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case string:
		return "string"
	}
	return "function"
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return fmt.Sprintf("%d %ss", n, word)
}
