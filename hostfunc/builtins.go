package hostfunc

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/caffeineduck/loxpad/internal/lox"
	"github.com/muesli/termenv"
)

// Colors maps the names accepted by color() to ANSI colour indices.
var Colors = map[string]int{
	"black":   0,
	"red":     1,
	"green":   2,
	"yellow":  3,
	"blue":    4,
	"magenta": 5,
	"cyan":    6,
	"white":   7,
	"gray":    8,
	"grey":    8,
}

// Clock implements clock(): seconds since the Unix epoch.
func Clock(ctx context.Context, args []any) (any, error) {
	if err := expectCount(args, 0); err != nil {
		return nil, err
	}
	return float64(time.Now().UnixNano()) / 1e9, nil
}

// Color implements color(text, style). Style is a space-separated list of
// colour names (optionally prefixed "bright_" or "bg_"), or the attributes
// bold, faint, italic, underline, strike and reverse.
//
//	print color("ok", "bold green");
func Color(ctx context.Context, args []any) (any, error) {
	if err := expectCount(args, 2); err != nil {
		return nil, err
	}
	text := lox.FormatValue(args[0])
	spec, err := stringArg(args, 1)
	if err != nil {
		return nil, err
	}

	style := termenv.String(text)
	for _, word := range strings.Fields(spec) {
		switch word {
		case "bold":
			style = style.Bold()
		case "faint":
			style = style.Faint()
		case "italic":
			style = style.Italic()
		case "underline":
			style = style.Underline()
		case "strike":
			style = style.CrossOut()
		case "reverse":
			style = style.Reverse()
		default:
			bg := strings.HasPrefix(word, "bg_")
			name := strings.TrimPrefix(word, "bg_")
			bright := strings.HasPrefix(name, "bright_")
			name = strings.TrimPrefix(name, "bright_")
			idx, ok := Colors[name]
			if !ok {
				return nil, fmt.Errorf("unknown color %q", word)
			}
			if bright && idx < 8 {
				idx += 8
			}
			c := termenv.ANSI.Color(fmt.Sprint(idx))
			if bg {
				style = style.Background(c)
			} else {
				style = style.Foreground(c)
			}
		}
	}
	return style.String(), nil
}

// Str implements str(value).
func Str(ctx context.Context, args []any) (any, error) {
	if err := expectCount(args, 1); err != nil {
		return nil, err
	}
	return lox.FormatValue(args[0]), nil
}

// Len implements len(string), counting characters.
func Len(ctx context.Context, args []any) (any, error) {
	if err := expectCount(args, 1); err != nil {
		return nil, err
	}
	s, err := stringArg(args, 0)
	if err != nil {
		return nil, err
	}
	return float64(utf8.RuneCountInString(s)), nil
}

// RegisterBuiltins binds clock, color, str and len on r.
func RegisterBuiltins(r *Registry) {
	r.Register("clock", Clock)
	r.Register("color", Color)
	r.Register("str", Str)
	r.Register("len", Len)
}

// Builtins returns a registry with RegisterBuiltins applied.
func Builtins() *Registry {
	r := NewRegistry()
	RegisterBuiltins(r)
	return r
}
