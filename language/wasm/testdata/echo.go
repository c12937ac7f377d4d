//go:build wasip1

// Echo toolchain for testing the wasm backend without a real Lox build.
// Build with: GOOS=wasip1 GOARCH=wasm go build -o echo.wasm echo.go
//
// parse and bytecode describe the source line by line. execute prints the
// text of every `print "...";` line, fails on a line reading `fail;`, calls
// the host for `call name;` and spins forever on `loop;`. A source with
// more '{' than '}' is a compile error in every mode.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

func main() {
	fmt.Fprint(os.Stderr, "\x00LOX_READY\x00")

	in := bufio.NewScanner(os.Stdin)
	source := ""
	for in.Scan() {
		var cmd struct {
			Type   string `json:"type"`
			Source string `json:"source"`
		}
		if err := json.Unmarshal(in.Bytes(), &cmd); err != nil {
			continue
		}

		if cmd.Type == "set_source" {
			source = cmd.Source
			done()
			continue
		}

		if strings.Count(source, "{") > strings.Count(source, "}") {
			fmt.Fprint(os.Stderr, "\x00LOX_ERROR:compile:1:1:expected '}' after block\x00")
			continue
		}

		lines := strings.Split(source, "\n")
		switch cmd.Type {
		case "parse":
			for i, line := range lines {
				fmt.Printf("Stmt @%d %q\n", i+1, line)
			}
			done()
		case "bytecode":
			fmt.Println("== <script> ==")
			for i := range lines {
				fmt.Printf("%04d %4d OP_NIL\n", i, i+1)
			}
			done()
		case "execute":
			execute(in, lines)
		}
	}
}

func execute(in *bufio.Scanner, lines []string) {
	for i, line := range lines {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, `print "`) && strings.HasSuffix(line, `";`):
			fmt.Println(line[len(`print "`) : len(line)-2])
		case line == "fail;":
			fmt.Fprintf(os.Stderr, "\x00LOX_ERROR:runtime:line %d: boom\x00", i+1)
			return
		case line == "loop;":
			for {
			}
		case strings.HasPrefix(line, "call ") && strings.HasSuffix(line, ";"):
			name := line[len("call ") : len(line)-1]
			fmt.Fprintf(os.Stderr, "\x00LOX_CALL:{\"id\":\"1\",\"fn\":%q,\"args\":[]}\x00", name)
			if !in.Scan() {
				return
			}
			var resp struct {
				Data  any    `json:"data"`
				Error string `json:"error"`
			}
			json.Unmarshal(in.Bytes(), &resp)
			if resp.Error != "" {
				fmt.Fprintf(os.Stderr, "\x00LOX_ERROR:runtime:line %d: %s\x00", i+1, resp.Error)
				return
			}
			fmt.Println(resp.Data)
		}
	}
	done()
}

func done() {
	fmt.Fprint(os.Stderr, "\x00LOX_DONE\x00")
}
