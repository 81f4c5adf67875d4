package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// confirm asks whether to start. Only an explicit "n" or "no" declines.
func confirm(r io.Reader, w io.Writer) bool {
	fmt.Fprint(w, "Start enrolling? (y/n) ")
	line, _ := bufio.NewReader(r).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "n", "no":
		return false
	}
	return true
}
