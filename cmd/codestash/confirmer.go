package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// stdinConfirmer asks a y/N question on the terminal. Anything other than an
// explicit yes declines.
type stdinConfirmer struct{}

func (stdinConfirmer) Confirm(prompt string) (bool, error) {
	fmt.Printf("%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}
