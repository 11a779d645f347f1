package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// terminalPrompter drives the calibration protocol's three interactive
// prompts over stdin/stdout, implementing calibration.Prompter.
type terminalPrompter struct {
	reader *bufio.Reader
}

func newTerminalPrompter() *terminalPrompter {
	return &terminalPrompter{reader: bufio.NewReader(os.Stdin)}
}

func (t *terminalPrompter) waitForEnter(prompt string) error {
	fmt.Println(prompt)
	fmt.Print("Press Enter when ready: ")

	_, err := t.reader.ReadString('\n')

	return err
}

func (t *terminalPrompter) PromptPowerRight() error {
	return t.waitForEnter("Power on the RIGHT receiver only.")
}

func (t *terminalPrompter) PromptPowerLeft() error {
	return t.waitForEnter("Now power on the LEFT receiver.")
}

func (t *terminalPrompter) PromptSeparationCM() (float64, error) {
	fmt.Print("Enter adapter separation in centimetres: ")

	line, err := t.reader.ReadString('\n')
	if err != nil {
		return 0, err
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(line), 64)
	if err != nil {
		return 0, fmt.Errorf("parsing separation: %w", err)
	}

	return value, nil
}
