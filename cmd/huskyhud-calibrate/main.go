// Command huskyhud-calibrate runs only the interactive calibration
// protocol and exits, for operators who want to re-calibrate without
// starting the full fusion core.
//
// Grounded on the teacher's habit of giving cross-cutting tools their own
// cmd/ entry point (samoyed-ll2utm, samoyed-tt2text) rather than folding
// every mode into the main daemon's flag surface.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/doismellburning/huskyhud/internal/calibration"
	"github.com/doismellburning/huskyhud/internal/hudlog"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags := pflag.NewFlagSet("huskyhud-calibrate", pflag.ContinueOnError)
	outPath := flags.StringP("out", "o", "/etc/huskyhud/calibration.yaml", "Calibration file path to write.")

	if err := flags.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return 0
		}

		fmt.Fprintln(os.Stderr, err)

		return 2
	}

	logger := hudlog.New("calibrate")

	enum := &calibration.UdevEnumerator{}
	prompt := newPrompter()

	record, err := calibration.Run(enum, prompt)
	if err != nil {
		logger.Error("calibration failed", "err", err)

		return 1
	}

	if calibration.SeparationOutOfRange(record.SeparationM * 100) {
		logger.Warn("adapter separation outside expected [5,50]cm range", "separation_m", record.SeparationM)
	}

	if err := calibration.Save(*outPath, record); err != nil {
		logger.Error("failed to write calibration file", "path", *outPath, "err", err)

		return 1
	}

	logger.Info("calibration saved", "path", *outPath,
		"left", record.LeftInterface, "right", record.RightInterface, "separation_m", record.SeparationM)

	return 0
}

// prompter drives the protocol's prompts over stdin/stdout, mirroring
// cmd/huskyhud's own terminalPrompter (each binary owns its copy since
// neither imports the other's package).
type prompter struct {
	reader *bufio.Reader
}

func newPrompter() *prompter {
	return &prompter{reader: bufio.NewReader(os.Stdin)}
}

func (p *prompter) waitForEnter(msg string) error {
	fmt.Println(msg)
	fmt.Print("Press Enter when ready: ")

	_, err := p.reader.ReadString('\n')

	return err
}

func (p *prompter) PromptPowerRight() error {
	return p.waitForEnter("Power on the RIGHT receiver only.")
}

func (p *prompter) PromptPowerLeft() error {
	return p.waitForEnter("Now power on the LEFT receiver.")
}

func (p *prompter) PromptSeparationCM() (float64, error) {
	fmt.Print("Enter adapter separation in centimetres: ")

	line, err := p.reader.ReadString('\n')
	if err != nil {
		return 0, err
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(line), 64)
	if err != nil {
		return 0, fmt.Errorf("parsing separation: %w", err)
	}

	return value, nil
}
