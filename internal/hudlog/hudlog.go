// Package hudlog sets up structured logging for every subsystem,
// giving the teacher's declared (previously unused in the sampled
// subset) github.com/charmbracelet/log dependency a real home.
//
// Grounded on the teacher's src/textcolor.go convention of prefixing
// every line with a subsystem tag ("GPSNMEA: ", "CM108: "); here each
// subsystem gets its own *log.Logger carrying that tag as Prefix instead
// of a string concatenation.
package hudlog

import (
	"os"
	"sync"

	"github.com/charmbracelet/log"
)

// currentLevel is the process-wide verbosity every subsequent New
// applies, set once at startup by SetLevel from the --log-level flag.
// Guarded by levelMu since service.Manager.launch creates a subsystem
// logger per producer and SetLevel runs on main's goroutine before any
// producer starts, but nothing stops a future caller from doing both
// concurrently.
var (
	levelMu      sync.Mutex
	currentLevel = log.InfoLevel
)

// New returns a logger tagged with the given subsystem name, writing to
// stderr with timestamps the way the teacher's dw_printf lines are always
// prefixed and always timestamped-by-convention in daily log files
// (src/log.go), at the verbosity last set via SetLevel.
func New(subsystem string) *log.Logger {
	levelMu.Lock()
	lvl := currentLevel
	levelMu.Unlock()

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          subsystem,
	})
	logger.SetLevel(lvl)

	return logger
}

// ParseLevel parses the --log-level flag value, defaulting to Info on an
// unrecognized string rather than failing startup over a cosmetic flag.
func ParseLevel(s string) log.Level {
	lvl, err := log.ParseLevel(s)
	if err != nil {
		return log.InfoLevel
	}

	return lvl
}

// SetLevel applies lvl to every logger New creates from this point on,
// and to the charmbracelet/log package-default logger used by any code
// that calls log.Default() directly instead of going through New.
func SetLevel(lvl log.Level) {
	levelMu.Lock()
	currentLevel = lvl
	levelMu.Unlock()

	log.SetLevel(lvl)
}
