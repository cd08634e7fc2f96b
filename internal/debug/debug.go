package debug

import (
	"io"
	"log"
	"os"
	"sync"
)

// Debug levels
const (
	LevelOff     = 0 // No output
	LevelInfo    = 1 // Important info (init, mode changes)
	LevelLive    = 2 // Live info (moves issued, loop state changes)
	LevelVerbose = 3 // Verbose (tick decisions, parsing details)
	LevelTrace   = 4 // Trace (GPIO/ADC, very low level)
)

var (
	mu     sync.Mutex
	level  int
	out    io.Writer
	logger *log.Logger
)

// Init initializes the debug system with a level (0-4).
// 0 = no output
// 1 = important info (initialization, enable/disable)
// 2 = live info (jogs, loop transitions)
// 3 = verbose (per-tick decisions)
// 4 = trace (GPIO writes, ADC reads)
func Init(debugLevel int) {
	mu.Lock()
	defer mu.Unlock()
	level = debugLevel
	if out == nil {
		out = os.Stdout
	}
	rebuild()
}

// SetOutput redirects debug output, e.g. to an io.MultiWriter that
// mirrors messages into the web console stream.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
	rebuild()
}

func rebuild() {
	if level > LevelOff {
		logger = log.New(out, "[stagehand] ", log.LstdFlags|log.Lmicroseconds)
	} else {
		logger = nil
	}
}

// Level returns the current debug level.
func Level() int {
	mu.Lock()
	defer mu.Unlock()
	return level
}

// IsEnabled returns true if debug level is >= the requested level.
func IsEnabled(minLevel int) bool {
	return Level() >= minLevel
}

func printf(minLevel int, format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	if level >= minLevel && logger != nil {
		logger.Printf(format, args...)
	}
}

// --- Level 1 functions (Info): important info ---

// Info prints a level 1 message (important info).
func Info(format string, args ...interface{}) {
	printf(LevelInfo, "[INFO] "+format, args...)
}

// Value prints a named value in formatted form (level 1).
func Value(name string, value interface{}) {
	printf(LevelInfo, "[INFO]   %s = %v", name, value)
}

// Error prints a debug error (level 1+).
func Error(err error) {
	printf(LevelInfo, "[ERROR] %v", err)
}

// --- Level 2 functions (Live): real-time info ---

// Live prints a level 2 message (live info).
func Live(format string, args ...interface{}) {
	printf(LevelLive, "[LIVE] "+format, args...)
}

// Move prints a motor movement (level 2).
func Move(axis string, steps int, direction string) {
	printf(LevelLive, "[LIVE] Axis %s: %d steps (%s)", axis, steps, direction)
}

// --- Level 3 functions (Verbose): everything ---

// Verbose prints a level 3 message (verbose).
func Verbose(format string, args ...interface{}) {
	printf(LevelVerbose, "[VERBOSE] "+format, args...)
}

// Section prints a section separator (level 3).
func Section(name string) {
	mu.Lock()
	defer mu.Unlock()
	if level >= LevelVerbose && logger != nil {
		logger.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		logger.Printf("  %s", name)
		logger.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	}
}

// Step prints a numbered initialization step (level 3).
func Step(num int, description string) {
	printf(LevelVerbose, "[VERBOSE] Step %d: %s", num, description)
}

// PrintStruct dumps a struct with field names (level 3).
func PrintStruct(name string, v interface{}) {
	printf(LevelVerbose, "[VERBOSE] %s: %+v", name, v)
}

// --- Level 4 functions (Trace): very low level ---

// Trace prints a level 4 message (trace).
func Trace(format string, args ...interface{}) {
	printf(LevelTrace, "[TRACE] "+format, args...)
}

// GPIO prints a GPIO operation (level 4).
func GPIO(operation string, pin int, value interface{}) {
	printf(LevelTrace, "[GPIO] %s pin=%d value=%v", operation, pin, value)
}

// ADC prints an ADC read (level 4).
func ADC(channel int, value uint16) {
	printf(LevelTrace, "[ADC] read ch=%d value=%d", channel, value)
}
