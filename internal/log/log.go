package log

import (
	"fmt"
	"io"
	stdlog "log"
	"os"

	"github.com/adrg/xdg"
	tea "github.com/charmbracelet/bubbletea"
)

var (
	debugEnabled bool
	logFile      *os.File
	notices      io.Writer = os.Stderr
)

// Setup enables debug logging to the XDG state file mailcode/debug.log.
func Setup(debug bool) error {
	debugEnabled = debug
	if !debug || logFile != nil {
		return nil
	}
	logPath, err := xdg.StateFile("mailcode/debug.log")
	if err != nil {
		return err
	}
	logFile, err = tea.LogToFile(logPath, "mailcode")
	return err
}

func Close() error {
	if logFile == nil {
		return nil
	}
	defer func() { logFile = nil }()
	return logFile.Close()
}

func Printf(format string, args ...any) {
	if debugEnabled {
		stdlog.Printf("DEBUG: "+format, args...)
	}
}

// Noticef writes a user-facing line to stderr, and to the debug log when enabled.
func Noticef(format string, args ...any) {
	fmt.Fprintf(notices, format+"\n", args...)
	Printf(format, args...)
}

// SetNoticeOutput redirects Noticef. It returns the previous writer.
func SetNoticeOutput(w io.Writer) io.Writer {
	prev := notices
	notices = w
	return prev
}
