package auth

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/koustreak/gardien/internal/errs"
	"github.com/koustreak/gardien/internal/logger"
)

const unknownIP = "IP_INCONNUE"

// FailureLog appends one line per failed authentication to a plain text
// file, in the format downstream log scrapers already parse:
//
//	[2006-01-02 15:04:05] Tentative échouée - IP: 10.0.0.1, Login: alice
type FailureLog struct {
	path string
	log  *logger.Logger
	now  func() time.Time

	mu sync.Mutex
}

// NewFailureLog writes to path. An empty path disables the log.
func NewFailureLog(path string, log *logger.Logger) *FailureLog {
	if log == nil {
		log = logger.Nop()
	}
	return &FailureLog{path: path, log: log, now: time.Now}
}

// Line formats the entry for one failed attempt.
func (f *FailureLog) Line(ip, login string) string {
	if ip == "" {
		ip = unknownIP
	}
	return fmt.Sprintf("[%s] Tentative échouée - IP: %s, Login: %s\n",
		f.now().Format("2006-01-02 15:04:05"), ip, login)
}

// Record appends the entry. Write failures are logged and swallowed.
func (f *FailureLog) Record(ip, login string) {
	if f.path == "" {
		return
	}
	line := f.Line(ip, login)

	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.OpenFile(f.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		f.warn(err)
		return
	}
	if _, err := file.WriteString(line); err != nil {
		f.warn(err)
	}
	if err := file.Close(); err != nil {
		f.warn(err)
	}
}

func (f *FailureLog) warn(err error) {
	f.log.WarnWith("failure log write failed",
		errs.Wrap(errs.ErrKindIO, "append "+f.path, err),
		map[string]any{"path": f.path})
}
