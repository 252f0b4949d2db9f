// Package logging configures the process logger: JSON lines to stdout and to a daily
// log file that is rotated at midnight and pruned after the retention window.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const dateLayout = "2006-01-02"

// New returns a logger at level writing JSON to out.
func New(level string, out io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})
	log.SetOutput(out)
	parsed, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		parsed = logrus.InfoLevel
	}
	log.SetLevel(parsed)
	return log
}

// Setup builds the service logger. When logDir cannot be used, it logs to stdout only and
// returns the error alongside a usable logger.
func Setup(level, logDir string, retentionDays int) (*logrus.Logger, func(), error) {
	files, err := OpenDailyFile(logDir, retentionDays)
	if err != nil {
		log := New(level, os.Stdout)
		return log, func() {}, err
	}
	log := New(level, io.MultiWriter(os.Stdout, files))
	return log, func() { _ = files.Close() }, nil
}

// DailyFile is an io.Writer over app-YYYY-MM-DD.log that switches files when the date changes.
type DailyFile struct {
	mu            sync.Mutex
	dir           string
	retentionDays int
	currentDate   string
	file          *os.File
	now           func() time.Time
}

func OpenDailyFile(dir string, retentionDays int) (*DailyFile, error) {
	return openDailyFile(dir, retentionDays, time.Now)
}

func openDailyFile(dir string, retentionDays int, now func() time.Time) (*DailyFile, error) {
	if strings.TrimSpace(dir) == "" {
		dir = "storage/logs"
	}
	if retentionDays <= 0 || retentionDays > 7 {
		retentionDays = 7
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	d := &DailyFile{dir: dir, retentionDays: retentionDays, now: now}
	date := now().Format(dateLayout)
	file, err := openLogFile(dir, date)
	if err != nil {
		return nil, err
	}
	d.file = file
	d.currentDate = date
	cleanupOldLogs(dir, retentionDays, now())
	return d, nil
}

func (d *DailyFile) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file == nil {
		return 0, os.ErrClosed
	}
	date := d.now().Format(dateLayout)
	if date != d.currentDate {
		newFile, err := openLogFile(d.dir, date)
		if err == nil {
			_ = d.file.Close()
			d.file = newFile
			d.currentDate = date
			cleanupOldLogs(d.dir, d.retentionDays, d.now())
		}
	}
	return d.file.Write(p)
}

func (d *DailyFile) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	return err
}

func openLogFile(logDir, date string) (*os.File, error) {
	filename := filepath.Join(logDir, fmt.Sprintf("app-%s.log", date))
	return os.OpenFile(filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}

func cleanupOldLogs(logDir string, retentionDays int, now time.Time) {
	entries, err := os.ReadDir(logDir)
	if err != nil {
		return
	}
	today, _ := time.Parse(dateLayout, now.Format(dateLayout))
	cutoff := today.AddDate(0, 0, -(retentionDays - 1))
	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() {
			continue
		}
		if !strings.HasPrefix(name, "app-") || !strings.HasSuffix(name, ".log") {
			continue
		}
		datePart := strings.TrimSuffix(strings.TrimPrefix(name, "app-"), ".log")
		logDate, err := time.Parse(dateLayout, datePart)
		if err != nil {
			continue
		}
		if logDate.Before(cutoff) {
			_ = os.Remove(filepath.Join(logDir, name))
		}
	}
}
