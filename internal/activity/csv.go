package activity

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// CSVHeader is the first row of every activity CSV file.
var CSVHeader = []string{"Timestamp", "Event_Type", "State", "Details"}

// csvTimeLayout is the timestamp format of the Timestamp column.
const csvTimeLayout = "2006-01-02 15:04:05"

// CSV appends entries to a CSV file, writing the header when the file is
// new or empty.
type CSV struct {
	mu sync.Mutex
	f  *os.File
	w  *csv.Writer
}

var _ Sink = (*CSV)(nil)

// OpenCSV opens or creates the file at path, creating parent directories.
func OpenCSV(path string) (*CSV, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("activity: create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("activity: open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("activity: stat %s: %w", path, err)
	}

	c := &CSV{f: f, w: csv.NewWriter(f)}
	if info.Size() == 0 {
		if err := c.writeRow(CSVHeader); err != nil {
			f.Close()
			return nil, err
		}
	}
	return c, nil
}

// Record implements [Sink].
func (c *CSV) Record(_ context.Context, e Entry) error {
	details := e.Details
	if e.Kind != "" {
		details = e.Kind + ": " + details
	}
	return c.writeRow([]string{e.At.Local().Format(csvTimeLayout), e.Event, e.State, details})
}

func (c *CSV) writeRow(row []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.w == nil {
		return fmt.Errorf("activity: csv log closed")
	}
	if err := c.w.Write(row); err != nil {
		return fmt.Errorf("activity: write csv: %w", err)
	}
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return fmt.Errorf("activity: flush csv: %w", err)
	}
	return nil
}

// Close flushes and closes the file.
func (c *CSV) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.w == nil {
		return nil
	}
	c.w.Flush()
	c.w = nil
	return c.f.Close()
}

// ParseCSVTime parses a Timestamp column value in the local zone.
func ParseCSVTime(s string) (time.Time, error) {
	return time.ParseInLocation(csvTimeLayout, s, time.Local)
}
