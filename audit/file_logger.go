package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileLogger appends events to a JSONL file, one JSON object per line.
type FileLogger struct {
	file     *os.File
	mu       sync.Mutex
	fileOpts FileOptions
}

type FileOptions struct {
	FilePath string `json:"file_path"`
}

// NewFileLogger creates a file-based audit logger. The log file is opened
// lazily on the first Log call, so query-only users never create it.
func NewFileLogger(config *Config) (*FileLogger, error) {
	var fileOpts FileOptions
	if err := parseOptions(config.Options, &fileOpts); err != nil {
		return nil, fmt.Errorf("invalid file logger options: %w", err)
	}
	if fileOpts.FilePath == "" {
		return nil, fmt.Errorf("file_path is required for file logger")
	}
	return &FileLogger{fileOpts: fileOpts}, nil
}

func (fl *FileLogger) Log(action string, success bool, metadata map[string]interface{}) error {
	event := Event{
		ID:        generateEventID(),
		Timestamp: time.Now().UTC(),
		Action:    action,
		Success:   success,
		Metadata:  metadata,
	}

	fl.mu.Lock()
	defer fl.mu.Unlock()

	// Opens on first use, and reopens in case a previous owner of this
	// logger closed it.
	if fl.file == nil {
		if err := os.MkdirAll(filepath.Dir(fl.fileOpts.FilePath), 0700); err != nil {
			return fmt.Errorf("failed to create audit log directory: %w", err)
		}
		f, err := os.OpenFile(fl.fileOpts.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return fmt.Errorf("failed to open audit log file: %w", err)
		}
		fl.file = f
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to serialize audit event: %w", err)
	}
	if _, err = fl.file.WriteString(string(eventJSON) + "\n"); err != nil {
		return fmt.Errorf("failed to write audit event: %w", err)
	}
	if err = fl.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync audit log: %w", err)
	}
	return nil
}

// Query re-reads the log file and returns the events passing the filters.
func (fl *FileLogger) Query(options QueryOptions) ([]Event, error) {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	f, err := os.Open(fl.fileOpts.FilePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open audit log for query: %w", err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var event Event
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			// Skip corrupt lines rather than failing the whole query.
			continue
		}
		if options.Matches(event) {
			events = append(events, event)
			if options.Limit > 0 && len(events) >= options.Limit {
				break
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit log: %w", err)
	}
	return events, nil
}

func (fl *FileLogger) Close() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if fl.file == nil {
		return nil
	}
	err := fl.file.Close()
	fl.file = nil
	return err
}
