package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// Logger пишет сообщения уровней info/warning/error.
type Logger struct {
	infoLog    *log.Logger
	warningLog *log.Logger
	errorLog   *log.Logger
	files      []*os.File
	mu         sync.Mutex
}

const flags = log.Ldate | log.Ltime | log.Lshortfile

// New создаёт логгер, пишущий все уровни в w.
func New(w io.Writer) *Logger {
	return &Logger{
		infoLog:    log.New(w, "INFO    ", flags),
		warningLog: log.New(w, "WARNING ", flags),
		errorLog:   log.New(w, "ERROR   ", flags),
	}
}

// NewFileLogger дублирует каждый уровень в свой файл в dir.
func NewFileLogger(dir string) (*Logger, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	l := &Logger{}
	open := func(name string) (*os.File, error) {
		f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("open log file %s: %w", name, err)
		}
		l.files = append(l.files, f)
		return f, nil
	}

	infoFile, err := open("info.log")
	if err != nil {
		return nil, err
	}
	warningFile, err := open("warning.log")
	if err != nil {
		l.Close()
		return nil, err
	}
	errorFile, err := open("error.log")
	if err != nil {
		l.Close()
		return nil, err
	}

	l.infoLog = log.New(io.MultiWriter(os.Stdout, infoFile), "INFO    ", flags)
	l.warningLog = log.New(io.MultiWriter(os.Stdout, warningFile), "WARNING ", flags)
	l.errorLog = log.New(io.MultiWriter(os.Stderr, errorFile), "ERROR   ", flags)

	return l, nil
}

// Info пишет сообщение уровня info.
func (l *Logger) Info(format string, v ...any) {
	l.output(l.infoLog, format, v...)
}

// Warning пишет сообщение уровня warning.
func (l *Logger) Warning(format string, v ...any) {
	l.output(l.warningLog, format, v...)
}

// Error пишет сообщение уровня error.
func (l *Logger) Error(format string, v ...any) {
	l.output(l.errorLog, format, v...)
}

func (l *Logger) output(target *log.Logger, format string, v ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	// 3: output -> Info/Warning/Error -> вызывающий код
	target.Output(3, fmt.Sprintf(format, v...))
}

// Close закрывает файлы логов.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var firstErr error
	for _, f := range l.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	l.files = nil
	return firstErr
}
