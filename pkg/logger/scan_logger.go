package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// JobLogger mirrors one job's structured log into a per-job file under the
// work directory, alongside the console output. The file outlives the job so
// a failed run can be reviewed after the row's error message was truncated.
type JobLogger struct {
	*Logger
	file *os.File
}

// NewJobLogger opens <dir>/<jobID>.log for appending and returns a logger
// writing to both it and stdout.
func NewJobLogger(jobID, dir string, level logrus.Level) (*JobLogger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create job log directory: %w", err)
	}

	path := filepath.Join(dir, jobID+".log")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open job log file: %w", err)
	}

	base := NewLogger(level)
	base.SetOutput(io.MultiWriter(os.Stdout, file))

	return &JobLogger{Logger: base, file: file}, nil
}

// Path returns the job log file location
func (jl *JobLogger) Path() string {
	return jl.file.Name()
}

func (jl *JobLogger) Close() error {
	return jl.file.Close()
}
