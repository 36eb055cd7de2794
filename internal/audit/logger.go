package audit

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

const genesisInput = "sluice-genesis"

// Logger appends hash-chained entries to a JSONL file.
type Logger struct {
	mu       sync.Mutex
	path     string
	seq      uint64
	prevHash string
}

// NewLogger opens or creates the log at path and resumes its chain from the
// last readable entry.
func NewLogger(path string) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}

	l := &Logger{path: path, prevHash: genesisHash()}
	err := scan(path, func(_ int, line []byte) error {
		var e Entry
		if json.Unmarshal(line, &e) == nil {
			l.seq, l.prevHash = e.Seq, e.Hash
		}
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return l, nil
}

// Log records r and returns the written entry.
func (l *Logger) Log(r Run) (Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := Entry{
		RunID:    uuid.NewString(),
		Seq:      l.seq + 1,
		Time:     time.Now().UTC(),
		PrevHash: l.prevHash,
		Pipeline: r.Pipeline,
		Stages:   r.Stages,
		Pid:      r.Pid,
		ExitCode: r.ExitCode,
		Duration: float64(r.Duration.Microseconds()) / 1000.0,
		Cwd:      r.Cwd,
		Allow:    r.Allow,
	}
	if r.Err != nil {
		e.Error = r.Err.Error()
	}
	e.Hash = e.digest()

	data, err := json.Marshal(e)
	if err != nil {
		return e, fmt.Errorf("marshal audit entry: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return e, fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return e, fmt.Errorf("write audit entry: %w", err)
	}

	l.seq, l.prevHash = e.Seq, e.Hash
	return e, nil
}

// Path returns the log file path.
func (l *Logger) Path() string { return l.path }

func genesisHash() string {
	h := sha256.Sum256([]byte(genesisInput))
	return hex.EncodeToString(h[:])
}

func (e Entry) digest() string {
	e.Hash = ""
	data, _ := json.Marshal(e)
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// scan calls fn with each non-empty line of the file at path and its
// 1-based line number.
func scan(path string, fn func(n int, line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("read audit log: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	n := 0
	for sc.Scan() {
		n++
		if len(sc.Bytes()) == 0 {
			continue
		}
		if err := fn(n, sc.Bytes()); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read audit log: %w", err)
	}
	return nil
}
