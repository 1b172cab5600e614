package utils

import (
	"bufio"
	"bytes"
	"io"
	"log/slog"
	"sync/atomic"
	"time"
)

// LogInterceptor is an io.Writer that prefixes every complete line with a
// sequence number and timestamp before forwarding it to the target writer.
// Used for app stdout/stderr capture and the daemon log file.
type LogInterceptor struct {
	target io.Writer
	seq    atomic.Uint64
	buf    bytes.Buffer
}

func NewLogInterceptor(target io.Writer) *LogInterceptor {
	return &LogInterceptor{target: target}
}

func (i *LogInterceptor) writeLine(line []byte) (int, error) {
	total := 0

	prefix := slog.Uint64("line", i.seq.Add(1)).String() + " " +
		slog.String("time", time.Now().Format(time.RFC3339)).String() + " "
	n, err := io.WriteString(i.target, prefix)
	total += n
	if err != nil {
		return total, err
	}

	n, err = i.target.Write(line)
	total += n
	if err != nil {
		return total, err
	}

	n, err = io.WriteString(i.target, "\n")
	total += n
	return total, err
}

// Write buffers partial writes and emits only complete lines, so interleaved
// chunks from a subprocess still come out one record per line.
func (i *LogInterceptor) Write(p []byte) (n int, err error) {
	if _, err := i.buf.Write(p); err != nil {
		return 0, err
	}

	total := 0
	scanner := bufio.NewScanner(&i.buf)
	scanner.Split(bufio.ScanLines)
	for scanner.Scan() {
		n, err = i.writeLine(scanner.Bytes())
		total += n
		if err != nil {
			return total, err
		}
	}

	return total, nil
}

// Close flushes any trailing data that never saw a newline.
func (i *LogInterceptor) Close() error {
	remaining := i.buf.Bytes()
	if len(remaining) == 0 {
		return nil
	}
	i.buf.Reset()
	_, err := i.writeLine(remaining)
	return err
}
