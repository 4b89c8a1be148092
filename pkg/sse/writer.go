package sse

import (
	"errors"
	"net/http"
	"strings"
	"sync"
)

var (
	pingFrame = []byte(": ping\n\n")
	errBroken = errors.New("sse: stream is broken")
)

// frameWriter serializes frames from the heartbeat and the subscription
// goroutines onto one ResponseWriter. After the first failed write it
// refuses every later frame.
type frameWriter struct {
	mu     sync.Mutex
	w      http.ResponseWriter
	rc     *http.ResponseController
	broken bool
}

func newFrameWriter(w http.ResponseWriter) *frameWriter {
	return &frameWriter{w: w, rc: http.NewResponseController(w)}
}

func (f *frameWriter) ping() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writeLocked(pingFrame)
}

func (f *frameWriter) data(payload string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writeLocked(encodeData(payload))
}

func (f *frameWriter) writeLocked(frame []byte) error {
	if f.broken {
		return errBroken
	}
	if _, err := f.w.Write(frame); err != nil {
		f.broken = true
		return err
	}
	if err := f.rc.Flush(); err != nil {
		f.broken = true
		return err
	}
	return nil
}

// encodeData renders payload as one event. Line breaks inside the payload
// become separate data: lines, which the client joins back with "\n".
func encodeData(payload string) []byte {
	payload = strings.ReplaceAll(payload, "\r\n", "\n")
	payload = strings.ReplaceAll(payload, "\r", "\n")

	var b strings.Builder
	b.Grow(len(payload) + 8)
	for line := range strings.SplitSeq(payload, "\n") {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	return []byte(b.String())
}
