package logger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Publisher ships digest entries. *kafka.Producer satisfies it.
type Publisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
}

// CollectionConfig controls the error digest.
type CollectionConfig struct {
	TimeInterval   time.Duration // flush interval
	CountThreshold int           // distinct errors held before an early flush
	Topic          string
	Service        string
	Publisher      Publisher
	// Errors receives publish failures. Defaults to stderr.
	Errors io.Writer
}

// DigestEntry is one distinct error and how often it fired in a window.
// Fields holds the first occurrence's fields.
type DigestEntry struct {
	Fingerprint string                 `json:"fingerprint"`
	Service     string                 `json:"service,omitempty"`
	Level       string                 `json:"level"`
	Message     string                 `json:"message"`
	Error       string                 `json:"error,omitempty"`
	Caller      string                 `json:"caller"`
	Fields      map[string]interface{} `json:"fields,omitempty"`
	Count       int                    `json:"count"`
	FirstSeen   time.Time              `json:"first_seen"`
	LastSeen    time.Time              `json:"last_seen"`
}

// LogCollector folds repeated error logs into DigestEntry records and
// publishes them, one message per fingerprint, every TimeInterval.
type LogCollector struct {
	cfg     CollectionConfig
	now     func() time.Time
	mu      sync.Mutex
	entries map[string]*DigestEntry
	out     chan []DigestEntry
	dropped int
	closed  bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

func NewLogCollector(cfg *CollectionConfig) *LogCollector {
	c := *cfg
	if c.TimeInterval <= 0 {
		c.TimeInterval = 30 * time.Second
	}
	if c.CountThreshold <= 0 {
		c.CountThreshold = 100
	}
	if c.Errors == nil {
		c.Errors = os.Stderr
	}
	lc := &LogCollector{
		cfg:     c,
		now:     time.Now,
		entries: make(map[string]*DigestEntry),
		out:     make(chan []DigestEntry, 4),
		stop:    make(chan struct{}),
	}
	lc.wg.Add(2)
	go lc.tick()
	go lc.publishLoop()
	return lc
}

// fingerprint ignores fields other than the error so that the same failure
// across different requests folds into one entry.
func fingerprint(level, caller, msg, errText string) string {
	h := sha256.New()
	for _, s := range []string{level, caller, msg, errText} {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)[:12])
}

// AddLog records one occurrence.
func (lc *LogCollector) AddLog(level, msg string, fields map[string]interface{}, caller string) {
	errText, _ := fields["error"].(string)
	key := fingerprint(level, caller, msg, errText)
	now := lc.now()

	lc.mu.Lock()
	defer lc.mu.Unlock()
	if lc.closed {
		return
	}
	if e, ok := lc.entries[key]; ok {
		e.Count++
		e.LastSeen = now
		return
	}
	delete(fields, "error")
	lc.entries[key] = &DigestEntry{
		Fingerprint: key,
		Service:     lc.cfg.Service,
		Level:       level,
		Message:     msg,
		Error:       errText,
		Caller:      caller,
		Fields:      fields,
		Count:       1,
		FirstSeen:   now,
		LastSeen:    now,
	}
	if len(lc.entries) >= lc.cfg.CountThreshold {
		lc.flushLocked()
	}
}

// flushLocked hands the window to the publisher. A full queue drops the
// window rather than blocking the caller.
func (lc *LogCollector) flushLocked() {
	if len(lc.entries) == 0 {
		return
	}
	batch := make([]DigestEntry, 0, len(lc.entries))
	for _, e := range lc.entries {
		batch = append(batch, *e)
	}
	lc.entries = make(map[string]*DigestEntry)

	select {
	case lc.out <- batch:
	default:
		lc.dropped += len(batch)
	}
}

// Dropped reports entries discarded because publishing fell behind.
func (lc *LogCollector) Dropped() int {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.dropped
}

func (lc *LogCollector) tick() {
	defer lc.wg.Done()
	t := time.NewTicker(lc.cfg.TimeInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			lc.mu.Lock()
			lc.flushLocked()
			lc.mu.Unlock()
		case <-lc.stop:
			lc.mu.Lock()
			lc.flushLocked()
			lc.closed = true
			lc.mu.Unlock()
			close(lc.out)
			return
		}
	}
}

func (lc *LogCollector) publishLoop() {
	defer lc.wg.Done()
	for batch := range lc.out {
		if lc.cfg.Publisher == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		for _, e := range batch {
			if err := lc.cfg.Publisher.Publish(ctx, lc.cfg.Topic, []byte(e.Fingerprint), e); err != nil {
				fmt.Fprintf(lc.cfg.Errors, "log digest publish failed: %v\n", err)
				break
			}
		}
		cancel()
	}
}

// Close flushes what is pending and waits for publishing to finish.
func (lc *LogCollector) Close() {
	close(lc.stop)
	lc.wg.Wait()
}
