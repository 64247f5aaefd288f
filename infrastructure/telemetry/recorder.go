package telemetry

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Config controls what the recorder keeps and forwards.
type Config struct {
	SlowThreshold   time.Duration
	LogAllQueries   bool
	RedactFields    []string
	IncludeParams   bool
	Capacity        int           // ring size
	RetentionWindow time.Duration // zero keeps records until evicted by capacity
	SinkBuffer      int
}

// DefaultConfig returns the default recorder configuration.
func DefaultConfig() Config {
	return Config{
		SlowThreshold: 100 * time.Millisecond,
		LogAllQueries: false,
		RedactFields:  append([]string(nil), DefaultRedactFields...),
		IncludeParams: true,
		Capacity:      10000,
		SinkBuffer:    1024,
	}
}

// Sink durably stores records handed over by the recorder.
type Sink interface {
	Write(ctx context.Context, rec QueryRecord) error
	Close() error
}

// Stat aggregates the records of one group.
type Stat struct {
	Name           string        `json:"name"`
	Count          int           `json:"count"`
	AvgElapsedMs   float64       `json:"avg_elapsed_ms"`
	MaxElapsedMs   float64       `json:"max_elapsed_ms"`
	MinElapsedMs   float64       `json:"min_elapsed_ms"`
	TotalElapsedMs float64       `json:"total_elapsed_ms"`
	LastSeen       time.Time     `json:"last_seen"`
	Examples       []QueryRecord `json:"examples,omitempty"`
}

// Recorder is the single owned store of query history for the process.
// It is safe for concurrent use; Record never blocks on I/O.
type Recorder struct {
	logger *zap.Logger
	sink   Sink
	now    func() time.Time

	cfgMu  sync.RWMutex
	config Config

	mu    sync.Mutex
	ring  []QueryRecord
	head  int // index of the oldest record
	count int

	queue     chan QueryRecord
	done      chan struct{}
	drained   chan struct{}
	closeOnce sync.Once
	dropped   atomic.Int64
}

// Option customizes a Recorder.
type Option func(*Recorder)

// WithSink forwards slow (or all, in log-all mode) records to sink.
func WithSink(sink Sink) Option {
	return func(r *Recorder) { r.sink = sink }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// NewRecorder creates a recorder and starts its sink writer.
func NewRecorder(config Config, logger *zap.Logger, opts ...Option) *Recorder {
	def := DefaultConfig()
	if config.Capacity <= 0 {
		config.Capacity = def.Capacity
	}
	if config.SinkBuffer <= 0 {
		config.SinkBuffer = def.SinkBuffer
	}
	if config.RedactFields == nil {
		config.RedactFields = def.RedactFields
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Recorder{
		logger:  logger.Named("telemetry"),
		now:     time.Now,
		config:  config,
		ring:    make([]QueryRecord, config.Capacity),
		queue:   make(chan QueryRecord, config.SinkBuffer),
		done:    make(chan struct{}),
		drained: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}

	go r.drain()
	return r
}

// Config returns the current configuration.
func (r *Recorder) Config() Config {
	r.cfgMu.RLock()
	defer r.cfgMu.RUnlock()
	return r.config
}

// UpdateConfig applies runtime-changeable settings: threshold, log-all mode,
// redaction and retention. Capacity is fixed at construction.
func (r *Recorder) UpdateConfig(threshold time.Duration, logAll bool, redactFields []string, retention time.Duration) {
	r.cfgMu.Lock()
	defer r.cfgMu.Unlock()
	if threshold > 0 {
		r.config.SlowThreshold = threshold
	}
	r.config.LogAllQueries = logAll
	if len(redactFields) > 0 {
		r.config.RedactFields = append([]string(nil), redactFields...)
	}
	r.config.RetentionWindow = retention
	r.logger.Info("Telemetry configuration updated",
		zap.Duration("slowThreshold", r.config.SlowThreshold),
		zap.Bool("logAll", logAll),
		zap.Strings("redactFields", r.config.RedactFields),
	)
}

// Record stores one execution. It never fails and never panics: telemetry
// problems are logged and swallowed.
func (r *Recorder) Record(ctx context.Context, e Entry) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("Telemetry record panicked", zap.Any("panic", p), zap.String("query", e.Name))
		}
	}()

	cfg := r.Config()
	rec := QueryRecord{
		ID:          uuid.NewString(),
		Name:        e.Name,
		Statement:   e.Statement,
		ElapsedMs:   float64(e.Elapsed) / float64(time.Millisecond),
		Timestamp:   r.now(),
		Outcome:     e.Outcome,
		Attempts:    e.Attempts,
		ReadOnly:    e.ReadOnly,
		Rows:        e.Rows,
		Slow:        IsSlow(e.Elapsed, cfg.SlowThreshold),
		ThresholdMs: float64(cfg.SlowThreshold) / float64(time.Millisecond),
		Error:       e.Error,
	}
	if rec.Name == "" {
		rec.Name = "unnamed"
	}
	if cfg.IncludeParams {
		rec.Params = RedactParams(e.Params, cfg.RedactFields)
	}
	if info, ok := RequestFromContext(ctx); ok {
		rec.RequestPath = info.Path
		rec.RequestMethod = info.Method
		rec.RequestID = info.ID
	}

	r.append(rec, cfg.RetentionWindow)

	if rec.Slow || cfg.LogAllQueries || !rec.Success() {
		r.enqueue(rec)
	}
}

func (r *Recorder) append(rec QueryRecord, retention time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.evictExpiredLocked(rec.Timestamp, retention)

	capacity := len(r.ring)
	if r.count == capacity {
		// Full: overwrite the oldest.
		r.ring[r.head] = rec
		r.head = (r.head + 1) % capacity
		return
	}
	r.ring[(r.head+r.count)%capacity] = rec
	r.count++
}

func (r *Recorder) evictExpiredLocked(now time.Time, retention time.Duration) {
	if retention <= 0 {
		return
	}
	cutoff := now.Add(-retention)
	for r.count > 0 && r.ring[r.head].Timestamp.Before(cutoff) {
		r.ring[r.head] = QueryRecord{}
		r.head = (r.head + 1) % len(r.ring)
		r.count--
	}
}

func (r *Recorder) enqueue(rec QueryRecord) {
	if r.sink == nil {
		return
	}
	select {
	case <-r.done:
		return
	default:
	}
	select {
	case r.queue <- rec:
	default:
		if n := r.dropped.Add(1); n == 1 || n%100 == 0 {
			r.logger.Warn("Telemetry sink queue full, dropping records", zap.Int64("dropped", n))
		}
	}
}

// drain is the single writer to the sink.
func (r *Recorder) drain() {
	defer close(r.drained)
	for {
		select {
		case rec := <-r.queue:
			r.write(rec)
		case <-r.done:
			for {
				select {
				case rec := <-r.queue:
					r.write(rec)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(rec QueryRecord) {
	if r.sink == nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("Telemetry sink panicked", zap.Any("panic", p))
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.sink.Write(ctx, rec); err != nil {
		r.logger.Warn("Telemetry sink write failed", zap.String("query", rec.Name), zap.Error(err))
	}
}

// Dropped returns how many records were not forwarded because the sink queue
// was full.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Records returns the retained records, oldest first.
func (r *Recorder) Records() []QueryRecord {
	retention := r.Config().RetentionWindow

	r.mu.Lock()
	defer r.mu.Unlock()

	r.evictExpiredLocked(r.now(), retention)
	out := make([]QueryRecord, 0, r.count)
	for i := 0; i < r.count; i++ {
		out = append(out, r.ring[(r.head+i)%len(r.ring)])
	}
	return out
}

// SlowestByName ranks retained records grouped by query name: average
// elapsed time descending, then count descending, then name.
func (r *Recorder) SlowestByName(topN int) []Stat {
	return Aggregate(r.Records(), func(rec QueryRecord) string { return rec.Name }, 0, topN, 0)
}

// Aggregate groups records by key, ignoring records faster than minElapsedMs,
// and returns the topN groups ranked like SlowestByName. Each group keeps up
// to examples of its slowest records.
func Aggregate(records []QueryRecord, key func(QueryRecord) string, minElapsedMs float64, topN, examples int) []Stat {
	groups := make(map[string]*Stat)
	for _, rec := range records {
		if rec.ElapsedMs < minElapsedMs {
			continue
		}
		k := key(rec)
		if k == "" {
			k = "unknown"
		}
		s, ok := groups[k]
		if !ok {
			s = &Stat{Name: k, MinElapsedMs: rec.ElapsedMs}
			groups[k] = s
		}
		s.Count++
		s.TotalElapsedMs += rec.ElapsedMs
		if rec.ElapsedMs > s.MaxElapsedMs {
			s.MaxElapsedMs = rec.ElapsedMs
		}
		if rec.ElapsedMs < s.MinElapsedMs {
			s.MinElapsedMs = rec.ElapsedMs
		}
		if rec.Timestamp.After(s.LastSeen) {
			s.LastSeen = rec.Timestamp
		}
		if examples > 0 {
			s.Examples = keepSlowest(s.Examples, rec, examples)
		}
	}

	stats := make([]Stat, 0, len(groups))
	for _, s := range groups {
		s.AvgElapsedMs = s.TotalElapsedMs / float64(s.Count)
		stats = append(stats, *s)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].AvgElapsedMs != stats[j].AvgElapsedMs {
			return stats[i].AvgElapsedMs > stats[j].AvgElapsedMs
		}
		if stats[i].Count != stats[j].Count {
			return stats[i].Count > stats[j].Count
		}
		return stats[i].Name < stats[j].Name
	})

	if topN > 0 && len(stats) > topN {
		stats = stats[:topN]
	}
	return stats
}

func keepSlowest(examples []QueryRecord, rec QueryRecord, limit int) []QueryRecord {
	examples = append(examples, rec)
	sort.SliceStable(examples, func(i, j int) bool {
		return examples[i].ElapsedMs > examples[j].ElapsedMs
	})
	if len(examples) > limit {
		examples = examples[:limit]
	}
	return examples
}

// Close stops the sink writer after flushing queued records, then closes
// the sink. Records arriving afterwards are kept in memory only.
func (r *Recorder) Close() error {
	var err error
	r.closeOnce.Do(func() {
		close(r.done)
		<-r.drained
		if r.sink != nil {
			err = r.sink.Close()
		}
	})
	return err
}
