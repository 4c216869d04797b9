package main

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Tutortoise/digit-recognition-service/digits"
)

type stubScorer struct {
	id        int
	scores    []float32
	err       error
	delay     time.Duration
	factory   *stubFactory
	destroyed atomic.Bool

	inFlight   atomic.Int32
	overlapped atomic.Bool
}

func (s *stubScorer) Scores(*digits.Tensor) ([]float32, error) {
	if s.inFlight.Add(1) > 1 {
		s.overlapped.Store(true)
	}
	defer s.inFlight.Add(-1)
	if s.factory != nil {
		s.factory.enter()
		defer s.factory.inFlight.Add(-1)
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	if s.err != nil {
		return nil, s.err
	}
	return s.scores, nil
}

func (s *stubScorer) Destroy() { s.destroyed.Store(true) }

// stubFactory builds stubScorers and remembers every one it created.
// err is given to every scorer, or only to the first errSessions of them
// when errSessions is set.
type stubFactory struct {
	mu          sync.Mutex
	created     []*stubScorer
	scores      []float32
	err         error
	errSessions int
	delay       time.Duration
	failFrom    int

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (f *stubFactory) New() (digits.Scorer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFrom > 0 && len(f.created)+1 >= f.failFrom {
		return nil, assertErr("factory exhausted")
	}
	s := &stubScorer{id: len(f.created), scores: f.scores, delay: f.delay, factory: f}
	if f.errSessions == 0 || s.id < f.errSessions {
		s.err = f.err
	}
	f.created = append(f.created, s)
	return s, nil
}

func (f *stubFactory) setFailFrom(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failFrom = n
}

func (f *stubFactory) enter() {
	n := f.inFlight.Add(1)
	for {
		peak := f.maxInFlight.Load()
		if n <= peak || f.maxInFlight.CompareAndSwap(peak, n) {
			return
		}
	}
}

func (f *stubFactory) Created() []*stubScorer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*stubScorer(nil), f.created...)
}

type assertErr string

func (e assertErr) Error() string { return string(e) }

func scoresFor(digit int) []float32 {
	scores := make([]float32, digits.NumClasses)
	scores[digit] = 10
	return scores
}

func newTestPool(t *testing.T, f *stubFactory, size int) *ModelSessionPool {
	t.Helper()
	pool, err := NewModelSessionPool(f.New, PoolConfig{
		Size:           size,
		AcquireTimeout: 50 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(pool.Destroy)
	return pool
}

func newTestState(t *testing.T, pool *ModelSessionPool, origins ...string) *AppState {
	t.Helper()
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	resampler, err := digits.NewResampler(digits.BackendImaging)
	require.NoError(t, err)
	return &AppState{
		Config: &Config{
			Server: ServerConfig{MaxBodyBytes: 1 << 20},
			CORS:   CORSConfig{AllowedOrigins: origins},
		},
		Pool:      pool,
		Resampler: resampler,
		Metrics:   NewMetrics(pool),
		Logger:    zap.NewNop(),
	}
}

func encodedCanvas(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(20, 10, 44, 54), image.NewUniform(color.Black), image.Point{}, draw.Src)

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}
