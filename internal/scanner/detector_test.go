package scanner

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedSource returns (payload, found, err) per call, in order, then
// reports nothing found.
type scriptedSource struct {
	calls   int32
	results []frameResult
}

type frameResult struct {
	payload string
	found   bool
	err     error
}

func (s *scriptedSource) DetectCode(_ context.Context) (string, bool, error) {
	n := int(atomic.AddInt32(&s.calls, 1)) - 1
	if n < len(s.results) {
		r := s.results[n]
		return r.payload, r.found, r.err
	}
	return "", false, nil
}

func TestDetectorReturnsFirstDetection(t *testing.T) {
	source := &scriptedSource{results: []frameResult{
		{found: false},
		{found: false},
		{payload: "TKT-7FQ2-M9XR", found: true},
	}}
	detector := NewDetector(source, time.Millisecond)

	payload, err := detector.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "TKT-7FQ2-M9XR", payload)
	assert.EqualValues(t, 3, atomic.LoadInt32(&source.calls))
}

func TestDetectorStopsOnSourceError(t *testing.T) {
	source := &scriptedSource{results: []frameResult{
		{found: false},
		{err: ErrDevice},
	}}
	detector := NewDetector(source, time.Millisecond)

	_, err := detector.Run(context.Background())
	assert.ErrorIs(t, err, ErrDevice)
}

func TestDetectorStopsOnCancel(t *testing.T) {
	source := &scriptedSource{}
	detector := NewDetector(source, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := detector.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
