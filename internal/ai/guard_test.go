package ai

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingEmbedder struct {
	err   error
	calls int32
}

func (e *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	atomic.AddInt32(&e.calls, 1)
	if e.err != nil {
		return nil, e.err
	}
	return []float32{1, 2, 3}, nil
}

type stubChatModel struct {
	reply string
	err   error
}

func (m *stubChatModel) Complete(ctx context.Context, messages []Message) (string, error) {
	return m.reply, m.err
}

func TestGuard_PassesThrough(t *testing.T) {
	guard := NewGuard("embeddings", 0, zap.NewNop(), nil)

	vec, err := guard.Embedder(&countingEmbedder{}).Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, vec)

	reply, err := NewGuard("chat", 0, nil, nil).ChatModel(&stubChatModel{reply: "hi"}).Complete(context.Background(), []Message{{Role: RoleUser, Content: "q"}})
	require.NoError(t, err)
	assert.Equal(t, "hi", reply)
}

func TestGuard_OpensAfterRepeatedFailures(t *testing.T) {
	boom := errors.New("upstream 500")
	inner := &countingEmbedder{err: boom}
	guard := NewGuard("embeddings", 0, zap.NewNop(), nil)
	embedder := guard.Embedder(inner)

	for i := 0; i < 3; i++ {
		_, err := embedder.Embed(context.Background(), "x")
		assert.ErrorIs(t, err, boom)
	}
	assert.Equal(t, gobreaker.StateOpen, guard.State())

	_, err := embedder.Embed(context.Background(), "x")
	assert.ErrorIs(t, err, ErrServiceUnavailable)
	assert.EqualValues(t, 3, atomic.LoadInt32(&inner.calls))
}

func TestGuard_CancellationDoesNotTrip(t *testing.T) {
	inner := &countingEmbedder{err: context.Canceled}
	guard := NewGuard("embeddings", 0, zap.NewNop(), nil)
	embedder := guard.Embedder(inner)

	for i := 0; i < 5; i++ {
		_, err := embedder.Embed(context.Background(), "x")
		assert.ErrorIs(t, err, context.Canceled)
	}
	assert.Equal(t, gobreaker.StateClosed, guard.State())
}

func TestGuard_ChatFailureSurfaces(t *testing.T) {
	boom := errors.New("bad gateway")
	_, err := NewGuard("chat", 0, nil, nil).ChatModel(&stubChatModel{err: boom}).Complete(context.Background(), nil)
	assert.ErrorIs(t, err, boom)
}

func TestGuard_RateLimitRespectsDeadline(t *testing.T) {
	inner := &countingEmbedder{}
	embedder := NewGuard("embeddings", 1, zap.NewNop(), nil).Embedder(inner)

	_, err := embedder.Embed(context.Background(), "first")
	require.NoError(t, err)

	// the next token is a minute away
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = embedder.Embed(ctx, "second")
	assert.Error(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&inner.calls))
}
