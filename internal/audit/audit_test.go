package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dropDatabas3/hablas/internal/domain/repository"
	"github.com/dropDatabas3/hablas/internal/store/memory"
)

func runLogger(t *testing.T, l *Logger) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = l.Run(ctx)
		close(done)
	}()
	return func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("audit worker did not stop")
		}
	}
}

func TestRecord_WritesToAllSinks(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	repo := memory.NewAuditRepo()
	l := New(16, zap.NewNop(), NewZapSink(zap.New(core)), NewStoreSink(repo, time.Second))
	stop := runLogger(t, l)

	l.Record(context.Background(), repository.AuditEntry{
		PrincipalID: "p1", EventType: EventFailedLogin, Reason: "wrong_password", IPAddress: "10.0.0.1",
	})
	stop()

	entries := repo.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, EventFailedLogin, entries[0].EventType)
	assert.Equal(t, "wrong_password", entries[0].Reason)
	assert.False(t, entries[0].Timestamp.IsZero())

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, EventFailedLogin, fields["event"])
	assert.Equal(t, "wrong_password", fields["reason"])
}

type blockingSink struct{ release chan struct{} }

func (b *blockingSink) Name() string { return "blocking" }
func (b *blockingSink) Write(ctx context.Context, _ repository.AuditEntry) error {
	select {
	case <-b.release:
	case <-ctx.Done():
	}
	return nil
}

func TestRecord_NeverBlocks(t *testing.T) {
	// sin worker corriendo: el buffer se llena y el resto se descarta
	l := New(2, zap.NewNop())
	start := time.Now()
	for i := 0; i < 100; i++ {
		l.Record(context.Background(), repository.AuditEntry{EventType: EventLogin})
	}
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 2, l.Pending())
}

func TestRecord_SlowSinkDoesNotBlockCaller(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	l := New(4, zap.NewNop(), sink)
	stop := runLogger(t, l)

	start := time.Now()
	for i := 0; i < 50; i++ {
		l.Record(context.Background(), repository.AuditEntry{EventType: EventLogin})
	}
	assert.Less(t, time.Since(start), time.Second)
	close(sink.release)
	stop()
}

type failingSink struct{}

func (failingSink) Name() string { return "failing" }
func (failingSink) Write(context.Context, repository.AuditEntry) error {
	return errors.New("boom")
}

func TestRecord_FailingSinkDoesNotStopOthers(t *testing.T) {
	repo := memory.NewAuditRepo()
	l := New(4, zap.NewNop(), failingSink{}, NewStoreSink(repo, time.Second))
	stop := runLogger(t, l)
	l.Record(context.Background(), repository.AuditEntry{EventType: EventLogout})
	stop()
	assert.Len(t, repo.Entries(), 1)
}

func TestRecord_NilLogger(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() {
		l.Record(context.Background(), repository.AuditEntry{EventType: EventLogin})
	})
}
