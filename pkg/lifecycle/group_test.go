package lifecycle

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestGroupStopJoinsTasks(t *testing.T) {
	g := NewGroup(context.Background(), nil)

	var finished atomic.Int32
	for i := 0; i < 3; i++ {
		g.Go("task", func(ctx context.Context) error {
			<-ctx.Done()
			finished.Add(1)
			return ctx.Err()
		})
	}

	if err := g.Stop(time.Second); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if n := finished.Load(); n != 3 {
		t.Errorf("finished tasks = %d, want 3", n)
	}
}

func TestGroupStopTimeout(t *testing.T) {
	g := NewGroup(context.Background(), nil)

	block := make(chan struct{})
	g.Go("stuck", func(ctx context.Context) error {
		<-block
		return nil
	})

	err := g.Stop(20 * time.Millisecond)
	if !errors.Is(err, ErrShutdownTimeout) {
		t.Errorf("Stop() error = %v, want ErrShutdownTimeout", err)
	}
	close(block)
}

func TestGroupTaskErrorDoesNotCancelOthers(t *testing.T) {
	g := NewGroup(context.Background(), nil)

	g.Go("failing", func(ctx context.Context) error {
		return errors.New("boom")
	})

	survived := make(chan struct{})
	g.Go("survivor", func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			close(survived)
			return ctx.Err()
		case <-time.After(5 * time.Second):
			return nil
		}
	})

	time.Sleep(20 * time.Millisecond)
	if err := g.Stop(time.Second); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	select {
	case <-survived:
	default:
		t.Error("survivor task was not running until Stop")
	}
}
