package notify

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"datasync/internal/mapping"
)

type failing struct{ err error }

func (f failing) Publish(context.Context, []mapping.Event) error { return f.err }

func TestRecorder_KeepsOrder(t *testing.T) {
	t.Parallel()

	var r Recorder
	first := []mapping.Event{{Kind: mapping.EventIgnored, Position: 0, Name: "col_0"}}
	second := []mapping.Event{
		{Kind: mapping.EventBound, Position: 1, Field: "a", Name: "a"},
		{Kind: mapping.EventFieldIgnored, Position: -1, Field: "b"},
	}
	_ = r.Publish(context.Background(), first)
	_ = r.Publish(context.Background(), second)

	want := append(append([]mapping.Event{}, first...), second...)
	if got := r.Events(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Events = %+v, want %+v", got, want)
	}
	if got := r.Since(1); !reflect.DeepEqual(got, second) {
		t.Fatalf("Since(1) = %+v, want %+v", got, second)
	}
	if r.Since(3) != nil || r.Len() != 3 {
		t.Fatalf("Since(3)/Len mismatch")
	}
}

func TestRecorder_Concurrent(t *testing.T) {
	t.Parallel()

	var r Recorder
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = r.Publish(context.Background(), []mapping.Event{{Kind: mapping.EventIgnored, Position: i}})
		}(i)
	}
	wg.Wait()
	if r.Len() != 16 {
		t.Fatalf("Len = %d, want 16", r.Len())
	}
}

func TestMulti_TriesEverySink(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	var r Recorder
	m := Multi{failing{boom}, &r, Nop{}, Log{Job: "test"}}

	err := m.Publish(context.Background(), []mapping.Event{mapping.OptionsChanged("separator")})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if r.Len() != 1 {
		t.Fatalf("recorder missed the event after an earlier sink failed")
	}
}
