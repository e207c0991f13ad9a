package discovery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

var (
	kafkaCluster     = schema.GroupVersionKind{Group: "kafka.example.tech", Version: "v1alpha1", Kind: "KafkaCluster"}
	kafkaClusterBeta = schema.GroupVersionKind{Group: "kafka.example.tech", Version: "v1beta1", Kind: "KafkaCluster"}
	nifiCluster      = schema.GroupVersionKind{Group: "nifi.example.tech", Version: "v1alpha1", Kind: "NifiCluster"}
	opaCluster       = schema.GroupVersionKind{Group: "opa.example.tech", Version: "v1alpha1", Kind: "OpaCluster"}
)

type pollResult struct {
	gvks []schema.GroupVersionKind
	err  error
}

// scriptedLister returns the scripted results in order, then repeats the last one.
type scriptedLister struct {
	mu      sync.Mutex
	results []pollResult
	calls   int
}

func (l *scriptedLister) InstalledGVKs(context.Context) ([]schema.GroupVersionKind, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.calls
	if i >= len(l.results) {
		i = len(l.results) - 1
	}
	l.calls++
	return l.results[i].gvks, l.results[i].err
}

func (l *scriptedLister) callCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func TestDiffGVKs(t *testing.T) {
	tests := []struct {
		name     string
		previous []schema.GroupVersionKind
		current  []schema.GroupVersionKind
		expected Change
	}{
		{
			name:     "first poll",
			current:  []schema.GroupVersionKind{opaCluster, kafkaCluster},
			expected: Change{Added: []schema.GroupVersionKind{kafkaCluster, opaCluster}},
		},
		{
			name:     "unchanged",
			previous: []schema.GroupVersionKind{kafkaCluster, opaCluster},
			current:  []schema.GroupVersionKind{opaCluster, kafkaCluster},
			expected: Change{},
		},
		{
			name:     "added and removed",
			previous: []schema.GroupVersionKind{kafkaCluster, opaCluster},
			current:  []schema.GroupVersionKind{kafkaCluster, nifiCluster},
			expected: Change{
				Added:   []schema.GroupVersionKind{nifiCluster},
				Removed: []schema.GroupVersionKind{opaCluster},
			},
		},
		{
			name:     "kind listed twice",
			previous: []schema.GroupVersionKind{opaCluster},
			current:  []schema.GroupVersionKind{nifiCluster, opaCluster, nifiCluster},
			expected: Change{Added: []schema.GroupVersionKind{nifiCluster}},
		},
		{
			name:     "sorted by group then version",
			current:  []schema.GroupVersionKind{kafkaClusterBeta, opaCluster, kafkaCluster},
			expected: Change{Added: []schema.GroupVersionKind{kafkaCluster, kafkaClusterBeta, opaCluster}},
		},
		{
			name:     "everything removed",
			previous: []schema.GroupVersionKind{nifiCluster},
			current:  []schema.GroupVersionKind{},
			expected: Change{Removed: []schema.GroupVersionKind{nifiCluster}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := diffGVKs(tt.previous, tt.current)
			if diff := cmp.Diff(tt.expected, got); diff != "" {
				t.Errorf("diffGVKs() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEqualGVKs(t *testing.T) {
	if !equalGVKs(nil, []schema.GroupVersionKind{}) {
		t.Error("nil and empty should be equal")
	}
	if !equalGVKs([]schema.GroupVersionKind{kafkaCluster, opaCluster}, []schema.GroupVersionKind{opaCluster, kafkaCluster}) {
		t.Error("order should not matter")
	}
	if equalGVKs([]schema.GroupVersionKind{kafkaCluster}, []schema.GroupVersionKind{opaCluster}) {
		t.Error("different kinds should not be equal")
	}
}

func TestWatcher_ReportsChanges(t *testing.T) {
	lister := &scriptedLister{results: []pollResult{
		{gvks: []schema.GroupVersionKind{kafkaCluster}},
		{gvks: []schema.GroupVersionKind{kafkaCluster}},
		{gvks: []schema.GroupVersionKind{kafkaCluster, nifiCluster}},
		{gvks: []schema.GroupVersionKind{nifiCluster}},
	}}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var changes []Change
	err := NewWatcher(lister, 5*time.Millisecond).Run(ctx, func(c Change) error {
		changes = append(changes, c)
		if len(changes) == 3 {
			cancel()
		}
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}

	expected := []Change{
		{Added: []schema.GroupVersionKind{kafkaCluster}},
		{Added: []schema.GroupVersionKind{nifiCluster}},
		{Removed: []schema.GroupVersionKind{kafkaCluster}},
	}
	if diff := cmp.Diff(expected, changes); diff != "" {
		t.Errorf("changes mismatch (-want +got):\n%s", diff)
	}
}

func TestWatcher_FirstPollEmptyCluster(t *testing.T) {
	lister := &scriptedLister{results: []pollResult{{gvks: []schema.GroupVersionKind{}}}}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	calls := 0
	err := NewWatcher(lister, 5*time.Millisecond).Run(ctx, func(c Change) error {
		calls++
		if !c.Empty() {
			t.Errorf("expected an empty change, got %+v", c)
		}
		cancel()
		return nil
	})
	if !IsWatchStopped(err) {
		t.Fatalf("Run() error = %v, want a stopped watch", err)
	}
	if calls != 1 {
		t.Errorf("expected onChange to be called once, got %d", calls)
	}
}

func TestWatcher_RetriesFailedPolls(t *testing.T) {
	lister := &scriptedLister{results: []pollResult{
		{err: &ClusterCommunicationError{Op: opListGroups, Err: errors.New("connection refused")}},
		{err: &ClusterCommunicationError{Op: opListGroups, Err: errors.New("connection refused")}},
		{gvks: []schema.GroupVersionKind{opaCluster}},
	}}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var got Change
	err := NewWatcher(lister, 10*time.Millisecond).Run(ctx, func(c Change) error {
		got = c
		cancel()
		return nil
	})
	if !IsWatchStopped(err) {
		t.Fatalf("Run() error = %v, want a stopped watch", err)
	}
	if diff := cmp.Diff(Change{Added: []schema.GroupVersionKind{opaCluster}}, got); diff != "" {
		t.Errorf("change mismatch (-want +got):\n%s", diff)
	}
	if n := lister.callCount(); n != 3 {
		t.Errorf("expected 3 polls, got %d", n)
	}
}

func TestWatcher_HandlerError(t *testing.T) {
	lister := &scriptedLister{results: []pollResult{{gvks: []schema.GroupVersionKind{kafkaCluster}}}}
	handlerErr := errors.New("write /dev/stdout: broken pipe")

	err := NewWatcher(lister, time.Millisecond).Run(context.Background(), func(Change) error {
		return handlerErr
	})
	if !errors.Is(err, handlerErr) {
		t.Fatalf("Run() error = %v, want wrapped handler error", err)
	}
	if IsWatchStopped(err) {
		t.Error("a handler error must not look like a stopped watch")
	}
}

func TestNewWatcher_DefaultInterval(t *testing.T) {
	w := NewWatcher(&scriptedLister{}, 0)
	if w.interval != DefaultWatchInterval {
		t.Errorf("interval = %v, want %v", w.interval, DefaultWatchInterval)
	}
}
