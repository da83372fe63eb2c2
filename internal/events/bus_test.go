package events

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aristath/planner/internal/plan"
)

func startedEvent(id string) TaskStartedEvent {
	return TaskStartedEvent{PlanID: "plan-1", ID: id, Title: "Test", Attempt: 1, Timestamp: time.Now()}
}

// TestPublishSubscribe verifies basic publish/subscribe functionality.
func TestPublishSubscribe(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	ch := bus.Subscribe(TopicTask, 10)
	bus.Publish(TopicTask, startedEvent("task-1"))

	select {
	case received := <-ch:
		if received.TaskID() != "task-1" {
			t.Errorf("expected task ID 'task-1', got '%s'", received.TaskID())
		}
		if received.EventType() != EventTypeTaskStarted {
			t.Errorf("expected event type '%s', got '%s'", EventTypeTaskStarted, received.EventType())
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}
}

// TestMultipleSubscribers verifies multiple subscribers receive the same event.
func TestMultipleSubscribers(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	ch1 := bus.Subscribe(TopicTask, 10)
	ch2 := bus.Subscribe(TopicTask, 10)

	bus.Publish(TopicTask, TaskCompletedEvent{
		ID:        "task-2",
		Status:    plan.TaskCompleted,
		Attempts:  1,
		Duration:  100 * time.Millisecond,
		Timestamp: time.Now(),
	})

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case received := <-ch:
			if received.TaskID() != "task-2" {
				t.Errorf("subscriber %d: expected task ID 'task-2', got '%s'", i+1, received.TaskID())
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("subscriber %d: timeout waiting for event", i+1)
		}
	}
}

// TestNonBlockingSend verifies that a full subscriber neither blocks the
// publisher nor goes unnoticed.
func TestNonBlockingSend(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	ch := bus.Subscribe(TopicTask, 1)

	done := make(chan bool)
	go func() {
		for i := 0; i < 10; i++ {
			bus.Publish(TopicTask, startedEvent(fmt.Sprintf("task-%d", i)))
		}
		done <- true
	}()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("publisher blocked (expected non-blocking behavior)")
	}

	select {
	case received := <-ch:
		if received.TaskID() != "task-0" {
			t.Errorf("expected the first event to be buffered, got %s", received.TaskID())
		}
	default:
		t.Error("expected at least one event in buffer")
	}

	if got := bus.Dropped(); got != 9 {
		t.Errorf("Dropped() = %d, want 9", got)
	}
}

// TestCloseSignalsSubscribers verifies that closing the bus closes subscriber channels.
func TestCloseSignalsSubscribers(t *testing.T) {
	bus := NewEventBus()
	ch := bus.Subscribe(TopicTask, 10)
	all := bus.SubscribeAll(10)

	bus.Close()
	bus.Close()

	for range ch {
		t.Error("unexpected event on closed topic channel")
	}
	for range all {
		t.Error("unexpected event on closed all channel")
	}

	late := bus.Subscribe(TopicPlan, 1)
	if _, ok := <-late; ok {
		t.Error("subscribing after close should return a closed channel")
	}
}

// TestPublishAfterClose verifies publishing after close doesn't panic.
func TestPublishAfterClose(t *testing.T) {
	bus := NewEventBus()
	ch := bus.Subscribe(TopicTask, 10)
	bus.Close()

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("publishing after close caused panic: %v", r)
		}
	}()
	bus.Publish(TopicTask, startedEvent("task-1"))

	if _, ok := <-ch; ok {
		t.Error("received event after bus was closed")
	}
}

// TestTopicIsolation verifies plan events do not reach task subscribers and vice versa.
func TestTopicIsolation(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	taskCh := bus.Subscribe(TopicTask, 10)
	planCh := bus.Subscribe(TopicPlan, 10)
	allCh := bus.SubscribeAll(10)

	bus.Publish(TopicTask, TaskFailedEvent{ID: "task-1", Err: errors.New("boom"), Attempts: 3})
	bus.Publish(TopicPlan, PlanStatusChangedEvent{PlanID: "plan-1", From: plan.PlanExecuting, To: plan.PlanFailed})

	select {
	case received := <-taskCh:
		if received.EventType() != EventTypeTaskFailed {
			t.Errorf("task channel: expected task event, got %s", received.EventType())
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("task channel: timeout waiting for event")
	}

	select {
	case received := <-planCh:
		if received.EventType() != EventTypePlanStatusChanged || received.TaskID() != "" {
			t.Errorf("plan channel: unexpected event %s", received.EventType())
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("plan channel: timeout waiting for event")
	}

	select {
	case <-taskCh:
		t.Error("task channel received unexpected event")
	case <-planCh:
		t.Error("plan channel received unexpected event")
	case <-time.After(10 * time.Millisecond):
	}

	if len(allCh) != 2 {
		t.Errorf("SubscribeAll buffered %d events, want 2", len(allCh))
	}
}

func TestNewPlanProgress(t *testing.T) {
	p := plan.New("T", "")
	p.Tasks = []*plan.Task{
		{ID: "a", Status: plan.TaskCompleted},
		{ID: "b", Status: plan.TaskAccepted},
		{ID: "c", Status: plan.TaskInProgress},
		{ID: "d", Status: plan.TaskFailed},
		{ID: "e", Status: plan.TaskPending},
		{ID: "f", Status: plan.TaskPending},
	}

	got := NewPlanProgress(p)
	if got.PlanID != p.ID || got.Total != 6 {
		t.Errorf("unexpected header: %+v", got)
	}
	if got.Completed != 1 || got.Accepted != 1 || got.Running != 1 || got.Failed != 1 || got.Pending != 2 {
		t.Errorf("unexpected counts: %+v", got)
	}
	if got.Done() != 2 {
		t.Errorf("Done() = %d, want 2", got.Done())
	}
	if got.EventType() != EventTypePlanProgress {
		t.Errorf("EventType() = %s", got.EventType())
	}
}
