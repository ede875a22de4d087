package playback

import (
	"testing"
	"time"
)

func TestCancelSource(t *testing.T) {
	s := NewCancelSource(0)
	if s.Requested() {
		t.Fatal("new source should not be raised")
	}

	s.Request()
	s.Request()
	if !s.Requested() {
		t.Fatal("expected the flag to be raised")
	}
	select {
	case <-s.C():
	default:
		t.Error("expected a notification")
	}
	select {
	case <-s.C():
		t.Error("expected a single pending notification")
	default:
	}

	s.Request()
	s.Clear()
	if s.Requested() {
		t.Error("Clear() left the flag raised")
	}
	select {
	case <-s.C():
		t.Error("Clear() left a notification pending")
	default:
	}
}

func TestCancelSourceDebounce(t *testing.T) {
	s := NewCancelSource(time.Hour)

	s.Request()
	if !s.Requested() {
		t.Fatal("first request should be accepted")
	}
	s.Clear()

	s.Request()
	if s.Requested() {
		t.Error("request within the debounce interval should be ignored")
	}
}
