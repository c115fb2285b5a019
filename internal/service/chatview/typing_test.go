package chatview

import (
	"testing"
	"time"

	"kama_support_chat/internal/model"
)

func TestTypingExpiresAutomatically(t *testing.T) {
	indicator := NewTypingIndicator(80*time.Millisecond, nil)
	defer indicator.Close()

	indicator.HandleTyping(string(model.RoleAgent))
	if !indicator.Active() {
		t.Fatal("indicator should be active right after typing event")
	}

	time.Sleep(200 * time.Millisecond)
	if indicator.Active() {
		t.Fatal("indicator should have expired without a follow-up event")
	}
}

func TestTypingDebounceResetsExpiry(t *testing.T) {
	indicator := NewTypingIndicator(120*time.Millisecond, nil)
	defer indicator.Close()

	indicator.HandleTyping(string(model.RoleAgent))
	time.Sleep(70 * time.Millisecond)
	// 第二次事件重置过期窗口，指示器应跨越两次事件持续为真
	indicator.HandleTyping(string(model.RoleAgent))
	time.Sleep(70 * time.Millisecond)
	if !indicator.Active() {
		t.Fatal("second typing event should have extended the expiry window")
	}

	time.Sleep(150 * time.Millisecond)
	if indicator.Active() {
		t.Fatal("indicator should eventually expire")
	}
}

func TestTypingStopIsImmediate(t *testing.T) {
	indicator := NewTypingIndicator(time.Minute, nil)
	defer indicator.Close()

	indicator.HandleTyping(string(model.RoleAgent))
	indicator.HandleStopTyping()
	if indicator.Active() {
		t.Fatal("explicit stop should clear the indicator immediately")
	}
}

func TestTypingIgnoresOtherRoles(t *testing.T) {
	indicator := NewTypingIndicator(time.Minute, nil)
	defer indicator.Close()

	indicator.HandleTyping(string(model.RoleUser))
	indicator.HandleTyping(string(model.RoleBot))
	if indicator.Active() {
		t.Fatal("non-agent typing events must be ignored")
	}
}

func TestTypingCloseCancelsPendingTimer(t *testing.T) {
	var notified []bool
	indicator := NewTypingIndicator(50*time.Millisecond, func(active bool) {
		notified = append(notified, active)
	})

	indicator.HandleTyping(string(model.RoleAgent))
	indicator.Close()
	time.Sleep(120 * time.Millisecond)

	// Close 之后过期定时器不得再触发回调
	if len(notified) != 1 || notified[0] != true {
		t.Fatalf("expected only the activation notification, got %v", notified)
	}
}
