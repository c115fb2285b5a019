package chatview

import (
	"testing"
	"time"
)

func TestPresenceInitialOffline(t *testing.T) {
	tracker := NewPresenceTracker(time.Minute, nil)
	defer tracker.Close()

	if got := tracker.Status(); got != StatusOffline {
		t.Fatalf("initial status should be offline, got %s", got)
	}
}

func TestPresenceAgentEvents(t *testing.T) {
	tracker := NewPresenceTracker(time.Minute, nil)
	defer tracker.Close()

	tracker.AgentOnline()
	if tracker.Status() != StatusOnline {
		t.Fatal("agent online event should set online")
	}
	tracker.AgentOffline()
	if tracker.Status() != StatusOffline {
		t.Fatal("agent offline event should set offline")
	}
}

func TestPresenceUserOnlineGuard(t *testing.T) {
	tracker := NewPresenceTracker(time.Minute, nil)
	defer tracker.Close()

	// 对端自身在线标记为假时，泛化上线广播不得升级状态
	tracker.UserOnline(false)
	if tracker.Status() != StatusOffline {
		t.Fatal("user online broadcast must not upgrade when partner flag is false")
	}
	tracker.UserOnline(true)
	if tracker.Status() != StatusOnline {
		t.Fatal("user online broadcast should upgrade when partner flag is true")
	}
}

func TestPresenceUserOfflineUnconditional(t *testing.T) {
	tracker := NewPresenceTracker(time.Minute, nil)
	defer tracker.Close()

	tracker.AgentOnline()
	tracker.UserOffline()
	if tracker.Status() != StatusOffline {
		t.Fatal("user offline broadcast should always set offline")
	}
}

func TestPresenceIdleDegradesToAway(t *testing.T) {
	tracker := NewPresenceTracker(60*time.Millisecond, nil)
	defer tracker.Close()

	tracker.AgentOnline()
	time.Sleep(150 * time.Millisecond)
	if got := tracker.Status(); got != StatusAway {
		t.Fatalf("idle online session should degrade to away, got %s", got)
	}

	// 再次上线恢复 online 并重置计时
	tracker.AgentOnline()
	if tracker.Status() != StatusOnline {
		t.Fatal("online event should restore online from away")
	}
}

func TestPresenceIdleTimerNotFiredWhenOffline(t *testing.T) {
	tracker := NewPresenceTracker(50*time.Millisecond, nil)
	defer tracker.Close()

	tracker.AgentOnline()
	tracker.AgentOffline()
	time.Sleep(120 * time.Millisecond)
	if got := tracker.Status(); got != StatusOffline {
		t.Fatalf("offline session must not degrade to away, got %s", got)
	}
}

func TestPresenceOnChangeNotifications(t *testing.T) {
	var seen []Status
	tracker := NewPresenceTracker(time.Minute, func(status Status) {
		seen = append(seen, status)
	})
	defer tracker.Close()

	tracker.AgentOnline()
	tracker.AgentOnline() // 重复事件不重复通知
	tracker.AgentOffline()

	if len(seen) != 2 || seen[0] != StatusOnline || seen[1] != StatusOffline {
		t.Fatalf("unexpected notifications: %v", seen)
	}
}
