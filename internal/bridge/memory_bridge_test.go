package bridge

import (
	"context"
	"errors"
	"testing"

	"kama_support_chat/pkg/errorx"
)

func TestMemoryBridgePublishRecordsEvents(t *testing.T) {
	b := NewMemoryBridge()
	if !b.Connected() {
		t.Fatal("memory bridge should start connected")
	}

	if err := b.Publish(context.Background(), "join_support", map[string]int64{"userId": 9}); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if err := b.Publish(context.Background(), "end_call", nil); err != nil {
		t.Fatalf("publish nil payload failed: %v", err)
	}

	published := b.Published()
	if len(published) != 2 {
		t.Fatalf("expected 2 published events, got %d", len(published))
	}
	if published[0].Event != "join_support" || string(published[0].Data) != `{"userId":9}` {
		t.Fatalf("unexpected first event: %+v", published[0])
	}
	if published[1].Data != nil {
		t.Fatal("nil payload should publish an empty body")
	}
}

func TestMemoryBridgePublishWhileDisconnected(t *testing.T) {
	b := NewMemoryBridge()
	b.SetConnected(false)
	err := b.Publish(context.Background(), "typing", nil)
	if !errors.Is(err, errorx.ErrDisconnected) {
		t.Fatalf("expected disconnected error, got %v", err)
	}
	if len(b.Published()) != 0 {
		t.Fatal("disconnected publish must not be recorded")
	}
}

func TestMemoryBridgeDeliverFansOut(t *testing.T) {
	b := NewMemoryBridge()
	var first, second []string
	sub1, _ := b.Subscribe("support_new_message", func(data []byte) {
		first = append(first, string(data))
	})
	_, _ = b.Subscribe("support_new_message", func(data []byte) {
		second = append(second, string(data))
	})

	if err := b.Deliver("support_new_message", map[string]string{"content": "hi"}); err != nil {
		t.Fatalf("deliver failed: %v", err)
	}
	if len(first) != 1 || len(second) != 1 {
		t.Fatal("all subscribers of the event should be invoked")
	}

	// 取消后不再收到，且 Cancel 幂等
	sub1.Cancel()
	sub1.Cancel()
	_ = b.Deliver("support_new_message", map[string]string{"content": "again"})
	if len(first) != 1 {
		t.Fatal("cancelled subscription must not receive further events")
	}
	if len(second) != 2 {
		t.Fatal("remaining subscription should keep receiving")
	}
}

func TestMemoryBridgeDeliverUnknownEventIsNoop(t *testing.T) {
	b := NewMemoryBridge()
	if err := b.Deliver("nobody_listens", nil); err != nil {
		t.Fatalf("deliver without subscribers should succeed: %v", err)
	}
}

func TestMemoryBridgeStateChangeNotifications(t *testing.T) {
	b := NewMemoryBridge()
	var states []bool
	sub := b.OnStateChange(func(connected bool) {
		states = append(states, connected)
	})

	b.SetConnected(false)
	b.SetConnected(false) // 无变化不通知
	b.SetConnected(true)

	if len(states) != 2 || states[0] != false || states[1] != true {
		t.Fatalf("expected [false true], got %v", states)
	}

	sub.Cancel()
	b.SetConnected(false)
	if len(states) != 2 {
		t.Fatal("cancelled state subscription must not be notified")
	}
}

func TestMemoryBridgeSimulatedPeer(t *testing.T) {
	b := NewMemoryBridge()
	var got string
	b.SetOnPublish(func(eventName string, data []byte) {
		got = eventName
	})

	if err := b.Publish(context.Background(), "initiate_call", map[string]string{"type": "voice"}); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if got != "initiate_call" {
		t.Fatalf("simulated peer should observe the publish, got %q", got)
	}
}

func TestMemoryBridgeClose(t *testing.T) {
	b := NewMemoryBridge()
	if err := b.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if b.Connected() {
		t.Fatal("closed bridge should report disconnected")
	}
}
