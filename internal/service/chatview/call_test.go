package chatview

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"kama_support_chat/internal/bridge"
	"kama_support_chat/internal/event"
	"kama_support_chat/internal/model"
	"kama_support_chat/pkg/errorx"
)

// callFixture 组装一个带进程内通道与消息记录的通话控制器
type callFixture struct {
	bridge *bridge.MemoryBridge
	ctrl   *CallController

	mu   sync.Mutex
	logs []model.Message
}

func newCallFixture(t *testing.T, partner *model.Partner, connectDelay, tick time.Duration) *callFixture {
	t.Helper()
	f := &callFixture{bridge: bridge.NewMemoryBridge()}
	f.ctrl = NewCallController(
		f.bridge,
		10001,
		func() *model.Partner { return partner },
		func(msg model.Message) {
			f.mu.Lock()
			f.logs = append(f.logs, msg)
			f.mu.Unlock()
		},
		connectDelay,
		tick,
		nil,
	)
	t.Cleanup(f.ctrl.Close)
	return f
}

func (f *callFixture) logCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.logs)
}

func (f *callFixture) lastLog() model.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logs[len(f.logs)-1]
}

var testPartner = &model.Partner{Id: 1, FirstName: "Support", LastName: "Agent"}

func TestCallInitiateTransitionsThroughConnecting(t *testing.T) {
	f := newCallFixture(t, testPartner, 60*time.Millisecond, 50*time.Millisecond)

	if err := f.ctrl.Initiate(context.Background(), model.CallVoice); err != nil {
		t.Fatalf("initiate failed: %v", err)
	}
	if got := f.ctrl.State().Status; got != model.CallConnecting {
		t.Fatalf("expected connecting immediately, got %s", got)
	}

	time.Sleep(150 * time.Millisecond)
	state := f.ctrl.State()
	if state.Status != model.CallActive {
		t.Fatalf("expected active after connect delay, got %s", state.Status)
	}
	if state.StartedAt.IsZero() {
		t.Fatal("active call should record start time")
	}

	// 接通时追加"通话开始"记录
	if f.logCount() != 1 {
		t.Fatalf("expected 1 call log, got %d", f.logCount())
	}
	log := f.lastLog()
	if log.Kind != model.KindCallLog || log.Content != "Voice call started" {
		t.Fatalf("unexpected call log: %+v", log)
	}

	// 出站通知
	published := f.bridge.Published()
	if len(published) != 1 || published[0].Event != event.InitiateCallOut {
		t.Fatalf("expected initiate_call publish, got %+v", published)
	}
}

func TestCallElapsedTicks(t *testing.T) {
	f := newCallFixture(t, testPartner, 10*time.Millisecond, 40*time.Millisecond)

	if err := f.ctrl.Initiate(context.Background(), model.CallVideo); err != nil {
		t.Fatalf("initiate failed: %v", err)
	}
	time.Sleep(250 * time.Millisecond)

	state := f.ctrl.State()
	if state.Status != model.CallActive {
		t.Fatalf("expected active, got %s", state.Status)
	}
	if state.Elapsed < 2 {
		t.Fatalf("elapsed should have incremented, got %d", state.Elapsed)
	}
}

func TestCallInitiatePreconditions(t *testing.T) {
	// 对端缺失
	f := newCallFixture(t, nil, time.Minute, time.Minute)
	if err := f.ctrl.Initiate(context.Background(), model.CallVoice); !errors.Is(err, errorx.ErrNoPartner) {
		t.Fatalf("expected ErrNoPartner, got %v", err)
	}

	// 通道断开
	f2 := newCallFixture(t, testPartner, time.Minute, time.Minute)
	f2.bridge.SetConnected(false)
	if err := f2.ctrl.Initiate(context.Background(), model.CallVoice); !errors.Is(err, errorx.ErrDisconnected) {
		t.Fatalf("expected ErrDisconnected, got %v", err)
	}

	// 非法类型
	f3 := newCallFixture(t, testPartner, time.Minute, time.Minute)
	if err := f3.ctrl.Initiate(context.Background(), model.CallKind("fax")); !errors.Is(err, errorx.ErrInvalidParam) {
		t.Fatalf("expected ErrInvalidParam, got %v", err)
	}
}

func TestCallRejectsConcurrentInitiate(t *testing.T) {
	f := newCallFixture(t, testPartner, time.Minute, time.Minute)

	if err := f.ctrl.Initiate(context.Background(), model.CallVoice); err != nil {
		t.Fatalf("first initiate failed: %v", err)
	}
	if err := f.ctrl.Initiate(context.Background(), model.CallVideo); !errors.Is(err, errorx.ErrCallState) {
		t.Fatalf("expected ErrCallState for second initiate, got %v", err)
	}
}

func TestCallLocalEndResetsWithoutDurationLog(t *testing.T) {
	f := newCallFixture(t, testPartner, 10*time.Millisecond, 50*time.Millisecond)

	if err := f.ctrl.Initiate(context.Background(), model.CallVoice); err != nil {
		t.Fatalf("initiate failed: %v", err)
	}
	time.Sleep(60 * time.Millisecond)
	logsBefore := f.logCount()

	if err := f.ctrl.End(context.Background()); err != nil {
		t.Fatalf("end failed: %v", err)
	}
	if got := f.ctrl.State().Status; got != model.CallIdle {
		t.Fatalf("expected idle after end, got %s", got)
	}
	// 本地挂断不追加时长记录
	if f.logCount() != logsBefore {
		t.Fatal("local end must not append a duration log")
	}

	published := f.bridge.Published()
	if published[len(published)-1].Event != event.EndCallOut {
		t.Fatalf("expected end_call publish, got %+v", published)
	}
}

func TestCallRemoteEndedAppendsFormattedDuration(t *testing.T) {
	f := newCallFixture(t, testPartner, 10*time.Millisecond, 50*time.Millisecond)

	if err := f.ctrl.Initiate(context.Background(), model.CallVoice); err != nil {
		t.Fatalf("initiate failed: %v", err)
	}
	time.Sleep(60 * time.Millisecond)

	f.ctrl.HandleRemoteEnded(125)
	if got := f.ctrl.State().Status; got != model.CallIdle {
		t.Fatalf("expected idle after remote end, got %s", got)
	}

	log := f.lastLog()
	if log.Content != "Voice call ended - Duration: 2m 5s" {
		t.Fatalf("unexpected duration log: %q", log.Content)
	}
	if log.CallDuration != 125 || log.Kind != model.KindCallLog {
		t.Fatalf("unexpected call log metadata: %+v", log)
	}
}

func TestCallEndWhenIdleIsNoop(t *testing.T) {
	f := newCallFixture(t, testPartner, time.Minute, time.Minute)

	if err := f.ctrl.End(context.Background()); err != nil {
		t.Fatalf("idle end should be a no-op, got %v", err)
	}
	if len(f.bridge.Published()) != 0 {
		t.Fatal("idle end must not publish end_call")
	}
}

func TestCallCloseStopsTick(t *testing.T) {
	f := newCallFixture(t, testPartner, 10*time.Millisecond, 30*time.Millisecond)

	if err := f.ctrl.Initiate(context.Background(), model.CallVoice); err != nil {
		t.Fatalf("initiate failed: %v", err)
	}
	time.Sleep(60 * time.Millisecond)
	f.ctrl.Close()

	state := f.ctrl.State()
	time.Sleep(100 * time.Millisecond)
	if f.ctrl.State().Elapsed != state.Elapsed {
		t.Fatal("tick must stop after Close")
	}
}
