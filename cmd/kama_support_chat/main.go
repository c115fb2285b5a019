package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"kama_support_chat/internal/api"
	"kama_support_chat/internal/bridge"
	"kama_support_chat/internal/config"
	"kama_support_chat/internal/dto/respond"
	"kama_support_chat/internal/event"
	"kama_support_chat/internal/infrastructure/logger"
	"kama_support_chat/internal/model"
	"kama_support_chat/internal/service/chatview"
	"kama_support_chat/pkg/util/snowflake"

	"go.uber.org/zap"
)

func main() {
	// 1. 加载配置
	conf := config.GetConfig()

	// 2. 初始化日志
	if err := logger.Init(&conf.LogConfig, conf.MainConfig.Mode); err != nil {
		log.Fatalf("init logger failed: %v", err)
	}
	zap.L().Info("日志初始化成功")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. 按配置模式建立通道
	ch, supportApi, err := buildChannel(ctx, conf)
	if err != nil {
		zap.L().Fatal("通道建立失败", zap.Error(err))
	}
	defer ch.Close()
	zap.L().Info("通道建立成功", zap.String("mode", conf.ChannelConfig.Mode))

	// 4. 打开支持会话视图
	session, err := chatview.Open(ctx, chatview.Options{
		Bridge:       ch,
		Api:          supportApi,
		LocalUserId:  conf.MainConfig.UserId,
		HistoryLimit: conf.ChatConfig.HistoryLimit,
		AwayIdle:     time.Duration(conf.ChatConfig.AwayIdleMinutes) * time.Minute,
		OnMessage: func(msg model.Message) {
			fmt.Printf("[%s] %s: %s\n", msg.CreatedAt.Format("15:04:05"), msg.SenderRole, msg.Content)
		},
		OnStatusChange: func(status chatview.Status) {
			fmt.Printf("-- partner is %s --\n", status)
		},
		OnTypingChange: func(active bool) {
			if active {
				fmt.Println("-- partner is typing... --")
			}
		},
		OnCallChange: func(state model.CallState) {
			if state.Status == model.CallActive {
				fmt.Printf("-- call %s %ds --\n", state.Status, state.Elapsed)
			} else {
				fmt.Printf("-- call %s --\n", state.Status)
			}
		},
		OnConnectivity: func(connected bool) {
			if !connected {
				fmt.Println("-- connection lost --")
			}
		},
	})
	if err != nil {
		zap.L().Fatal("会话打开失败", zap.Error(err))
	}
	defer session.Close()

	go repl(ctx, session)

	// 信号监听，优雅退出
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zap.L().Info("关闭客户端...")
}

// buildChannel 按配置选择通道实现
// memory 模式附带一个进程内模拟客服，便于离线演示
func buildChannel(ctx context.Context, conf *config.Config) (bridge.Bridge, chatview.SupportAPI, error) {
	switch conf.ChannelConfig.Mode {
	case "ws":
		b, err := bridge.DialWs(ctx, conf.ChannelConfig.WsURL)
		if err != nil {
			return nil, nil, err
		}
		return b, api.NewClient(&conf.ApiConfig, conf.MainConfig.UserId), nil
	case "amqp":
		b, err := bridge.DialAmqp(conf.ChannelConfig.AmqpURL, conf.ChannelConfig.AmqpExchange, conf.ChannelConfig.AmqpQueue)
		if err != nil {
			return nil, nil, err
		}
		return b, api.NewClient(&conf.ApiConfig, conf.MainConfig.UserId), nil
	default:
		b := bridge.NewMemoryBridge()
		attachSimulatedAgent(b, conf.MainConfig.UserId)
		return b, newLoopbackApi(conf.MainConfig.UserId), nil
	}
}

// repl 读取标准输入：普通行作为消息发送，斜杠命令控制通话
func repl(ctx context.Context, session *chatview.Session) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/call voice":
			if err := session.InitiateCall(ctx, model.CallVoice); err != nil {
				fmt.Println("call failed:", err)
			}
		case line == "/call video":
			if err := session.InitiateCall(ctx, model.CallVideo); err != nil {
				fmt.Println("call failed:", err)
			}
		case line == "/end":
			_ = session.EndCall(ctx)
		default:
			session.Composer().SetText(line)
			if err := session.Send(ctx); err != nil {
				fmt.Println("send failed:", err)
			}
		}
	}
}

// attachSimulatedAgent 在进程内通道上挂一个模拟客服
// 对出站发起通话事件回以延迟的 call_ended；演示远端权威时长的记录路径
func attachSimulatedAgent(b *bridge.MemoryBridge, userId int64) {
	b.SetOnPublish(func(eventName string, data []byte) {
		if eventName != event.InitiateCallOut {
			return
		}
		go func() {
			time.Sleep(8 * time.Second)
			_ = b.Deliver(event.CallEnded, event.CallEndedPayload{Duration: 5})
		}()
	})
	// 打开后模拟客服上线
	go func() {
		time.Sleep(500 * time.Millisecond)
		_ = b.Deliver(event.AgentOnline, nil)
	}()
}

// loopbackApi memory 模式下的进程内 REST 桩，消息发送即回显确认
type loopbackApi struct {
	userId int64
}

func newLoopbackApi(userId int64) *loopbackApi {
	return &loopbackApi{userId: userId}
}

func (a *loopbackApi) GetSupportConversation(ctx context.Context) (*respond.ConversationSummaryRespond, error) {
	return &respond.ConversationSummaryRespond{
		User: model.Partner{Id: 1, FirstName: "Demo", LastName: "Agent", IsOnline: true},
	}, nil
}

func (a *loopbackApi) GetSupportMessages(ctx context.Context, limit int) ([]model.Message, error) {
	return nil, nil
}

func (a *loopbackApi) SendSupportMessage(ctx context.Context, text string, receiverId int64, files []api.UploadFile) (*model.Message, error) {
	msg := model.Message{
		Id:         snowflake.GenerateID(),
		Content:    text,
		SenderId:   a.userId,
		ReceiverId: receiverId,
		SenderRole: model.RoleUser,
		Kind:       model.KindText,
		CreatedAt:  time.Now(),
	}
	if len(files) > 0 {
		msg.Kind = model.KindFile
		msg.AttachmentURL = "loopback://" + files[0].Name
		msg.AttachmentName = files[0].Name
	}
	return &msg, nil
}

func (a *loopbackApi) MarkAsRead(ctx context.Context, partnerId int64) error {
	return nil
}
