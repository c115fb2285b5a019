package event

import (
	"encoding/json"
	"testing"
	"time"

	"kama_support_chat/internal/model"
	"kama_support_chat/pkg/errorx"
)

func TestDecodeNewMessage(t *testing.T) {
	raw := []byte(`{"id":42,"content":"hi","sender_id":7,"receiver_id":9,"message_type":"text"}`)
	payload, err := Decode[NewMessagePayload](raw)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if payload.Id != 42 || payload.SenderId != 7 || payload.Content != "hi" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestDecodeRejectsInvalidJson(t *testing.T) {
	_, err := Decode[NewMessagePayload]([]byte(`{"id":`))
	if errorx.GetCode(err) != errorx.CodeBadPayload {
		t.Fatalf("expected bad payload code, got %v", err)
	}
}

func TestDecodeRejectsMissingRequiredFields(t *testing.T) {
	cases := []struct {
		name string
		run  func() error
	}{
		{"new message without id", func() error {
			_, err := Decode[NewMessagePayload]([]byte(`{"content":"hi","sender_id":7}`))
			return err
		}},
		{"typing without sender type", func() error {
			_, err := Decode[TypingPayload]([]byte(`{"userId":7}`))
			return err
		}},
		{"read receipt without ids", func() error {
			_, err := Decode[MessagesReadPayload]([]byte(`{"messageIds":[]}`))
			return err
		}},
		{"call incoming with bad kind", func() error {
			_, err := Decode[CallIncomingPayload]([]byte(`{"type":"hologram","fromId":7}`))
			return err
		}},
		{"call ended with negative duration", func() error {
			_, err := Decode[CallEndedPayload]([]byte(`{"duration":-1}`))
			return err
		}},
	}
	for _, tc := range cases {
		if err := tc.run(); errorx.GetCode(err) != errorx.CodeBadPayload {
			t.Errorf("%s: expected bad payload code, got %v", tc.name, err)
		}
	}
}

func TestToModelDerivesRoleFromSenderId(t *testing.T) {
	const localUserId int64 = 9

	own := NewMessagePayload{Id: 1, SenderId: localUserId}
	if own.ToModel(localUserId).SenderRole != model.RoleUser {
		t.Fatal("messages sent by the local user should carry the user role")
	}

	remote := NewMessagePayload{Id: 2, SenderId: 7}
	if remote.ToModel(localUserId).SenderRole != model.RoleAgent {
		t.Fatal("messages sent by anyone else should carry the agent role")
	}
}

func TestToModelDefaults(t *testing.T) {
	p := NewMessagePayload{Id: 1, SenderId: 7}
	msg := p.ToModel(9)
	if msg.Kind != model.KindText {
		t.Fatalf("kind should default to text, got %s", msg.Kind)
	}
	if msg.CreatedAt.IsZero() {
		t.Fatal("created at should default to now")
	}

	withFile := NewMessagePayload{Id: 2, SenderId: 7, AttachmentURL: "https://files/x.png"}
	if withFile.ToModel(9).Kind != model.KindFile {
		t.Fatal("attachment url without kind should imply a file message")
	}

	explicit := NewMessagePayload{Id: 3, SenderId: 7, Kind: model.KindForm, CreatedAt: time.Unix(1700000000, 0)}
	msg = explicit.ToModel(9)
	if msg.Kind != model.KindForm || msg.CreatedAt.Unix() != 1700000000 {
		t.Fatal("explicit kind and timestamp must be preserved")
	}
}

func TestMarshalEnvelope(t *testing.T) {
	raw, err := Marshal(InitiateCallOut, InitiateCallPayload{Kind: model.CallVoice, ToId: 7, FromId: 9})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("unmarshal envelope failed: %v", err)
	}
	if env.Event != InitiateCallOut {
		t.Fatalf("unexpected event name: %s", env.Event)
	}
	payload, err := Decode[InitiateCallPayload](env.Data)
	if err != nil {
		t.Fatalf("decode round trip failed: %v", err)
	}
	if payload.Kind != model.CallVoice || payload.ToId != 7 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestMarshalNilPayloadOmitsData(t *testing.T) {
	raw, err := Marshal(StopTyping, nil)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("unmarshal envelope failed: %v", err)
	}
	if env.Event != StopTyping || len(env.Data) != 0 {
		t.Fatalf("expected bare envelope, got %+v", env)
	}
}
