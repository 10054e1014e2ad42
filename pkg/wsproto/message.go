package wsproto

import (
	"encoding/json"
	"fmt"
)

// MessageKind names a WsMessageClass variant.
type MessageKind string

const (
	KindHeartBeat      MessageKind = "HeartBeat"
	KindEstablish      MessageKind = "Establish"
	KindReconnect      MessageKind = "Reconnect"
	KindCreateWsWorker MessageKind = "CreateWsWorker"
	KindLeave          MessageKind = "Leave"
	KindFileSendable   MessageKind = "FileSendable"
	KindFileResponse   MessageKind = "FileResponse"
	KindFileRequest    MessageKind = "FileRequest"
	KindPleaseSend     MessageKind = "PleaseSend"
	KindText           MessageKind = "Text"
	KindNotify         MessageKind = "Notify"
	KindErrJSON        MessageKind = "Errjson"
)

// unit variants that carry no payload and serialize as a bare string.
var unitKinds = map[MessageKind]bool{
	KindEstablish: true,
	KindReconnect: true,
	KindLeave:     true,
}

// MessageClass is the tagged union of every message body exchanged over
// the control channel. Exactly one of the typed fields is populated,
// selected by Kind.
type MessageClass struct {
	Kind MessageKind

	HeartBeat      *HeartBeat
	CreateWsWorker *uint64
	FileSendable   *FileSendableResponse
	FileResponse   *FileResponse
	FileRequest    *FileRequest
	PleaseSend     *string // file_hash
	Text           *string
	Notify         *string
	Errjson        *string
}

func NewHeartBeatMessage(hb HeartBeat) MessageClass {
	return MessageClass{Kind: KindHeartBeat, HeartBeat: &hb}
}

func NewEstablishMessage() MessageClass { return MessageClass{Kind: KindEstablish} }

func NewReconnectMessage() MessageClass { return MessageClass{Kind: KindReconnect} }

func NewLeaveMessage() MessageClass { return MessageClass{Kind: KindLeave} }

func NewCreateWsWorkerMessage(workerID uint64) MessageClass {
	return MessageClass{Kind: KindCreateWsWorker, CreateWsWorker: &workerID}
}

func NewFileSendableMessage(resp FileSendableResponse) MessageClass {
	return MessageClass{Kind: KindFileSendable, FileSendable: &resp}
}

func NewFileResponseMessage(resp FileResponse) MessageClass {
	return MessageClass{Kind: KindFileResponse, FileResponse: &resp}
}

func NewFileRequestMessage(req FileRequest) MessageClass {
	return MessageClass{Kind: KindFileRequest, FileRequest: &req}
}

func NewPleaseSendMessage(fileHash string) MessageClass {
	return MessageClass{Kind: KindPleaseSend, PleaseSend: &fileHash}
}

func NewTextMessage(text string) MessageClass {
	return MessageClass{Kind: KindText, Text: &text}
}

func NewNotifyMessage(text string) MessageClass {
	return MessageClass{Kind: KindNotify, Notify: &text}
}

func NewErrJSONMessage(msg string) MessageClass {
	return MessageClass{Kind: KindErrJSON, Errjson: &msg}
}

// MarshalJSON renders unit variants as a bare string and every other
// variant as {"Kind": payload}.
func (m MessageClass) MarshalJSON() ([]byte, error) {
	if unitKinds[m.Kind] {
		return json.Marshal(string(m.Kind))
	}

	var payload any
	switch m.Kind {
	case KindHeartBeat:
		payload = m.HeartBeat
	case KindCreateWsWorker:
		payload = m.CreateWsWorker
	case KindFileSendable:
		payload = m.FileSendable
	case KindFileResponse:
		payload = m.FileResponse
	case KindFileRequest:
		payload = m.FileRequest
	case KindPleaseSend:
		payload = m.PleaseSend
	case KindText:
		payload = m.Text
	case KindNotify:
		payload = m.Notify
	case KindErrJSON:
		payload = m.Errjson
	default:
		return nil, fmt.Errorf("wsproto: unknown MessageClass kind %q", m.Kind)
	}

	return json.Marshal(map[string]any{string(m.Kind): payload})
}

// UnmarshalJSON parses either the bare-string or single-key-object form.
func (m *MessageClass) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		*m = MessageClass{Kind: MessageKind(asString)}
		return nil
	}

	var asObject map[string]json.RawMessage
	if err := json.Unmarshal(data, &asObject); err != nil {
		return fmt.Errorf("wsproto: MessageClass is neither a string nor a single-key object: %w", err)
	}
	if len(asObject) != 1 {
		return fmt.Errorf("wsproto: MessageClass object must have exactly one key, got %d", len(asObject))
	}

	for key, raw := range asObject {
		kind := MessageKind(key)
		out := MessageClass{Kind: kind}
		var err error
		switch kind {
		case KindHeartBeat:
			out.HeartBeat = new(HeartBeat)
			err = json.Unmarshal(raw, out.HeartBeat)
		case KindCreateWsWorker:
			out.CreateWsWorker = new(uint64)
			err = json.Unmarshal(raw, out.CreateWsWorker)
		case KindFileSendable:
			out.FileSendable = new(FileSendableResponse)
			err = json.Unmarshal(raw, out.FileSendable)
		case KindFileResponse:
			out.FileResponse = new(FileResponse)
			err = json.Unmarshal(raw, out.FileResponse)
		case KindFileRequest:
			out.FileRequest = new(FileRequest)
			err = json.Unmarshal(raw, out.FileRequest)
		case KindPleaseSend:
			out.PleaseSend = new(string)
			err = json.Unmarshal(raw, out.PleaseSend)
		case KindText:
			out.Text = new(string)
			err = json.Unmarshal(raw, out.Text)
		case KindNotify:
			out.Notify = new(string)
			err = json.Unmarshal(raw, out.Notify)
		case KindErrJSON:
			out.Errjson = new(string)
			err = json.Unmarshal(raw, out.Errjson)
		default:
			err = fmt.Errorf("unknown variant %q", key)
		}
		if err != nil {
			return fmt.Errorf("wsproto: decoding MessageClass payload for %q: %w", key, err)
		}
		*m = out
	}
	return nil
}
