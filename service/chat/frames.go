package chat

import (
	"bytes"
	"encoding/json"
	"strings"

	"PMentor/tools/errs"
)

// 客户端 -> 服务端
const (
	CmdConnect     = "CONNECT"
	CmdStomp       = "STOMP" // CONNECT 的别名
	CmdSubscribe   = "SUBSCRIBE"
	CmdUnsubscribe = "UNSUBSCRIBE"
	CmdSend        = "SEND"
	CmdDisconnect  = "DISCONNECT"
)

// 服务端 -> 客户端
const (
	CmdConnected = "CONNECTED"
	CmdMessage   = "MESSAGE"
	CmdReceipt   = "RECEIPT"
	CmdError     = "ERROR"
)

const (
	HdrAuthorization = "Authorization"
	HdrDestination   = "destination"
	HdrID            = "id"
	HdrReceipt       = "receipt"
	HdrReceiptID     = "receipt-id"
	HdrSubscription  = "subscription"
	HdrMessageID     = "message-id"
	HdrSession       = "session"
	HdrUserName      = "user-name"
	HdrVersion       = "version"
	HdrMessage       = "message"

	ProtocolVersion = "1.2"
)

// Frame is one unit of the sub-protocol, carried as a JSON text message.
type Frame struct {
	Command string            `json:"command"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    json.RawMessage   `json:"body,omitempty"`
}

// ParseFrame decodes raw and normalises the command. Unknown commands are
// left for the caller to reject.
func ParseFrame(raw []byte) (*Frame, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, errs.ErrArgs.WrapMsg("empty frame")
	}
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, errs.ErrArgs.WrapMsg("malformed frame", "err", err)
	}
	f.Command = strings.ToUpper(strings.TrimSpace(f.Command))
	if f.Command == "" {
		return nil, errs.ErrArgs.WrapMsg("frame without command")
	}
	return &f, nil
}

// Header looks name up exactly, then case-insensitively.
func (f *Frame) Header(name string) string {
	if f == nil || f.Headers == nil {
		return ""
	}
	if v, ok := f.Headers[name]; ok {
		return v
	}
	for k, v := range f.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// Destination of SEND / SUBSCRIBE frames.
func (f *Frame) Destination() string { return strings.TrimSpace(f.Header(HdrDestination)) }

// BodyText returns the body as plain text. A JSON string body is unquoted.
func (f *Frame) BodyText() string {
	if len(f.Body) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(f.Body, &s); err == nil {
		return s
	}
	return string(f.Body)
}

func (f *Frame) Encode() ([]byte, error) { return json.Marshal(f) }

// ---- 服务端帧 ----

func ConnectedFrame(session, userName string) *Frame {
	h := map[string]string{HdrVersion: ProtocolVersion, HdrSession: session}
	if userName != "" {
		h[HdrUserName] = userName
	}
	return &Frame{Command: CmdConnected, Headers: h}
}

func MessageFrame(destination, subscription, messageID string, body []byte) *Frame {
	return &Frame{
		Command: CmdMessage,
		Headers: map[string]string{
			HdrDestination:  destination,
			HdrSubscription: subscription,
			HdrMessageID:    messageID,
		},
		Body: body,
	}
}

func ReceiptFrame(receiptID string) *Frame {
	return &Frame{Command: CmdReceipt, Headers: map[string]string{HdrReceiptID: receiptID}}
}

func ErrorFrame(message string) *Frame {
	return &Frame{Command: CmdError, Headers: map[string]string{HdrMessage: message}}
}
