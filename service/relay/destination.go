package relay

// 目的地常量，客户端订阅时前面加 /user
const (
	UserPrefix = "/user"
	AppPrefix  = "/app"

	QueueMessages     = "/queue/messages"
	QueueTyping       = "/queue/typing"
	QueueReadReceipts = "/queue/read-receipts"
	QueueConnections  = "/queue/connections"
	QueueStatus       = "/queue/status"

	TopicUserStatus = "/topic/user-status"
)

// Destination is either one principal's private channel or the shared topic.
// The kind is fixed by the constructor; an empty principal never turns a
// private destination into a broadcast.
type Destination struct {
	Principal string
	Channel   string
	broadcast bool
}

func Private(userID, channel string) Destination {
	return Destination{Principal: userID, Channel: channel}
}

func Broadcast(channel string) Destination { return Destination{Channel: channel, broadcast: true} }

func (d Destination) IsBroadcast() bool { return d.broadcast }

func (d Destination) String() string {
	if d.IsBroadcast() {
		return d.Channel
	}
	return UserPrefix + "/" + d.Principal + d.Channel
}
