package feed

// Command is a control instruction delivered to the stream loop over its
// command channel. The loop owns the WebSocket connection exclusively; other
// components influence it only through commands.
type Command interface {
	isCommand()
}

// SubscribeCommand asks the stream loop to subscribe to live prices for the
// given outcome token IDs. Re-subscribing an already-subscribed token is
// harmless; the upstream treats it as idempotent.
type SubscribeCommand struct {
	TokenIDs []string
}

func (SubscribeCommand) isCommand() {}
