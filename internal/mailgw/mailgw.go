// Package mailgw defines the mail gateway contract the triage core consumes:
// fetch unread messages, send outbound mail, and mark messages seen.
package mailgw

import "context"

// Message is one unread inbound email as delivered by the gateway. UID is the
// gateway-assigned identifier used for idempotent mark-seen; MessageID is the
// protocol message-id used to thread replies, and may be empty.
type Message struct {
	UID       uint32
	From      string
	Subject   string
	Body      string
	MessageID string
}

// Outbound is one email to send. CC and BCC are comma-joined address lists;
// InReplyTo threads the mail under the original message when set.
type Outbound struct {
	To        string
	Subject   string
	Body      string
	CC        string
	BCC       string
	InReplyTo string
}

// Gateway is the mail transport boundary. Implementations must not mark a
// message seen on their own: the caller marks seen only once the message's
// pipeline has completed, so a crash mid-pipeline causes safe redelivery.
type Gateway interface {
	FetchUnread(ctx context.Context) ([]Message, error)
	Send(ctx context.Context, out Outbound) error
	MarkSeen(ctx context.Context, uid uint32) error
}
