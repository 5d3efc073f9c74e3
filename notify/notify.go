// Package notify defines the broadcast channel instances use to announce
// refresh lifecycle events to their siblings. Delivery is best effort and
// unordered relative to storage change notifications; receivers must
// recompute state from the shared store rather than trust the payload.
package notify

// DefaultChannel is the channel name the application broadcasts on.
const DefaultChannel = "auth"

// Kind identifies a broadcast message.
type Kind string

const (
	// KindRefreshStart announces that the instance named in By has taken
	// the refresh lock and is calling the backend.
	KindRefreshStart Kind = "refresh:start"

	// KindRefreshDone announces the outcome. On success Token carries the
	// new access token as a hint only: receivers re-read the shared store
	// as their source of truth. On failure Error carries the reason and
	// every receiver treats the session as ended.
	KindRefreshDone Kind = "refresh:done"
)

// Message is the wire shape shared by all broadcaster implementations.
type Message struct {
	Kind  Kind   `json:"kind"`
	By    string `json:"by,omitempty"`
	OK    bool   `json:"ok,omitempty"`
	Token string `json:"token,omitempty"`
	Error string `json:"error,omitempty"`
}

// Broadcaster is the publish/subscribe capability. Publishers do not
// receive their own messages. Subscribe's cancel function releases the
// subscription.
type Broadcaster interface {
	Publish(msg Message) error
	Subscribe() (messages <-chan Message, cancel func())
}
