package channel

import (
	"fmt"

	"github.com/danmuck/framelink/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Handler processes one inbound application message. Returned data
// becomes the payload of the RESPONSE sent back to the peer; an error is
// logged and the response carries no data.
//
// Handlers run on the transport's delivery goroutine. A handler may Post or
// Request on its own link, but must not block on the returned Future: the
// response is delivered on the same goroutine and would queue behind it.
type Handler func(data protocol.Data) (protocol.Data, error)

// Notify adapts a handler that never answers with data.
func Notify(fn func(data protocol.Data)) Handler {
	return func(data protocol.Data) (protocol.Data, error) {
		fn(data)
		return nil, nil
	}
}

type handlerEntry struct {
	token uint64
	fn    Handler
}

// dispatchLocked routes an application message to its handler. Every
// dispatched message is answered, handled or not.
func (l *Link) dispatchLocked(msg protocol.Message) {
	appType, ok := protocol.StripNamespace(l.peerID, msg.Type)
	if !ok {
		appType = msg.Type
	}
	entry, found := l.handlers[appType]
	if !found {
		log.Debug().Msgf("channel.Link.dispatch no handler id=%s type=%s", l.id, appType)
		l.respondLocked(msg.ID, nil)
		return
	}
	connectionID := l.connectionID
	l.effects = append(l.effects, func() {
		out, err := callHandler(entry.fn, msg.Data)
		if err != nil {
			log.Warn().Msgf("channel.Link.dispatch handler failed id=%s type=%s err=%v", l.id, appType, err)
			out = nil
		}
		l.mu.Lock()
		defer l.unlockAndRun()
		if l.destroyed || l.connectionID != connectionID {
			return
		}
		l.respondLocked(msg.ID, out)
	})
}

func callHandler(h Handler, data protocol.Data) (out protocol.Data, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(data)
}
