package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/igm/sockjs-go/sockjs"

	"github.com/abbakary/okpos/internal/hub"
	"github.com/abbakary/okpos/internal/store"
)

// RealtimeHandler streams outbox events to dashboards over SockJS. Clients
// authenticate with a bearer token or a session_id query parameter and may
// narrow the stream to one order or order type.
func RealtimeHandler(auth store.AuthStore, h *hub.Hub) http.Handler {
	return sockjs.NewHandler("/realtime", sockjs.DefaultOptions, func(session sockjs.Session) {
		sessionID := realtimeSessionID(session.Request())
		if sessionID == "" {
			_ = session.Close(4001, "missing session")
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		authSession, _, err := auth.GetSession(ctx, sessionID)
		cancel()
		if err != nil {
			_ = session.Close(4002, "invalid session")
			return
		}

		client := &hub.Client{ID: uuid.NewString(), Role: authSession.Role, Send: make(chan []byte, 16)}
		h.Register(client)
		defer h.Unregister(client)

		go func() {
			for msg := range client.Send {
				if err := session.Send(string(msg)); err != nil {
					return
				}
			}
		}()

		for {
			msg, err := session.Recv()
			if err != nil {
				return
			}
			parsed, ok := hub.ParseSubscribe([]byte(msg))
			if !ok {
				continue
			}
			if parsed.Action == "unsubscribe" {
				h.UpdateSubscription(client, hub.Subscription{})
				continue
			}
			h.UpdateSubscription(client, hub.Subscription{
				OrderID:   strings.TrimSpace(parsed.OrderID),
				OrderType: strings.TrimSpace(parsed.OrderType),
			})
		}
	})
}

func realtimeSessionID(r *http.Request) string {
	if r == nil {
		return ""
	}
	if token := bearerToken(r.Header.Get("Authorization")); token != "" {
		return token
	}
	return strings.TrimSpace(r.URL.Query().Get("session_id"))
}
