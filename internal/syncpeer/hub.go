package syncpeer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"aethersim/internal/logging"
)

const defaultSendTimeout = 2 * time.Second

// Hub broadcasts snapshots to peers and merges inbound peer snapshots into
// the store. Broadcast semantics: best effort, no guaranteed delivery; a
// slow or dead peer never blocks a cycle past the send timeout.
type Hub struct {
	store       *Store
	peers       []string
	sendTimeout time.Duration
	upgrader    websocket.Upgrader

	mu    sync.Mutex
	conns map[string]*websocket.Conn // peer URL -> dialed conn
}

// NewHub creates a hub over the store. peers are websocket URLs
// (ws://host:port/sync). A zero sendTimeout defaults to 2s.
func NewHub(store *Store, peers []string, sendTimeout time.Duration) *Hub {
	if sendTimeout <= 0 {
		sendTimeout = defaultSendTimeout
	}
	return &Hub{
		store:       store,
		peers:       peers,
		sendTimeout: sendTimeout,
		conns:       make(map[string]*websocket.Conn),
	}
}

// Handler returns the HTTP handler accepting inbound peer connections.
func (h *Hub) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := logging.FromContext(r.Context())
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error("sync upgrade failed", "err", err)
			return
		}
		go h.readLoop(r.Context(), conn)
	})
}

// Listen serves the sync endpoint until ctx is done.
func (h *Hub) Listen(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/sync", h.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.sendTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (h *Hub) readLoop(ctx context.Context, conn *websocket.Conn) {
	log := logging.FromContext(ctx)
	defer conn.Close()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var snap Snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			log.Error("bad peer snapshot", "err", err)
			continue
		}
		if err := h.store.Merge(snap); err != nil {
			var conflict *MergeConflictError
			if errors.As(err, &conflict) {
				// Contradictory concurrent state is surfaced, not resolved.
				log.Error("merge conflict from peer", "cluster", snap.ClusterID,
					"kind", conflict.Kind, "id", conflict.ID)
				continue
			}
			log.Error("merge failed", "err", err)
		}
	}
}

// Broadcast sends the snapshot to every configured peer. Each send is
// bounded by the send timeout; failures drop the cached connection so the
// next broadcast redials.
func (h *Hub) Broadcast(ctx context.Context, snap Snapshot) {
	log := logging.FromContext(ctx)
	data, err := json.Marshal(snap)
	if err != nil {
		log.Error("snapshot marshal failed", "err", err)
		return
	}
	for _, peer := range h.peers {
		if err := h.send(ctx, peer, data); err != nil {
			log.Warn("peer broadcast failed", "peer", peer, "err", err)
		}
	}
}

func (h *Hub) send(ctx context.Context, peer string, data []byte) error {
	h.mu.Lock()
	conn := h.conns[peer]
	h.mu.Unlock()

	if conn == nil {
		dialCtx, cancel := context.WithTimeout(ctx, h.sendTimeout)
		defer cancel()
		c, _, err := websocket.DefaultDialer.DialContext(dialCtx, peer, nil)
		if err != nil {
			return err
		}
		conn = c
		h.mu.Lock()
		h.conns[peer] = conn
		h.mu.Unlock()
	}

	_ = conn.SetWriteDeadline(time.Now().Add(h.sendTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		conn.Close()
		h.mu.Lock()
		delete(h.conns, peer)
		h.mu.Unlock()
		return err
	}
	return nil
}

// Close tears down all dialed peer connections.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for peer, conn := range h.conns {
		conn.Close()
		delete(h.conns, peer)
	}
}
