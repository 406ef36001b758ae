package syncer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// WSSource is a Source backed by a Solana RPC node's websocket
// subscription endpoint. It tracks one accountSubscribe per watched
// address (static pool vaults, curve pool state accounts, project
// accounts) and decodes each notification into the Event the address was
// registered under.
type WSSource struct {
	url string

	mu       sync.Mutex
	watches  map[string]watch
	nextID   int
	subToKey map[int]string // subscription id -> watch key, filled after ack
}

type watch struct {
	key     string
	decode  func(slot uint64, data []byte) Event
	reqID   int
}

// NewWSSource builds a WSSource pointed at a Solana-compatible websocket
// RPC endpoint (wss://...).
func NewWSSource(url string) *WSSource {
	return &WSSource{
		url:      url,
		watches:  make(map[string]watch),
		subToKey: make(map[int]string),
	}
}

// WatchProjectAccount registers interest in a project's on-chain account,
// emitting EventProjectAccountObserved once it first becomes visible.
func (s *WSSource) WatchProjectAccount(address string, projectID uuid.UUID) {
	s.register(address, func(slot uint64, _ []byte) Event {
		return Event{
			Kind: EventProjectAccountObserved,
			ProjectAccountObserved: &ProjectAccountObserved{
				ProjectID: projectID,
				Slot:      slot,
			},
		}
	})
}

// WatchStaticPool registers interest in a static pool vault account.
// decode extracts the collected-lamports and closed fields from the raw
// account bytes — callers supply it since the vault layout is a thin
// system-account wrapper the syncer doesn't otherwise need to parse.
func (s *WSSource) WatchStaticPool(address string, projectID uuid.UUID, decode func(data []byte) (collected uint64, closed bool)) {
	s.register(address, func(slot uint64, data []byte) Event {
		collected, closed := decode(data)
		return Event{
			Kind: EventStaticPoolState,
			StaticPoolState: &StaticPoolState{
				ProjectID:         projectID,
				Slot:              slot,
				CollectedLamports: collected,
				Closed:            closed,
			},
		}
	})
}

// WatchCurvePool registers interest in a curve pool state account.
func (s *WSSource) WatchCurvePool(address string, mint string, decode func(data []byte) (virtualSol, virtualToken uint64, complete bool)) {
	s.register(address, func(slot uint64, data []byte) Event {
		virtualSol, virtualToken, complete := decode(data)
		return Event{
			Kind: EventCurvePoolState,
			CurvePoolState: &CurvePoolState{
				Mint:                 mint,
				Slot:                 slot,
				VirtualSolReserves:   virtualSol,
				VirtualTokenReserves: virtualToken,
				Complete:             complete,
			},
		}
	})
}

func (s *WSSource) register(address string, decode func(slot uint64, data []byte) Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.watches[address] = watch{key: address, decode: decode, reqID: s.nextID}
}

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type wsSubscribeAck struct {
	ID     int `json:"id"`
	Result int `json:"result"`
}

type wsNotification struct {
	Method string `json:"method"`
	Params struct {
		Subscription int `json:"subscription"`
		Result       struct {
			Context struct {
				Slot uint64 `json:"slot"`
			} `json:"context"`
			Value struct {
				Data []string `json:"data"`
			} `json:"value"`
		} `json:"result"`
	} `json:"params"`
}

// Events dials the websocket endpoint, subscribes to every address
// registered via Watch*, and translates notifications into Events until
// ctx is cancelled.
func (s *WSSource) Events(ctx context.Context) (<-chan Event, <-chan error) {
	events := make(chan Event, 64)
	errs := make(chan error, 1)

	go func() {
		defer close(events)
		if err := s.run(ctx, events); err != nil {
			select {
			case errs <- err:
			default:
			}
		}
	}()

	return events, errs
}

func (s *WSSource) run(ctx context.Context, events chan<- Event) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("syncer: dial websocket: %w", err)
	}
	defer conn.Close()

	s.mu.Lock()
	watchesByReqID := make(map[int]watch, len(s.watches))
	for _, w := range s.watches {
		watchesByReqID[w.reqID] = w
	}
	s.mu.Unlock()

	for _, w := range watchesByReqID {
		req := wsRequest{
			JSONRPC: "2.0",
			ID:      w.reqID,
			Method:  "accountSubscribe",
			Params:  []interface{}{w.key, map[string]string{"encoding": "base64", "commitment": "confirmed"}},
		}
		if err := conn.WriteJSON(req); err != nil {
			return fmt.Errorf("syncer: send accountSubscribe: %w", err)
		}
	}

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("syncer: read websocket: %w", err)
		}

		var ack wsSubscribeAck
		if err := json.Unmarshal(raw, &ack); err == nil && ack.ID != 0 {
			s.mu.Lock()
			if w, ok := watchesByReqID[ack.ID]; ok {
				s.subToKey[ack.Result] = w.key
			}
			s.mu.Unlock()
			continue
		}

		var note wsNotification
		if err := json.Unmarshal(raw, &note); err != nil || note.Method == "" {
			continue
		}

		s.mu.Lock()
		key, ok := s.subToKey[note.Params.Subscription]
		w := s.watches[key]
		s.mu.Unlock()
		if !ok {
			continue
		}

		var data []byte
		if len(note.Params.Result.Value.Data) > 0 {
			data, _ = base64.StdEncoding.DecodeString(note.Params.Result.Value.Data[0])
		}

		select {
		case events <- w.decode(note.Params.Result.Context.Slot, data):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
