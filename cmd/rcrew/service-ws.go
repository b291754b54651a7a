package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	. "github.com/Comcast/traipse/util/testutil"

	"github.com/gorilla/websocket"
)

// WebSocketService serves ops at /ws/api.
//
// Each connection first receives a snapshot of the crew (navigator
// ids and their current locations), then a firehose of ops as the
// service processes them, so a client can follow every navigator's
// transitions without polling.
func (s *Service) WebSocketService(ctx context.Context) error {

	s.ops = make(chan interface{}, 1024)

	var upgrader = websocket.Upgrader{} // use default options

	conns := sync.Map{}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case x := <-s.ops:
				conns.Range(func(k, v interface{}) bool {
					Logf("firehose forwarding op %s to %v", JS(x), k)
					c := v.(chan interface{})
					select {
					case c <- x:
					default:
						log.Printf("%v ops blocked", k)
					}
					return true
				})
			}
		}

	}()

	api := func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade error", err)
			return
		}
		defer c.Close()

		id := r.RemoteAddr
		log.Printf("Service.WebSocketService connection from %s", id)

		ctl := make(chan bool)
		defer close(ctl)

		in := make(chan interface{}, 32)
		defer close(in)

		conns.Store(id, in)
		defer conns.Delete(id)

		// Orient the new client: who's in the crew and where
		// everybody is.
		snapshot := map[string]interface{}{
			"crew":      s.crewName,
			"locations": s.crew.Locations(),
		}
		if js, err := json.Marshal(&snapshot); err == nil {
			if err = c.WriteMessage(websocket.TextMessage, js); err != nil {
				log.Println("snapshot write:", err)
				return
			}
		}

		go func() {
			mt := websocket.TextMessage

		LOOP:
			for {
				select {
				case <-ctl:
					break LOOP
				case <-ctx.Done():
					break LOOP
				case x := <-in:
					if x == nil {
						break LOOP
					}
					js, err := json.Marshal(&x)
					if err != nil {
						log.Printf("s.firehose Marshal error %v on %#v", err, x)
						continue
					}
					if err = c.WriteMessage(mt, js); err != nil {
						log.Println("s.firehose write:", err)
					}
				}
			}
		}()

		for {
			mt, message, err := c.ReadMessage()
			if err != nil {
				log.Println("read error", err)
				break
			}

			var op SOp
			if err := json.Unmarshal(message, &op); err != nil {
				msg := fmt.Sprintf("can't parse: %v", err)
				err = c.WriteMessage(mt, []byte(msg))
				if err != nil {
					log.Println("write (err)", err)
				}
				continue
			}
			if err = op.Do(ctx, s); err != nil {
				// Conveyed to the client via the op's Err.
				Logf("ws op error from %s: %v", id, err)
			}

			// Answer the caller directly; everyone else hears
			// about it on the firehose.
			if js, err := json.Marshal(&op); err == nil {
				if err = c.WriteMessage(mt, js); err != nil {
					log.Println("op reply write:", err)
					break
				}
			}
		}
	}

	http.HandleFunc("/ws/api", api)

	return nil
}
