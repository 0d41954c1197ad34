// Package websocket streams race output to browser viewers.
//
// A Hub keeps the set of connected clients per race and implements
// stream.Publisher, so it can be handed straight to a race as its render
// backend. Publishing never blocks the race loop: when the hub falls behind
// messages are dropped, and a client whose send buffer fills is
// disconnected.
//
// Clients pick a race with the race query parameter (/ws?race=ab12) and
// receive JSON stream.Message values: frames, checkpoint and lap events,
// question prompts and results, and start/stop notices. Clients may also
// send actions for their own vehicle:
//
//	{"action": "drive", "vehicle_id": "car-1a2b3c", "controls": {"accelerate": true}}
//	{"action": "answer", "vehicle_id": "car-1a2b3c", "answer": 2}
//	{"action": "skip", "vehicle_id": "car-1a2b3c"}
//
// Usage:
//
//	hub := websocket.NewHub(log)
//	go hub.Run()
//	hub.HandleInbound(func(raceID string, msg websocket.Inbound) error { ... })
//	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
//		hub.ServeWS(w, r, r.URL.Query().Get("race"))
//	})
package websocket
