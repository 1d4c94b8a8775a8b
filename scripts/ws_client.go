// Package main runs a demo WebSocket client that watches planning
// progress for a freshly created session.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type wsEvent struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	// Create a session with a fixed depot
	body := []byte(`{"origin":{"name":"CD","coordinates":{"lat":-23.5505,"lon":-46.6333}}}`)
	req, _ := http.NewRequest(http.MethodPost, base+"/v1/sessions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Team-Id", "t_demo")
	req.Header.Set("X-Role", "admin")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		log.Fatal(err)
	}
	if created.ID == "" {
		log.Fatal("no session id returned")
	}
	log.Printf("Session ID: %s", created.ID)

	// Connect WS
	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/sessions/" + created.ID + "/ws"}
	hdr := http.Header{}
	hdr.Set("X-Team-Id", "t_demo")
	hdr.Set("X-Role", "admin")
	c, _, err := websocket.DefaultDialer.Dial(u.String(), hdr)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var evt wsEvent
			if err := c.ReadJSON(&evt); err != nil {
				log.Printf("read: %v", err)
				return
			}
			b, _ := json.Marshal(evt.Data)
			log.Printf("WS <- %s: %s", evt.Type, string(b))
		}
	}()

	// Post a few orders and plan, which drives progress events
	time.Sleep(500 * time.Millisecond)
	orders := []byte(`{"orders":[
        {"client":"Mercado Azul","city":"Campinas","region":"SP","weight":1200,"coordinates":{"lat":-22.9099,"lon":-47.0626}},
        {"client":"Padaria Sol","city":"Jundiai","region":"SP","weight":"0,8","coordinates":{"lat":-23.1857,"lon":-46.8978}}
    ]}`)
	post(base+"/v1/sessions/"+created.ID+"/orders", orders)
	post(base+"/v1/sessions/"+created.ID+"/plan", []byte("{}"))

	select {
	case <-time.After(3 * time.Second):
	case <-done:
	}
}

func post(url string, body []byte) {
	req, _ := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Team-Id", "t_demo")
	req.Header.Set("X-Role", "admin")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Printf("POST %s: %v", url, err)
		return
	}
	_ = resp.Body.Close()
}
