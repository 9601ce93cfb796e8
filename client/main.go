// Command client is a terminal test client: it creates (or joins) a room,
// subscribes to the live snapshot feed, and races by simulating a typist.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/shahank42/hyper-typer/models"
)

var (
	server = flag.String("server", "localhost:8080", "game server host:port")
	roomID = flag.String("room", "", "room to join (empty: create a new one)")
	name   = flag.String("name", "bot", "display name")
	wpm    = flag.Int("wpm", 60, "simulated typing speed")
)

func main() {
	flag.Parse()

	guestID := uuid.New().String()

	if *roomID == "" {
		id, err := post(fmt.Sprintf("http://%s/api/rooms", *server),
			map[string]any{"hostId": guestID}, "roomId")
		if err != nil {
			log.Fatalf("create room failed: %v", err)
		}
		*roomID = id
		log.Printf("Created room %s", *roomID)
	}

	if _, err := post(fmt.Sprintf("http://%s/api/rooms/%s/join", *server, *roomID),
		map[string]any{"guestId": guestID, "name": *name}, "playerId"); err != nil {
		log.Fatalf("join failed: %v", err)
	}
	log.Printf("Joined room %s as %s", *roomID, *name)

	u := url.URL{Scheme: "ws", Host: *server, Path: "/ws/" + *roomID}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	// Host auto-starts once it sees itself in the lobby.
	starting := false
	typed := 0
	var lastTick time.Time

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			log.Printf("Connection closed: %v", err)
			return
		}
		if string(data) == "null" {
			log.Printf("Room deleted")
			return
		}

		var snapshot models.Snapshot
		if err := json.Unmarshal(data, &snapshot); err != nil {
			log.Printf("Bad snapshot: %v", err)
			continue
		}

		switch snapshot.Game.Status {
		case models.StatusWaiting:
			if snapshot.Game.HostID == guestID && !starting {
				starting = true
				post(fmt.Sprintf("http://%s/api/rooms/%s/start", *server, *roomID),
					map[string]any{"guestId": guestID}, "")
				log.Printf("Starting race")
			}
		case models.StatusRunning:
			if lastTick.IsZero() {
				lastTick = time.Now()
			}
			// chars per tick at the configured WPM (5 chars per word)
			typed += int(float64(*wpm) * 5 / 60 * time.Since(lastTick).Seconds())
			lastTick = time.Now()
			passage := snapshot.Game.Passage
			if typed >= len(passage) {
				typed = len(passage)
			}
			post(fmt.Sprintf("http://%s/api/games/%s/progress", *server, snapshot.Game.ID),
				map[string]any{"guestId": guestID, "typedLength": typed,
					"totalKeystrokes": typed, "errors": 0}, "")
			if typed == len(passage) {
				post(fmt.Sprintf("http://%s/api/games/%s/finish", *server, snapshot.Game.ID),
					map[string]any{"guestId": guestID}, "")
			}
			time.Sleep(300 * time.Millisecond)
		case models.StatusFinished:
			for rank, p := range models.RankPlayers(snapshot.Players) {
				log.Printf("#%d %s (%s) typed=%d errors=%d", rank+1, p.Name, p.Color,
					p.TypedLength, p.Errors)
			}
			return
		}
	}
}

// post sends a JSON body and optionally extracts a string field from the
// JSON response.
func post(url string, body map[string]any, field string) (string, error) {
	payload, _ := json.Marshal(body)
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errBody map[string]string
		json.NewDecoder(resp.Body).Decode(&errBody)
		return "", fmt.Errorf("%s (%d)", errBody["error"], resp.StatusCode)
	}
	if field == "" {
		return "", nil
	}

	var result map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result[field], nil
}
