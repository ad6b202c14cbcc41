// Tracker notification receiver example.
//
// A minimal endpoint that receives and verifies the tracker's operator
// notifications (for example redirect_domain.deactivated).
//
// Usage:
//
//	export NOTIFY_WEBHOOK_SECRET="your_shared_secret"
//	go run main.go
//
// Then set NOTIFY_WEBHOOK_URL=http://your-server:9000/notify on the tracker.
package main

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"
)

const replayWindow = 5 * time.Minute

// Event mirrors the notification body.
type Event struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	OccurredAt time.Time      `json:"occurred_at"`
	Data       map[string]any `json:"data"`
}

func main() {
	secret := os.Getenv("NOTIFY_WEBHOOK_SECRET")
	if secret == "" {
		log.Fatal("NOTIFY_WEBHOOK_SECRET environment variable is required")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /notify", notifyHandler(secret))
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	log.Println("Starting notification receiver on :9000")
	log.Fatal(http.ListenAndServe(":9000", mux))
}

func notifyHandler(secret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
		if err != nil {
			http.Error(w, "Bad request", http.StatusBadRequest)
			return
		}

		timestamp, err := strconv.ParseInt(r.Header.Get("X-Tracker-Timestamp"), 10, 64)
		if err != nil {
			http.Error(w, "Missing timestamp", http.StatusUnauthorized)
			return
		}
		if !verify(secret, r.Header.Get("X-Tracker-Signature"), timestamp, body) {
			log.Printf("rejected notification %s", r.Header.Get("X-Tracker-Notification-Id"))
			http.Error(w, "Invalid signature", http.StatusUnauthorized)
			return
		}

		var event Event
		if err := json.Unmarshal(body, &event); err != nil {
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}

		switch event.Type {
		case "redirect_domain.deactivated":
			log.Printf("domain %v deactivated (health score %v)", event.Data["domain"], event.Data["health_score"])
		default:
			log.Printf("received %s (%s)", event.Type, event.ID)
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// verify checks hex(HMAC-SHA256(secret, "{timestamp}.{body}")) within the replay window.
func verify(secret, signature string, timestamp int64, body []byte) bool {
	if signature == "" {
		return false
	}
	age := time.Since(time.Unix(timestamp, 0))
	if age < -replayWindow || age > replayWindow {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10) + "."))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(signature), []byte(expected))
}
