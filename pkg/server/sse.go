package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/localtaskrepo/lotar/pkg/events"
)

// handleEvents serves the project-scoped SSE stream. Framing: a retry hint
// first, then one "event: <kind>\ndata: <json>\n\n" block per event. Events
// queue during the debounce window and the whole queue flushes after
// debounce_ms of inactivity; repeated project_changed for the same project
// within a window collapse to one. Nothing else is ever dropped.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	query := r.URL.Query()

	// kinds= filters to the named kinds; unknown names are dropped, so an
	// all-unknown filter yields no events at all.
	kindFilter := map[events.Kind]bool{}
	if raw := query.Get("kinds"); raw != "" {
		for _, name := range splitCSV(raw) {
			for _, known := range events.Kinds {
				if string(known) == name {
					kindFilter[known] = true
				}
			}
		}
	} else {
		for _, known := range events.Kinds {
			kindFilter[known] = true
		}
	}

	project := query.Get("project")
	debounce := time.Duration(intQuery(query.Get("debounce_ms"), 0)) * time.Millisecond
	ready := query.Get("ready") == "1" || os.Getenv("LOTAR_SSE_READY") != ""

	heartbeat := 15 * time.Second
	if os.Getenv("LOTAR_TEST_FAST_IO") != "" || os.Getenv("LOTAR_TEST_FAST_NET") != "" {
		heartbeat = 100 * time.Millisecond
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprint(w, "retry: 1000\n\n")
	flusher.Flush()

	sub := s.bus.Subscribe(events.DefaultQueueSize)
	defer s.bus.Unsubscribe(sub)

	if ready {
		fmt.Fprint(w, "event: ready\ndata: {}\n\n")
		flusher.Flush()
	}

	var queue []events.Event
	var timer *time.Timer
	var timerCh <-chan time.Time

	flush := func() {
		for _, event := range coalesce(queue) {
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Kind, payload)
		}
		queue = queue[:0]
		flusher.Flush()
	}

	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case <-timerCh:
			timer, timerCh = nil, nil
			flush()
		case event, open := <-sub.Events():
			if !open {
				if sub.Dropped() {
					fmt.Fprint(w, "event: error\ndata: {\"message\":\"subscriber queue overflow\"}\n\n")
					flusher.Flush()
				}
				return
			}
			if !kindFilter[event.Kind] {
				continue
			}
			if project != "" && event.Project != project {
				continue
			}

			queue = append(queue, event)
			if debounce <= 0 {
				flush()
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
				timerCh = timer.C
			} else {
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(debounce)
			}
		}
	}
}

// coalesce collapses repeated project_changed events for the same project,
// keeping the latest occurrence's position order otherwise intact.
func coalesce(queue []events.Event) []events.Event {
	var out []events.Event
	for _, event := range queue {
		if event.Kind == events.KindProjectChanged {
			for i := range out {
				if out[i].Kind == events.KindProjectChanged && out[i].Project == event.Project {
					out = append(out[:i], out[i+1:]...)
					break
				}
			}
		}
		out = append(out, event)
	}
	return out
}
