package agent

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"Vidra/config"
)

func TestReportToHub(t *testing.T) {
	received := make(chan map[string]any, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var payload map[string]any
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Errorf("hub received malformed body: %v", err)
		}
		received <- payload
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := newTestAgent(t, func(c *config.Config) {
		c.HubURL = srv.URL
	})
	if err := a.ReportToHub(); err != nil {
		t.Fatalf("report: %v", err)
	}
	payload := <-received
	if _, ok := payload["capabilities"]; !ok {
		t.Fatalf("capabilities missing from report %v", payload)
	}
	if _, ok := payload["reportedAt"]; !ok {
		t.Fatalf("reportedAt missing from report %v", payload)
	}
}

func TestReportToHubRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	a := newTestAgent(t, func(c *config.Config) {
		c.HubURL = srv.URL
	})
	if err := a.ReportToHub(); err == nil {
		t.Fatalf("rejected report did not error")
	}
}

func TestReportToHubWithoutURL(t *testing.T) {
	a := newTestAgent(t, nil)
	if err := a.ReportToHub(); err != nil {
		t.Fatalf("hubless report: %v", err)
	}
}
