package detection

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRoboflowClientDetect(t *testing.T) {
	image := []byte("fake-jpeg-bytes")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/roads/8" {
			t.Errorf("path = %s, want /roads/8", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("api_key") != "secret" || q.Get("confidence") != "40" || q.Get("overlap") != "30" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("content-type = %s", ct)
		}
		body, _ := io.ReadAll(r.Body)
		decoded, err := base64.StdEncoding.DecodeString(string(body))
		if err != nil || string(decoded) != string(image) {
			t.Errorf("body is not the base64 image: %q", body)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"predictions":[
			{"x":100,"y":50,"width":20,"height":10,"confidence":0.91,"class":3},
			{"x":10,"y":10,"width":4,"height":4,"confidence":0.55,"class_name":"Edge Crack","class":"ignored"},
			{"x":1,"y":1,"width":1,"height":1,"confidence":0.5}
		]}`))
	}))
	defer srv.Close()

	client, err := NewRoboflowClient(RoboflowConfig{
		APIKey:  "secret",
		Project: "roads",
		Version: 8,
		BaseURL: srv.URL,
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	preds, err := client.Detect(context.Background(), image, 0.40)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(preds) != 3 {
		t.Fatalf("len = %d, want 3", len(preds))
	}
	if preds[0].ClassLabel != "3" || preds[1].ClassLabel != "Edge Crack" || preds[2].ClassLabel != "pothole" {
		t.Fatalf("labels = %q %q %q", preds[0].ClassLabel, preds[1].ClassLabel, preds[2].ClassLabel)
	}

	findings := Normalize(preds, 0.40)
	if findings[0].DefectType != "pothole" || findings[1].DefectType != "edge_crack" {
		t.Fatalf("normalized types = %q %q", findings[0].DefectType, findings[1].DefectType)
	}
}

func TestRoboflowClientErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusForbidden)
	}))
	defer srv.Close()

	client, err := NewRoboflowClient(RoboflowConfig{APIKey: "k", Project: "p", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.Detect(context.Background(), []byte("x"), 0.4); err == nil {
		t.Fatal("expected error for 403")
	}
}

func TestNewRoboflowClientValidation(t *testing.T) {
	if _, err := NewRoboflowClient(RoboflowConfig{Project: "p"}); err == nil {
		t.Error("expected error without api key")
	}
	if _, err := NewRoboflowClient(RoboflowConfig{APIKey: "k"}); err == nil {
		t.Error("expected error without project")
	}
}
