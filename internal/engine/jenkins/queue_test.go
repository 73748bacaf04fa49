package jenkins

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"buildflow/internal/engine"
)

func TestEnqueueBuildWithoutParameters(t *testing.T) {
	var gotPath, gotJSON string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		r.ParseForm()
		gotJSON = r.PostFormValue("json")
		w.Header().Set("Location", "http://jenkins.example.com/queue/item/123/")
		w.WriteHeader(http.StatusCreated)
	}))

	ref, err := client.EnqueueBuild(context.Background(), "android-app", nil)
	if err != nil {
		t.Fatalf("EnqueueBuild failed: %v", err)
	}

	if gotPath != "/job/android-app/build" {
		t.Errorf("Expected the plain build endpoint, got %s", gotPath)
	}
	if gotJSON != "{}" {
		t.Errorf("Expected json={} form field, got %q", gotJSON)
	}
	if ref.ID != 123 {
		t.Errorf("Expected queue item 123, got %d", ref.ID)
	}
}

func TestEnqueueBuildWithParameters(t *testing.T) {
	var gotPath, gotBranch string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		r.ParseForm()
		gotBranch = r.PostFormValue("BRANCH")
		w.Header().Set("Location", "/queue/item/456/")
		w.WriteHeader(http.StatusCreated)
	}))

	ref, err := client.EnqueueBuild(context.Background(), "android-app", map[string]string{"BRANCH": "release/1.2"})
	if err != nil {
		t.Fatalf("EnqueueBuild failed: %v", err)
	}

	if gotPath != "/job/android-app/buildWithParameters" {
		t.Errorf("Expected the parameterized endpoint, got %s", gotPath)
	}
	if gotBranch != "release/1.2" {
		t.Errorf("Expected BRANCH=release/1.2, got %q", gotBranch)
	}
	if ref.ID != 456 {
		t.Errorf("Expected queue item 456, got %d", ref.ID)
	}
}

func TestEnqueueBuildMissingLocation(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	if _, err := client.EnqueueBuild(context.Background(), "android-app", nil); err == nil {
		t.Fatal("Expected an error when the Location header is missing")
	}
}

func TestQueueItemClassification(t *testing.T) {
	cases := []struct {
		name      string
		body      string
		wantState engine.QueueState
		wantBuild int
		wantWhy   string
	}{
		{
			name:      "pending",
			body:      `{"cancelled":false,"stuck":false,"why":"Waiting for next available executor"}`,
			wantState: engine.QueuePending,
			wantWhy:   "Waiting for next available executor",
		},
		{
			name:      "started",
			body:      `{"cancelled":false,"stuck":false,"executable":{"number":42,"url":"http://jenkins/job/app/42/"}}`,
			wantState: engine.QueueStarted,
			wantBuild: 42,
		},
		{
			name:      "stuck",
			body:      `{"cancelled":false,"stuck":true,"why":"no capable executor"}`,
			wantState: engine.QueueStuck,
			wantWhy:   "no capable executor",
		},
		{
			name:      "cancelled",
			body:      `{"cancelled":true,"stuck":false}`,
			wantState: engine.QueueCancelled,
		},
		{
			// A cancelled item keeps its executable reference on some
			// server versions; cancellation still wins.
			name:      "cancelled with executable",
			body:      `{"cancelled":true,"stuck":false,"executable":{"number":42}}`,
			wantState: engine.QueueCancelled,
		},
		{
			name:      "stuck with executable",
			body:      `{"cancelled":false,"stuck":true,"executable":{"number":42}}`,
			wantState: engine.QueueStarted,
			wantBuild: 42,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/queue/item/9/api/json" {
					http.NotFound(w, r)
					return
				}
				fmt.Fprint(w, tc.body)
			}))

			item, err := client.QueueItem(context.Background(), engine.QueueReference{ID: 9})
			if err != nil {
				t.Fatalf("QueueItem failed: %v", err)
			}

			if item.State != tc.wantState {
				t.Errorf("Expected state %s, got %s", tc.wantState, item.State)
			}
			if item.BuildNumber != tc.wantBuild {
				t.Errorf("Expected build number %d, got %d", tc.wantBuild, item.BuildNumber)
			}
			if item.Why != tc.wantWhy {
				t.Errorf("Expected why %q, got %q", tc.wantWhy, item.Why)
			}
		})
	}
}

func TestQueueItemRejectsBadReference(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("No request expected for an invalid reference")
	}))

	if _, err := client.QueueItem(context.Background(), engine.QueueReference{}); err == nil {
		t.Fatal("Expected an error for a zero queue reference")
	}
}

func TestCancelQueueItem(t *testing.T) {
	var gotID string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/queue/cancelItem" {
			http.NotFound(w, r)
			return
		}
		gotID = r.URL.Query().Get("id")
		w.WriteHeader(http.StatusNoContent)
	}))

	if err := client.CancelQueueItem(context.Background(), engine.QueueReference{ID: 55}); err != nil {
		t.Fatalf("CancelQueueItem failed: %v", err)
	}
	if gotID != "55" {
		t.Errorf("Expected id=55, got %q", gotID)
	}
}

func TestParseQueueReference(t *testing.T) {
	cases := []struct {
		location string
		wantID   int64
		wantErr  bool
	}{
		{"http://jenkins.example.com/queue/item/123/", 123, false},
		{"https://jenkins.example.com/jenkins/queue/item/7/", 7, false},
		{"/queue/item/456/", 456, false},
		{"queue/item/9", 9, false},
		{"", 0, true},
		{"http://jenkins.example.com/job/app/", 0, true},
		{"/queue/item/abc/", 0, true},
		{"/queue/item/0/", 0, true},
		{"/queue/item/-3/", 0, true},
	}

	for _, tc := range cases {
		ref, err := parseQueueReference(tc.location)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parseQueueReference(%q): expected error, got %+v", tc.location, ref)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseQueueReference(%q) failed: %v", tc.location, err)
			continue
		}
		if ref.ID != tc.wantID {
			t.Errorf("parseQueueReference(%q) = %d, want %d", tc.location, ref.ID, tc.wantID)
		}
		if ref.URL != tc.location {
			t.Errorf("parseQueueReference(%q): expected the original location preserved, got %q", tc.location, ref.URL)
		}
	}
}
