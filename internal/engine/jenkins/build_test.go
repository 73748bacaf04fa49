package jenkins

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"testing"
	"time"
)

func TestBuildDetails(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/job/android-app/42/api/json" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{
			"number": 42,
			"url": "http://jenkins/job/android-app/42/",
			"result": "SUCCESS",
			"building": false,
			"timestamp": 1700000000000,
			"duration": 95000,
			"artifacts": [
				{"fileName": "app.apk", "relativePath": "out/app.apk"}
			]
		}`)
	}))

	info, err := client.BuildDetails(context.Background(), "android-app", 42)
	if err != nil {
		t.Fatalf("BuildDetails failed: %v", err)
	}

	if info.Number != 42 {
		t.Errorf("Expected build number 42, got %d", info.Number)
	}
	if info.Result != "SUCCESS" {
		t.Errorf("Expected result SUCCESS, got %q", info.Result)
	}
	if want := time.UnixMilli(1700000000000); !info.Timestamp.Equal(want) {
		t.Errorf("Expected timestamp %v, got %v", want, info.Timestamp)
	}
	if len(info.Artifacts) != 1 || info.Artifacts[0].RelativePath != "out/app.apk" {
		t.Errorf("Unexpected artifacts: %+v", info.Artifacts)
	}
}

func TestBuildDetailsRejectsBadNumber(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("No request expected for an invalid build number")
	}))

	if _, err := client.BuildDetails(context.Background(), "android-app", 0); err == nil {
		t.Fatal("Expected an error for build number 0")
	}
}

func TestCancelBuild(t *testing.T) {
	var gotPath string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))

	if err := client.CancelBuild(context.Background(), "android-app", 42); err != nil {
		t.Fatalf("CancelBuild failed: %v", err)
	}
	if gotPath != "/job/android-app/42/stop" {
		t.Errorf("Expected the stop endpoint, got %s", gotPath)
	}
}

func TestBuildLogs(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/job/android-app/42/consoleText" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, "Started by user admin\nFinished: SUCCESS\n")
	}))

	logs, err := client.BuildLogs(context.Background(), "android-app", 42)
	if err != nil {
		t.Fatalf("BuildLogs failed: %v", err)
	}
	if logs != "Started by user admin\nFinished: SUCCESS\n" {
		t.Errorf("Unexpected log content: %q", logs)
	}
}

func TestBuildHistory(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/job/android-app/api/json":
			fmt.Fprint(w, `{"builds": [{"number": 3}, {"number": 2}, {"number": 1}]}`)
		case "/job/android-app/3/api/json":
			fmt.Fprint(w, `{"number": 3, "result": "SUCCESS"}`)
		case "/job/android-app/2/api/json":
			fmt.Fprint(w, `{"number": 2, "result": "FAILURE"}`)
		case "/job/android-app/1/api/json":
			fmt.Fprint(w, `{"number": 1, "result": "SUCCESS"}`)
		default:
			http.NotFound(w, r)
		}
	}))

	history, err := client.BuildHistory(context.Background(), "android-app")
	if err != nil {
		t.Fatalf("BuildHistory failed: %v", err)
	}

	if len(history) != 3 {
		t.Fatalf("Expected 3 builds, got %d", len(history))
	}
	if history[0].Number != 3 || history[2].Number != 1 {
		t.Errorf("Expected most recent first, got %d..%d", history[0].Number, history[2].Number)
	}
	if history[1].Result != "FAILURE" {
		t.Errorf("Expected build 2 to be FAILURE, got %q", history[1].Result)
	}
}

func TestStreamLogs(t *testing.T) {
	chunks := []string{"Started by user admin\n", "Compiling...\n", "Finished: SUCCESS\n"}
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/job/android-app/42/logText/progressiveText" {
			http.NotFound(w, r)
			return
		}
		start, _ := strconv.Atoi(r.URL.Query().Get("start"))
		if start >= len(chunks) {
			t.Errorf("Unexpected offset %d", start)
			return
		}
		// Report offsets as chunk indices; only the size monotonicity
		// matters to the client.
		w.Header().Set("X-Text-Size", strconv.Itoa(start+1))
		if start+1 < len(chunks) {
			w.Header().Set("X-More-Data", "true")
		}
		fmt.Fprint(w, chunks[start])
	}))

	var buf bytes.Buffer
	if err := client.StreamLogs(context.Background(), "android-app", 42, time.Millisecond, &buf); err != nil {
		t.Fatalf("StreamLogs failed: %v", err)
	}

	want := "Started by user admin\nCompiling...\nFinished: SUCCESS\n"
	if buf.String() != want {
		t.Errorf("Expected full log %q, got %q", want, buf.String())
	}
}

func TestStreamLogsRespectsContext(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Text-Size", "1")
		w.Header().Set("X-More-Data", "true")
		fmt.Fprint(w, "x")
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var buf bytes.Buffer
	err := client.StreamLogs(ctx, "android-app", 42, time.Hour, &buf)
	if err != context.DeadlineExceeded {
		t.Fatalf("Expected context.DeadlineExceeded, got %v", err)
	}
}
