package jenkins

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
)

func TestRenderJobConfig(t *testing.T) {
	spec := JobSpec{
		GitRepo:   "https://github.com/example/app.git",
		GitBranch: "develop",
		NumToKeep: 10,
		Parameters: []JobParameter{
			{Name: "BRANCH", Description: "branch to build", DefaultValue: "develop"},
		},
	}

	xml, err := renderJobConfig(spec)
	if err != nil {
		t.Fatalf("renderJobConfig failed: %v", err)
	}

	config := string(xml)
	for _, want := range []string{
		"<url>https://github.com/example/app.git</url>",
		"<name>develop</name>",
		"<numToKeep>10</numToKeep>",
		"<daysToKeep>-1</daysToKeep>",
		"<name>BRANCH</name>",
		"<defaultValue>develop</defaultValue>",
	} {
		if !strings.Contains(config, want) {
			t.Errorf("Expected config.xml to contain %q", want)
		}
	}
}

func TestRenderJobConfigDefaults(t *testing.T) {
	xml, err := renderJobConfig(JobSpec{GitRepo: "https://github.com/example/app.git"})
	if err != nil {
		t.Fatalf("renderJobConfig failed: %v", err)
	}

	config := string(xml)
	if !strings.Contains(config, "<name>master</name>") {
		t.Error("Expected the branch to default to master")
	}
	if strings.Contains(config, "BuildDiscarderProperty") {
		t.Error("Expected no build discarder without retention settings")
	}
	if strings.Contains(config, "ParametersDefinitionProperty") {
		t.Error("Expected no parameter block without parameters")
	}
}

func TestRenderJobConfigRequiresRepo(t *testing.T) {
	if _, err := renderJobConfig(JobSpec{}); err == nil {
		t.Fatal("Expected an error without a git repository url")
	}
}

func TestCreateJob(t *testing.T) {
	var gotPath, gotName, gotContentType string
	var gotBody []byte
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotName = r.URL.Query().Get("name")
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))

	err := client.CreateJob(context.Background(), "android-app", JobSpec{GitRepo: "https://github.com/example/app.git"})
	if err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}

	if gotPath != "/createItem" {
		t.Errorf("Expected /createItem, got %s", gotPath)
	}
	if gotName != "android-app" {
		t.Errorf("Expected name=android-app, got %q", gotName)
	}
	if gotContentType != "application/xml" {
		t.Errorf("Expected application/xml, got %q", gotContentType)
	}
	if !strings.Contains(string(gotBody), "<scm class=\"hudson.plugins.git.GitSCM\">") {
		t.Error("Expected config.xml in the request body")
	}
}

func TestUpdateJob(t *testing.T) {
	var gotPath string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))

	err := client.UpdateJob(context.Background(), "android-app", JobSpec{GitRepo: "https://github.com/example/app.git"})
	if err != nil {
		t.Fatalf("UpdateJob failed: %v", err)
	}
	if gotPath != "/job/android-app/config.xml" {
		t.Errorf("Expected the config.xml endpoint, got %s", gotPath)
	}
}

func TestJobDetails(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/job/android-app/api/json" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{
			"name": "android-app",
			"url": "http://jenkins/job/android-app/",
			"buildable": true,
			"inQueue": false,
			"lastBuild": {"number": 42},
			"nextBuildNumber": 43
		}`)
	}))

	job, err := client.Job(context.Background(), "android-app")
	if err != nil {
		t.Fatalf("Job failed: %v", err)
	}

	if job.Name != "android-app" || !job.Buildable {
		t.Errorf("Unexpected job details: %+v", job)
	}
	if job.LastBuild != 42 || job.NextBuildNumber != 43 {
		t.Errorf("Expected last build 42 and next 43, got %d and %d", job.LastBuild, job.NextBuildNumber)
	}
}

func TestDeleteJob(t *testing.T) {
	var gotPath string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))

	if err := client.DeleteJob(context.Background(), "android-app"); err != nil {
		t.Fatalf("DeleteJob failed: %v", err)
	}
	if gotPath != "/job/android-app/doDelete" {
		t.Errorf("Expected the doDelete endpoint, got %s", gotPath)
	}
}
