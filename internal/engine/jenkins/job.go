package jenkins

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"text/template"

	"buildflow/internal/engine"
)

// JobParameter declares a string parameter on a parameterized job.
type JobParameter struct {
	Name         string
	Description  string
	DefaultValue string
}

// JobSpec describes the job definition rendered into config.xml. A zero
// BuildDiscarder keeps history forever.
type JobSpec struct {
	GitRepo    string
	GitBranch  string
	DaysToKeep int
	NumToKeep  int
	Parameters []JobParameter
}

// jobConfigTemplate renders a freestyle project with a git SCM section,
// an optional build discarder and declared string parameters.
var jobConfigTemplate = template.Must(template.New("config.xml").Parse(`<?xml version='1.1' encoding='UTF-8'?>
<project>
  <keepDependencies>false</keepDependencies>
  <properties>
{{- if or .DaysToKeep .NumToKeep}}
    <jenkins.model.BuildDiscarderProperty>
      <strategy class="hudson.tasks.LogRotator">
        <daysToKeep>{{if .DaysToKeep}}{{.DaysToKeep}}{{else}}-1{{end}}</daysToKeep>
        <numToKeep>{{if .NumToKeep}}{{.NumToKeep}}{{else}}-1{{end}}</numToKeep>
        <artifactDaysToKeep>-1</artifactDaysToKeep>
        <artifactNumToKeep>-1</artifactNumToKeep>
      </strategy>
    </jenkins.model.BuildDiscarderProperty>
{{- end}}
{{- if .Parameters}}
    <hudson.model.ParametersDefinitionProperty>
      <parameterDefinitions>
{{- range .Parameters}}
        <hudson.model.StringParameterDefinition>
          <name>{{.Name}}</name>
          <description>{{.Description}}</description>
          <defaultValue>{{.DefaultValue}}</defaultValue>
        </hudson.model.StringParameterDefinition>
{{- end}}
      </parameterDefinitions>
    </hudson.model.ParametersDefinitionProperty>
{{- end}}
  </properties>
  <scm class="hudson.plugins.git.GitSCM">
    <userRemoteConfigs>
      <hudson.plugins.git.UserRemoteConfig>
        <url>{{.GitRepo}}</url>
      </hudson.plugins.git.UserRemoteConfig>
    </userRemoteConfigs>
    <branches>
      <hudson.plugins.git.BranchSpec>
        <name>{{.GitBranch}}</name>
      </hudson.plugins.git.BranchSpec>
    </branches>
  </scm>
  <canRoam>true</canRoam>
  <disabled>false</disabled>
  <triggers/>
</project>
`))

func renderJobConfig(spec JobSpec) ([]byte, error) {
	if spec.GitRepo == "" {
		return nil, fmt.Errorf("git repository url is required")
	}
	if spec.GitBranch == "" {
		spec.GitBranch = "master"
	}

	var buf bytes.Buffer
	if err := jobConfigTemplate.Execute(&buf, spec); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// CreateJob creates a new job from spec.
func (c *Client) CreateJob(ctx context.Context, jobName string, spec JobSpec) error {
	if err := validateJobName(jobName); err != nil {
		return err
	}

	configXML, err := renderJobConfig(spec)
	if err != nil {
		return err
	}

	path := "/createItem?name=" + url.QueryEscape(jobName)
	_, err = c.postBody(ctx, path, "application/xml", bytes.NewReader(configXML))
	return err
}

// UpdateJob replaces the configuration of an existing job.
func (c *Client) UpdateJob(ctx context.Context, jobName string, spec JobSpec) error {
	if err := validateJobName(jobName); err != nil {
		return err
	}

	configXML, err := renderJobConfig(spec)
	if err != nil {
		return err
	}

	_, err = c.postBody(ctx, jobPath(jobName)+"/config.xml", "application/xml", bytes.NewReader(configXML))
	return err
}

// Job fetches job details by name.
func (c *Client) Job(ctx context.Context, jobName string) (engine.Job, error) {
	if err := validateJobName(jobName); err != nil {
		return engine.Job{}, err
	}

	var detail struct {
		Name      string `json:"name"`
		URL       string `json:"url"`
		Buildable bool   `json:"buildable"`
		InQueue   bool   `json:"inQueue"`
		LastBuild *struct {
			Number int `json:"number"`
		} `json:"lastBuild"`
		NextBuildNumber int `json:"nextBuildNumber"`
	}
	if err := c.getJSON(ctx, jobPath(jobName)+"/api/json", &detail); err != nil {
		return engine.Job{}, err
	}

	job := engine.Job{
		Name:            detail.Name,
		URL:             detail.URL,
		Buildable:       detail.Buildable,
		InQueue:         detail.InQueue,
		NextBuildNumber: detail.NextBuildNumber,
	}
	if detail.LastBuild != nil {
		job.LastBuild = detail.LastBuild.Number
	}
	return job, nil
}

// DeleteJob removes a job from the server.
func (c *Client) DeleteJob(ctx context.Context, jobName string) error {
	if err := validateJobName(jobName); err != nil {
		return err
	}

	_, _, err := c.postForm(ctx, jobPath(jobName)+"/doDelete", nil, "")
	return err
}
