package deploy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
)

// Trigger dispatches a deployment of a trained artifact to an external
// build/deploy pipeline. Dispatch is fire-and-forget from the caller's point
// of view: the webhook that triggers it logs failures instead of failing,
// since the artifact is already durably stored.
type Trigger interface {
	Dispatch(artifactUri, callbackUrl string) error
}

// WorkflowTrigger starts a GitHub Actions workflow via the workflow-dispatch
// API. The workflow receives the artifact location and the callback URL to
// report deployment completion to.
type WorkflowTrigger struct {
	endpoint string
	ref      string
	token    string
}

func NewWorkflowTrigger(endpoint, ref, token string) Trigger {
	return &WorkflowTrigger{endpoint: endpoint, ref: ref, token: token}
}

type dispatchRequest struct {
	Ref    string            `json:"ref"`
	Inputs map[string]string `json:"inputs"`
}

func (t *WorkflowTrigger) Dispatch(artifactUri, callbackUrl string) error {
	fullEndpoint, err := url.JoinPath(t.endpoint, "dispatches")
	if err != nil {
		return fmt.Errorf("error formatting deploy trigger url: %w", err)
	}

	body, err := json.Marshal(dispatchRequest{
		Ref: t.ref,
		Inputs: map[string]string{
			"artifact_uri": artifactUri,
			"callback_url": callbackUrl,
		},
	})
	if err != nil {
		return fmt.Errorf("error serializing deploy trigger request: %w", err)
	}

	req, err := http.NewRequest("POST", fullEndpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("error creating deploy trigger request: %w", err)
	}
	req.Header.Add("Accept", "application/vnd.github+json")
	req.Header.Add("Authorization", "Bearer "+t.token)

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("error sending deploy trigger request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		data, readErr := io.ReadAll(res.Body)
		if readErr == nil {
			slog.Error("deploy trigger returned error", "code", res.StatusCode, "response", string(data))
		}
		return fmt.Errorf("deploy trigger returned status %d", res.StatusCode)
	}

	return nil
}

// NoopTrigger is used when no deploy pipeline is configured, e.g. in local
// development.
type NoopTrigger struct{}

func (t *NoopTrigger) Dispatch(artifactUri, callbackUrl string) error {
	slog.Info("deploy trigger disabled, skipping dispatch", "artifact_uri", artifactUri)
	return nil
}
