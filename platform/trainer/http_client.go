package trainer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
)

// HttpClient talks to a serverless GPU endpoint exposing the run/status/cancel
// API. Jobs are started with POST {endpoint}/run, polled with
// GET {endpoint}/status/{id}, and cancelled with POST {endpoint}/cancel/{id}.
type HttpClient struct {
	endpoint string
	apiKey   string
}

func NewHttpClient(endpoint, apiKey string) Client {
	return &HttpClient{endpoint: endpoint, apiKey: apiKey}
}

func (c *HttpClient) request(method, endpoint string, body io.Reader, result interface{}) error {
	fullEndpoint, err := url.JoinPath(c.endpoint, endpoint)
	if err != nil {
		return fmt.Errorf("error formatting url for training endpoint %v: %w", endpoint, err)
	}

	req, err := http.NewRequest(method, fullEndpoint, body)
	if err != nil {
		return fmt.Errorf("error creating %v request for training endpoint %v: %w", method, endpoint, err)
	}
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Authorization", "Bearer "+c.apiKey)

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("error sending %v request to training endpoint %v: %w", method, endpoint, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return ErrJobNotFound
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		data, err := io.ReadAll(res.Body)
		if err == nil {
			slog.Error("training provider returned error", "method", method, "endpoint", endpoint, "code", res.StatusCode, "response", string(data))
		}
		return fmt.Errorf("%v request to training endpoint %v returned status %d", method, endpoint, res.StatusCode)
	}

	if result != nil {
		err := json.NewDecoder(res.Body).Decode(result)
		if err != nil {
			return fmt.Errorf("error parsing %v response from training endpoint %v: %w", method, endpoint, err)
		}
	}

	return nil
}

type startJobRequest struct {
	Input TrainingRequest `json:"input"`
}

type startJobResponse struct {
	Id     string `json:"id"`
	Status string `json:"status"`
}

func (c *HttpClient) StartTraining(trainReq TrainingRequest) (string, error) {
	body, err := json.Marshal(startJobRequest{Input: trainReq})
	if err != nil {
		return "", fmt.Errorf("error serializing training request: %w", err)
	}

	var res startJobResponse
	err = c.request("POST", "/run", bytes.NewReader(body), &res)
	if err != nil {
		return "", err
	}

	if res.Id == "" {
		return "", fmt.Errorf("invalid response from training provider: missing job id")
	}

	slog.Info("started training job", "job_id", res.Id, "status", res.Status)

	return res.Id, nil
}

type jobStatusResponse struct {
	Status string      `json:"status"`
	Output JobProgress `json:"output"`
}

func (c *HttpClient) JobStatus(jobId string) (JobStatusResponse, error) {
	if err := CheckJobId(jobId); err != nil {
		return JobStatusResponse{}, err
	}

	var res jobStatusResponse
	err := c.request("GET", "/status/"+jobId, nil, &res)
	if err != nil {
		return JobStatusResponse{}, err
	}

	return JobStatusResponse{State: ParseJobState(res.Status), Progress: res.Output}, nil
}

func (c *HttpClient) CancelJob(jobId string) error {
	if err := CheckJobId(jobId); err != nil {
		return err
	}

	return c.request("POST", "/cancel/"+jobId, nil, nil)
}
