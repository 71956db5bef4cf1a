package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"

	"pixeltrain/platform/lifecycle"

	"github.com/go-chi/chi/v5"
)

type httpTestRequest struct {
	api http.Handler

	method   string
	endpoint string
	headers  map[string]string
	json     interface{}
	body     io.Reader
	login    *loginInfo
}

func newHttpTestRequest(api http.Handler, method, endpoint string) *httpTestRequest {
	return &httpTestRequest{
		api:      api,
		method:   method,
		endpoint: endpoint,
		headers:  nil,
		json:     nil,
		body:     nil,
	}
}

func (r *httpTestRequest) Header(key, value string) *httpTestRequest {
	if r.headers == nil {
		r.headers = make(map[string]string)
	}
	r.headers[key] = value
	return r
}

func (r *httpTestRequest) Login(email, password string) *httpTestRequest {
	r.login = &loginInfo{Email: email, Password: password}
	return r
}

func (r *httpTestRequest) Auth(token string) *httpTestRequest {
	return r.Header("Authorization", fmt.Sprintf("Bearer %v", token))
}

func (r *httpTestRequest) Json(data interface{}) *httpTestRequest {
	r.json = data
	return r
}

func (r *httpTestRequest) Body(body io.Reader) *httpTestRequest {
	r.body = body
	return r
}

func (r *httpTestRequest) send() (*httptest.ResponseRecorder, error) {
	if r.json != nil {
		body := new(bytes.Buffer)
		err := json.NewEncoder(body).Encode(r.json)
		if err != nil {
			return nil, fmt.Errorf("error encoding json body for endpoint %v: %w", r.endpoint, err)
		}
		r.body = body
	}

	req := httptest.NewRequest(r.method, r.endpoint, r.body)
	if r.headers != nil {
		for k, v := range r.headers {
			req.Header.Add(k, v)
		}
	}

	if r.login != nil {
		req.SetBasicAuth(r.login.Email, r.login.Password)
	}

	w := httptest.NewRecorder()

	r.api.ServeHTTP(w, req)

	return w, nil
}

// response body will be parsed into result, passing nil indicates that no result is returned.
func (r *httpTestRequest) Do(result interface{}) error {
	w, err := r.send()
	if err != nil {
		return err
	}

	res := w.Result()
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		if res.StatusCode == http.StatusUnauthorized {
			return ErrUnauthorized
		}
		return fmt.Errorf("%v request to endpoint %v returned status %d, content '%v'", r.method, r.endpoint, res.StatusCode, w.Body.String())
	}

	if result != nil {
		err := json.NewDecoder(res.Body).Decode(result)
		if err != nil {
			return fmt.Errorf("error parsing %v response from endpoint %v: %w", r.method, r.endpoint, err)
		}
	}

	return nil
}

// Status executes the request and returns just the response code, for cases
// where the exact rejection code is the thing under test.
func (r *httpTestRequest) Status() (int, error) {
	w, err := r.send()
	if err != nil {
		return 0, err
	}
	return w.Code, nil
}

var ErrUnauthorized = errors.New("unauthorized")

type client struct {
	api       chi.Router
	authToken string
	userId    string
}

func (c *client) Get(endpoint string) *httpTestRequest {
	r := newHttpTestRequest(c.api, "GET", endpoint)
	if c.authToken != "" {
		return r.Auth(c.authToken)
	}
	return r
}

func (c *client) Post(endpoint string) *httpTestRequest {
	r := newHttpTestRequest(c.api, "POST", endpoint)
	if c.authToken != "" {
		return r.Auth(c.authToken)
	}
	return r
}

func (c *client) Delete(endpoint string) *httpTestRequest {
	r := newHttpTestRequest(c.api, "DELETE", endpoint)
	if c.authToken != "" {
		return r.Auth(c.authToken)
	}
	return r
}

type loginInfo struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c *client) signup(username, email, password string) (loginInfo, error) {
	body := map[string]string{
		"email": email, "username": username, "password": password,
	}

	err := c.Post("/user/signup").Json(body).Do(nil)
	if err != nil {
		return loginInfo{}, err
	}

	return loginInfo{Email: email, Password: password}, nil
}

func (c *client) login(login loginInfo) error {
	var res map[string]string
	err := c.Get("/user/login").Login(login.Email, login.Password).Do(&res)
	if err != nil {
		return err
	}

	c.authToken = res["access_token"]
	c.userId = res["user_id"]

	return nil
}

func (c *client) userInfo() (userInfoResponse, error) {
	var res userInfoResponse
	err := c.Get("/user/info").Do(&res)
	return res, err
}

func (c *client) datasetUploadUrl() (uploadUrlResponse, error) {
	var res uploadUrlResponse
	err := c.Post("/datasets/upload-url").Do(&res)
	return res, err
}

func (c *client) commitDataset(datasetId, name string, imageCount int) (datasetInfoResponse, error) {
	body := map[string]interface{}{
		"dataset_id": datasetId, "name": name, "image_count": imageCount,
	}

	var res datasetInfoResponse
	err := c.Post("/datasets").Json(body).Do(&res)
	return res, err
}

func (c *client) listDatasets() ([]datasetInfoResponse, error) {
	var res listDatasetsResponse
	err := c.Get("/datasets").Do(&res)
	return res.Datasets, err
}

func (c *client) datasetInfo(datasetId string) (datasetInfoResponse, error) {
	var res datasetInfoResponse
	err := c.Get(fmt.Sprintf("/datasets/%v", datasetId)).Do(&res)
	return res, err
}

func (c *client) startTraining(body map[string]interface{}) (modelInfoResponse, error) {
	var res modelInfoResponse
	err := c.Post("/train").Json(body).Do(&res)
	return res, err
}

func (c *client) trainStatus(modelId string) (lifecycle.StatusInfo, error) {
	var res lifecycle.StatusInfo
	err := c.Get(fmt.Sprintf("/train/%v/status", modelId)).Do(&res)
	return res, err
}

func (c *client) cancelTraining(modelId string) error {
	return c.Post(fmt.Sprintf("/train/%v/cancel", modelId)).Do(nil)
}

func (c *client) listModels() ([]modelInfoResponse, error) {
	var res listModelsResponse
	err := c.Get("/models").Do(&res)
	return res.Models, err
}

func (c *client) modelInfo(modelId string) (modelInfoResponse, error) {
	var res modelInfoResponse
	err := c.Get(fmt.Sprintf("/models/%v", modelId)).Do(&res)
	return res, err
}

func (c *client) deleteModel(modelId string) error {
	return c.Delete(fmt.Sprintf("/models/%v", modelId)).Do(nil)
}

func (c *client) downloadModel(modelId string) (string, error) {
	var res downloadResponse
	err := c.Get(fmt.Sprintf("/models/%v/download", modelId)).Do(&res)
	return res.DownloadUrl, err
}

func (c *client) trainingLogs(modelId string) (string, error) {
	var res downloadResponse
	err := c.Get(fmt.Sprintf("/models/%v/logs", modelId)).Do(&res)
	return res.DownloadUrl, err
}

func (c *client) createApiKey(name string) (createApiKeyResponse, error) {
	var res createApiKeyResponse
	err := c.Post("/api-keys").Json(map[string]string{"name": name}).Do(&res)
	return res, err
}

func (c *client) listApiKeys() ([]apiKeyInfo, error) {
	var res listApiKeysResponse
	err := c.Get("/api-keys").Do(&res)
	return res.Keys, err
}

func (c *client) deleteApiKey(keyId string) error {
	return c.Delete(fmt.Sprintf("/api-keys/%v", keyId)).Do(nil)
}

func (c *client) balance() (int64, error) {
	var res balanceResponse
	err := c.Get("/billing/balance").Do(&res)
	return res.BalanceCents, err
}

func (c *client) listPayments() ([]paymentInfo, error) {
	var res listPaymentsResponse
	err := c.Get("/billing/payments").Do(&res)
	return res.Payments, err
}
