package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

const storeUrlPrefix = "http://store.test"

type memoryStore struct {
	mu sync.Mutex

	objects map[string]bool
	deleted []string

	failDelete bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string]bool{}}
}

func (s *memoryStore) PresignUpload(ctx context.Context, key, contentType string, expiry time.Duration) (string, error) {
	return storeUrlPrefix + "/upload/" + key, nil
}

func (s *memoryStore) PresignDownload(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return storeUrlPrefix + "/download/" + key, nil
}

func (s *memoryStore) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.objects[key], nil
}

func (s *memoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deleted = append(s.deleted, key)
	if s.failDelete {
		return fmt.Errorf("storage unavailable")
	}

	delete(s.objects, key)
	return nil
}

func (s *memoryStore) put(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = true
}

func (s *memoryStore) remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
}

func (s *memoryStore) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.objects[key]
}

// uploadKey recovers the object key from a presigned upload url, standing in
// for the client actually PUT-ing the archive.
func uploadKey(url string) string {
	return strings.TrimPrefix(url, storeUrlPrefix+"/upload/")
}

type dispatchRecord struct {
	ArtifactUri string
	CallbackUrl string
}

type deployStub struct {
	mu sync.Mutex

	dispatches []dispatchRecord
	fail       bool
}

func (s *deployStub) Dispatch(artifactUri, callbackUrl string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fail {
		return fmt.Errorf("workflow dispatch failed")
	}

	s.dispatches = append(s.dispatches, dispatchRecord{ArtifactUri: artifactUri, CallbackUrl: callbackUrl})
	return nil
}
