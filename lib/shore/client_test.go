// Copyright 2026 The Pelorus Authors
// SPDX-License-Identifier: Apache-2.0

package shore

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pelorus-marine/pelorus/lib/schema"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := NewClient(Config{
		BaseURL:   server.URL,
		Collector: "boat-1",
		Key:       "k123",
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(Config{Collector: "boat-1"}); err == nil {
		t.Fatal("NewClient accepted empty BaseURL")
	}
	if _, err := NewClient(Config{BaseURL: "http://shore.local"}); err == nil {
		t.Fatal("NewClient accepted empty Collector")
	}
}

func TestPushPointsSendsBatchAndParsesAck(t *testing.T) {
	var gotPath, gotKey string
	var gotRequest schema.PushRequest
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get(KeyHeader)
		if err := json.NewDecoder(r.Body).Decode(&gotRequest); err != nil {
			t.Errorf("decoding push request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"processedUntil":200,"refreshMetadata":true,"configurationVersion":7}`))
	}))

	points := []schema.TrackPoint{
		{Timestamp: 100, Lat: 59.9, Lon: 10.7, Trigger: schema.TriggerHeartbeat},
		{Timestamp: 200, Lat: 59.91, Lon: 10.71, Trigger: schema.TriggerDistance},
	}
	response, err := client.PushPoints(context.Background(), points)
	if err != nil {
		t.Fatalf("PushPoints: %v", err)
	}
	if gotPath != "/boat-1/push" {
		t.Errorf("path = %q, want /boat-1/push", gotPath)
	}
	if gotKey != "k123" {
		t.Errorf("key header = %q, want k123", gotKey)
	}
	if len(gotRequest.Points) != 2 || gotRequest.Points[1].Timestamp != 200 {
		t.Errorf("server saw points %+v", gotRequest.Points)
	}
	if response.ProcessedUntil != 200 {
		t.Errorf("ProcessedUntil = %d, want 200", response.ProcessedUntil)
	}
	if !response.RefreshMetadata {
		t.Error("RefreshMetadata not parsed")
	}
	if response.ConfigurationVersion != 7 {
		t.Errorf("ConfigurationVersion = %d, want 7", response.ConfigurationVersion)
	}
}

func TestPushPointsEmptyHeartbeatAcceptsNoContent(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	response, err := client.PushPoints(context.Background(), nil)
	if err != nil {
		t.Fatalf("PushPoints: %v", err)
	}
	if response != (schema.PushResponse{}) {
		t.Errorf("response = %+v, want zero value", response)
	}
}

func TestPushPointsServerErrorIsStatusError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backlog full", http.StatusServiceUnavailable)
	}))

	_, err := client.PushPoints(context.Background(), nil)
	if err == nil {
		t.Fatal("PushPoints succeeded against a 503")
	}
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("error %v is not a *StatusError", err)
	}
	if statusErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("StatusCode = %d, want 503", statusErr.StatusCode)
	}
}

func TestPushPointsMalformedBodyIsError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))

	if _, err := client.PushPoints(context.Background(), nil); err == nil {
		t.Fatal("PushPoints accepted a malformed body")
	}
}

func TestFetchConfiguration(t *testing.T) {
	var gotPath, gotMethod string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"version":4,"sendTargets":true,"speedThreshold":1.5}`))
	}))

	cfg, err := client.FetchConfiguration(context.Background())
	if err != nil {
		t.Fatalf("FetchConfiguration: %v", err)
	}
	if gotMethod != http.MethodGet || gotPath != "/monitoring/boat-1/configuration" {
		t.Errorf("request = %s %s, want GET /monitoring/boat-1/configuration", gotMethod, gotPath)
	}
	if cfg.Version != 4 || !cfg.SendTargets || cfg.SpeedThresholdKn != 1.5 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestPublishMetadata(t *testing.T) {
	var gotPath string
	var gotInfo schema.VesselInfo
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotInfo); err != nil {
			t.Errorf("decoding metadata: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))

	info := schema.VesselInfo{Name: "Vagrant", MMSI: "257123456"}
	if err := client.PublishMetadata(context.Background(), info); err != nil {
		t.Fatalf("PublishMetadata: %v", err)
	}
	if gotPath != "/monitoring/boat-1/push" {
		t.Errorf("path = %q, want /monitoring/boat-1/push", gotPath)
	}
	if gotInfo.Name != "Vagrant" || gotInfo.MMSI != "257123456" {
		t.Errorf("server saw %+v", gotInfo)
	}
}

func TestPushTargets(t *testing.T) {
	var gotPath string
	var gotPush schema.TargetPush
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotPush); err != nil {
			t.Errorf("decoding target push: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))

	push := schema.TargetPush{Targets: map[string]schema.Target{
		"257000111": {MMSI: "257000111", Lat: 59.8, Lon: 10.6},
	}}
	if err := client.PushTargets(context.Background(), push); err != nil {
		t.Fatalf("PushTargets: %v", err)
	}
	if gotPath != "/ais/boat-1/push" {
		t.Errorf("path = %q, want /ais/boat-1/push", gotPath)
	}
	if _, ok := gotPush.Targets["257000111"]; !ok {
		t.Errorf("server saw targets %+v", gotPush.Targets)
	}
}

func TestUpdatePoint(t *testing.T) {
	var gotPath string
	var gotPoint schema.TrackPoint
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotPoint); err != nil {
			t.Errorf("decoding point: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))

	point := schema.TrackPoint{Timestamp: 42, Lat: 59.9, Lon: 10.7, Trigger: schema.TriggerTurn}
	if err := client.UpdatePoint(context.Background(), point); err != nil {
		t.Fatalf("UpdatePoint: %v", err)
	}
	if gotPath != "/boat-1/update" {
		t.Errorf("path = %q, want /boat-1/update", gotPath)
	}
	if gotPoint.Timestamp != 42 || gotPoint.Trigger != schema.TriggerTurn {
		t.Errorf("server saw %+v", gotPoint)
	}
}
