package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/kikiluvv/framefinder/internal/descriptor"
	"github.com/kikiluvv/framefinder/internal/manifest"
	"github.com/kikiluvv/framefinder/internal/products"
	"github.com/kikiluvv/framefinder/internal/store"
)

func grid(r, g, b int) descriptor.Descriptor {
	return descriptor.FromGrid(descriptor.UniformGrid(2, descriptor.RGB{r, g, b}))
}

func newTestServer(t *testing.T, opts Options) *httptest.Server {
	t.Helper()
	if opts.Store == nil {
		st := store.NewFile(zerolog.Nop(), t.TempDir())
		m := &manifest.Manifest{
			MovieName: "movie.mp4",
			Scenes: []manifest.Scene{
				{Shots: []manifest.Shot{{Frames: []manifest.Frame{
					{ID: "00_00_00_000.jpg", Timestamp: 0, Descriptor: grid(200, 10, 10)},
					{ID: "00_00_01_000.jpg", Timestamp: 1, Descriptor: grid(10, 200, 10)},
				}}}},
			},
		}
		m.AssignIDs()
		if err := st.Save(context.Background(), "movie.mp4", m); err != nil {
			t.Fatal(err)
		}
		opts.Store = st
	}
	srv := httptest.NewServer(New(zerolog.Nop(), opts))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url, body string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.StatusCode, out
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, Options{})
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestFrameSearch(t *testing.T) {
	srv := newTestServer(t, Options{Movie: "movie.mp4"})

	body := `{"descriptor":{"rgb_grid":{"0,0":[10,190,10],"0,1":[10,190,10],"1,0":[10,190,10],"1,1":[10,190,10]}}}`
	status, out := postJSON(t, srv.URL+"/api/search/frame", body)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", status, out)
	}
	if out["frame_id"] != "00_00_01_000.jpg" {
		t.Errorf("expected second frame, got %v", out["frame_id"])
	}
	if out["scene_id"] != "scene_0001" || out["shot_id"] != "shot_0001" {
		t.Errorf("unexpected ids %v", out)
	}
}

func TestFrameSearchErrors(t *testing.T) {
	srv := newTestServer(t, Options{})

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"malformed", `{"movie":`, http.StatusBadRequest},
		{"no movie", `{"descriptor":{"rgb_grid":{"0,0":[1,1,1]}}}`, http.StatusBadRequest},
		{"phash query", `{"movie":"movie","descriptor":{"phash":"ff00"}}`, http.StatusBadRequest},
		{"shape mismatch", `{"movie":"movie","descriptor":{"rgb_grid":{"0,0":[1,1,1]}}}`, http.StatusBadRequest},
		{"unknown movie", `{"movie":"other","descriptor":{"rgb_grid":{"0,0":[1,1,1]}}}`, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, out := postJSON(t, srv.URL+"/api/search/frame", tt.body)
			if status != tt.status {
				t.Errorf("expected %d, got %d: %v", tt.status, status, out)
			}
		})
	}
}

func TestFrameSearchNoComparableFrames(t *testing.T) {
	st := store.NewFile(zerolog.Nop(), t.TempDir())
	m := &manifest.Manifest{
		MovieName: "bare.mp4",
		Scenes: []manifest.Scene{
			{Shots: []manifest.Shot{{Frames: []manifest.Frame{{ID: "00_00_00_000.jpg"}}}}},
		},
	}
	m.AssignIDs()
	if err := st.Save(context.Background(), "bare.mp4", m); err != nil {
		t.Fatal(err)
	}

	srv := newTestServer(t, Options{Store: st})
	status, out := postJSON(t, srv.URL+"/api/search/frame", `{"movie":"bare","descriptor":{"rgb_grid":{"0,0":[1,1,1]}}}`)
	if status != http.StatusNotFound || out["message"] != "no results" {
		t.Errorf("expected 404 no results, got %d: %v", status, out)
	}
}

func TestProductSearch(t *testing.T) {
	doc := &products.Document{Scenes: []products.Scene{
		{Timestamp: 0, Groups: []products.Group{
			{Timestamp: 2, Frame: "00_00_03_000.jpg", Products: json.RawMessage(`{"products":["cola"]}`)},
		}},
	}}
	srv := newTestServer(t, Options{Products: doc})

	status, out := postJSON(t, srv.URL+"/api/search/product", `{"start":0,"end":5}`)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	results, ok := out["results"].([]any)
	if !ok || len(results) != 1 {
		t.Fatalf("expected one result, got %v", out)
	}
	first := results[0].(map[string]any)
	if first["frame"] != "00_00_03_000.jpg" || first["group_timestamp"] != 2.0 {
		t.Errorf("unexpected result %v", first)
	}

	status, out = postJSON(t, srv.URL+"/api/search/product", `{"start":3,"end":5}`)
	if status != http.StatusNotFound {
		t.Errorf("expected 404, got %d", status)
	}
	if out["message"] != "No matching products found for the given time range." {
		t.Errorf("unexpected message %v", out["message"])
	}
}

func TestProductSearchNotLoaded(t *testing.T) {
	srv := newTestServer(t, Options{})
	status, _ := postJSON(t, srv.URL+"/api/search/product", `{}`)
	if status != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", status)
	}
}

type fakeTranscriber struct {
	err error
}

func (f fakeTranscriber) Transcribe(ctx context.Context, name string, audio io.Reader) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	data, err := io.ReadAll(audio)
	if err != nil {
		return "", err
	}
	return name + ":" + string(data), nil
}

func upload(t *testing.T, url, field string) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, "speech.wav")
	if err != nil {
		t.Fatal(err)
	}
	io.WriteString(fw, "pcm")
	mw.Close()

	resp, err := http.Post(url, mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.StatusCode, out
}

func TestTranscribe(t *testing.T) {
	srv := newTestServer(t, Options{Transcriber: fakeTranscriber{}})

	status, out := upload(t, srv.URL+"/api/transcribe", "audio")
	if status != http.StatusOK || out["text"] != "speech.wav:pcm" {
		t.Errorf("unexpected response %d %v", status, out)
	}

	status, _ = upload(t, srv.URL+"/api/transcribe", "file")
	if status != http.StatusBadRequest {
		t.Errorf("expected 400 for missing field, got %d", status)
	}
}

func TestTranscribeFailure(t *testing.T) {
	srv := newTestServer(t, Options{Transcriber: fakeTranscriber{err: errors.New("upstream down")}})
	status, _ := upload(t, srv.URL+"/api/transcribe", "audio")
	if status != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", status)
	}
}
