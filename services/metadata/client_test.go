package metadata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMovieLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/movie/550" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		if r.URL.Query().Get("api_key") != "k" {
			t.Fatalf("api_key not sent")
		}
		w.Write([]byte(`{"title":"Fight Club","original_title":"Fight Club","release_date":"1999-10-15"}`))
	}))
	defer srv.Close()

	c := NewClient("k", srv.Client())
	c.baseURL = srv.URL

	got, err := c.Movie(context.Background(), 550)
	if err != nil {
		t.Fatalf("Movie: %v", err)
	}
	if got.Title != "Fight Club" || got.Year != 1999 {
		t.Fatalf("Lookup = %+v", got)
	}
}

func TestShowLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tv/1396" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		w.Write([]byte(`{"name":"Breaking Bad","original_name":"Breaking Bad","first_air_date":"2008-01-20"}`))
	}))
	defer srv.Close()

	c := NewClient("k", srv.Client())
	c.baseURL = srv.URL

	got, err := c.Show(context.Background(), 1396)
	if err != nil {
		t.Fatalf("Show: %v", err)
	}
	if got.Title != "Breaking Bad" || got.Year != 2008 {
		t.Fatalf("Lookup = %+v", got)
	}
}

func TestMissingAPIKeyFailsBeforeNetwork(t *testing.T) {
	c := NewClient("", nil)
	c.baseURL = "http://127.0.0.1:0" // would fail loudly if dialed

	_, err := c.Movie(context.Background(), 1)
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("err = %v, want ErrMissingAPIKey", err)
	}
}
