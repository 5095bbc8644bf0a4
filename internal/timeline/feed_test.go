package timeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>cards</title>
    <link>https://t.me/cards</link>
    <item>
      <title>Golden Duck</title>
      <link>https://t.me/cards/901</link>
      <guid>https://t.me/cards/901</guid>
      <pubDate>Wed, 12 Mar 2025 10:00:00 GMT</pubDate>
      <description><![CDATA[Golden Duck<br/>1492-1497]]></description>
      <enclosure url="https://cdn.example/901.jpg" type="image/jpeg" length="1234"/>
    </item>
    <item>
      <title>Silver Goose</title>
      <link>https://t.me/cards/902</link>
      <pubDate>Thu, 13 Mar 2025 10:00:00 GMT</pubDate>
      <description>Silver Goose</description>
    </item>
    <item>
      <title>No identifier</title>
      <link>https://t.me/cards/</link>
      <pubDate>Thu, 13 Mar 2025 11:00:00 GMT</pubDate>
    </item>
    <item>
      <title>No date</title>
      <link>https://t.me/cards/903</link>
    </item>
  </channel>
</rss>`

func TestFeedSourceFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, sampleFeed)
	}))
	defer server.Close()

	src, err := NewFeedSource(server.URL+"/feed", WithRequestsPerSecond(0))
	if err != nil {
		t.Fatalf("NewFeedSource returned error: %v", err)
	}
	messages, err := src.Fetch(context.Background(), 0)
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d: %+v", len(messages), messages)
	}
	if messages[0].ID != 902 || messages[1].ID != 901 {
		t.Fatalf("expected newest first, got %d then %d", messages[0].ID, messages[1].ID)
	}
	duck := messages[1]
	if duck.Text != "Golden Duck\n1492-1497" {
		t.Fatalf("Text = %q", duck.Text)
	}
	if !duck.Timestamp.Equal(time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("Timestamp = %s", duck.Timestamp)
	}
	if !duck.HasMedia || duck.MediaRef != "https://cdn.example/901.jpg" {
		t.Fatalf("unexpected media: has=%v ref=%q", duck.HasMedia, duck.MediaRef)
	}
	if messages[0].HasMedia {
		t.Fatal("expected text-only item to carry no media")
	}
}

func TestFeedSourceLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, sampleFeed)
	}))
	defer server.Close()

	src, err := NewFeedSource(server.URL, WithRequestsPerSecond(0))
	if err != nil {
		t.Fatalf("NewFeedSource returned error: %v", err)
	}
	messages, err := src.Fetch(context.Background(), 1)
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(messages) != 1 || messages[0].ID != 902 {
		t.Fatalf("unexpected messages: %+v", messages)
	}
}

func TestFeedSourceRejectsGarbage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "definitely not a feed")
	}))
	defer server.Close()

	src, err := NewFeedSource(server.URL, WithRequestsPerSecond(0))
	if err != nil {
		t.Fatalf("NewFeedSource returned error: %v", err)
	}
	_, err = src.Fetch(context.Background(), 0)
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
	if retryable(err) {
		t.Fatal("expected unparsable feed to be non-retryable")
	}
}
