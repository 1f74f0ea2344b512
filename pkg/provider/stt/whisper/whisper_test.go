package whisper

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/elaichix/NubaGuard-AI/pkg/audio"
	"github.com/elaichix/NubaGuard-AI/pkg/provider/stt"
)

func newServer(t *testing.T, status int, text string, seen *map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/inference" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if seen != nil {
			*seen = map[string]string{"language": r.FormValue("language")}
			if _, hdr, err := r.FormFile("file"); err == nil {
				(*seen)["filename"] = hdr.Filename
			}
		}
		if status != http.StatusOK {
			http.Error(w, "model not loaded", status)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"text": text})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func segment() audio.Segment {
	return audio.Segment{
		PCM:        make([]byte, 3200),
		SampleRate: 16000,
		Channels:   1,
		EndedAt:    time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC),
	}
}

func TestNew_EmptyURL(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty server URL")
	}
}

func TestTranscribe_Success(t *testing.T) {
	var seen map[string]string
	srv := newServer(t, http.StatusOK, "  mama  ", &seen)
	p, err := New(srv.URL+"/", WithLanguage("en"))
	if err != nil {
		t.Fatal(err)
	}

	tr, err := p.Transcribe(context.Background(), segment())
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if tr.Text != "mama" || tr.Lang != "en" {
		t.Errorf("transcript = %+v", tr)
	}
	if !tr.At.Equal(segment().EndedAt) {
		t.Errorf("At = %v, want segment end", tr.At)
	}
	if seen["language"] != "en" || seen["filename"] != "segment.wav" {
		t.Errorf("server saw %v", seen)
	}
}

func TestTranscribe_BlankAudioIsUnintelligible(t *testing.T) {
	srv := newServer(t, http.StatusOK, " [BLANK_AUDIO] ", nil)
	p, _ := New(srv.URL)

	_, err := p.Transcribe(context.Background(), segment())
	if !errors.Is(err, stt.ErrUnintelligible) {
		t.Fatalf("err = %v, want ErrUnintelligible", err)
	}
}

func TestTranscribe_EmptySegment(t *testing.T) {
	p, _ := New("http://127.0.0.1:1")
	_, err := p.Transcribe(context.Background(), audio.Segment{})
	if !errors.Is(err, stt.ErrUnintelligible) {
		t.Fatalf("err = %v, want ErrUnintelligible", err)
	}
}

func TestTranscribe_ServerError(t *testing.T) {
	srv := newServer(t, http.StatusInternalServerError, "", nil)
	p, _ := New(srv.URL)

	_, err := p.Transcribe(context.Background(), segment())
	if err == nil || errors.Is(err, stt.ErrUnintelligible) {
		t.Fatalf("err = %v, want a service error", err)
	}
}

func TestCleanText(t *testing.T) {
	tests := map[string]string{
		"hello":                    "hello",
		"  (crying)  ":             "",
		"[music] play with me":     "play with me",
		"dada (laughs) is here":    "dada is here",
		"unbalanced ] bracket ok":  "unbalanced bracket ok",
	}
	for in, want := range tests {
		if got := cleanText(in); got != want {
			t.Errorf("cleanText(%q) = %q, want %q", in, got, want)
		}
	}
}
