package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/elaichix/NubaGuard-AI/pkg/types"
)

func TestNew_Validation(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Error("expected error for empty api key")
	}
	if _, err := New("k", WithOutputFormat("mp3_44100_128")); err == nil {
		t.Error("expected error for non-PCM output format")
	}
}

func TestFormat(t *testing.T) {
	p, err := New("k", WithOutputFormat("pcm_24000"))
	if err != nil {
		t.Fatal(err)
	}
	f := p.Format()
	if f.SampleRate != 24000 || f.Channels != 1 {
		t.Errorf("format = %+v", f)
	}
}

func TestStreamURL(t *testing.T) {
	p, _ := New("k", WithModel("eleven_flash_v2_5"))
	want := "wss://api.elevenlabs.io/v1/text-to-speech/voice-1/stream-input?model_id=eleven_flash_v2_5"
	if got := p.streamURL("voice-1"); got != want {
		t.Errorf("streamURL = %q, want %q", got, want)
	}
}

func TestSynthesize_Validation(t *testing.T) {
	p, _ := New("k")
	ctx := context.Background()
	if _, err := p.Synthesize(ctx, "hi", types.VoiceProfile{}); err == nil {
		t.Error("expected error for empty voice id")
	}
	if _, err := p.Synthesize(ctx, "   ", types.VoiceProfile{ID: "v"}); err == nil {
		t.Error("expected error for empty text")
	}
}

// fakeServer accepts one stream, records the text messages, and answers with
// two audio chunks once the flush arrives.
type fakeServer struct {
	mu   sync.Mutex
	msgs []textMessage
	path string
}

func (f *fakeServer) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.path = r.URL.Path
	f.mu.Unlock()

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.CloseNow()
	ctx := r.Context()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var m textMessage
		_ = json.Unmarshal(data, &m)
		f.mu.Lock()
		f.msgs = append(f.msgs, m)
		f.mu.Unlock()
		if m.Text == "" {
			break
		}
	}
	for i, chunk := range []string{"ab", "cd"} {
		resp, _ := json.Marshal(audioResponse{
			Audio:   base64.StdEncoding.EncodeToString([]byte(chunk)),
			IsFinal: i == 1,
		})
		if err := conn.Write(ctx, websocket.MessageText, resp); err != nil {
			return
		}
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

func TestSynthesize_StreamsAudio(t *testing.T) {
	fake := &fakeServer{}
	srv := httptest.NewServer(http.HandlerFunc(fake.handle))
	defer srv.Close()

	p, _ := New("secret", WithEndpoint(srv.URL))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch, err := p.Synthesize(ctx, "Hello, Nuba!", types.VoiceProfile{ID: "v1", SpeedFactor: 0.9})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	var got []byte
	for chunk := range ch {
		got = append(got, chunk...)
	}
	if string(got) != "abcd" {
		t.Errorf("audio = %q, want abcd", got)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if fake.path != "/v1/text-to-speech/v1/stream-input" {
		t.Errorf("path = %q", fake.path)
	}
	if len(fake.msgs) != 3 {
		t.Fatalf("server got %d messages, want 3", len(fake.msgs))
	}
	if fake.msgs[0].XiAPIKey != "secret" || fake.msgs[0].OutputFormat != "pcm_16000" {
		t.Errorf("opening message = %+v", fake.msgs[0])
	}
	if fake.msgs[0].VoiceSettings == nil || fake.msgs[0].VoiceSettings.Speed != 0.9 {
		t.Errorf("voice settings = %+v", fake.msgs[0].VoiceSettings)
	}
	if fake.msgs[1].Text != "Hello, Nuba! " {
		t.Errorf("text message = %q", fake.msgs[1].Text)
	}
}
