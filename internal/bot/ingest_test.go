package bot

import (
	"testing"
	"time"
)

func TestParseVideoTags(t *testing.T) {
	tests := []struct {
		name    string
		caption string
		want    videoTags
		wantErr string
	}{
		{
			name:    "code and episode",
			caption: "#YL2024 #seria_3",
			want:    videoTags{code: "YL2024", episode: 3},
		},
		{
			name:    "lower case code with name and caption",
			caption: "#ny2025 #seria:12 #nomi New Year\nFinal qism",
			want:    videoTags{code: "NY2025", episode: 12, name: "New Year", caption: "Final qism"},
		},
		{
			name:    "tags after text",
			caption: "Yangi qism\n#Seria5 #AB1",
			want:    videoTags{code: "AB1", episode: 5, caption: "Yangi qism"},
		},
		{
			name:    "missing code",
			caption: "#seria_1 #nomi Faqat nom",
			wantErr: textIngestNoCode,
		},
		{
			name:    "missing episode",
			caption: "#YL2024",
			wantErr: textIngestNoEpisode,
		},
		{
			name:    "zero episode",
			caption: "#YL2024 #seria_0",
			wantErr: textIngestNoEpisode,
		},
		{
			name:    "empty caption",
			caption: "",
			wantErr: textIngestNoCode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseVideoTags(tt.caption)
			if tt.wantErr != "" {
				if err == nil || err.Error() != tt.wantErr {
					t.Fatalf("parseVideoTags(%q) error = %v, want %q", tt.caption, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseVideoTags(%q): %v", tt.caption, err)
			}
			if got != tt.want {
				t.Fatalf("parseVideoTags(%q) = %+v, want %+v", tt.caption, got, tt.want)
			}
		})
	}
}

func TestSessionsExpireAndClear(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := &sessions{byID: make(map[int64]session), now: func() time.Time { return now }}

	s.open(7, sessionSettingInput, "welcome_message")
	if _, ok := s.take(7, sessionBroadcast); ok {
		t.Fatal("broadcast session taken while a setting session is open")
	}
	got, ok := s.take(7, sessionSettingInput)
	if !ok || got.key != "welcome_message" {
		t.Fatalf("take = %+v, %v", got, ok)
	}
	if _, ok := s.take(7, sessionSettingInput); ok {
		t.Fatal("session taken twice")
	}

	s.open(7, sessionBroadcast, "")
	now = now.Add(sessionTTL + time.Second)
	if _, ok := s.take(7, sessionBroadcast); ok {
		t.Fatal("expired session taken")
	}

	s.open(8, sessionBroadcast, "")
	if !s.clear(8) {
		t.Fatal("clear reported nothing pending")
	}
	if s.clear(8) {
		t.Fatal("clear reported a session twice")
	}
}
