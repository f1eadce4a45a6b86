package commands_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/hik1komori/life-dorama-bot/internal/commands"
	"github.com/hik1komori/life-dorama-bot/internal/store"
)

func TestCallbackRoundTrip(t *testing.T) {
	cases := []commands.Command{
		commands.MainMenu{},
		commands.ListTitles{Page: 3},
		commands.ShowTitle{Code: "YL_2024"},
		commands.Watch{Code: "YL2024", Episode: 12},
		commands.ListEpisodes{Code: "YL2024", Page: 1},
		commands.AdminApprove{UserID: 42, ChannelID: -1001234567890},
		commands.AdminEditSetting{Key: store.SettingArchiveChannel},
		commands.AdminDeleteTitle{Code: "ABC"},
		commands.AdminMenu{},
	}
	for _, want := range cases {
		data, err := commands.Encode(want)
		if err != nil {
			t.Fatalf("Encode(%#v) failed: %v", want, err)
		}
		got, err := commands.ParseCallback(data)
		if err != nil {
			t.Fatalf("ParseCallback(%q) failed: %v", data, err)
		}
		if got != want {
			t.Fatalf("round trip of %q: got %#v, want %#v", data, got, want)
		}
	}
}

func TestUnderscoreCodesAreUnambiguous(t *testing.T) {
	got, err := commands.ParseCallback("watch:MY_LOVE_2:3")
	if err != nil {
		t.Fatalf("ParseCallback failed: %v", err)
	}
	want := commands.Watch{Code: "MY_LOVE_2", Episode: 3}
	if got != want {
		t.Fatalf("got %#v, want %#v", got, want)
	}
}

func TestParseCallbackRejectsMalformed(t *testing.T) {
	for _, data := range []string{
		"",
		"unknown",
		"watch:YL2024",
		"watch:YL2024:0",
		"watch:YL2024:x",
		"all:-1",
		"menu:extra",
		"adm:approve:1",
		"adm:set:theme",
		"title:" + strings.Repeat("A", 70),
	} {
		_, err := commands.ParseCallback(data)
		if !errors.Is(err, commands.ErrMalformed) {
			t.Fatalf("ParseCallback(%q): expected ErrMalformed, got %v", data, err)
		}
		if kind := store.KindOf(err); kind != store.KindValidation {
			t.Fatalf("ParseCallback(%q): expected validation kind, got %q", data, kind)
		}
	}
}

func TestEncodeRejectsNonCallbacks(t *testing.T) {
	if _, err := commands.Encode(commands.Broadcast{}); err == nil {
		t.Fatal("expected error for slash-only command")
	}
	if _, err := commands.Encode(commands.ShowTitle{Code: "A:B"}); err == nil {
		t.Fatal("expected error for separator in code")
	}
}

func TestParseSlash(t *testing.T) {
	cases := []struct {
		text    string
		replyTo int
		want    commands.Command
	}{
		{"/start", 0, commands.Start{}},
		{"/start@DoramaBot promo", 0, commands.Start{Payload: "promo"}},
		{"/broadcast", 77, commands.Broadcast{ReplyTo: 77}},
		{"/deletedorama yl2024", 0, commands.DeleteTitle{Code: "YL2024"}},
		{"/deletechannel -100123", 0, commands.DeleteChannel{ID: -100123}},
		{"/addchannel -100123 @doramas Doramalar https://t.me/+abc true", 0,
			commands.AddChannel{ID: -100123, Username: "@doramas", Title: "Doramalar", InviteLink: "https://t.me/+abc", Private: true}},
		{"/addprivatechannel -100555 https://t.me/+xyz", 0,
			commands.AddChannel{ID: -100555, Title: "Maxfiy kanal -100555", InviteLink: "https://t.me/+xyz", Private: true}},
		{"/search your lie", 0, commands.Search{Query: "your lie"}},
	}
	for _, tc := range cases {
		got, err := commands.ParseSlash(tc.text, tc.replyTo)
		if err != nil {
			t.Fatalf("ParseSlash(%q) failed: %v", tc.text, err)
		}
		if got != tc.want {
			t.Fatalf("ParseSlash(%q) = %#v, want %#v", tc.text, got, tc.want)
		}
	}
}

func TestParseSlashUsageErrors(t *testing.T) {
	cases := map[string]string{
		"/addchannel -100":        commands.UsageAddChannel,
		"/addprivatechannel":      commands.UsageAddPrivateChannel,
		"/deletechannel":          commands.UsageDeleteChannel,
		"/deletedorama":           commands.UsageDeleteTitle,
		"/deletechannel notanint": "❌ Kanal ID raqam bo'lishi kerak",
	}
	for text, wantUsage := range cases {
		_, err := commands.ParseSlash(text, 0)
		var usageErr *commands.UsageError
		if !errors.As(err, &usageErr) {
			t.Fatalf("ParseSlash(%q): expected UsageError, got %v", text, err)
		}
		if usageErr.Usage != wantUsage {
			t.Fatalf("ParseSlash(%q): usage %q, want %q", text, usageErr.Usage, wantUsage)
		}
		if !errors.Is(err, commands.ErrMalformed) {
			t.Fatalf("ParseSlash(%q): expected ErrMalformed in chain", text)
		}
	}
	if _, err := commands.ParseSlash("/frobnicate", 0); !errors.Is(err, commands.ErrMalformed) {
		t.Fatalf("expected ErrMalformed for unknown command, got %v", err)
	}
}

func TestParseButton(t *testing.T) {
	cmd, ok := commands.ParseButton(" " + commands.ButtonPopular + " ")
	if !ok || cmd != (commands.ListPopular{}) {
		t.Fatalf("unexpected button decode: %#v %v", cmd, ok)
	}
	if _, ok := commands.ParseButton("Your Lie"); ok {
		t.Fatal("free text should not match a button")
	}
}

func TestAdminClassification(t *testing.T) {
	if !commands.Admin(commands.AdminApprove{}) || !commands.Admin(commands.Broadcast{}) {
		t.Fatal("expected admin commands to be classified")
	}
	if commands.Admin(commands.Watch{}) || commands.Admin(commands.Start{}) {
		t.Fatal("viewer commands must not require privileges")
	}
}
