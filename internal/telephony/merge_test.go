package telephony

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func TestMerge(t *testing.T) {
	data := map[string]string{
		"first_name": "Pat",
		"agent_name": "Sam",
		"company":    "Acme",
	}

	cases := []struct {
		name     string
		template string
		want     string
	}{
		{"double braces", "Hi {{first_name}}, this is {{agent_name}}.", "Hi Pat, this is Sam."},
		{"single braces", "Hi {first_name} from {company}", "Hi Pat from Acme"},
		{"mixed forms", "{{first_name}} / {company}", "Pat / Acme"},
		{"whitespace trimmed", "Hi {{ first_name }}!", "Hi Pat!"},
		{"unresolved left verbatim", "Hi {{last_name}}, bye {nickname}", "Hi {{last_name}}, bye {nickname}"},
		{"unterminated", "Hi {{first_name", "Hi {{first_name"},
		{"brace inside placeholder", "a {fir{st} b", "a {fir{st} b"},
		{"newline never spanned", "a {first\nname} b", "a {first\nname} b"},
		{"double open falls back to single form", "x {{first_name} y", "x {Pat y"},
		{"adjacent placeholders", "{first_name}{company}", "PatAcme"},
		{"no placeholders", "plain text", "plain text"},
		{"empty template", "", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Merge(tc.template, data); got != tc.want {
				t.Fatalf("Merge(%q) = %q, want %q", tc.template, got, tc.want)
			}
		})
	}
}

func TestMergeNilData(t *testing.T) {
	if got := Merge("Hi {{first_name}}", nil); got != "Hi {{first_name}}" {
		t.Fatalf("nil data should leave the template alone, got %q", got)
	}
}

func newLogProvider() *LogProvider {
	p := NewLogProvider(slog.New(slog.NewTextHandler(io.Discard, nil)))
	p.clock = func() time.Time { return time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC) }
	return p
}

func TestLogProviderDial(t *testing.T) {
	p := newLogProvider()
	ctx := context.Background()

	if _, err := p.Dial(ctx, DialRequest{To: "+15551234567"}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("missing workspace should be rejected, got %v", err)
	}
	if _, err := p.Dial(ctx, DialRequest{WorkspaceID: "w1"}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("missing number should be rejected, got %v", err)
	}

	res, err := p.Dial(ctx, DialRequest{WorkspaceID: "w1", AgentID: "a1", To: "+15551234567", ItemID: "i1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.WorkspaceID != "w1" || res.ProviderCallID == "" || res.TriggeredAt.IsZero() {
		t.Fatalf("incomplete dial result: %+v", res)
	}
}

func TestLogProviderSendSMS(t *testing.T) {
	p := newLogProvider()
	ctx := context.Background()

	if _, err := p.SendSMS(ctx, SMSRequest{WorkspaceID: "w1", To: "+15551234567"}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("empty body should be rejected, got %v", err)
	}

	body := Merge("Hi {{first_name}}, it's {{agent_name}}.", map[string]string{"first_name": "Pat", "agent_name": "Sam"})
	res, err := p.SendSMS(ctx, SMSRequest{WorkspaceID: "w1", To: "+15551234567", Body: body})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ProviderMessageID == "" {
		t.Fatalf("missing provider message id: %+v", res)
	}
}
