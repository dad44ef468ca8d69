package notify_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mkrogh/marketplace-auction/internal/notify"
)

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	n := notify.NewLogNotifier(logger)
	n.Notify(context.Background(), notify.Notification{
		UserID:    "u1",
		Kind:      notify.KindOutbid,
		ListingID: "listing-1",
		Title:     "Vintage road bike",
		Amount:    decimal.NewFromInt(60),
	})

	out := buf.String()
	for _, want := range []string{"user_id=u1", "kind=outbid", "listing_id=listing-1", "amount=60"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q: %s", want, out)
		}
	}
}
