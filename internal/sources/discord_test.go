package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/traction/internal/dataset"
	"github.com/Sumatoshi-tech/traction/internal/snowflake"
)

// discordTestNow fixes the snapshot day to 2024-03-10.
func discordTestNow() time.Time {
	return time.Date(2024, time.March, 10, 9, 0, 0, 0, time.UTC)
}

func newDiscordForTest(t *testing.T, handler http.Handler) *Discord {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	adapter := NewDiscord(srv.URL, "bot-sekrit", 2)
	adapter.now = discordTestNow

	return adapter
}

// messageID fabricates a snowflake created at noon of the given day, offset
// into the low sequence bits so IDs within one day stay distinct.
func messageID(day dataset.Day, seq int) uint64 {
	noon := day.Time().Add(12 * time.Hour)

	return snowflake.FromTime(noon) | uint64(seq)
}

func messagesJSON(ids ...uint64) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf(`{"id": "%d"}`, id))
	}

	return "[" + strings.Join(parts, ",") + "]"
}

func TestDiscord_Fetch_SnapshotOnlyWhenNothingMissing(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/guilds/g1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bot bot-sekrit", r.Header.Get(headerAuthorization))
		assert.Equal(t, "true", r.URL.Query().Get("with_counts"))

		w.Write([]byte(`{"name": "Acme Community", "approximate_member_count": 512}`))
	})
	mux.HandleFunc("/guilds/g1/channels", func(_ http.ResponseWriter, _ *http.Request) {
		t.Error("no missing days, yet channels were listed")
	})

	adapter := newDiscordForTest(t, mux)

	res, err := adapter.Fetch(context.Background(), Target{Kind: KindDiscord, Selector: "g1", Alias: "acme-community"})
	require.NoError(t, err)

	require.Len(t, res.Records, 1)
	assert.Equal(t, dataset.Record{
		Day:    "2024-03-10",
		Entity: "acme-community",
		Source: dataset.SourceDiscordMembers,
		Value:  512,
	}, res.Records[0])
	assert.False(t, res.Partial)
}

func TestDiscord_Fetch_BackfillBucketsAndZeroFills(t *testing.T) {
	t.Parallel()

	missing := []dataset.Day{"2024-03-07", "2024-03-08"}

	mux := http.NewServeMux()
	mux.HandleFunc("/guilds/g1", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"name": "Acme Community", "approximate_member_count": 512}`))
	})
	mux.HandleFunc("/guilds/g1/channels", func(w http.ResponseWriter, _ *http.Request) {
		// The voice channel has no message listing capability.
		w.Write([]byte(`[{"id": "100", "type": 0}, {"id": "200", "type": 2}]`))
	})
	mux.HandleFunc("/channels/100/messages", func(w http.ResponseWriter, r *http.Request) {
		wantAfter := fmt.Sprintf("%d", snowflake.DayFloor("2024-03-07"))
		assert.Equal(t, wantAfter, r.URL.Query().Get("after"), "cursor is the earliest missing day's floor")

		// Two messages on the 7th, one on the 9th (not missing, ignored).
		w.Write([]byte(messagesJSON(
			messageID("2024-03-07", 1),
			messageID("2024-03-07", 2),
			messageID("2024-03-09", 1),
		)))
	})
	mux.HandleFunc("/channels/200/messages", func(_ http.ResponseWriter, _ *http.Request) {
		t.Error("voice channel must be skipped")
	})

	adapter := newDiscordForTest(t, mux)

	res, err := adapter.Fetch(context.Background(), Target{
		Kind:     KindDiscord,
		Selector: "g1",
		Alias:    "acme-community",
		Missing:  missing,
	})
	require.NoError(t, err)

	require.Len(t, res.Records, 3, "member snapshot plus one record per missing day")
	assert.Equal(t, dataset.SourceDiscordMembers, res.Records[0].Source)

	assert.Equal(t, dataset.Record{
		Day:    "2024-03-07",
		Entity: "acme-community",
		Source: dataset.SourceDiscordMessages,
		Value:  2,
	}, res.Records[1])

	assert.Equal(t, dataset.Record{
		Day:    "2024-03-08",
		Entity: "acme-community",
		Source: dataset.SourceDiscordMessages,
		Value:  0,
	}, res.Records[2], "a missing day with no events is an explicit zero")
}

func TestDiscord_Fetch_PagesForwardUntilShortPage(t *testing.T) {
	t.Parallel()

	day := dataset.Day("2024-03-07")
	floor := snowflake.DayFloor(day)

	fullPage := make([]uint64, messagePageSize)
	for i := range fullPage {
		fullPage[i] = messageID(day, i+1)
	}

	lastOfFirstPage := fullPage[messagePageSize-1]

	mux := http.NewServeMux()
	mux.HandleFunc("/guilds/g1", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"name": "Acme", "approximate_member_count": 10}`))
	})
	mux.HandleFunc("/guilds/g1/channels", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`[{"id": "100", "type": 0}]`))
	})
	mux.HandleFunc("/channels/100/messages", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("after") {
		case fmt.Sprintf("%d", floor):
			w.Write([]byte(messagesJSON(fullPage...)))
		case fmt.Sprintf("%d", lastOfFirstPage):
			w.Write([]byte(messagesJSON(messageID(day, messagePageSize+1))))
		default:
			t.Errorf("unexpected cursor %q", r.URL.Query().Get("after"))
		}
	})

	adapter := newDiscordForTest(t, mux)

	res, err := adapter.Fetch(context.Background(), Target{
		Kind:     KindDiscord,
		Selector: "g1",
		Alias:    "acme",
		Missing:  []dataset.Day{day},
	})
	require.NoError(t, err)

	require.Len(t, res.Records, 2)
	assert.Equal(t, int64(messagePageSize+1), res.Records[1].Value, "both pages counted")
}

func TestDiscord_Fetch_InaccessibleChannelIsPartialNotFatal(t *testing.T) {
	t.Parallel()

	day := dataset.Day("2024-03-07")

	mux := http.NewServeMux()
	mux.HandleFunc("/guilds/g1", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"name": "Acme", "approximate_member_count": 10}`))
	})
	mux.HandleFunc("/guilds/g1/channels", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`[{"id": "100", "type": 0}, {"id": "300", "type": 0}]`))
	})
	mux.HandleFunc("/channels/100/messages", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(messagesJSON(messageID(day, 1))))
	})
	mux.HandleFunc("/channels/300/messages", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	adapter := newDiscordForTest(t, mux)

	res, err := adapter.Fetch(context.Background(), Target{
		Kind:     KindDiscord,
		Selector: "g1",
		Alias:    "acme",
		Missing:  []dataset.Day{day},
	})
	require.NoError(t, err, "permission-denied downgrades to best-effort")

	assert.True(t, res.Partial)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "channel 300")

	require.Len(t, res.Records, 2)
	assert.Equal(t, int64(1), res.Records[1].Value, "accessible channel still counted")
}

func TestDiscord_Fetch_RateLimitMidBackfillFailsTarget(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/guilds/g1", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"name": "Acme", "approximate_member_count": 10}`))
	})
	mux.HandleFunc("/guilds/g1/channels", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`[{"id": "100", "type": 0}]`))
	})
	mux.HandleFunc("/channels/100/messages", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	adapter := newDiscordForTest(t, mux)

	_, err := adapter.Fetch(context.Background(), Target{
		Kind:     KindDiscord,
		Selector: "g1",
		Missing:  []dataset.Day{"2024-03-07"},
	})
	require.ErrorIs(t, err, ErrRateLimited)
}

func TestDiscord_Fetch_UnknownGuildFails(t *testing.T) {
	t.Parallel()

	adapter := newDiscordForTest(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := adapter.Fetch(context.Background(), Target{Kind: KindDiscord, Selector: "ghost"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDiscord_BackfillSource(t *testing.T) {
	t.Parallel()

	assert.Equal(t, dataset.SourceDiscordMessages, NewDiscord("", "tok", 0).BackfillSource())
}
