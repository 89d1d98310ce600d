package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/Sumatoshi-tech/traction/internal/dataset"
	"github.com/Sumatoshi-tech/traction/internal/snowflake"
)

const (
	// DefaultDiscordBaseURL is the production Discord REST API root.
	DefaultDiscordBaseURL = "https://discord.com/api/v10"

	// messagePageSize is the messages-per-page request size; a page shorter
	// than this signals the channel has no further items in the window.
	messagePageSize = 100

	// defaultChannelWorkers bounds concurrent per-channel backfills.
	defaultChannelWorkers = 4

	// channelTypeText and channelTypeAnnouncement are the channel types
	// that support message listing; every other type is skipped.
	channelTypeText         = 0
	channelTypeAnnouncement = 5
)

// Discord is the cursor-windowed-backfill adapter. Per guild it bundles two
// metrics: a member-count snapshot dated today, and a daily message count
// reconstructed from the message stream. Messages carry no calendar date;
// they are identified by time-ordered snowflakes, so the adapter converts
// the earliest missing day into a cursor lower bound, pages forward, and
// buckets each message back into its day.
//
// Missing days that received zero events are emitted with value 0, so
// absence stays distinguishable from "not yet checked". Channels the bot
// cannot read stop contributing mid-page without failing the run: the
// result is marked partial and already-bucketed days are kept.
type Discord struct {
	client  *client
	baseURL string
	token   string
	workers int
	now     func() time.Time
}

var (
	_ Fetcher    = (*Discord)(nil)
	_ Backfiller = (*Discord)(nil)
)

// NewDiscord creates the adapter. An empty baseURL selects production; the
// bot token is required by every endpoint the adapter touches. Workers
// outside 1..32 fall back to the default.
func NewDiscord(baseURL, token string, workers int) *Discord {
	if baseURL == "" {
		baseURL = DefaultDiscordBaseURL
	}

	if workers < 1 || workers > 32 {
		workers = defaultChannelWorkers
	}

	return &Discord{
		client:  newClient(),
		baseURL: baseURL,
		token:   token,
		workers: workers,
		now:     time.Now,
	}
}

// Kind identifies the adapter.
func (d *Discord) Kind() Kind {
	return KindDiscord
}

// BackfillSource names the metric whose missing days the caller computes.
func (d *Discord) BackfillSource() dataset.Source {
	return dataset.SourceDiscordMessages
}

// guildResponse mirrors the guild object fields the snapshot needs.
type guildResponse struct {
	Name        string `json:"name"`
	MemberCount int64  `json:"approximate_member_count"`
}

// guildChannel mirrors the channel fields the backfill needs.
type guildChannel struct {
	ID   string `json:"id"`
	Type int    `json:"type"`
}

// channelMessage mirrors the single message field the backfill needs.
type channelMessage struct {
	ID string `json:"id"`
}

// Fetch snapshots the guild's member count and, when the target carries
// missing days, backfills daily message counts across all listable
// channels concurrently.
func (d *Discord) Fetch(ctx context.Context, tgt Target) (Result, error) {
	entity := tgt.Entity()

	guild, guildErr := d.fetchGuild(ctx, tgt.Selector)
	if guildErr != nil {
		return Result{}, fmt.Errorf("discord %s: %w", entity, guildErr)
	}

	today := dataset.DayOf(d.now())

	records := []dataset.Record{{
		Day:    today,
		Entity: entity,
		Source: dataset.SourceDiscordMembers,
		Value:  guild.MemberCount,
	}}

	// No missing days means no message fetching at all.
	if len(tgt.Missing) == 0 {
		return Result{Records: records, Entities: 1}, nil
	}

	counts, warnings, backfillErr := d.backfill(ctx, tgt.Selector, tgt.Missing)
	if backfillErr != nil {
		return Result{}, fmt.Errorf("discord %s: %w", entity, backfillErr)
	}

	for _, day := range tgt.Missing {
		records = append(records, dataset.Record{
			Day:    day,
			Entity: entity,
			Source: dataset.SourceDiscordMessages,
			Value:  counts[day],
		})
	}

	return Result{
		Records:  records,
		Entities: 1,
		Partial:  len(warnings) > 0,
		Warnings: warnings,
	}, nil
}

func (d *Discord) fetchGuild(ctx context.Context, guildID string) (guildResponse, error) {
	endpoint := fmt.Sprintf("%s/guilds/%s?with_counts=true", d.baseURL, guildID)

	var guild guildResponse

	getErr := d.client.getJSON(ctx, endpoint, d.header(), &guild)
	if getErr != nil {
		return guildResponse{}, getErr
	}

	return guild, nil
}

// backfill tallies messages per missing day across every listable channel.
// A channel the bot cannot read yields a warning, not an error; anything
// else (transport, rate limit) aborts the backfill.
func (d *Discord) backfill(
	ctx context.Context,
	guildID string,
	missing []dataset.Day,
) (map[dataset.Day]int64, []string, error) {
	channels, listErr := d.listChannels(ctx, guildID)
	if errors.Is(listErr, ErrAuthRequired) {
		return nil, []string{fmt.Sprintf("channels of guild %s inaccessible: %v", guildID, listErr)}, nil
	}

	if listErr != nil {
		return nil, nil, listErr
	}

	missingSet := make(map[dataset.Day]struct{}, len(missing))
	startCursor := snowflake.DayFloor(missing[0])

	for _, day := range missing {
		missingSet[day] = struct{}{}

		if floor := snowflake.DayFloor(day); floor < startCursor {
			startCursor = floor
		}
	}

	workCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		counts   = make(map[dataset.Day]int64)
		warnings []string
		firstErr error
	)

	sem := make(chan struct{}, d.workers)

	for _, channel := range channels {
		if channel.Type != channelTypeText && channel.Type != channelTypeAnnouncement {
			continue
		}

		wg.Add(1)

		go func(ch guildChannel) {
			defer wg.Done()

			sem <- struct{}{}

			defer func() { <-sem }()

			tally, warning, tallyErr := d.tallyChannel(workCtx, ch.ID, startCursor, missingSet)

			mu.Lock()
			defer mu.Unlock()

			if tallyErr != nil {
				if firstErr == nil {
					firstErr = tallyErr

					cancel()
				}

				return
			}

			if warning != "" {
				warnings = append(warnings, warning)
			}

			for day, n := range tally {
				counts[day] += n
			}
		}(channel)
	}

	wg.Wait()

	if firstErr != nil {
		return nil, nil, firstErr
	}

	return counts, warnings, nil
}

func (d *Discord) listChannels(ctx context.Context, guildID string) ([]guildChannel, error) {
	endpoint := fmt.Sprintf("%s/guilds/%s/channels", d.baseURL, guildID)

	var channels []guildChannel

	getErr := d.client.getJSON(ctx, endpoint, d.header(), &channels)
	if getErr != nil {
		return nil, getErr
	}

	return channels, nil
}

// tallyChannel pages forward from the cursor, counting messages per missing
// day. Permission-denied means "no more accessible data": the tally so far
// is returned with a warning.
func (d *Discord) tallyChannel(
	ctx context.Context,
	channelID string,
	after uint64,
	missing map[dataset.Day]struct{},
) (map[dataset.Day]int64, string, error) {
	counts := make(map[dataset.Day]int64)
	cursor := after

	for {
		endpoint := fmt.Sprintf("%s/channels/%s/messages?after=%d&limit=%d", d.baseURL, channelID, cursor, messagePageSize)

		var page []channelMessage

		getErr := d.client.getJSON(ctx, endpoint, d.header(), &page)
		if errors.Is(getErr, ErrAuthRequired) {
			return counts, fmt.Sprintf("channel %s: no read access, kept %d bucketed days", channelID, len(counts)), nil
		}

		if getErr != nil {
			return nil, "", getErr
		}

		if len(page) == 0 {
			return counts, "", nil
		}

		maxID := cursor

		for _, msg := range page {
			id, parseErr := strconv.ParseUint(msg.ID, 10, 64)
			if parseErr != nil {
				return nil, "", fmt.Errorf("parse message id %q: %w", msg.ID, parseErr)
			}

			if id > maxID {
				maxID = id
			}

			day := snowflake.DayOf(id)
			if _, ok := missing[day]; ok {
				counts[day]++
			}
		}

		if len(page) < messagePageSize {
			return counts, "", nil
		}

		// A full page that does not advance the cursor would loop forever.
		if maxID <= cursor {
			return counts, "", nil
		}

		cursor = maxID
	}
}

func (d *Discord) header() http.Header {
	header := http.Header{}
	header.Set(headerAuthorization, "Bot "+d.token)

	return header
}
