package reminders

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/clanbot/clanbot/bot/bottest"
	"github.com/clanbot/clanbot/common/testutils"
	"github.com/clanbot/clanbot/events"
	"github.com/clanbot/clanbot/guilds"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

const (
	lead   = time.Hour
	window = 5 * time.Minute
)

func TestInWindow(t *testing.T) {
	cases := []struct {
		until time.Duration
		in    bool
	}{
		{lead, true},
		{lead - window, true},
		{lead + window, true},
		{lead - window - time.Second, false},
		{lead + window + time.Second, false},
		{0, false},
		{-lead, false},
	}

	for _, c := range cases {
		assert.Equal(t, c.in, InWindow(testNow.Add(c.until), testNow, lead, window), "starts in %s", c.until)
	}
}

type fixture struct {
	scanner *Scanner
	events  *events.Store
	guilds  *guilds.Store
	session *bottest.Session
}

func newFixture(t *testing.T) *fixture {
	db := testutils.OpenSQLite(t,
		testutils.Schema("guilds", guilds.DBSchemas),
		testutils.Schema("events", events.DBSchemas))

	f := &fixture{
		events:  events.NewStore(db),
		guilds:  guilds.NewStore(db),
		session: bottest.New(),
	}
	f.events.Now = func() time.Time { return testNow }
	f.scanner = NewScanner(f.guilds, f.events, nil, f.session, lead, window)
	return f
}

func (f *fixture) createEvent(t *testing.T, guildID int64, name string, in time.Duration) int64 {
	id, err := f.events.Create(context.Background(), guildID, name, "", testNow.Add(in), 9)
	require.NoError(t, err)
	return id
}

func TestScan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.guilds.SetReminderChannel(ctx, 1, 100))
	require.NoError(t, f.guilds.SetReminderChannel(ctx, 2, 200))
	require.NoError(t, f.guilds.Ensure(ctx, 3))

	raid := f.createEvent(t, 1, "raid", time.Hour)
	f.createEvent(t, 1, "war", time.Hour+4*time.Minute)
	f.createEvent(t, 1, "later", 2*time.Hour)
	f.createEvent(t, 1, "soon", 50*time.Minute)
	broken := f.createEvent(t, 2, "meeting", time.Hour)
	f.createEvent(t, 3, "no channel", time.Hour)

	f.session.FailChannels["200"] = true

	report := f.scanner.Scan(ctx, testNow)
	assert.Equal(t, 2, report.Guilds)
	assert.Equal(t, 2, report.Sent)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, f.session.MessagesTo("100"), 2)

	// the failed send released its claim
	ev, err := f.events.Get(ctx, 2, broken)
	require.NoError(t, err)
	assert.False(t, ev.RemindedAt.Valid)

	// a second pass inside the same window doesn't repeat reminders
	report = f.scanner.Scan(ctx, testNow.Add(time.Minute))
	assert.Equal(t, 0, report.Sent)
	assert.Equal(t, 2, report.Skipped)
	assert.Len(t, f.session.MessagesTo("100"), 2)

	// the broken guild recovers on the next scan
	f.session.FailChannels["200"] = false
	report = f.scanner.Scan(ctx, testNow.Add(2*time.Minute))
	assert.Equal(t, 1, report.Sent)
	assert.Len(t, f.session.MessagesTo("200"), 1)

	// moving an event makes it eligible for a new reminder
	moved := testNow.Add(3*time.Hour + time.Minute)
	_, err = f.events.Update(ctx, 1, raid, events.EventUpdate{StartsAt: &moved})
	require.NoError(t, err)

	report = f.scanner.Scan(ctx, testNow.Add(2*time.Hour))
	assert.Equal(t, 1, report.Sent)

	sent := f.session.MessagesTo("100")
	require.Len(t, sent, 3)
	assert.Contains(t, sent[2].Embeds[0].Title, "raid")
	assert.Len(t, sent[2].Components, 1)
}

func TestWorkerStops(t *testing.T) {
	f := newFixture(t)
	p := NewPlugin(f.scanner, time.Hour)

	done := make(chan struct{})
	go func() {
		p.RunBackgroundWorker()
		close(done)
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	p.StopBackgroundWorker(&wg)
	wg.Wait()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
}
