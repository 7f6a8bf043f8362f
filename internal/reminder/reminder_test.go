package reminder

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/revise/internal/analytics"
	"github.com/conorfennell/revise/internal/domain"
	"github.com/conorfennell/revise/internal/storage"
)

var today = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

type fakeSource struct {
	due, overdue int
	topics       []string
	err          error
}

func (f fakeSource) Today() time.Time { return today }

func (f fakeSource) DueCount(context.Context, int64) (int, error) { return f.due, f.err }

func (f fakeSource) OverdueCount(context.Context, int64) (int, error) { return f.overdue, nil }

func (f fakeSource) DueCountsBySubject(context.Context) ([]storage.SubjectCount, error) {
	if f.due == 0 {
		return nil, nil
	}
	return []storage.SubjectCount{{SubjectID: 1, SubjectName: "Biology", Count: f.due}}, nil
}

func (f fakeSource) DueTopics(context.Context, int64) ([]domain.TopicState, error) {
	var out []domain.TopicState
	for _, t := range f.topics {
		out = append(out, domain.TopicState{Topic: t})
	}
	return out, nil
}

func (f fakeSource) Streak(context.Context) (analytics.StreakSummary, error) {
	return analytics.StreakSummary{Current: 4, Longest: 9}, nil
}

type recorder struct {
	digests []Digest
}

func (r *recorder) Notify(_ context.Context, d Digest) error {
	r.digests = append(r.digests, d)
	return nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunOnceSendsDigest(t *testing.T) {
	rec := &recorder{}
	s := NewScheduler(fakeSource{due: 7, overdue: 2, topics: []string{"Cells"}}, rec, discard(), time.UTC)

	sent, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, sent)
	require.Len(t, rec.digests, 1)

	d := rec.digests[0]
	assert.Equal(t, 7, d.Due)
	assert.Equal(t, 2, d.Overdue)
	assert.Equal(t, []string{"Cells"}, d.Topics)

	text := d.Text()
	assert.True(t, strings.HasPrefix(text, "Revision for 2025-03-10"))
	assert.Contains(t, text, "7 cards due (2 overdue)")
	assert.Contains(t, text, "Biology: 7")
	assert.Contains(t, text, "Topics to revisit: Cells")
	assert.Contains(t, text, "Current streak: 4 days")
}

func TestRunOnceSkipsWhenNothingDue(t *testing.T) {
	rec := &recorder{}
	s := NewScheduler(fakeSource{}, rec, discard(), nil)

	sent, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, sent)
	assert.Empty(t, rec.digests)
}

func TestRunOnceReportsSourceErrors(t *testing.T) {
	boom := errors.New("disk on fire")
	s := NewScheduler(fakeSource{err: boom}, &recorder{}, discard(), nil)

	_, err := s.RunOnce(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestStartRejectsBadCron(t *testing.T) {
	s := NewScheduler(fakeSource{}, &recorder{}, discard(), nil)
	err := s.Start(context.Background(), "every now and then")
	assert.Error(t, err)
}

type fakeSender struct {
	sent []tgbotapi.Chattable
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func TestTelegramNotifier(t *testing.T) {
	fs := &fakeSender{}
	n := &TelegramNotifier{api: fs, chatID: 42}

	require.NoError(t, n.Notify(context.Background(), Digest{Date: today, Due: 3}))
	require.Len(t, fs.sent, 1)
	msg, ok := fs.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(42), msg.ChatID)
	assert.Contains(t, msg.Text, "3 cards due")
}
