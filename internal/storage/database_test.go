package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/revise/internal/domain"
)

var day = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "revise.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedSubject(t *testing.T, db *DB, name string) int64 {
	t.Helper()
	id, err := db.InsertSubject(context.Background(), domain.Subject{Name: name, CreatedAt: day})
	require.NoError(t, err)
	return id
}

func seedCard(t *testing.T, db *DB, subjectID int64, question, topic string, next time.Time) domain.Card {
	t.Helper()
	c := domain.NewCard(subjectID, question, "answer to "+question, topic, next)
	c.Hash = "hash-" + question
	c.CreatedAt = day
	id, err := db.InsertCard(context.Background(), c)
	require.NoError(t, err)
	c.ID = id
	return c
}

func TestCardRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	subject := seedSubject(t, db, "Biology")
	card := seedCard(t, db, subject, "What is osmosis?", "Osmosis", day)

	got, err := db.FindCard(ctx, card.ID)
	require.NoError(t, err)
	assert.Equal(t, "What is osmosis?", got.Question)
	assert.Equal(t, "Osmosis", got.Topic)
	assert.Equal(t, domain.DefaultEase, got.EaseFactor)
	assert.Equal(t, 0, got.Interval)
	assert.True(t, got.NextReview.Equal(day))
	assert.Nil(t, got.LastReviewedAt)

	reviewed := time.Date(2025, 3, 10, 18, 30, 0, 0, time.UTC)
	got.EaseFactor = 2.6
	got.Interval = 1
	got.Repetitions = 1
	got.NextReview = day.AddDate(0, 0, 1)
	got.TimesReviewed = 1
	got.TimesCorrect = 1
	got.LastReviewedAt = &reviewed
	require.NoError(t, db.UpdateCardState(ctx, got))

	again, err := db.FindCard(ctx, card.ID)
	require.NoError(t, err)
	assert.InDelta(t, 2.6, again.EaseFactor, 1e-9)
	assert.Equal(t, 1, again.Repetitions)
	assert.Equal(t, "2025-03-11", domain.FormatDate(again.NextReview))
	require.NotNil(t, again.LastReviewedAt)
	assert.True(t, again.LastReviewedAt.Equal(reviewed))

	byHash, err := db.FindCardByHash(ctx, subject, card.Hash)
	require.NoError(t, err)
	assert.Equal(t, card.ID, byHash.ID)
}

func TestFindCardNotFound(t *testing.T) {
	db := openTestDB(t)
	_, err := db.FindCard(context.Background(), 999)
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)

	err = db.UpdateCardState(context.Background(), domain.Card{ID: 999, EaseFactor: 2.5, NextReview: day})
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)
}

func TestEaseCheckConstraint(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	card := seedCard(t, db, seedSubject(t, db, "Maths"), "2+2", "", day)

	card.EaseFactor = 1.0
	assert.Error(t, db.UpdateCardState(ctx, card))
}

func TestDueCardsOrderingAndCounts(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	bio := seedSubject(t, db, "Biology")
	chem := seedCard(t, db, seedSubject(t, db, "Chemistry"), "chem", "", day.AddDate(0, 0, -1))

	old := seedCard(t, db, bio, "old", "", day.AddDate(0, 0, -5))
	easy := seedCard(t, db, bio, "easy", "", day)
	hard := seedCard(t, db, bio, "hard", "", day)
	seedCard(t, db, bio, "future", "", day.AddDate(0, 0, 3))

	hard.EaseFactor = 1.5
	require.NoError(t, db.UpdateCardState(ctx, hard))

	due, err := db.DueCards(ctx, day, 0, 0)
	require.NoError(t, err)
	ids := make([]int64, 0, len(due))
	for _, c := range due {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []int64{old.ID, chem.ID, hard.ID, easy.ID}, ids)

	n, err := db.CountDue(ctx, day, 0, false)
	require.NoError(t, err)
	assert.Equal(t, len(due), n)

	overdue, err := db.CountDue(ctx, day, 0, true)
	require.NoError(t, err)
	assert.Equal(t, 2, overdue)

	limited, err := db.DueCards(ctx, day, bio, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, old.ID, limited[0].ID)
	assert.Equal(t, hard.ID, limited[1].ID)

	bySubject, err := db.DueCountsBySubject(ctx, day)
	require.NoError(t, err)
	require.Len(t, bySubject, 2)
	assert.Equal(t, "Biology", bySubject[0].SubjectName)
	assert.Equal(t, 3, bySubject[0].Count)
}

func TestDistinctTopicsSkipsEmpty(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	bio := seedSubject(t, db, "Biology")
	seedCard(t, db, bio, "a", "Osmosis", day)
	seedCard(t, db, bio, "b", "Mitosis", day)
	seedCard(t, db, bio, "c", "Osmosis", day)
	seedCard(t, db, bio, "d", "", day)

	topics, err := db.DistinctTopics(ctx, bio)
	require.NoError(t, err)
	assert.Equal(t, []SubjectTopic{{bio, "Mitosis"}, {bio, "Osmosis"}}, topics)
}

func TestInTxRollsBack(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	card := seedCard(t, db, seedSubject(t, db, "History"), "1066", "", day)

	boom := errors.New("boom")
	err := db.InTx(ctx, func(q *Queries) error {
		card.Interval = 6
		card.Repetitions = 2
		if err := q.UpdateCardState(ctx, card); err != nil {
			return err
		}
		if _, err := q.InsertReviewEvent(ctx, domain.ReviewEvent{
			CardID: card.ID, Quality: 4, ReviewedAt: day, ReviewDate: day,
			EaseBefore: 2.5, EaseAfter: 2.5, IntervalAfter: 6,
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := db.FindCard(ctx, card.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Interval)
	n, err := db.CountReviewEvents(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDailyActivityRebuildMatchesUpserts(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	card := seedCard(t, db, seedSubject(t, db, "Physics"), "F=ma", "", day)

	record := func(d time.Time, q int, secs int) {
		s := secs
		_, err := db.InsertReviewEvent(ctx, domain.ReviewEvent{
			CardID: card.ID, Quality: q, ReviewedAt: d.Add(9 * time.Hour), ReviewDate: d,
			ElapsedSeconds: &s, EaseBefore: 2.5, EaseAfter: 2.5,
		})
		require.NoError(t, err)
		require.NoError(t, db.AddDailyActivity(ctx, d, q >= 3, secs))
	}
	record(day, 5, 10)
	record(day, 2, 20)
	record(day.AddDate(0, 0, -1), 4, 5)

	before, err := db.ListDailyActivity(ctx, day.AddDate(0, 0, -7), day)
	require.NoError(t, err)
	require.Len(t, before, 2)
	assert.Equal(t, domain.DailyActivity{Date: day, CardsReviewed: 2, CardsCorrect: 1, SecondsSpent: 30}, before[1])

	n, err := db.RebuildDailyActivity(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	after, err := db.ListDailyActivity(ctx, day.AddDate(0, 0, -7), day)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	ledger, err := db.AggregateLedger(ctx)
	require.NoError(t, err)
	assert.Equal(t, after, ledger)
}

func TestTopicStateUnique(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	bio := seedSubject(t, db, "Biology")

	ts := domain.NewTopicState(bio, "Osmosis", domain.SourceFlashcards, day)
	ts.CreatedAt = day
	_, err := db.InsertTopicState(ctx, ts)
	require.NoError(t, err)
	_, err = db.InsertTopicState(ctx, ts)
	assert.Error(t, err)

	got, err := db.FindTopicState(ctx, bio, "Osmosis")
	require.NoError(t, err)
	assert.Equal(t, domain.SourceFlashcards, got.Source)
	assert.Equal(t, domain.DefaultImportance, got.Importance)

	_, err = db.FindTopicState(ctx, bio, "Mitosis")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpcomingExams(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	bio := seedSubject(t, db, "Biology")

	_, err := db.InsertExam(ctx, domain.Exam{SubjectID: bio, Name: "Past", Date: day.AddDate(0, 0, -1), Topics: []string{"Osmosis"}})
	require.NoError(t, err)
	_, err = db.InsertExam(ctx, domain.Exam{SubjectID: bio, Name: "Finals", Date: day.AddDate(0, 0, 3), Topics: []string{"Osmosis", "Mitosis"}})
	require.NoError(t, err)

	exams, err := db.UpcomingExams(ctx, day)
	require.NoError(t, err)
	require.Len(t, exams, 1)
	assert.Equal(t, "Finals", exams[0].Name)
	assert.Equal(t, []string{"Mitosis", "Osmosis"}, exams[0].Topics)
	assert.True(t, exams[0].Covers("Osmosis"))
}
