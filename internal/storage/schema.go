package storage

const schema = `
-- Subjects own cards, topic states and exams.
CREATE TABLE IF NOT EXISTS subjects (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE,
    colour TEXT NOT NULL DEFAULT '#3498db',
    created_at DATETIME NOT NULL
);

-- The 'cards' table stores each flashcard and its SM-2 state.
-- Calendar dates are TEXT (YYYY-MM-DD) so they compare lexically.
CREATE TABLE IF NOT EXISTS cards (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    subject_id INTEGER NOT NULL,
    question TEXT NOT NULL,
    answer TEXT NOT NULL,
    topic TEXT NOT NULL DEFAULT '',
    content_hash TEXT NOT NULL,
    ease_factor REAL NOT NULL DEFAULT 2.5 CHECK (ease_factor >= 1.3),
    interval INTEGER NOT NULL DEFAULT 0 CHECK (interval >= 0),
    repetitions INTEGER NOT NULL DEFAULT 0 CHECK (repetitions >= 0),
    next_review TEXT NOT NULL,
    times_reviewed INTEGER NOT NULL DEFAULT 0,
    times_correct INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL,
    last_reviewed_at DATETIME,

    FOREIGN KEY(subject_id) REFERENCES subjects(id)
);
CREATE INDEX IF NOT EXISTS idx_cards_next_review ON cards(next_review, ease_factor);
CREATE INDEX IF NOT EXISTS idx_cards_subject_hash ON cards(subject_id, content_hash);

-- The 'review_events' table is the append-only review ledger.
CREATE TABLE IF NOT EXISTS review_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    card_id INTEGER NOT NULL,
    quality INTEGER NOT NULL CHECK (quality BETWEEN 1 AND 5),
    reviewed_at DATETIME NOT NULL,
    review_date TEXT NOT NULL,
    elapsed_seconds INTEGER,
    ease_before REAL NOT NULL,
    ease_after REAL NOT NULL,
    interval_before INTEGER NOT NULL,
    interval_after INTEGER NOT NULL,

    FOREIGN KEY(card_id) REFERENCES cards(id)
);
CREATE INDEX IF NOT EXISTS idx_review_events_date ON review_events(review_date);
CREATE INDEX IF NOT EXISTS idx_review_events_card ON review_events(card_id);

-- The 'topic_states' table holds the topic-level SM-2 state.
CREATE TABLE IF NOT EXISTS topic_states (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    subject_id INTEGER NOT NULL,
    topic TEXT NOT NULL,
    ease_factor REAL NOT NULL DEFAULT 2.5 CHECK (ease_factor >= 1.3),
    interval INTEGER NOT NULL DEFAULT 0 CHECK (interval >= 0),
    repetitions INTEGER NOT NULL DEFAULT 0 CHECK (repetitions >= 0),
    next_review TEXT NOT NULL,
    average_score REAL NOT NULL DEFAULT 0,
    assessment_count INTEGER NOT NULL DEFAULT 0,
    importance INTEGER NOT NULL DEFAULT 3 CHECK (importance BETWEEN 1 AND 5),
    source TEXT NOT NULL,
    last_assessed_at DATETIME,
    created_at DATETIME NOT NULL,

    UNIQUE(subject_id, topic),
    FOREIGN KEY(subject_id) REFERENCES subjects(id)
);

-- The 'daily_activity' table caches per-day review totals from the ledger.
CREATE TABLE IF NOT EXISTS daily_activity (
    date TEXT PRIMARY KEY,
    cards_reviewed INTEGER NOT NULL DEFAULT 0,
    cards_correct INTEGER NOT NULL DEFAULT 0,
    seconds_spent INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS exams (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    subject_id INTEGER NOT NULL,
    name TEXT NOT NULL,
    exam_date TEXT NOT NULL,

    FOREIGN KEY(subject_id) REFERENCES subjects(id)
);

CREATE TABLE IF NOT EXISTS exam_topics (
    exam_id INTEGER NOT NULL,
    topic TEXT NOT NULL,

    PRIMARY KEY(exam_id, topic),
    FOREIGN KEY(exam_id) REFERENCES exams(id) ON DELETE CASCADE
);
`
