package store

// Schema contains the DDL for the comparison history.
const Schema = `
CREATE TABLE IF NOT EXISTS comparisons (
    id          TEXT PRIMARY KEY,
    source_a    TEXT NOT NULL,
    source_b    TEXT NOT NULL,
    hash_a      TEXT NOT NULL DEFAULT '',
    hash_b      TEXT NOT NULL DEFAULT '',
    diff_count  INTEGER NOT NULL,
    diffs       TEXT NOT NULL DEFAULT '[]',
    summary     TEXT NOT NULL DEFAULT '',
    evaluation  TEXT,
    created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_comparisons_created ON comparisons(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_comparisons_sources ON comparisons(source_a, source_b);
`
