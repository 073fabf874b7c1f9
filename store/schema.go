package store

// schemaSQL is the DDL for all tables.
const schemaSQL = `
-- Cached ontologies, one row per folded domain, model, variant and template version
CREATE TABLE IF NOT EXISTS ontologies (
    cache_key TEXT PRIMARY KEY,
    domain TEXT NOT NULL,
    model TEXT NOT NULL,
    variant TEXT NOT NULL DEFAULT '',
    template_version TEXT NOT NULL,
    payload JSON NOT NULL,
    relationship_count INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL,
    expires_at INTEGER
);

CREATE INDEX IF NOT EXISTS idx_ontologies_domain ON ontologies(domain);

-- One row per generation attempt, successful or not
CREATE TABLE IF NOT EXISTS generation_log (
    id INTEGER PRIMARY KEY,
    request_id TEXT NOT NULL,
    domain TEXT NOT NULL,
    model TEXT,
    outcome TEXT NOT NULL,
    error_kind TEXT,
    relationship_count INTEGER DEFAULT 0,
    elapsed_ms INTEGER DEFAULT 0,
    cached INTEGER DEFAULT 0,
    created_at INTEGER NOT NULL
);
`
