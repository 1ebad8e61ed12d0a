// Package postgres expects the following schema to already exist
// (provisioned outside this repo, matching the join-service convention
// of no in-repo migration tooling):
//
//	CREATE TABLE orders (
//	    id              UUID PRIMARY KEY,
//	    customer_id     TEXT NOT NULL,
//	    items           JSONB NOT NULL,
//	    total_amount    TEXT NOT NULL,
//	    status          TEXT NOT NULL,
//	    idempotency_key TEXT UNIQUE,
//	    created_at      TIMESTAMPTZ NOT NULL,
//	    updated_at      TIMESTAMPTZ NOT NULL
//	);
//
//	CREATE TABLE outbox_events (
//	    id            UUID PRIMARY KEY,
//	    event_type    TEXT NOT NULL,
//	    aggregate_id  UUID NOT NULL,
//	    payload       JSONB NOT NULL,
//	    published     BOOLEAN NOT NULL DEFAULT false,
//	    retry_count   INT NOT NULL DEFAULT 0,
//	    next_retry_at TIMESTAMPTZ,
//	    created_at    TIMESTAMPTZ NOT NULL,
//	    published_at  TIMESTAMPTZ
//	);
//	CREATE INDEX outbox_events_unpublished_due_idx ON outbox_events (published, next_retry_at, created_at);
//
//	CREATE TABLE processed_events (
//	    event_id     TEXT PRIMARY KEY,
//	    event_type   TEXT NOT NULL,
//	    processed_at TIMESTAMPTZ NOT NULL
//	);
package postgres
