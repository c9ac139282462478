package timescaledb

const createTableSQL = `
CREATE TABLE IF NOT EXISTS acoustic_records (
    recorded_at timestamp WITH TIME ZONE NOT NULL,
    run_id uuid NOT NULL,
    stream text NOT NULL,
    sim_time double precision NOT NULL,
    samples double precision[] NOT NULL
);`

const createStreamsTableSQL = `
CREATE TABLE IF NOT EXISTS acoustic_streams (
    run_id uuid NOT NULL,
    name text NOT NULL,
    columns text[] NOT NULL,
    created_at timestamp WITH TIME ZONE NOT NULL DEFAULT now(),
    PRIMARY KEY (run_id, name)
);`

const createExtensionSQL = `CREATE EXTENSION IF NOT EXISTS timescaledb CASCADE;`

const createHypertableSQL = `SELECT create_hypertable('acoustic_records', 'recorded_at', if_not_exists => true);`

const createIndexSQL = `
CREATE INDEX IF NOT EXISTS acoustic_records_run_stream_idx
    ON acoustic_records (run_id, stream, sim_time);`
