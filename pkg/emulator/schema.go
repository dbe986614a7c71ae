package emulator

// Schema contains the SQL statements to create the emulator database schema.
const Schema = `
-- Containers: one per registered upload batch
CREATE TABLE IF NOT EXISTS containers (
    uuid            TEXT PRIMARY KEY,
    duration        INTEGER NOT NULL,
    author_email    TEXT NOT NULL DEFAULT '',
    password_hash   TEXT NOT NULL DEFAULT '',
    message         TEXT NOT NULL DEFAULT '',
    number_of_file  INTEGER NOT NULL,
    download_limit  INTEGER NOT NULL,
    lang            TEXT NOT NULL,
    size_of_upload  INTEGER NOT NULL,
    created_at      DATETIME NOT NULL,
    expires_at      DATETIME NOT NULL,
    completed       BOOLEAN DEFAULT FALSE
);

-- Files: index-aligned with the registration order
CREATE TABLE IF NOT EXISTS files (
    uuid             TEXT PRIMARY KEY,
    container_uuid   TEXT NOT NULL,
    position         INTEGER NOT NULL,
    name             TEXT NOT NULL,
    size             INTEGER NOT NULL,
    mime_type        TEXT NOT NULL,
    download_counter INTEGER NOT NULL DEFAULT 0,
    chunk_count      INTEGER NOT NULL DEFAULT 0,
    complete         BOOLEAN DEFAULT FALSE,
    created_at       DATETIME NOT NULL,
    FOREIGN KEY (container_uuid) REFERENCES containers(uuid) ON DELETE CASCADE,
    UNIQUE (container_uuid, position)
);

-- Chunks: received parts, possibly out of order
CREATE TABLE IF NOT EXISTS chunks (
    file_uuid   TEXT NOT NULL,
    idx         INTEGER NOT NULL,
    size        INTEGER NOT NULL,
    received_at DATETIME NOT NULL,
    PRIMARY KEY (file_uuid, idx),
    FOREIGN KEY (file_uuid) REFERENCES files(uuid) ON DELETE CASCADE
);

-- Links: at most one per container
CREATE TABLE IF NOT EXISTS links (
    uuid           TEXT PRIMARY KEY,
    container_uuid TEXT UNIQUE NOT NULL,
    created_at     DATETIME NOT NULL,
    FOREIGN KEY (container_uuid) REFERENCES containers(uuid) ON DELETE CASCADE
);

-- Tokens: single-use download credentials
CREATE TABLE IF NOT EXISTS tokens (
    token      TEXT PRIMARY KEY,
    file_uuid  TEXT NOT NULL,
    created_at DATETIME NOT NULL,
    used       BOOLEAN DEFAULT FALSE,
    FOREIGN KEY (file_uuid) REFERENCES files(uuid) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_files_container ON files(container_uuid);
CREATE INDEX IF NOT EXISTS idx_tokens_file ON tokens(file_uuid);
`
