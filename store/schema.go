package store

// Schema is valid for both SQLite and PostgreSQL. Times are stored in UTC.
const Schema = `
CREATE TABLE IF NOT EXISTS portfolios (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	version BIGINT NOT NULL DEFAULT 0,
	config TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS positions (
	portfolio_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	quantity DOUBLE PRECISION NOT NULL,
	avg_price DOUBLE PRECISION NOT NULL,
	exposure DOUBLE PRECISION NOT NULL DEFAULT 0,
	PRIMARY KEY (portfolio_id, symbol)
);

CREATE TABLE IF NOT EXISTS prices (
	symbol TEXT NOT NULL,
	day TEXT NOT NULL,
	close_price DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (symbol, day)
);

CREATE TABLE IF NOT EXISTS equity_snapshots (
	portfolio_id TEXT NOT NULL,
	taken_at TIMESTAMP NOT NULL,
	equity DOUBLE PRECISION NOT NULL,
	peak_equity DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (portfolio_id, taken_at)
);

CREATE TABLE IF NOT EXISTS contributions (
	id TEXT PRIMARY KEY,
	portfolio_id TEXT NOT NULL,
	made_at TIMESTAMP NOT NULL,
	amount TEXT NOT NULL,
	note TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_contributions_portfolio ON contributions(portfolio_id, made_at);

CREATE TABLE IF NOT EXISTS proposals (
	id TEXT PRIMARY KEY,
	portfolio_id TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	accepted_at TIMESTAMP NOT NULL,
	base_version BIGINT NOT NULL,
	body TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_proposals_portfolio ON proposals(portfolio_id, accepted_at);
`
