package storage

const schema = `
create table if not exists users (
	id            bigserial primary key,
	username      text not null unique,
	password_hash text not null,
	created_at    timestamptz not null default now()
);

create table if not exists messages (
	id              bigserial primary key,
	sender_username text not null,
	content         text not null,
	created_at      timestamptz not null default now()
);
`

// messagesLockKey is the advisory lock key serializing message inserts
const messagesLockKey int64 = 0x6d736773
