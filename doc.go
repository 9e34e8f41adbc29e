/*
Package msgrelay relays short text messages from web clients to an append-only store.

Two roles run as separate processes and share only the relay protocol:

The FrontDoor is an HTTP handler. It serves the pages and, for a form POST,
packages the username and message fields as JSON and delivers them to the
Collector over a short-lived websocket connection. The caller is answered
once the hand-off has succeeded or failed; it is never told whether the
message was stored.

The Collector accepts websocket sessions. Each session runs its own goroutine
that reads one frame at a time, decodes it, stamps it with the time of
receipt and inserts one record into the MessageStore. Decode and store errors
are logged and the session keeps reading.

The MessageStore, which you can implement, receives the records. MongoDB,
Redis, SQLite, PostgreSQL, MySQL, MariaDB and in-memory implementations are
provided; OpenStore picks one from a StoreConfig.

*/
package msgrelay
