package msgrelay

import "time"

// TimestampLayout is the format of StoredMessage.Date, with microsecond precision.
const TimestampLayout = "2006-01-02 15:04:05.000000"

// Message is what the FrontDoor relays to the Collector.
type Message struct {
	Username string `json:"username"`
	Message  string `json:"message"`
}

// StoredMessage is one record in the store. The Collector creates it
// immediately after a Message is received.
type StoredMessage struct {
	Date     string `json:"date" bson:"date" db:"date"`
	Username string `json:"username" bson:"username" db:"username"`
	Message  string `json:"message" bson:"message" db:"message"`
}

// Stamp returns the record for msg received at the given time.
func Stamp(msg Message, received time.Time) StoredMessage {
	return StoredMessage{
		Date:     received.Format(TimestampLayout),
		Username: msg.Username,
		Message:  msg.Message,
	}
}

// ReceivedAt parses the Date of a record in the local time zone.
func (m StoredMessage) ReceivedAt() (time.Time, error) {
	return time.ParseInLocation(TimestampLayout, m.Date, time.Local)
}
