package amqp

import (
	"encoding/json"
	"time"
)

// DatasetRefreshedMessage announces that a new receipt dataset version has
// been persisted. Contains only the version and count, the server reloads
// the full dataset from the database.
type DatasetRefreshedMessage struct {
	Version   string    `json:"version"`
	Count     int       `json:"count"`
	FetchedAt time.Time `json:"fetched_at"`
}

// NewDatasetRefreshedMessage creates a refresh notification for a dataset version
func NewDatasetRefreshedMessage(version string, count int, fetchedAt time.Time) *DatasetRefreshedMessage {
	return &DatasetRefreshedMessage{
		Version:   version,
		Count:     count,
		FetchedAt: fetchedAt,
	}
}

// ToJSON converts the message to JSON bytes
func (m *DatasetRefreshedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// FromJSON creates a message from JSON bytes
func DatasetRefreshedMessageFromJSON(data []byte) (*DatasetRefreshedMessage, error) {
	var msg DatasetRefreshedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
