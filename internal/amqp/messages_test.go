package amqp

import (
	"testing"
	"time"
)

func TestDatasetRefreshedMessage_JSON(t *testing.T) {
	fetched := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	msg := NewDatasetRefreshedMessage("3f1c2e", 42, fetched)

	body, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	got, err := DatasetRefreshedMessageFromJSON(body)
	if err != nil {
		t.Fatalf("FromJSON() error = %v", err)
	}
	if got.Version != "3f1c2e" || got.Count != 42 || !got.FetchedAt.Equal(fetched) {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestDatasetRefreshedMessageFromJSON_Invalid(t *testing.T) {
	if _, err := DatasetRefreshedMessageFromJSON([]byte("{not json")); err == nil {
		t.Error("expected error for malformed payload")
	}
}
