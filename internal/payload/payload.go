// Package payload turns an accumulated batch into the JSON document posted
// to the notification endpoint.
package payload

import (
	"encoding/json"
	"fmt"

	"alert-relay/internal/alert"
)

// DefaultPlatform is the product label reported in every document.
const DefaultPlatform = "MetaTrader"

// Document is the wire representation of one batch. Field order is part of
// the wire format.
type Document struct {
	Key           string         `json:"Key"`
	StrategyName  string         `json:"StrategyName"`
	Platform      string         `json:"Platform"`
	Notifications []Notification `json:"Notifications"`
}

type Notification struct {
	Text       string `json:"Text"`
	Instrument string `json:"Instrument"`
	TimeFrame  string `json:"TimeFrame"`
}

// Format builds the document for b. An empty platform falls back to
// DefaultPlatform.
func Format(b *alert.Batch, platform string) Document {
	if platform == "" {
		platform = DefaultPlatform
	}

	notifications := make([]Notification, 0, len(b.Events))
	for _, ev := range b.Events {
		notifications = append(notifications, Notification{
			Text:       ev.Text,
			Instrument: ev.Instrument,
			TimeFrame:  ev.TimeFrame,
		})
	}

	return Document{
		Key:           b.Key,
		StrategyName:  b.StrategyName,
		Platform:      platform,
		Notifications: notifications,
	}
}

func (d Document) Marshal() ([]byte, error) {
	body, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshal document for key %q: %w", d.Key, err)
	}
	return body, nil
}
