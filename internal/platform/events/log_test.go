package events

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	p := NewLogPublisher(slog.New(slog.NewJSONHandler(&buf, nil)))

	err := p.Publish(context.Background(), Event{
		Type:      TaskCompleted,
		User:      "u-1",
		Objective: "puberty::corporality::2.1",
		Area:      "corporality",
		Amount:    80,
	})
	require.NoError(t, err)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "domain event", line["msg"])
	assert.Equal(t, "task.completed", line["type"])
	assert.Equal(t, "u-1", line["user"])
	assert.Equal(t, "puberty::corporality::2.1", line["objective"])
	assert.EqualValues(t, 80, line["amount"])
	assert.NotContains(t, line, "item")
}

func TestNewKafkaPublisherValidation(t *testing.T) {
	_, err := NewKafkaPublisher(nil, "pps-events")
	assert.Error(t, err)

	_, err = NewKafkaPublisher([]string{"localhost:9092"}, "")
	assert.Error(t, err)
}
