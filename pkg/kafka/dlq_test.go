package kafka

import (
	"testing"
)

func TestDLQTopicPrefix(t *testing.T) {
	if DLQTopicPrefix != "crm.dlq" {
		t.Errorf("DLQTopicPrefix = %q, want %q", DLQTopicPrefix, "crm.dlq")
	}
}

func TestDLQTopic(t *testing.T) {
	tests := []struct {
		name          string
		originalTopic string
		want          string
	}{
		{
			name:          "standard topic",
			originalTopic: "crm.access.audit",
			want:          "crm.dlq.crm.access.audit",
		},
		{
			name:          "simple topic name",
			originalTopic: "contacts",
			want:          "crm.dlq.contacts",
		},
		{
			name:          "deeply nested topic",
			originalTopic: "crm.access.password.reset",
			want:          "crm.dlq.crm.access.password.reset",
		},
		{
			name:          "single word topic",
			originalTopic: "notifications",
			want:          "crm.dlq.notifications",
		},
		{
			name:          "topic with hyphens",
			originalTopic: "audit-events",
			want:          "crm.dlq.audit-events",
		},
		{
			name:          "topic with underscores",
			originalTopic: "usage_updates",
			want:          "crm.dlq.usage_updates",
		},
		{
			name:          "empty topic",
			originalTopic: "",
			want:          "crm.dlq.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DLQTopic(tt.originalTopic)
			if got != tt.want {
				t.Errorf("DLQTopic(%q) = %q, want %q", tt.originalTopic, got, tt.want)
			}
		})
	}
}

func TestDLQTopic_ContainsPrefix(t *testing.T) {
	topic := DLQTopic("some.topic")
	if len(topic) <= len(DLQTopicPrefix) {
		t.Fatalf("DLQTopic result %q should be longer than prefix %q", topic, DLQTopicPrefix)
	}
	prefix := topic[:len(DLQTopicPrefix)]
	if prefix != DLQTopicPrefix {
		t.Errorf("DLQTopic(%q) prefix = %q, want %q", "some.topic", prefix, DLQTopicPrefix)
	}
}
