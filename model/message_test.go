package model

import (
	"encoding/json"
	"testing"
)

func TestFiltersPayloadFlattens(t *testing.T) {
	payload := FiltersPayload{
		Op:      OpFilters,
		GuildID: "g1",
		Filters: map[string]interface{}{
			"timescale": map[string]float64{"speed": 1.5, "pitch": 1.0, "rate": 1.0},
		},
	}

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}

	var flat map[string]json.RawMessage
	if err := json.Unmarshal(data, &flat); err != nil {
		t.Fatal(err)
	}
	if _, ok := flat["filters"]; ok {
		t.Error("filters were nested instead of flattened")
	}
	if _, ok := flat["timescale"]; !ok {
		t.Errorf("timescale missing from envelope: %s", data)
	}
	if string(flat["op"]) != `"filters"` || string(flat["guildId"]) != `"g1"` {
		t.Errorf("envelope = %s", data)
	}
}

func TestInboundMessageParsing(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want InboundMessage
	}{
		{
			name: "track end event",
			raw:  `{"op":"event","type":"TrackEndEvent","guildId":"g1","reason":"FINISHED"}`,
			want: InboundMessage{Op: OpEvent, Type: EventTrackEnd, GuildID: "g1", Reason: EndReasonFinished},
		},
		{
			name: "socket closed event",
			raw:  `{"op":"event","type":"WebSocketClosedEvent","guildId":"g1","code":4015,"reason":"session timeout"}`,
			want: InboundMessage{Op: OpEvent, Type: EventWebSocketClosed, GuildID: "g1", Code: 4015, Reason: "session timeout"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got InboundMessage
			if err := json.Unmarshal([]byte(tt.raw), &got); err != nil {
				t.Fatal(err)
			}
			if got.Op != tt.want.Op || got.Type != tt.want.Type || got.GuildID != tt.want.GuildID ||
				got.Reason != tt.want.Reason || got.Code != tt.want.Code {
				t.Errorf("parsed = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestPlayerUpdateParsing(t *testing.T) {
	raw := `{"op":"playerUpdate","guildId":"g1","state":{"time":1700000000000,"position":42000}}`
	var msg InboundMessage
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		t.Fatal(err)
	}
	if msg.State == nil || msg.State.Position != 42000 {
		t.Errorf("state = %+v, want position 42000", msg.State)
	}
}
