package ess

import "testing"

func TestMatches(t *testing.T) {
	tests := []struct {
		name  string
		sub   Subscription
		event Event
		want  bool
	}{
		{
			name:  "name in events, no filterable fields",
			sub:   Subscription{Events: []string{"PlayerLogin"}},
			event: Event{Name: "PlayerLogin", Payload: Payload{}},
			want:  true,
		},
		{
			name:  "name not in events",
			sub:   Subscription{Events: []string{"PlayerLogin"}},
			event: Event{Name: "PlayerLogout", Payload: Payload{}},
			want:  false,
		},
		{
			name:  "events wildcard matches any name",
			sub:   Subscription{Events: []string{All}},
			event: Event{Name: "GainExperience", Payload: Payload{}},
			want:  true,
		},
		{
			name:  "world in worlds",
			sub:   Subscription{Events: []string{All}, Worlds: []string{"17", "19"}},
			event: Event{Name: "Death", Payload: Payload{"world_id": "17"}},
			want:  true,
		},
		{
			name:  "world present and excluded",
			sub:   Subscription{Events: []string{All}, Worlds: []string{"19"}},
			event: Event{Name: "Death", Payload: Payload{"world_id": "17"}},
			want:  false,
		},
		{
			name:  "world absent from payload is never a mismatch",
			sub:   Subscription{Events: []string{All}, Worlds: []string{"19"}},
			event: Event{Name: "AchievementEarned", Payload: Payload{"character_id": "5"}},
			want:  true,
		},
		{
			name:  "worlds wildcard",
			sub:   Subscription{Events: []string{All}, Worlds: []string{All}},
			event: Event{Name: "Death", Payload: Payload{"world_id": "40"}},
			want:  true,
		},
		{
			name:  "character present and excluded",
			sub:   Subscription{Events: []string{All}, Characters: []string{"123"}},
			event: Event{Name: "Death", Payload: Payload{"character_id": "456"}},
			want:  false,
		},
		{
			name:  "character in characters",
			sub:   Subscription{Events: []string{All}, Characters: []string{"123", "456"}},
			event: Event{Name: "Death", Payload: Payload{"character_id": "456"}},
			want:  true,
		},
		{
			name: "all dimensions must pass",
			sub:  Subscription{Events: []string{"Death"}, Worlds: []string{"1"}, Characters: []string{"9"}},
			event: Event{Name: "Death", Payload: Payload{
				"world_id":     "1",
				"character_id": "8",
			}},
			want: false,
		},
		{
			name: "login event with world wildcard",
			sub:  Subscription{Events: []string{"PlayerLogin"}, Worlds: []string{All}, Characters: []string{All}},
			event: Event{Name: "PlayerLogin", Payload: Payload{
				"character_id": "123",
				"world_id":     "17",
			}},
			want: true,
		},
		{
			name: "login event from world outside filter",
			sub:  Subscription{Events: []string{All}, Worlds: []string{"19"}, Characters: []string{All}},
			event: Event{Name: "PlayerLogin", Payload: Payload{
				"character_id": "123",
				"world_id":     "17",
			}},
			want: false,
		},
		{
			name:  "non-string world field is ignored for filtering",
			sub:   Subscription{Events: []string{All}, Worlds: []string{"19"}},
			event: Event{Name: "Death", Payload: Payload{"world_id": 17.0}},
			want:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := matches(tt.sub.normalized(), tt.event)
			if got != tt.want {
				t.Errorf("matches(%v, %s) = %v, want %v", tt.sub, tt.event.Name, got, tt.want)
			}
		})
	}
}

func TestSubscriptionNormalized(t *testing.T) {
	sub := Subscription{Events: []string{"Death"}}.normalized()
	if len(sub.Worlds) != 1 || sub.Worlds[0] != All {
		t.Errorf("Worlds = %v, want [all]", sub.Worlds)
	}
	if len(sub.Characters) != 1 || sub.Characters[0] != All {
		t.Errorf("Characters = %v, want [all]", sub.Characters)
	}
	if len(sub.Events) != 1 || sub.Events[0] != "Death" {
		t.Errorf("Events = %v, want [Death]", sub.Events)
	}
}
