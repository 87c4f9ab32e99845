package census

import "testing"

func TestQueryEncode(t *testing.T) {
	tests := []struct {
		name  string
		query *Query
		want  string
	}{
		{
			name:  "bare collection",
			query: NewQuery("character"),
			want:  "character",
		},
		{
			name:  "single term",
			query: NewQuery("character").Where("name.first_lower", "wrel"),
			want:  "character?name.first_lower=wrel",
		},
		{
			name:  "term with starts-with modifier",
			query: NewQuery("character").WhereOp("name.first_lower", ModStartsWith, "wrel"),
			want:  "character?name.first_lower=^wrel",
		},
		{
			name:  "term with not modifier",
			query: NewQuery("item").WhereOp("faction_id", ModNot, "0"),
			want:  "item?faction_id=!0",
		},
		{
			name:  "range modifiers",
			query: NewQuery("character").WhereOp("battle_rank.value", ModGreaterOrEqual, "100"),
			want:  "character?battle_rank.value=]100",
		},
		{
			name: "limit start show sort",
			query: NewQuery("character").
				Where("faction_id", "1").
				Limit(10).
				Start(20).
				Show("name", "character_id").
				SortDesc("battle_rank.value"),
			want: "character?faction_id=1&c:limit=10&c:start=20&c:show=name,character_id&c:sort=battle_rank.value:-1",
		},
		{
			name:  "hide and lang",
			query: NewQuery("item").Hide("image_path").Lang("en"),
			want:  "item?c:hide=image_path&c:lang=en",
		},
		{
			name:  "boolean modifiers",
			query: NewQuery("character").ExactMatchFirst().CaseSensitive().Timing().IncludeNull(),
			want:  "character?c:exactMatchFirst=true&c:case=true&c:timing=true&c:includeNull=true",
		},
		{
			name: "join",
			query: NewQuery("character").
				Where("character_id", "5428011263335537297").
				WithJoin(NewJoin("characters_world").On("character_id").To("character_id").InjectAt("world")),
			want: "character?character_id=5428011263335537297&c:join=characters_world^on:character_id^to:character_id^inject_at:world",
		},
		{
			name: "list join with show and terms",
			query: NewQuery("outfit").
				WithJoin(NewJoin("outfit_member").List().InjectAt("members").Show("character_id", "rank").Where("rank", "Leader")),
			want: "outfit?c:join=outfit_member^list:1^inject_at:members^show:character_id'rank^terms:rank=Leader",
		},
		{
			name: "nested joins",
			query: NewQuery("outfit").
				WithJoin(NewJoin("outfit_member").List().WithJoin(NewJoin("character").On("character_id").To("character_id"))),
			want: "outfit?c:join=outfit_member^list:1(character^on:character_id^to:character_id)",
		},
		{
			name: "sibling joins",
			query: NewQuery("character").
				WithJoin(NewJoin("characters_world"), NewJoin("characters_stat").List()),
			want: "character?c:join=characters_world,characters_stat^list:1",
		},
		{
			name:  "inner join",
			query: NewQuery("character").WithJoin(NewJoin("characters_online_status").Inner()),
			want:  "character?c:join=characters_online_status^outer:0",
		},
		{
			name:  "tree",
			query: NewQuery("item").WithTree(NewTree("item_category_id").List().Prefix("cat_")),
			want:  "item?c:tree=item_category_id^list:1^prefix:cat_",
		},
		{
			name:  "tree with start",
			query: NewQuery("world_event").WithTree(NewTree("world_id").Start("world_event_list")),
			want:  "world_event?c:tree=world_id^start:world_event_list",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.query.Encode()
			if got != tt.want {
				t.Errorf("Encode():\n got %s\nwant %s", got, tt.want)
			}
		})
	}
}

func TestQueryEncode_EscapesValues(t *testing.T) {
	got := NewQuery("character").Where("name.first", "a b&c").Encode()
	want := "character?name.first=a+b%26c"
	if got != want {
		t.Errorf("Encode() = %s, want %s", got, want)
	}
}
