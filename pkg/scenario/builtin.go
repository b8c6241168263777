package scenario

import (
	"github.com/duotalk/duo-talk-gm/pkg/world"
)

// BuiltinKitchenMorning is the scenario id of the embedded default world.
const BuiltinKitchenMorning = "kitchen_morning"

// KitchenMorning returns the built-in default world: two sisters in a
// kitchen on a weekday morning. It is the registry's fallback when an
// entry has no path, and the fixture world used across tests.
func KitchenMorning() *world.WorldState {
	return &world.WorldState{
		Time:    world.SceneTime{Label: "朝"},
		Weather: "晴れ",
		Locations: map[string]world.Location{
			"キッチン": {
				ID:          "キッチン",
				Name:        "キッチン",
				Description: "朝日が差し込む小さなキッチン。コーヒーの香りが漂っている。",
				Exits:       []world.Exit{{Target: "リビング", Description: "リビングへ続くドア"}},
			},
			"リビング": {
				ID:          "リビング",
				Name:        "リビング",
				Description: "ソファとテレビのある居間。",
				Exits:       []world.Exit{{Target: "キッチン", Description: "キッチンへ続くドア"}},
			},
		},
		Objects: map[string]world.Object{
			"コーヒーメーカー": {
				ID:       "コーヒーメーカー",
				Name:     "コーヒーメーカー",
				Aliases:  []string{"コーヒー"},
				Location: "キッチン",
				Owner:    world.OwnerPublic,
			},
			"マグカップ": {
				ID:       "マグカップ",
				Name:     "マグカップ",
				Aliases:  []string{"カップ"},
				Location: "キッチン",
				Owner:    world.OwnerPublic,
			},
			"戸棚": {
				ID:         "戸棚",
				Name:       "戸棚",
				Aliases:    []string{"棚"},
				Location:   "キッチン",
				Owner:      world.OwnerPublic,
				Properties: []string{"locked"},
			},
			"テレビ": {
				ID:       "テレビ",
				Name:     "テレビ",
				Aliases:  []string{"TV"},
				Location: "リビング",
				Owner:    world.OwnerPublic,
			},
		},
		Characters: map[string]world.Character{
			"やな": {ID: "やな", Name: "やな", Location: "キッチン"},
			"あゆ": {ID: "あゆ", Name: "あゆ", Location: "キッチン"},
		},
	}
}
