package gm

import (
	"fmt"
	"strings"

	"github.com/duotalk/duo-talk-gm/pkg/world"
)

const (
	// MaxCards caps the guidance injected into one prompt.
	MaxCards = 3

	// MaxCardRunes bounds a single card so guidance never crowds out
	// the conversation itself.
	MaxCardRunes = 120
)

// FactCards derives grounding cards from the speaker's surroundings:
// where they can go, what they can see, and what they hold. At most
// MaxCards cards are returned, each clipped to MaxCardRunes.
func FactCards(w *world.WorldState, speakerID string) []string {
	speaker, ok := w.FindCharacter(speakerID)
	if !ok {
		return nil
	}

	var cards []string

	exits := w.ExitsFrom(speaker.Location)
	if len(exits) > 0 {
		names := make([]string, 0, len(exits))
		for _, e := range exits {
			if loc, ok := w.Locations[e.Target]; ok {
				names = append(names, loc.Name)
			}
		}
		cards = append(cards, fmt.Sprintf("ここから行ける場所: %s", strings.Join(names, "、")))
	}

	visible := w.VisibleObjects(speaker)
	if len(visible) > 0 {
		names := make([]string, 0, len(visible))
		for _, o := range visible {
			names = append(names, o.Name)
		}
		cards = append(cards, fmt.Sprintf("ここにある物: %s", strings.Join(names, "、")))
	}

	if len(speaker.Holding) > 0 {
		names := make([]string, 0, len(speaker.Holding))
		for _, id := range speaker.Holding {
			if o, ok := w.Objects[id]; ok {
				names = append(names, o.Name)
			}
		}
		cards = append(cards, fmt.Sprintf("%sが持っている物: %s", speaker.Name, strings.Join(names, "、")))
	}

	return clipCards(cards)
}

// StallCard nudges the conversation onto a new track when the detector
// fires. Severity picks between a gentle and a firm phrasing.
func StallCard(w *world.WorldState, speakerID string, sev StallSeverity) string {
	speaker, ok := w.FindCharacter(speakerID)
	if !ok {
		return clipCard("話題を変えて、新しい行動をしてみてください")
	}

	var hint string
	if exits := w.ExitsFrom(speaker.Location); len(exits) > 0 {
		if loc, ok := w.Locations[exits[0].Target]; ok {
			hint = fmt.Sprintf("例えば%sに移動してみるのはどうでしょう", loc.Name)
		}
	} else if visible := w.VisibleObjects(speaker); len(visible) > 0 {
		hint = fmt.Sprintf("例えば%sを使ってみるのはどうでしょう", visible[0].Name)
	}

	msg := "同じ話題が続いています。話題を変えてみてください"
	if sev == StallCritical {
		msg = "会話が完全に停滞しています。必ず新しい話題か行動に切り替えてください"
	}
	if hint != "" {
		msg = msg + "。" + hint
	}
	return clipCard(msg)
}

func clipCards(cards []string) []string {
	if len(cards) > MaxCards {
		cards = cards[:MaxCards]
	}
	for i, c := range cards {
		cards[i] = clipCard(c)
	}
	return cards
}

func clipCard(c string) string {
	runes := []rune(c)
	if len(runes) <= MaxCardRunes {
		return c
	}
	return string(runes[:MaxCardRunes-1]) + "…"
}
