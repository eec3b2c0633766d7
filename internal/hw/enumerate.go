package hw

import (
	"fmt"
	"path/filepath"
	"sort"
)

// Endpoint identifies a playback device node.
type Endpoint struct {
	Path   string
	Card   int
	Device int
}

// ListPlayback enumerates the playback endpoints present under /dev/snd,
// sorted by card then device number. An empty result just means no sound
// hardware is visible.
func ListPlayback() ([]Endpoint, error) {
	return listPlayback("/dev/snd")
}

func listPlayback(root string) ([]Endpoint, error) {
	matches, err := filepath.Glob(filepath.Join(root, "pcmC*D*p"))
	if err != nil {
		return nil, fmt.Errorf("hw: enumerate %s: %w", root, err)
	}

	var endpoints []Endpoint
	for _, path := range matches {
		var card, device int
		if _, err := fmt.Sscanf(filepath.Base(path), "pcmC%dD%dp", &card, &device); err != nil {
			continue
		}
		endpoints = append(endpoints, Endpoint{Path: path, Card: card, Device: device})
	}

	sort.Slice(endpoints, func(i, j int) bool {
		if endpoints[i].Card != endpoints[j].Card {
			return endpoints[i].Card < endpoints[j].Card
		}
		return endpoints[i].Device < endpoints[j].Device
	})
	return endpoints, nil
}
