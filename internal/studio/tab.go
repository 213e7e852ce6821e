package studio

import (
	"fmt"
	"strings"
)

// Tab is one feature screen of the studio.
type Tab string

const (
	TabSprite   Tab = "sprite"
	TabImage    Tab = "image"
	TabEditor   Tab = "editor"
	TabVideo    Tab = "video"
	TabAnalyzer Tab = "analyzer"
	TabChat     Tab = "chat"
)

// DefaultTab is active when nothing else was chosen.
const DefaultTab = TabSprite

// Tabs lists the screens in display order.
var Tabs = []Tab{TabSprite, TabImage, TabEditor, TabVideo, TabAnalyzer, TabChat}

// Label is the human readable title of the tab.
func (t Tab) Label() string {
	switch t {
	case TabSprite:
		return "Sprite Sheet"
	case TabImage:
		return "Image Generator"
	case TabEditor:
		return "Image Editor"
	case TabVideo:
		return "Video Generator"
	case TabAnalyzer:
		return "Image Analyzer"
	case TabChat:
		return "Chat"
	default:
		return string(t)
	}
}

// NeedsCredential reports whether the tab is blocked by the shared credential
// gate. The video tab has its own key selection gate.
func (t Tab) NeedsCredential() bool {
	return t != TabVideo
}

// ParseTab resolves a tab name. An empty value yields DefaultTab.
func ParseTab(raw string) (Tab, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return DefaultTab, nil
	}
	for _, t := range Tabs {
		if string(t) == raw {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown tab %q", raw)
}
