// Package menu renders the two-page inline menu and its page transitions.
package menu

import (
	"fmt"

	"github.com/go-telegram/bot/models"
)

// Page identifies which menu keyboard is displayed.
type Page int

const (
	Page1 Page = iota + 1
	Page2
)

// Callback actions carried by menu buttons.
const (
	ActionNext = "next"
	ActionBack = "back"
)

// TutorialURL is the static link shown on the second page.
const TutorialURL = "https://core.telegram.org/bots/tutorial"

// Button is a single inline button. Exactly one of Action or URL is set.
type Button struct {
	Label  string
	Action string
	URL    string
}

// IsLink reports whether the button opens an external URL.
func (b Button) IsLink() bool {
	return b.URL != ""
}

// Layout lists buttons in display order, one per row.
type Layout []Button

// Render returns the button layout for the page.
func Render(p Page) Layout {
	switch p {
	case Page2:
		return Layout{
			{Label: "Back", Action: ActionBack},
			{Label: "Tutorial", URL: TutorialURL},
		}
	default:
		return Layout{
			{Label: "Next", Action: ActionNext},
		}
	}
}

// Title returns the HTML-formatted message text shown with the page.
func Title(p Page) string {
	return fmt.Sprintf("<b>Menu %d</b>", pageNumber(p))
}

// Transition maps a callback action to the page it leads to. Unknown actions
// report false and leave the displayed page as it is.
func Transition(action string) (Page, bool) {
	switch action {
	case ActionNext:
		return Page2, true
	case ActionBack:
		return Page1, true
	default:
		return 0, false
	}
}

// Keyboard converts the page layout into Telegram inline keyboard markup.
func Keyboard(p Page) *models.InlineKeyboardMarkup {
	layout := Render(p)

	rows := make([][]models.InlineKeyboardButton, 0, len(layout))
	for _, b := range layout {
		btn := models.InlineKeyboardButton{Text: b.Label}
		if b.IsLink() {
			btn.URL = b.URL
		} else {
			btn.CallbackData = b.Action
		}
		rows = append(rows, []models.InlineKeyboardButton{btn})
	}

	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func pageNumber(p Page) int {
	if p == Page2 {
		return 2
	}
	return 1
}
