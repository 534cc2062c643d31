// Package format renders medications, stock listings and keyboards for
// Telegram delivery. All rendering is pure so it can be tested without a
// running bot.
package format

import (
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/romnatson3/pharmacy/bot/texts"
	"github.com/romnatson3/pharmacy/catalog"
)

// Callback uniques for inline keyboards.
const (
	CallbackDistrict = "district"
	CallbackChain    = "chain"
)

// Zero-width runes encoding a medication id into a button label. The id is
// invisible to the user but travels back inside the reply text, so a tap on
// a stale keyboard still identifies the exact catalog row.
const (
	markerStart = '\u2063' // invisible separator
	markerZero  = '\u200b' // zero-width space
	markerOne   = '\u200c' // zero-width non-joiner
)

// MedicationDisplayName renders a medication as shown to the user. Dosage
// and quantity are optional and each drags its paired attribute with it:
//
//	name, 500 мг, 20 табл.
//	name, 500 мг
//	name, 20 табл.
//	name
func MedicationDisplayName(name string, dosage int64, units string, quantity int64, form string) string {
	switch {
	case dosage > 0 && quantity > 0:
		return fmt.Sprintf("%s, %d %s, %d %s", name, dosage, units, quantity, form)
	case dosage > 0:
		return fmt.Sprintf("%s, %d %s", name, dosage, units)
	case quantity > 0:
		return fmt.Sprintf("%s, %d %s", name, quantity, form)
	default:
		return name
	}
}

// DisplayMedication is MedicationDisplayName over a catalog row.
func DisplayMedication(m catalog.Medication) string {
	return MedicationDisplayName(m.Name, m.Dosage, m.Units, m.Quantity, m.Form)
}

// EncodeChoiceID renders id as an invisible zero-width suffix.
func EncodeChoiceID(id int64) string {
	var b strings.Builder
	b.WriteRune(markerStart)
	for _, digit := range strconv.FormatInt(id, 2) {
		if digit == '0' {
			b.WriteRune(markerZero)
		} else {
			b.WriteRune(markerOne)
		}
	}
	return b.String()
}

// DecodeChoiceID extracts a medication id embedded by EncodeChoiceID.
// It returns the visible remainder of the text and ok=false when no
// marker is present or the marker is damaged.
func DecodeChoiceID(text string) (id int64, visible string, ok bool) {
	runes := []rune(text)
	start := -1
	for i, r := range runes {
		if r == markerStart {
			start = i
			break
		}
	}
	if start < 0 {
		return 0, text, false
	}

	var bits strings.Builder
	for _, r := range runes[start+1:] {
		switch r {
		case markerZero:
			bits.WriteByte('0')
		case markerOne:
			bits.WriteByte('1')
		default:
			return 0, string(runes[:start]), false
		}
	}
	if bits.Len() == 0 {
		return 0, string(runes[:start]), false
	}
	id, err := strconv.ParseInt(bits.String(), 2, 64)
	if err != nil {
		return 0, string(runes[:start]), false
	}
	return id, string(runes[:start]), true
}

// MainMenuKeyboard is the two-button reply keyboard shown after /start.
func MainMenuKeyboard() *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{ResizeKeyboard: true}
	markup.Reply(markup.Row(
		markup.Text(texts.SearchByMedicationButton),
		markup.Text(texts.ProductOfTheDayButton),
	))
	return markup
}

// DistrictKeyboard lays districts out two per row and appends the
// all-districts sentinel to the last row rather than opening a new one.
func DistrictKeyboard(districts []catalog.District) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	var rows [][]tele.InlineButton
	for i := 0; i < len(districts); i += 2 {
		end := i + 2
		if end > len(districts) {
			end = len(districts)
		}
		row := make([]tele.InlineButton, 0, 2)
		for _, d := range districts[i:end] {
			btn := markup.Data(d.Name, CallbackDistrict, strconv.FormatInt(d.ID, 10))
			row = append(row, *btn.Inline())
		}
		rows = append(rows, row)
	}
	sentinel := *markup.Data(texts.AllDistrictsButton, CallbackDistrict, catalog.AllDistricts).Inline()
	if len(rows) == 0 {
		rows = append(rows, []tele.InlineButton{sentinel})
	} else {
		last := len(rows) - 1
		rows[last] = append(rows[last], sentinel)
	}
	markup.InlineKeyboard = rows
	return markup
}

// MedicationChoiceKeyboard builds a one-per-row reply keyboard of display
// names, each label carrying its medication id as a zero-width suffix.
func MedicationChoiceKeyboard(medications []catalog.Medication) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{ResizeKeyboard: true, OneTimeKeyboard: true}
	rows := make([]tele.Row, 0, len(medications))
	for _, m := range medications {
		rows = append(rows, markup.Row(markup.Text(DisplayMedication(m)+EncodeChoiceID(m.ID))))
	}
	markup.Reply(rows...)
	return markup
}

// ChainOfferKeyboard is the single inline button drilling into one chain's
// pharmacy listings.
func ChainOfferKeyboard(chainID int64) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	btn := markup.Data(texts.ShowPharmaciesButton, CallbackChain, strconv.FormatInt(chainID, 10))
	markup.InlineKeyboard = [][]tele.InlineButton{{*btn.Inline()}}
	return markup
}

// ChainOfferText renders one chain's cheapest listing for the offer feed.
func ChainOfferText(o catalog.ChainOffer) string {
	name := MedicationDisplayName(o.MedName, o.Dosage, o.Units, o.Quantity, o.Form)
	return fmt.Sprintf("<b>%s - %.2f грн.</b>\n%s", name, o.Price, o.ChainName)
}

// StockListText renders pharmacy listings as blank-line separated blocks:
// a bold medication-with-price line, the chain and address line, then one
// line per phone number.
func StockListText(stocks []catalog.StockDetail) string {
	var b strings.Builder
	for _, s := range stocks {
		name := MedicationDisplayName(s.MedName, s.Dosage, s.Units, s.Quantity, s.Form)
		fmt.Fprintf(&b, "<b>%s - %.2f грн.</b>\n", name, s.Price)
		fmt.Fprintf(&b, "%s - %s\n", s.ChainName, s.Address)
		for _, phone := range s.Phones {
			b.WriteString(phone)
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}
